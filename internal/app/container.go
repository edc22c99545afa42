package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/acme/task-confirm-caller/internal/api/handlers"
	"github.com/acme/task-confirm-caller/internal/board"
	"github.com/acme/task-confirm-caller/internal/config"
	"github.com/acme/task-confirm-caller/internal/domain"
	"github.com/acme/task-confirm-caller/internal/events"
	"github.com/acme/task-confirm-caller/internal/lifecycle"
	"github.com/acme/task-confirm-caller/internal/registry"
	"github.com/acme/task-confirm-caller/internal/scheduler"
	"github.com/acme/task-confirm-caller/internal/telephony"
	telephonyMock "github.com/acme/task-confirm-caller/internal/telephony/mock"
	"github.com/acme/task-confirm-caller/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Redis *redis.Client

	// lazily initialised components
	components struct {
		once      sync.Once
		registry  registry.PendingCallRegistry
		board     board.Board
		provider  telephony.Provider
		publisher events.OutcomePublisher
		manager   *lifecycle.Manager
		scheduler *scheduler.Scheduler
		initErr   error
	}
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	container := &Container{Config: cfg, Logger: lg}

	if cfg.Registry.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		container.Redis = client
	}

	return container, nil
}

func (c *Container) initComponents() error {
	c.components.once.Do(func() {
		if c.Redis != nil {
			c.components.registry = registry.NewRedis(c.Redis, c.Config.Registry.TTL)
		} else {
			c.components.registry = registry.NewMemory()
		}

		c.components.board = board.NewAsanaBoard(c.Config.Board, c.Logger)

		switch c.Config.Telephony.ProviderName {
		case "twilio":
			c.components.provider = telephony.NewTwilioProvider(
				c.Config.Telephony, c.Config.Confirmation.CallbackBaseURL, c.Logger)
		default:
			c.components.provider = telephonyMock.NewProvider(c.Logger)
		}

		if len(c.Config.Kafka.Brokers) > 0 {
			publisher, err := events.NewKafkaPublisher(c.Config.Kafka)
			if err != nil {
				c.components.initErr = fmt.Errorf("bootstrap kafka publisher: %w", err)
				return
			}
			c.components.publisher = publisher
		} else {
			c.components.publisher = events.NopPublisher{}
		}

		policy := domain.ConfirmationPolicy{
			MaxAttempts: c.Config.Confirmation.MaxAttempts,
			RetryDelay:  c.Config.Confirmation.RetryDelay,
		}
		c.components.manager = lifecycle.NewManager(
			c.components.board,
			c.components.provider,
			c.components.registry,
			c.components.publisher,
			policy,
			c.Logger,
		)

		c.components.scheduler = scheduler.New(
			c.components.manager,
			c.Config.Confirmation.PollInterval,
			c.Config.Confirmation.TickInterval,
			c.Logger,
		)
		c.components.manager.SetRetryScheduler(c.components.scheduler)
	})
	return c.components.initErr
}

// Manager exposes the call lifecycle manager.
func (c *Container) Manager() (*lifecycle.Manager, error) {
	if err := c.initComponents(); err != nil {
		return nil, err
	}
	return c.components.manager, nil
}

// Scheduler exposes the unified polling and retry scheduler.
func (c *Container) Scheduler() (*scheduler.Scheduler, error) {
	if err := c.initComponents(); err != nil {
		return nil, err
	}
	return c.components.scheduler, nil
}

// Board exposes the task board client.
func (c *Container) Board() (board.Board, error) {
	if err := c.initComponents(); err != nil {
		return nil, err
	}
	return c.components.board, nil
}

// AsanaBoard exposes the concrete board client for provisioning, which
// needs operations beyond the Board interface.
func (c *Container) AsanaBoard() (*board.AsanaBoard, error) {
	b, err := c.Board()
	if err != nil {
		return nil, err
	}
	asana, ok := b.(*board.AsanaBoard)
	if !ok {
		return nil, fmt.Errorf("app: board client does not support provisioning")
	}
	return asana, nil
}

// HandlerSet builds HTTP handlers with dependencies.
func (c *Container) HandlerSet() (*handlers.HandlerSet, error) {
	mgr, err := c.Manager()
	if err != nil {
		return nil, err
	}
	return handlers.NewHandlerSet(mgr, c.Logger), nil
}

// Close releases all held resources.
func (c *Container) Close() error {
	var errs []error
	if p, ok := c.components.publisher.(*events.KafkaPublisher); ok && p != nil {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka publisher close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
