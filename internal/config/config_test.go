package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
board:
  access_token: test-token
  project_id: "12345"
confirmation:
  callback_base_url: http://localhost:8080
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Confirmation.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.Confirmation.RetryDelay)
	assert.Equal(t, 5*time.Minute, cfg.Confirmation.PollInterval)
	assert.Equal(t, time.Minute, cfg.Confirmation.TickInterval)
	assert.Equal(t, "memory", cfg.Registry.Backend)
	assert.Equal(t, "https://app.asana.com/api/1.0", cfg.Board.BaseURL)
}

func TestLoadRejectsMissingToken(t *testing.T) {
	_, err := Load(writeConfig(t, `
board:
  project_id: "12345"
confirmation:
  callback_base_url: http://localhost:8080
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_token")
}

func TestLoadRejectsUnknownRegistryBackend(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
registry:
  backend: dynamo
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry.backend")
}

func TestLoadParsesFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  name: task-confirm-caller
  env: production
board:
  access_token: tok
  workspace_id: "1"
  project_id: "2"
  fields:
    phone_number: "f1"
    retry_count: "f3"
confirmation:
  callback_base_url: https://confirm.example.com
  max_attempts: 5
  retry_delay: 30m
registry:
  backend: redis
redis:
  address: redis:6379
kafka:
  brokers: [kafka-1:9092, kafka-2:9092]
  outcome_topic: confirmation.outcomes
`))
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, "f1", cfg.Board.Fields.PhoneNumber)
	assert.Equal(t, 5, cfg.Confirmation.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Confirmation.RetryDelay)
	assert.Equal(t, "redis", cfg.Registry.Backend)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}
