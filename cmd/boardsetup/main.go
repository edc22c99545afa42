// Command boardsetup provisions the custom fields and sections the
// confirmation service expects on the task board, then prints the
// configuration keys to copy into the config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/acme/task-confirm-caller/internal/app"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close()

	if container.Config.Board.WorkspaceID == "" {
		log.Fatal("board.workspace_id is required for provisioning")
	}

	asana, err := container.AsanaBoard()
	if err != nil {
		log.Fatalf("failed to build board client: %v", err)
	}

	result, err := asana.Provision(ctx)
	if err != nil {
		log.Fatalf("provisioning failed: %v", err)
	}

	fmt.Println("# board custom field ids")
	printSorted("board.fields.", result.Fields)
	fmt.Println("# board section ids")
	printSorted("board.statuses.", result.Sections)
}

func printSorted(prefix string, values map[string]string) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s%s: %q\n", prefix, k, values[k])
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
