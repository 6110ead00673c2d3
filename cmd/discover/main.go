// Command discover runs one discovery pass from the command line, for
// operations and smoke testing without the HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/schemamesh/ontolink/internal/config"
	"github.com/schemamesh/ontolink/internal/core"
	"github.com/schemamesh/ontolink/internal/driver"
	"github.com/schemamesh/ontolink/internal/llm"
	"github.com/schemamesh/ontolink/internal/store"
)

func main() {
	mode := flag.String("mode", "run", "pipeline stage: process, evaluate, sync, or run")
	cfgPath := flag.String("config", "config/config.toml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Printf("Warning: could not load %s: %v. Using defaults", *cfgPath, err)
		cfg = config.Default()
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
		cfg.LLM.Model = "gpt-oss:latest"
		cfg.LLM.BaseURL = "http://localhost:11434"
	}

	d, err := driver.NewNeo4jDriver(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password,
		cfg.Graph.DataDB, cfg.Graph.OntologyDB)
	if err != nil {
		log.Fatalf("Failed to connect to graph store: %v", err)
	}
	defer d.Close(context.Background())

	counters, err := store.NewCounterStore(store.Options{URL: cfg.Redis.URL})
	if err != nil {
		log.Fatalf("Failed to connect to counter store: %v", err)
	}
	defer counters.Close()

	judgeClient, err := llm.NewClient(context.Background(), cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize judge client: %v", err)
	}

	disc := core.NewDiscovery(d, counters, judgeClient, cfg)
	ctx := context.Background()

	switch *mode {
	case "process":
		err = disc.Process(ctx)
	case "evaluate":
		err = disc.Evaluate(ctx)
	case "sync":
		var created int
		created, err = disc.SyncAccepted(ctx)
		if err == nil {
			fmt.Printf("Materialized %d edges\n", created)
		}
	case "run":
		err = disc.Run(ctx)
	default:
		log.Fatalf("Unknown mode %q", *mode)
	}

	if err != nil {
		log.Printf("Discovery %s failed: %v", *mode, err)
		os.Exit(1)
	}
	fmt.Printf("Discovery %s complete\n", *mode)
}
