package config_test

import (
	"context"
	"fmt"
	"log"

	"github.com/sagarc03/ephemera/config"
)

func ExampleLoad() {
	// Load with defaults only (no config file)
	cfg, err := config.Load(nil, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Port: %d, Storage: %s, Max expiry: %d days\n", cfg.Server.Port, cfg.Storage.Type, cfg.Upload.MaxExpiryDays)
	// Output: Port: 3000, Storage: filesystem, Max expiry: 7 days
}

func ExampleWithContext() {
	cfg, _ := config.Load(nil, nil)

	ctx := config.WithContext(context.Background(), cfg)

	// Retrieve later (e.g., in a subcommand)
	retrieved, err := config.FromContext(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Retrieved port: %d\n", retrieved.Server.Port)
	// Output: Retrieved port: 3000
}
