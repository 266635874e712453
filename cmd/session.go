package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"ucams-cli/internal/client"
	"ucams-cli/internal/config"
	"ucams-cli/internal/registry"
)

func loadSettings() config.Settings {
	s, err := config.Load(viper.GetViper())
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	return s
}

// setupSessions builds the session pair of the selected account.
// Tokens are never persisted, so every invocation logs in again.
func setupSessions() *registry.Entry {
	cfg, err := loadSettings().Account(accountName)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	entry, err := registry.New(logger).Add(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return entry
}

// commandContext is cancelled on Ctrl-C.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Printf("Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func exitOnError(what string, err error) {
	if err == nil {
		return
	}
	if client.IsUnauthorized(err) {
		fmt.Printf("Error %s: %v\nCheck the contract and password with 'ucams-cli login'.\n", what, err)
	} else {
		fmt.Printf("Error %s: %v\n", what, err)
	}
	os.Exit(1)
}
