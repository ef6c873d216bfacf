// Command foldsimctl runs kinetic folding simulations and inspects their
// results.
//
// Usage:
//
//	# Run a YAML run configuration
//	foldsimctl run --config hairpin.yaml
//
//	# Run a batch from flags
//	foldsimctl batch --sequence GGGGAAAACCCC --trials 100 --stop 'hairpin=((((....))))'
//
//	# Evaluate a structure or list its transitions
//	foldsimctl energy --sequence GGGGAAAACCCC --structure '((((....))))'
//	foldsimctl moves --sequence GGGGAAAACCCC
//
//	# Inspect and export past runs
//	foldsimctl runs
//	foldsimctl show --latest
//	foldsimctl export --latest --out exports
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("could not load .env file", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCommand(viper.New()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
