// Package cmd holds what every tablesync command shares: configuration from
// TABLESYNC_ variables overlaid by flags, and the tracer provider lifetime.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/louisbranch/tablesync/internal/platform/config"
	"github.com/louisbranch/tablesync/internal/platform/otel"
	"github.com/louisbranch/tablesync/internal/platform/timeouts"
)

// Service names a process in logs and traces.
type Service string

// TableSync is the headless table client.
const TableSync Service = "tablesync"

func (s Service) name() string {
	return strings.TrimSpace(string(s))
}

// LogPrefix is the prefix for the standard logger, e.g. "[TABLESYNC] ".
func (s Service) LogPrefix() string {
	return "[" + strings.ToUpper(s.name()) + "] "
}

// Run starts tracing from the OTEL_ variables, runs fn and flushes pending
// spans once fn returns.
func (s Service) Run(ctx context.Context, fn func(context.Context) error) error {
	name := s.name()
	if name == "" {
		return errors.New("service name is required")
	}
	if fn == nil {
		return errors.New("run function is required")
	}
	var tracing otel.Config
	if err := config.ParseEnv(&tracing); err != nil {
		return err
	}
	provider, err := otel.Start(ctx, name, tracing)
	if err != nil {
		return fmt.Errorf("start tracing: %w", err)
	}
	defer flush(name, provider)
	return fn(ctx)
}

func flush(name string, provider *otel.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := provider.Shutdown(ctx); err != nil {
		log.Printf("%s: flush traces: %v", name, err)
	}
}

// Load fills cfg from the environment, then parses args with the flags bind
// registers. Flags default to the environment values.
func Load[T any](cfg *T, fs *flag.FlagSet, args []string, bind func(*flag.FlagSet, *T)) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	if fs == nil {
		return errors.New("flag set is required")
	}
	if err := config.ParseEnv(cfg); err != nil {
		return err
	}
	if bind != nil {
		bind(fs, cfg)
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}
