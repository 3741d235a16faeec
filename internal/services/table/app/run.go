package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/louisbranch/tablesync/internal/platform/errors/i18n"
	"github.com/louisbranch/tablesync/internal/platform/id"
	"github.com/louisbranch/tablesync/internal/services/table/domain/state"
	"github.com/louisbranch/tablesync/internal/services/table/storage/sqlite"
	"github.com/louisbranch/tablesync/internal/services/table/transport"
	"golang.org/x/sync/errgroup"
)

// Config wires a table client.
type Config struct {
	ServerURL string
	Origin    string
	User      string
	Admin     bool
	// TokenDB is the sqlite file holding the session token.
	TokenDB string
	// Token, when set, replaces the stored session token before connecting.
	Token        string
	OutboxSize   int
	OutboxPolicy string
	SendRate     float64
	Reconnect    bool
	PingTTL      time.Duration
	EchoTimeout  time.Duration
	Locale       string
	// InspectAddr enables the inspection server when non-empty.
	InspectAddr string
}

// Run connects to the table and blocks until ctx ends or the session is lost.
func Run(ctx context.Context, cfg Config) error {
	if strings.TrimSpace(cfg.User) == "" {
		return errors.New("user is required")
	}
	store, err := sqlite.Open(cfg.TokenDB)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer store.Close()
	if token := strings.TrimSpace(cfg.Token); token != "" {
		if err := store.PutToken(ctx, token); err != nil {
			return fmt.Errorf("store session token: %w", err)
		}
	}

	session, err := transport.NewSession(transport.Config{
		URL:        cfg.ServerURL,
		Origin:     cfg.Origin,
		User:       cfg.User,
		Tokens:     store,
		OutboxSize: cfg.OutboxSize,
		Policy:     transport.OverflowPolicy(cfg.OutboxPolicy),
		SendRate:   cfg.SendRate,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	sessionID, err := id.NewID()
	if err != nil {
		return err
	}

	engine := NewEngine(session, EngineConfig{
		Viewer:      state.Viewer{User: cfg.User, Admin: cfg.Admin},
		Reconnect:   cfg.Reconnect,
		PingTTL:     cfg.PingTTL,
		EchoTimeout: cfg.EchoTimeout,
	})
	catalog := i18n.GetCatalog(cfg.Locale)
	log.Printf("engine: starting session=%s user=%q admin=%t url=%q locale=%s", sessionID, cfg.User, cfg.Admin, cfg.ServerURL, catalog.Locale())

	g, gctx := errgroup.WithContext(ctx)
	states := engine.Subscribe()
	g.Go(func() error {
		defer engine.Unsubscribe(states)
		return engine.Run(gctx)
	})
	g.Go(func() error {
		report(gctx, states, catalog)
		return nil
	})
	if addr := strings.TrimSpace(cfg.InspectAddr); addr != "" {
		inspector := NewInspector(addr, engine, catalog)
		g.Go(func() error {
			return inspector.ListenAndServe(gctx)
		})
	}
	return g.Wait()
}

// report logs the changes a player would notice: phase, turn, banner and
// new activity log lines.
func report(ctx context.Context, states <-chan state.GameState, catalog *i18n.Catalog) {
	var last state.GameState
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			logChanges(last, s, catalog)
			last = s
		}
	}
}

func logChanges(prev, next state.GameState, catalog *i18n.Catalog) {
	if next.Phase != prev.Phase {
		log.Printf("table: phase=%s", next.Phase)
		if next.Err != nil {
			log.Printf("table: %s", catalog.Format(next.Err.MessageKey()))
		}
	}
	if next.Map.TurnCMID != prev.Map.TurnCMID && next.Map.TurnCMID != "" {
		log.Printf("table: turn cmId=%s mine=%t speed=%s", next.Map.TurnCMID, next.Map.MyTurn, humanize.Ftoa(next.Map.RemainingSpeed))
	}
	if next.Map.Banner != nil && next.Map.Banner != prev.Map.Banner {
		log.Printf("table: %s", catalog.Format(next.Map.Banner.MessageKey()))
	}
	for _, entry := range newEntries(prev.HUD.Log, next.HUD.Log) {
		log.Printf("table: %s", entry.Text)
	}
}

// newEntries returns the entries appended to prev to obtain next. The log
// drops its oldest entries once full, so the overlap is matched as a suffix.
func newEntries(prev, next []state.LogEntry) []state.LogEntry {
	for added := 0; added < len(next); added++ {
		kept := next[:len(next)-added]
		if len(kept) <= len(prev) && slices.Equal(kept, prev[len(prev)-len(kept):]) {
			return next[len(kept):]
		}
	}
	return next
}
