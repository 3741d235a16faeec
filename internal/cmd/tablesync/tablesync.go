// Package tablesync parses table client flags and composes the client.
package tablesync

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/tablesync/internal/platform/cmd"
	"github.com/louisbranch/tablesync/internal/services/table/app"
)

// Config holds table client command configuration.
type Config struct {
	ServerURL    string        `env:"SERVER_URL"    envDefault:"ws://localhost:8080/ws"`
	Origin       string        `env:"ORIGIN"        envDefault:"http://localhost/"`
	User         string        `env:"USER"          envDefault:"player"`
	Admin        bool          `env:"ADMIN"         envDefault:"false"`
	TokenDB      string        `env:"TOKEN_DB"      envDefault:"data/tablesync.db"`
	Token        string        `env:"TOKEN"`
	OutboxSize   int           `env:"OUTBOX_SIZE"   envDefault:"16"`
	OutboxPolicy string        `env:"OUTBOX_POLICY" envDefault:"block"`
	SendRate     float64       `env:"SEND_RATE"     envDefault:"40"`
	Reconnect    bool          `env:"RECONNECT"     envDefault:"true"`
	PingTTL      time.Duration `env:"PING_TTL"      envDefault:"3s"`
	EchoTimeout  time.Duration `env:"ECHO_TIMEOUT"  envDefault:"5s"`
	Locale       string        `env:"LOCALE"        envDefault:"en-US"`
	InspectAddr  string        `env:"INSPECT_ADDR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.Load(&cfg, fs, args, bindFlags); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "table WebSocket endpoint")
	fs.StringVar(&cfg.Origin, "origin", cfg.Origin, "Origin header sent on connect")
	fs.StringVar(&cfg.User, "user", cfg.User, "local user identity")
	fs.BoolVar(&cfg.Admin, "admin", cfg.Admin, "join as game master")
	fs.StringVar(&cfg.TokenDB, "token-db", cfg.TokenDB, "SQLite credential store path")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "session token to store before connecting")
	fs.IntVar(&cfg.OutboxSize, "outbox-size", cfg.OutboxSize, "queued outbound frames per connection")
	fs.StringVar(&cfg.OutboxPolicy, "outbox-policy", cfg.OutboxPolicy, "outbox overflow policy: block, drop-oldest or drop-newest")
	fs.Float64Var(&cfg.SendRate, "send-rate", cfg.SendRate, "max outbound frames per second; 0 disables the cap")
	fs.BoolVar(&cfg.Reconnect, "reconnect", cfg.Reconnect, "reconnect with exponential backoff")
	fs.DurationVar(&cfg.PingTTL, "ping-ttl", cfg.PingTTL, "how long pings stay on the map")
	fs.DurationVar(&cfg.EchoTimeout, "echo-timeout", cfg.EchoTimeout, "how long a committed move waits for the table echo")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for error text")
	fs.StringVar(&cfg.InspectAddr, "inspect-addr", cfg.InspectAddr, "inspection HTTP listen address")
}

// Run builds the table client and blocks until ctx ends or the session is
// lost.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.TableSync.Run(ctx, func(ctx context.Context) error {
		if err := app.Run(ctx, app.Config{
			ServerURL:    cfg.ServerURL,
			Origin:       cfg.Origin,
			User:         cfg.User,
			Admin:        cfg.Admin,
			TokenDB:      cfg.TokenDB,
			Token:        cfg.Token,
			OutboxSize:   cfg.OutboxSize,
			OutboxPolicy: cfg.OutboxPolicy,
			SendRate:     cfg.SendRate,
			Reconnect:    cfg.Reconnect,
			PingTTL:      cfg.PingTTL,
			EchoTimeout:  cfg.EchoTimeout,
			Locale:       cfg.Locale,
			InspectAddr:  cfg.InspectAddr,
		}); err != nil {
			return fmt.Errorf("run table client: %w", err)
		}
		return nil
	})
}
