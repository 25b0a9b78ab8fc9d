// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jason-s-yu/keldurben/internal/auth"
	"github.com/jason-s-yu/keldurben/internal/cache"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

// Config is everything the server and historian read at startup.
// Each field has a flag and an environment variable; .env files are loaded by godotenv first.
type Config struct {
	Bind        string
	JWTSecret   string
	TokenTTL    time.Duration
	AdminSecret string
	RequireAuth bool

	DatabaseURL string
	RedisAddr   string
	RedisDB     int
	Queue       string

	StaticDir      string
	AllowedOrigins []string

	MsgRate    float64
	MsgBurst   int
	SendBuffer int

	HistorianBatch int
	HistorianFlush time.Duration

	LogLevel string
}

// ServerFlags are the flags of the game server command.
func ServerFlags() []cli.Flag {
	return append(sharedFlags(),
		&cli.StringFlag{Name: "bind", Value: ":8765", Usage: "listen address", Sources: cli.EnvVars("BIND")},
		&cli.StringFlag{Name: "jwt-secret", Usage: "HS256 signing secret; random per process when empty", Sources: cli.EnvVars("JWT_SECRET")},
		&cli.StringFlag{Name: "token-expire-time", Value: "720h", Usage: "session token lifetime, or \"never\"", Sources: cli.EnvVars("TOKEN_EXPIRE_TIME")},
		&cli.StringFlag{Name: "admin-secret", Usage: "shared secret for admin reset/kick; admin disabled when empty", Sources: cli.EnvVars("ADMIN_SECRET")},
		&cli.BoolFlag{Name: "require-auth", Usage: "reject websocket clients without a valid token", Sources: cli.EnvVars("REQUIRE_AUTH")},
		&cli.StringFlag{Name: "static-dir", Usage: "serve a frontend build from this directory", Sources: cli.EnvVars("STATIC_DIR")},
		&cli.StringSliceFlag{Name: "allowed-origins", Usage: "CORS and websocket origin patterns", Sources: cli.EnvVars("ALLOWED_ORIGINS")},
		&cli.FloatFlag{Name: "msg-rate", Value: 20, Usage: "inbound websocket messages per second per connection", Sources: cli.EnvVars("MSG_RATE")},
		&cli.IntFlag{Name: "msg-burst", Value: 40, Usage: "inbound websocket burst per connection", Sources: cli.EnvVars("MSG_BURST")},
		&cli.IntFlag{Name: "send-buffer", Value: 64, Usage: "outbound queue depth per connection", Sources: cli.EnvVars("SEND_BUFFER")},
	)
}

// HistorianFlags are the flags of the historian command.
func HistorianFlags() []cli.Flag {
	return append(sharedFlags(),
		&cli.IntFlag{Name: "batch-size", Value: 20, Usage: "rounds per insert batch", Sources: cli.EnvVars("HISTORIAN_BATCH_SIZE")},
		&cli.DurationFlag{Name: "flush-interval", Value: 500 * time.Millisecond, Usage: "max time a round waits in a batch", Sources: cli.EnvVars("HISTORIAN_FLUSH_INTERVAL")},
	)
}

func sharedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "database-url", Usage: "Postgres connection string", Sources: cli.EnvVars("DATABASE_URL")},
		&cli.StringFlag{Name: "redis-addr", Usage: "Redis address for round history", Sources: cli.EnvVars("REDIS_ADDR")},
		&cli.IntFlag{Name: "redis-db", Usage: "Redis database index", Sources: cli.EnvVars("REDIS_DB")},
		&cli.StringFlag{Name: "queue", Value: cache.DefaultQueueName, Usage: "Redis list holding scored rounds", Sources: cli.EnvVars("HISTORIAN_QUEUE_NAME")},
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "logrus level", Sources: cli.EnvVars("LOG_LEVEL")},
	}
}

// FromCommand reads every flag the command defines. Flags it does not define keep their zero value.
func FromCommand(cmd *cli.Command) (Config, error) {
	c := Config{
		Bind:           cmd.String("bind"),
		JWTSecret:      cmd.String("jwt-secret"),
		AdminSecret:    cmd.String("admin-secret"),
		RequireAuth:    cmd.Bool("require-auth"),
		DatabaseURL:    cmd.String("database-url"),
		RedisAddr:      cmd.String("redis-addr"),
		RedisDB:        cmd.Int("redis-db"),
		Queue:          cmd.String("queue"),
		StaticDir:      cmd.String("static-dir"),
		AllowedOrigins: splitOrigins(cmd.StringSlice("allowed-origins")),
		MsgRate:        cmd.Float("msg-rate"),
		MsgBurst:       cmd.Int("msg-burst"),
		SendBuffer:     cmd.Int("send-buffer"),
		HistorianBatch: cmd.Int("batch-size"),
		HistorianFlush: cmd.Duration("flush-interval"),
		LogLevel:       cmd.String("log-level"),
	}

	if v := cmd.String("token-expire-time"); v != "" {
		ttl, err := auth.ParseTTL(v)
		if err != nil {
			return Config{}, err
		}
		c.TokenTTL = ttl
	}
	if c.MsgRate < 0 || c.MsgBurst < 0 {
		return Config{}, fmt.Errorf("msg-rate and msg-burst must not be negative")
	}
	return c, nil
}

// splitOrigins accepts both repeated flags and a single comma separated env value.
func splitOrigins(in []string) []string {
	var out []string
	for _, v := range in {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

// NewLogger builds the process logger at the configured level.
func NewLogger(level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("bad log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)
	return logger, nil
}
