package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hivewatch/hivewatch/automod"
	"github.com/hivewatch/hivewatch/automod/cachestore"
	"github.com/hivewatch/hivewatch/automod/kvstore"
	"github.com/hivewatch/hivewatch/automod/platform/gateway"
	"github.com/hivewatch/hivewatch/automod/scheduler"
	"github.com/hivewatch/hivewatch/automod/settings"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "hivewatch",
		Usage:   "community risk evaluation and enforcement daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "platform-host",
			Usage:   "method, hostname, and port of the platform gateway",
			Value:   "http://localhost:2584",
			EnvVars: []string{"HIVEWATCH_PLATFORM_HOST"},
		},
		&cli.StringFlag{
			Name:    "platform-token",
			Usage:   "bearer token for the platform gateway",
			EnvVars: []string{"HIVEWATCH_PLATFORM_TOKEN"},
		},
		&cli.Float64Flag{
			Name:    "platform-rate-limit",
			Usage:   "max number of requests per second to the platform gateway",
			Value:   10,
			EnvVars: []string{"HIVEWATCH_PLATFORM_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:     "community",
			Usage:    "name of the moderated community",
			Required: true,
			EnvVars:  []string{"HIVEWATCH_COMMUNITY"},
		},
		&cli.StringFlag{
			Name:    "app-account",
			Usage:   "account name the app acts as",
			Value:   "hivewatch-bot",
			EnvVars: []string{"HIVEWATCH_APP_ACCOUNT"},
		},
		&cli.StringFlag{
			Name:    "settings-file",
			Usage:   "path to community settings (TOML); defaults apply if unset",
			EnvVars: []string{"HIVEWATCH_SETTINGS_FILE"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL; in-process state is used if unset",
			EnvVars: []string{"HIVEWATCH_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"HIVEWATCH_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		evaluateCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":2580",
			EnvVars: []string{"HIVEWATCH_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":2581",
			EnvVars: []string{"HIVEWATCH_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "bearer token required on event and admin endpoints",
			EnvVars: []string{"HIVEWATCH_ADMIN_TOKEN"},
		},
		&cli.BoolFlag{
			Name:    "skip-install",
			Usage:   "do not reset scheduled jobs at startup",
			EnvVars: []string{"HIVEWATCH_SKIP_INSTALL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := configLogger(cctx)
		shutdownTracing := configOTEL("hivewatch")
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Error("failed to flush traces", "err", err)
			}
		}()

		sched := scheduler.NewCronScheduler(logger)
		svc, err := buildService(ctx, cctx, sched, logger)
		if err != nil {
			return err
		}
		for name, h := range svc.JobHandlers() {
			sched.Handle(name, h)
		}

		if !cctx.Bool("skip-install") {
			if err := svc.OnInstall(ctx); err != nil {
				return fmt.Errorf("install: %w", err)
			}
		}

		srv := NewServer(svc, sched, Config{
			Bind:       cctx.String("bind"),
			AdminToken: cctx.String("admin-token"),
			Logger:     logger,
		})

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run hivewatch service: %w", err)
		}
		return nil
	},
}

var evaluateCmd = &cli.Command{
	Name:      "evaluate",
	Usage:     "evaluate a single user and print the verdict (no enforcement)",
	ArgsUsage: `<user>`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "fresh",
			Usage: "ignore any cached verdict",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := configLogger(cctx)

		user := cctx.Args().First()
		if user == "" {
			return fmt.Errorf("need to provide a user as an argument")
		}

		svc, err := buildService(ctx, cctx, scheduler.NewMemScheduler(), logger)
		if err != nil {
			return err
		}
		v, err := svc.Evaluate(ctx, user, automod.EvalOptions{BypassCache: cctx.Bool("fresh"), ReadOnly: true})
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

func configLogger(cctx *cli.Context) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func buildService(ctx context.Context, cctx *cli.Context, sched scheduler.Scheduler, logger *slog.Logger) (*automod.Service, error) {
	appName := cctx.String("app-account")

	var src settings.Source
	if path := cctx.String("settings-file"); path != "" {
		fs, err := settings.NewFileSource(path, logger)
		if err != nil {
			return nil, fmt.Errorf("loading settings: %w", err)
		}
		logger.Info("loaded settings from file", "path", path)
		src = fs
	} else {
		src = settings.NewStatic(settings.Defaults())
	}

	var store kvstore.Store
	var cache cachestore.CacheStore
	if redisURL := cctx.String("redis-url"); redisURL != "" {
		rs, err := kvstore.NewRedisStore(ctx, redisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis store: %w", err)
		}
		store = rs
		cache = cachestore.NewRedisCacheStore(rs.Client, appName)
	} else {
		logger.Warn("redis not configured, state will not survive restarts")
		store = kvstore.NewMemStore()
		cache = cachestore.NewMemCacheStore(5_000, 0)
	}

	client := gateway.NewClient(gateway.Config{
		Host:      cctx.String("platform-host"),
		Token:     cctx.String("platform-token"),
		Community: cctx.String("community"),
		RateLimit: cctx.Float64("platform-rate-limit"),
		Logger:    logger,
	})

	return automod.NewService(client, store, cache, sched, src, automod.ServiceConfig{
		AppName: appName,
		Logger:  logger,
	}), nil
}
