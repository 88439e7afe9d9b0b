package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	_ "go.uber.org/automaxprocs"

	"github.com/bluesky-social/bsky-signin-demo/internal/authclient"
	"github.com/bluesky-social/bsky-signin-demo/internal/lookup"
	"github.com/bluesky-social/bsky-signin-demo/internal/store"
	"github.com/bluesky-social/bsky-signin-demo/internal/web"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting process", "err", err.Error())
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "signin-demo",
		Usage:   "example web app with atproto OAuth sign-in",
		Version: versioninfo.Short(),
	}
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"SIGNIN_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.BoolFlag{
			Name:    "log-json",
			Usage:   "output logs as JSON instead of text",
			EnvVars: []string{"SIGNIN_LOG_JSON"},
		},
	}
	app.Commands = []*cli.Command{
		&cli.Command{
			Name:   "serve",
			Usage:  "run the web server",
			Action: runServe,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "bind",
					Usage:   "Specify the local IP/port to bind to",
					Value:   ":3000",
					EnvVars: []string{"SIGNIN_BIND"},
				},
				&cli.StringFlag{
					Name:     "session-secret",
					Usage:    "random string used to sign browser session cookies",
					Required: true,
					EnvVars:  []string{"SESSION_SECRET"},
				},
				&cli.StringFlag{
					Name:    "hostname",
					Usage:   "public hostname of this service; if not set, runs as a localhost development client",
					EnvVars: []string{"CLIENT_HOSTNAME"},
				},
				&cli.StringFlag{
					Name:    "plc-host",
					Usage:   "method, hostname, and port of PLC registry",
					Value:   lookup.DefaultDirectoryURL,
					EnvVars: []string{"ATP_PLC_HOST"},
				},
				&cli.StringFlag{
					Name:    "public-api-host",
					Usage:   "method, hostname, and port of public AppView API, for profile lookups",
					Value:   lookup.DefaultPublicAPIURL,
					EnvVars: []string{"ATP_PUBLIC_API_HOST"},
				},
				&cli.DurationFlag{
					Name:    "state-ttl",
					Usage:   "how long a pending OAuth authorization request is kept",
					Value:   store.DefaultStateTTL,
					EnvVars: []string{"SIGNIN_STATE_TTL"},
				},
				&cli.BoolFlag{
					Name:    "debug",
					Usage:   "Enable debug mode (templates are re-read from disk on every request)",
					EnvVars: []string{"DEBUG"},
				},
				&cli.StringFlag{
					Name:    "template-dir",
					Usage:   "directory to read templates from in debug mode",
					Value:   "internal/web/templates",
					EnvVars: []string{"SIGNIN_TEMPLATE_DIR"},
				},
			},
		},
		&cli.Command{
			Name:  "version",
			Usage: "print version",
			Action: func(cctx *cli.Context) error {
				fmt.Println(versioninfo.Short())
				return nil
			},
		},
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(writer, opts)
	if cctx.Bool("log-json") {
		handler = slog.NewJSONHandler(writer, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func runServe(cctx *cli.Context) error {
	logger := configLogger(cctx, os.Stderr)

	// Trap SIGINT to trigger a shutdown.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	configOTEL("signin-demo")

	bind := cctx.String("bind")
	hostname := cctx.String("hostname")

	authStore := store.NewAuthStore(cctx.Duration("state-ttl"))
	config := authclient.NewConfig(hostname, bind, authclient.DefaultScopes)
	oauthClient := authclient.NewClient(&config, authStore, hostname)
	logger.Info("configured OAuth client", "client_id", config.ClientID, "callback", config.CallbackURL)

	resolver := lookup.NewClient(cctx.String("plc-host"), cctx.String("public-api-host"))

	webConfig := web.Config{
		Bind:          bind,
		SessionSecret: cctx.String("session-secret"),
	}
	if cctx.Bool("debug") {
		webConfig.TemplateDir = cctx.String("template-dir")
	}

	srv, err := web.NewServer(webConfig, oauthClient, resolver, store.NewRecordMap[web.Profile]())
	if err != nil {
		return fmt.Errorf("failed to construct server: %w", err)
	}
	srv.Start()
	if hostname == "" {
		logger.Info("open the app via the loopback address (not 'localhost'), as required for OAuth development clients", "url", "http://127.0.0.1"+bind)
	}

	<-signals
	logger.Info("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("error during shutdown", "err", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
