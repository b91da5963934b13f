// Command luminbot is the LuminBot Discord bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Builds the live-streams data source (Postgres document or Twitch Helix).
//   - Connects to Discord and, once ready, polls the data source on a fixed
//     interval to update the bot's presence and announce newly live streams.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/luminbot/luminbot-discord/bot"
	"github.com/luminbot/luminbot-discord/config"
	"github.com/luminbot/luminbot-discord/datasource"
	"github.com/luminbot/luminbot-discord/db"
	"github.com/luminbot/luminbot-discord/discord"
	"github.com/luminbot/luminbot-discord/poller"
	"github.com/luminbot/luminbot-discord/server"
	"github.com/luminbot/luminbot-discord/streams"
	"github.com/luminbot/luminbot-discord/telemetry"
	"github.com/luminbot/luminbot-discord/twitchapi"
)

const version = "1.0.0"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		return 1
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		return 1
	}
	if !cfg.AnnouncementsEnabled() {
		slog.Warn("PROMOTION_CHANNEL_ID not set; go-live announcements are disabled")
	}

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing("luminbot", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		return 1
	}
	defer shutdownTracing()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, pinger, closeSource, err := buildSource(ctx, cfg)
	if err != nil {
		slog.Error("data source setup failed", slog.String("data_source", cfg.DataSource), slog.Any("err", err))
		return 1
	}
	defer closeSource()

	client, err := discord.NewClient(cfg.DiscordToken)
	if err != nil {
		slog.Error("discord client setup failed", slog.Any("err", err))
		return 1
	}

	p := poller.New(source, client, &poller.ChannelAnnouncer{Sender: client, ChannelID: cfg.PromotionChannelID}, poller.Options{
		Interval:     cfg.PollInterval,
		FetchTimeout: cfg.FetchTimeout,
	})
	b := bot.New(client, p, nil)

	if err := b.Start(ctx); err != nil {
		slog.Error("discord login failed", slog.Any("err", err))
		return 1
	}
	defer b.Stop()

	// HTTP server (health/status/metrics)
	mux := server.NewMux(server.Deps{Bot: b, Poller: p, DataSource: pinger})
	go func() {
		if err := server.Start(ctx, cfg.HTTPAddr, mux); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
	return 0
}

// buildSource wires the configured data source. The returned Pinger is nil when
// the source has nothing to check; the close func is always safe to call.
func buildSource(ctx context.Context, cfg *config.Config) (streams.Source, server.Pinger, func(), error) {
	switch cfg.DataSource {
	case config.DataSourceHelix:
		client := &twitchapi.HelixClient{
			AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
			ClientID:       cfg.TwitchClientID,
		}
		if tok, err := client.AppTokenSource.Get(ctx); err != nil {
			slog.Warn("twitch app token fetch failed", slog.Any("err", err))
		} else if len(tok) > 6 {
			slog.Info("twitch app token acquired", slog.String("tail", "***"+tok[len(tok)-6:]))
		}
		src := &datasource.HelixSource{
			Client: client,
			Query:  twitchapi.StreamsQuery{UserLogins: cfg.TwitchStreamLogins, GameID: cfg.TwitchGameID},
		}
		return src, nil, func() {}, nil

	case config.DataSourcePostgres:
		database, err := db.Connect(cfg.DBDsn)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open db: %w", err)
		}
		closeDB := func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.Migrate(ctx, database); err != nil {
			closeDB()
			return nil, nil, nil, fmt.Errorf("migrate db: %w", err)
		}
		store := &datasource.PostgresStore{DB: database}
		return &datasource.DocumentSource{Store: store, Key: cfg.DataKey}, store, closeDB, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown data source %q", cfg.DataSource)
	}
}
