// Command streamsdoc seeds and inspects the streams document that the bot
// polls when DATA_SOURCE=postgres.
//
//	streamsdoc get [--key KEY]
//	streamsdoc put [FILE] [--key KEY]
//
// put reads a {"streams": [...]} document from FILE (or stdin), validates it,
// and stores it under KEY. get prints the stored document and the status line
// the bot would show for it. DB_DSN selects the database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/luminbot/luminbot-discord/config"
	"github.com/luminbot/luminbot-discord/datasource"
	"github.com/luminbot/luminbot-discord/db"
	"github.com/luminbot/luminbot-discord/streams"
)

// documentStore is the subset of datasource.PostgresStore the commands use.
type documentStore interface {
	GetData(ctx context.Context, key string) (json.RawMessage, error)
	PutData(ctx context.Context, key string, doc json.RawMessage) error
}

// openStore connects to DB_DSN and ensures the documents table exists.
var openStore = func(ctx context.Context) (documentStore, func(), error) {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		return nil, nil, errors.New("DB_DSN environment variable is required")
	}
	database, err := db.Connect(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return &datasource.PostgresStore{DB: database}, func() { database.Close() }, nil
}

func main() {
	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var key string
	root := &cobra.Command{
		Use:           "streamsdoc",
		Short:         "Seed and inspect the LuminBot streams document",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&key, "key", config.DefaultDataKey, "document key to read or write")

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Print the stored document and its status line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			return getDocument(cmd.Context(), store, key, cmd.OutOrStdout())
		},
	}

	putCmd := &cobra.Command{
		Use:   "put [FILE]",
		Short: "Validate and store a streams document (stdin when FILE is omitted or -)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			store, closeStore, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			snap, err := putDocument(cmd.Context(), store, key, in)
			if err != nil {
				return err
			}
			slog.Info("document stored", slog.String("key", key), slog.Int("streams", snap.LiveChannelCount()), slog.Int("viewers", snap.TotalViewerCount()))
			return nil
		},
	}

	root.AddCommand(getCmd, putCmd)
	return root
}

// putDocument validates the document read from r and stores its normalized form under key.
func putDocument(ctx context.Context, store documentStore, key string, r io.Reader) (streams.Snapshot, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	snap, err := streams.ParseDocument(raw)
	if err != nil {
		return nil, err
	}
	doc, err := streams.MarshalDocument(snap)
	if err != nil {
		return nil, err
	}
	if err := store.PutData(ctx, key, doc); err != nil {
		return nil, fmt.Errorf("store %q: %w", key, err)
	}
	return snap, nil
}

// getDocument writes the document under key followed by the bot's status line for it.
func getDocument(ctx context.Context, store documentStore, key string, w io.Writer) error {
	raw, err := store.GetData(ctx, key)
	if err != nil {
		return err
	}
	snap, err := streams.ParseDocument(raw)
	if err != nil {
		return fmt.Errorf("stored document %q: %w", key, err)
	}
	doc, err := streams.MarshalDocument(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n# %s\n", doc, streams.StatusText(snap))
	return err
}
