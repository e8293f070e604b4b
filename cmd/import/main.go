// Command import loads dining menus and class schedules into the database and
// backfills menu embeddings for semantic search.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bluewell/internal/config"
	"bluewell/internal/database"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:           "import",
	Short:         "Import dining and class data into BlueWell",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
	},
}

func init() {
	rootCmd.AddCommand(diningCmd, classesCmd, icalCmd, embedCmd)
}

// withStore opens the configured database for the duration of fn.
func withStore(ctx context.Context, fn func(q database.Querier) error) error {
	db, err := database.NewService(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db.Queries())
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
