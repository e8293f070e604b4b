package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"bluewell/internal/database"
	"bluewell/internal/ingest"
	"bluewell/internal/openaiservice"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	diningSource string
	classSource  string
	icalURL      string
	embedBatch   int
)

var diningCmd = &cobra.Command{
	Use:   "dining <file.csv>",
	Short: "Upsert vendors and menu items from a dining CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		rows, err := ingest.ParseDiningCSV(f)
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		return withStore(cmd.Context(), func(q database.Querier) error {
			stats, err := ingest.ImportDining(cmd.Context(), q, diningSource, rows)
			if err != nil {
				return err
			}
			return printStats(cmd, stats)
		})
	},
}

var classesCmd = &cobra.Command{
	Use:   "classes <schedule.csv>",
	Short: "Upsert fitness classes from a schedule CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		rows, err := ingest.ParseScheduleCSV(f, cfg.Location)
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		return withStore(cmd.Context(), func(q database.Querier) error {
			stats, err := ingest.ImportClasses(cmd.Context(), q, database.ClassSource(strings.ToUpper(classSource)), rows)
			if err != nil {
				return err
			}
			return printStats(cmd, stats)
		})
	},
}

var icalCmd = &cobra.Command{
	Use:   "ical",
	Short: "Upsert fitness classes from an iCalendar feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := icalURL
		if url == "" {
			url = cfg.ClassesICalURL
		}
		if url == "" {
			return fmt.Errorf("no feed URL: pass --url or set CLASSES_ICAL_URL")
		}

		client := &http.Client{Timeout: 30 * time.Second}
		rows, err := ingest.FetchICal(cmd.Context(), client, url, cfg.Location)
		if err != nil {
			return err
		}

		return withStore(cmd.Context(), func(q database.Querier) error {
			stats, err := ingest.ImportClasses(cmd.Context(), q, database.SourceICal, rows)
			if err != nil {
				return err
			}
			return printStats(cmd, stats)
		})
	},
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Backfill embeddings for menu items that have none",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.AIEnabled() {
			return openaiservice.ErrNotConfigured
		}
		ai := openaiservice.New(openaiservice.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Model:          cfg.OpenAIModel,
			EmbeddingModel: cfg.OpenAIEmbeddingModel,
		})

		return withStore(cmd.Context(), func(q database.Querier) error {
			n, err := backfillEmbeddings(cmd, q, ai, embedBatch)
			if err != nil {
				return err
			}
			cmd.Printf("embedded %d menu items\n", n)
			return nil
		})
	},
}

func init() {
	diningCmd.Flags().StringVar(&diningSource, "source", "DUKE_DINING", "vendor source label")
	classesCmd.Flags().StringVar(&classSource, "source", string(database.SourceCSV), "class source label")
	icalCmd.Flags().StringVar(&icalURL, "url", "", "feed URL (defaults to CLASSES_ICAL_URL)")
	embedCmd.Flags().IntVar(&embedBatch, "batch", 64, "items per embedding request")
}

// backfillEmbeddings embeds items in batches until none are missing. A batch
// whose items all fail to store stops the loop.
func backfillEmbeddings(cmd *cobra.Command, q database.Querier, ai openaiservice.Client, batch int) (int, error) {
	ctx := cmd.Context()
	if batch <= 0 {
		batch = 64
	}

	total := 0
	for {
		items, err := q.ListMenuItemsMissingEmbedding(ctx, int32(batch))
		if err != nil {
			return total, err
		}
		if len(items) == 0 {
			return total, nil
		}

		texts := make([]string, len(items))
		for i, it := range items {
			texts[i] = menuItemText(it)
		}
		vecs, err := openaiservice.EmbedWithRetry(ctx, ai, texts)
		if err != nil {
			return total, err
		}
		if len(vecs) != len(items) {
			return total, fmt.Errorf("provider returned %d embeddings for %d items", len(vecs), len(items))
		}

		stored := 0
		for i, it := range items {
			if err := q.UpdateMenuItemEmbedding(ctx, database.UpdateMenuItemEmbeddingParams{ID: it.ID, Embedding: vecs[i]}); err != nil {
				log.Warn().Err(err).Str("item", it.Name).Msg("Failed to store embedding")
				continue
			}
			stored++
		}
		if stored == 0 {
			return total, fmt.Errorf("no embeddings stored in batch")
		}
		total += stored
		log.Info().Int("batch", stored).Int("total", total).Msg("Embedded menu items")
	}
}

// menuItemText is the text embedded for a menu item.
func menuItemText(it database.MenuItem) string {
	parts := []string{it.Name}
	if it.Description.Valid && it.Description.String != "" {
		parts = append(parts, it.Description.String)
	}
	if it.MealType.Valid {
		parts = append(parts, it.MealType.String)
	}
	if len(it.Tags) > 0 {
		parts = append(parts, strings.Join(it.Tags, ", "))
	}
	if it.VendorName != "" {
		parts = append(parts, "at "+it.VendorName)
	}
	return strings.Join(parts, ". ")
}

func printStats(cmd *cobra.Command, stats ingest.ImportStats) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
