package ingest

import (
	"context"
	"fmt"

	"bluewell/internal/database"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
)

// ImportStats counts what an import touched.
type ImportStats struct {
	Vendors int `json:"vendors"`
	Items   int `json:"items"`
	Skipped int `json:"skipped"`
}

// ImportDining upserts vendors by (name, source) and items by (vendor, name).
func ImportDining(ctx context.Context, q database.Querier, source string, rows []DiningRow) (ImportStats, error) {
	var stats ImportStats
	vendorIDs := make(map[string]int32)

	for _, row := range rows {
		vendorID, ok := vendorIDs[row.Location]
		if !ok {
			v, err := q.UpsertVendor(ctx, database.UpsertVendorParams{Name: row.Location, Source: source})
			if err != nil {
				return stats, fmt.Errorf("upsert vendor %q: %w", row.Location, err)
			}
			vendorID = v.ID
			vendorIDs[row.Location] = vendorID
			stats.Vendors++
		}

		_, err := q.UpsertMenuItem(ctx, database.UpsertMenuItemParams{
			VendorID:    vendorID,
			Name:        row.ItemName,
			MealType:    textOrNull(row.MealType),
			Category:    textOrNull(row.Category),
			ServingSize: textOrNull(row.ServingSize),
			Calories:    int4Ptr(row.Calories),
			ProteinG:    float8Ptr(row.ProteinG),
			CarbsG:      float8Ptr(row.CarbsG),
			FatG:        float8Ptr(row.FatG),
			Tags:        row.Tags,
			Allergens:   row.Allergens,
		})
		if err != nil {
			log.Warn().Err(err).Str("item", row.ItemName).Msg("ImportDining: skipping item")
			stats.Skipped++
			continue
		}
		stats.Items++
	}

	log.Info().Str("source", source).Int("vendors", stats.Vendors).Int("items", stats.Items).Msg("Dining import complete")
	return stats, nil
}

// ImportClasses upserts classes by (source, title, starts_at).
func ImportClasses(ctx context.Context, q database.Querier, source database.ClassSource, rows []ClassRow) (ImportStats, error) {
	var stats ImportStats
	for _, row := range rows {
		_, err := q.UpsertFitnessClass(ctx, database.UpsertFitnessClassParams{
			Title:     row.Title,
			StartsAt:  row.StartsAt,
			EndsAt:    row.EndsAt,
			Location:  textOrNull(row.Location),
			Intensity: row.Intensity,
			Source:    source,
		})
		if err != nil {
			log.Warn().Err(err).Str("title", row.Title).Msg("ImportClasses: skipping class")
			stats.Skipped++
			continue
		}
		stats.Items++
	}

	log.Info().Str("source", string(source)).Int("classes", stats.Items).Msg("Class import complete")
	return stats, nil
}

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func int4Ptr(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

func float8Ptr(v *float64) pgtype.Float8 {
	if v == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *v, Valid: true}
}
