/*
Package ingest parses the dining nutrition CSV, the fitness schedule CSV and
iCal feeds, and upserts their rows by natural key.
*/
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DiningRow is one item of the dining nutrition export.
type DiningRow struct {
	Location    string
	MealType    string
	Category    string
	ItemName    string
	ServingSize string
	Calories    *int
	FatG        *float64
	CarbsG      *float64
	ProteinG    *float64
	Allergens   []string
	Tags        []string
}

var dietKeywords = map[string]string{
	"vegan":       "vegan",
	"vegetarian":  "vegetarian",
	"halal":       "halal",
	"kosher":      "kosher",
	"gluten free": "gluten-free",
	"gluten-free": "gluten-free",
	"plant":       "plant-based",
}

// ParseDiningCSV reads the nutrition export. Columns are matched by header
// name, case and spacing insensitive; location and itemName are required.
func ParseDiningCSV(r io.Reader) ([]DiningRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexHeader(header)

	for _, required := range []string{"location", "itemname"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var rows []DiningRow
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(name string) string { return field(rec, cols, name) }

		row := DiningRow{
			Location:    get("location"),
			MealType:    get("mealtype"),
			Category:    get("category"),
			ItemName:    get("itemname"),
			ServingSize: get("servingsize"),
			Calories:    parseIntPtr(get("calories")),
			FatG:        parseFloatPtr(get("fat")),
			CarbsG:      parseFloatPtr(get("carbs")),
			ProteinG:    parseFloatPtr(get("protein")),
			Allergens:   splitList(get("allergens")),
		}
		if row.Location == "" || row.ItemName == "" {
			continue
		}
		row.Tags = diningTags(row)
		rows = append(rows, row)
	}
	return rows, nil
}

func diningTags(row DiningRow) []string {
	seen := map[string]bool{}
	var tags []string
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}

	if row.Category != "" {
		add(strings.ToLower(row.Category))
	}
	lower := strings.ToLower(row.ItemName + " " + row.Category)
	for kw, tag := range dietKeywords {
		if strings.Contains(lower, kw) {
			add(tag)
		}
	}
	if row.ProteinG != nil && *row.ProteinG >= 20 {
		add("high-protein")
	}
	return tags
}

// indexHeader maps normalized header names to column positions.
func indexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[normalizeHeader(h)] = i
	}
	return cols
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(h)
	return strings.NewReplacer(" ", "", "_", "", "-", "", "(g)", "", "(mg)", "").Replace(strings.TrimSpace(h))
}

func field(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseFloatPtr(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "mg"), "g"))
	if s == "" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

func parseIntPtr(s string) *int {
	f := parseFloatPtr(s)
	if f == nil {
		return nil
	}
	v := int(*f + 0.5)
	return &v
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
