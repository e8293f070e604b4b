package planner

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"bluewell/internal/database"
	"bluewell/internal/ingest"
	"bluewell/internal/utility"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

const feedCacheTTL = 15 * time.Minute

// ClassCandidate is a scheduled class offered to the planner. Matches is set
// when the title contains a preferred activity, or when there are no preferences.
type ClassCandidate struct {
	ID        string                  `json:"id,omitempty"`
	Title     string                  `json:"title"`
	Location  string                  `json:"location,omitempty"`
	Start     time.Time               `json:"start"`
	End       time.Time               `json:"end"`
	Intensity database.ClassIntensity `json:"intensity"`
	Source    database.ClassSource    `json:"source"`
	Matches   bool                    `json:"matches"`
}

type ClassFilter struct {
	Date       time.Time
	TimePrefs  []string
	Activities []string
}

type ClassLoaderConfig struct {
	CSVPath    string
	FeedURL    string
	Location   *time.Location
	HTTPClient *http.Client
}

// ClassLoader reads classes from the schedule CSV, then the iCal feed, then
// the store, using the first source that has classes on the requested day.
type ClassLoader struct {
	q         database.Querier
	cfg       ClassLoaderConfig
	csvCache  *lru.Cache[string, []ingest.ClassRow]
	feedCache *expirable.LRU[string, []ingest.ClassRow]
}

func NewClassLoader(q database.Querier, cfg ClassLoaderConfig) *ClassLoader {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	csvCache, _ := lru.New[string, []ingest.ClassRow](8)
	return &ClassLoader{
		q:         q,
		cfg:       cfg,
		csvCache:  csvCache,
		feedCache: expirable.NewLRU[string, []ingest.ClassRow](8, nil, feedCacheTTL),
	}
}

// Load returns the classes of f.Date filtered by time-of-day preference,
// with activity matches ordered first.
func (l *ClassLoader) Load(ctx context.Context, f ClassFilter) ([]ClassCandidate, error) {
	dayStart := utility.StartOfDay(f.Date, l.cfg.Location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	classes := l.fromRows(l.csvRows(), database.SourceCSV, dayStart, dayEnd)
	if len(classes) == 0 {
		classes = l.fromRows(l.feedRows(ctx), database.SourceICal, dayStart, dayEnd)
	}
	if len(classes) == 0 {
		stored, err := l.q.ListFitnessClassesBetween(ctx, database.ListFitnessClassesBetweenParams{Start: dayStart, End: dayEnd})
		if err != nil {
			return nil, fmt.Errorf("list stored classes: %w", err)
		}
		for _, c := range stored {
			classes = append(classes, ClassCandidate{
				ID:        c.ID,
				Title:     c.Title,
				Location:  c.Location.String,
				Start:     c.StartsAt.In(l.cfg.Location),
				End:       c.EndsAt.In(l.cfg.Location),
				Intensity: c.Intensity,
				Source:    c.Source,
			})
		}
	}

	return rankClasses(filterByTime(classes, f.TimePrefs), f.Activities), nil
}

func (l *ClassLoader) csvRows() []ingest.ClassRow {
	path := l.cfg.CSVPath
	if path == "" {
		return nil
	}
	if rows, ok := l.csvCache.Get(path); ok {
		return rows
	}

	f, err := os.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Class CSV unavailable")
		return nil
	}
	defer f.Close()

	rows, err := ingest.ParseScheduleCSV(f, l.cfg.Location)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Class CSV unreadable")
		return nil
	}
	l.csvCache.Add(path, rows)
	return rows
}

func (l *ClassLoader) feedRows(ctx context.Context) []ingest.ClassRow {
	url := l.cfg.FeedURL
	if url == "" {
		return nil
	}
	if rows, ok := l.feedCache.Get(url); ok {
		return rows
	}

	rows, err := ingest.FetchICal(ctx, l.cfg.HTTPClient, url, l.cfg.Location)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Class feed unavailable")
		return nil
	}
	l.feedCache.Add(url, rows)
	return rows
}

func (l *ClassLoader) fromRows(rows []ingest.ClassRow, source database.ClassSource, start, end time.Time) []ClassCandidate {
	var out []ClassCandidate
	for _, r := range rows {
		if r.StartsAt.Before(start) || !r.StartsAt.Before(end) {
			continue
		}
		out = append(out, ClassCandidate{
			Title:     r.Title,
			Location:  r.Location,
			Start:     r.StartsAt.In(l.cfg.Location),
			End:       r.EndsAt.In(l.cfg.Location),
			Intensity: r.Intensity,
			Source:    source,
		})
	}
	return out
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*(AM|PM)$`)

// timeBuckets are [from, to) hours.
var timeBuckets = map[string][2]int{
	"morning":   {6, 12},
	"afternoon": {12, 17},
	"evening":   {17, 22},
}

// hourOfClock parses "H:MM AM/PM" into a 24h hour.
func hourOfClock(s string) (int, bool) {
	m := clockPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	if h < 1 || h > 12 {
		return 0, false
	}
	h %= 12
	if m[3] == "PM" {
		h += 12
	}
	return h, true
}

// InTimeBuckets reports whether a "H:MM AM/PM" start falls in any preferred
// bucket. Unknown bucket names are ignored; no known bucket means no filter.
func InTimeBuckets(clock string, prefs []string) bool {
	var buckets [][2]int
	for _, p := range prefs {
		if b, ok := timeBuckets[strings.ToLower(strings.TrimSpace(p))]; ok {
			buckets = append(buckets, b)
		}
	}
	if len(buckets) == 0 {
		return true
	}

	h, ok := hourOfClock(clock)
	if !ok {
		return false
	}
	for _, b := range buckets {
		if h >= b[0] && h < b[1] {
			return true
		}
	}
	return false
}

func filterByTime(in []ClassCandidate, prefs []string) []ClassCandidate {
	out := make([]ClassCandidate, 0, len(in))
	for _, c := range in {
		if InTimeBuckets(c.Start.Format("3:04 PM"), prefs) {
			out = append(out, c)
		}
	}
	return out
}

// rankClasses flags activity matches and moves them first, keeping source order otherwise.
func rankClasses(in []ClassCandidate, activities []string) []ClassCandidate {
	acts := nonBlank(activities)
	for i := range in {
		in[i].Matches = len(acts) == 0 || matchesAny(acts, in[i].Title)
	}
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].Matches && !in[j].Matches
	})
	return in
}
