package user

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"bluewell/internal/database"
	"bluewell/internal/openaiservice"
	"bluewell/internal/planner"
	"bluewell/internal/utility"

	"github.com/labstack/echo/v4"
)

const semanticScanLimit = 2000

// MenuResult is a menu item with its similarity score (semantic mode only).
type MenuResult struct {
	database.MenuItem
	Score float64 `json:"score,omitempty"`
}

// SearchMenuHandler handles GET /api/menu/search?q=&mode=text|semantic&limit=
// Semantic search falls back to text search when embeddings are unavailable.
func SearchMenuHandler(c echo.Context) error {
	ctx := c.Request().Context()
	logger := utility.Logger(c)

	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return respondError(c, http.StatusBadRequest, "Query parameter 'q' is required")
	}

	mode := strings.ToLower(c.QueryParam("mode"))
	if mode == "" {
		mode = "text"
	}
	if mode != "text" && mode != "semantic" {
		return respondError(c, http.StatusBadRequest, "mode must be 'text' or 'semantic'")
	}

	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	limit = utility.Min(limit, 50)

	if mode == "semantic" {
		results, ok := semanticSearch(c, q, limit)
		if ok {
			return c.JSON(http.StatusOK, map[string]interface{}{"query": q, "mode": "semantic", "items": results})
		}
		mode = "text"
	}

	items, err := queries.SearchMenuItems(ctx, database.SearchMenuItemsParams{Query: q, Limit: int32(limit)})
	if err != nil {
		logger.Error().Err(err).Msg("Menu search failed")
		return respondError(c, http.StatusInternalServerError, "Menu search failed")
	}

	results := make([]MenuResult, 0, len(items))
	for _, it := range items {
		results = append(results, MenuResult{MenuItem: it})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"query": q, "mode": mode, "items": results})
}

// semanticSearch ranks embedded menu items by cosine similarity to q. It
// reports false when the provider or the embeddings are unavailable.
func semanticSearch(c echo.Context, q string, limit int) ([]MenuResult, bool) {
	ctx := c.Request().Context()
	logger := utility.Logger(c)

	if ai == nil {
		return nil, false
	}

	items, err := queries.ListMenuItemsWithEmbeddings(ctx, semanticScanLimit)
	if err != nil || len(items) == 0 {
		if err != nil {
			logger.Warn().Err(err).Msg("Loading menu embeddings failed")
		}
		return nil, false
	}

	vecs, err := openaiservice.EmbedWithRetry(ctx, ai, []string{q})
	if err != nil || len(vecs) == 0 {
		logger.Warn().Err(err).Msg("Embedding query failed, using text search")
		return nil, false
	}

	results := make([]MenuResult, 0, len(items))
	for _, it := range items {
		results = append(results, MenuResult{MenuItem: it, Score: openaiservice.CosineSimilarity(vecs[0], it.Embedding)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, true
}

// ListClassesHandler handles GET /api/classes?date=&type=&location=
// type matches the intensity or the title.
func ListClassesHandler(c echo.Context) error {
	ctx := c.Request().Context()

	day, err := utility.ParseDay(c.QueryParam("date"), now(), location)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err.Error())
	}

	out := []planner.ClassCandidate{}
	if classes != nil {
		all, err := classes.Load(ctx, planner.ClassFilter{Date: day})
		if err != nil {
			utility.Logger(c).Error().Err(err).Msg("Failed to load classes")
			return respondError(c, http.StatusInternalServerError, "Failed to load classes")
		}

		kind := strings.ToLower(strings.TrimSpace(c.QueryParam("type")))
		where := strings.ToLower(strings.TrimSpace(c.QueryParam("location")))
		for _, cl := range all {
			if kind != "" && string(cl.Intensity) != kind && !strings.Contains(strings.ToLower(cl.Title), kind) {
				continue
			}
			if where != "" && !strings.Contains(strings.ToLower(cl.Location), where) {
				continue
			}
			out = append(out, cl)
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"date":    day.Format("2006-01-02"),
		"classes": out,
	})
}
