package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"bluewell/internal/openaiservice"

	"github.com/rs/zerolog/log"
)

// ToolHandler answers the model's tool calls. Results are marshalled to JSON.
type ToolHandler interface {
	SearchMenu(ctx context.Context, query, mealType string) (interface{}, error)
	ListClasses(ctx context.Context, date string) (interface{}, error)
}

// PlanResponse is the validated model answer before grounding.
type PlanResponse struct {
	Model     string
	Rationale string
	Items     []PlanItem
}

type rawPlan struct {
	Items     []rawItem `json:"items"`
	Rationale string    `json:"rationale"`
}

type rawItem struct {
	Kind     string  `json:"kind"`
	Title    string  `json:"title"`
	Vendor   string  `json:"vendor"`
	Location string  `json:"location"`
	Start    string  `json:"start"`
	End      string  `json:"end"`
	Kcal     float64 `json:"kcal"`
	ProteinG float64 `json:"protein_g"`
	Source   string  `json:"source"`
}

// RequestPlan sends one plan request. When the model calls tools, the results
// are appended and a second, final request without tools is made. There is no
// retry: callers fall back on any error.
func RequestPlan(ctx context.Context, client openaiservice.Client, userPrompt string, tools ToolHandler, loc *time.Location) (*PlanResponse, error) {
	messages := []openaiservice.Message{
		{Role: "system", Content: openaiservice.PlanSystemPrompt},
		{Role: "user", Content: userPrompt},
	}

	req := openaiservice.CompletionRequest{Messages: messages, JSONMode: true}
	if tools != nil {
		req.Tools = PlannerTools()
	}

	resp, err := client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.ToolCalls) > 0 && tools != nil {
		messages = append(messages, openaiservice.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			messages = append(messages, openaiservice.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    dispatchTool(ctx, tools, call),
			})
		}

		resp, err = client.Complete(ctx, openaiservice.CompletionRequest{Messages: messages, JSONMode: true})
		if err != nil {
			return nil, err
		}
	}

	items, rationale, err := ParsePlanJSON(resp.Content, loc)
	if err != nil {
		return nil, err
	}
	return &PlanResponse{Model: resp.Model, Rationale: rationale, Items: items}, nil
}

func dispatchTool(ctx context.Context, tools ToolHandler, call openaiservice.ToolCall) string {
	var args struct {
		Query    string `json:"query"`
		MealType string `json:"meal_type"`
		Date     string `json:"date"`
	}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return mustJSON(map[string]string{"error": "invalid arguments"})
		}
	}

	var (
		result interface{}
		err    error
	)
	switch call.Function.Name {
	case "search_menu":
		result, err = tools.SearchMenu(ctx, args.Query, args.MealType)
	case "list_classes":
		result, err = tools.ListClasses(ctx, args.Date)
	default:
		return mustJSON(map[string]string{"error": "unknown tool " + call.Function.Name})
	}
	if err != nil {
		log.Warn().Err(err).Str("tool", call.Function.Name).Msg("Tool call failed")
		return mustJSON(map[string]string{"error": err.Error()})
	}
	return mustJSON(result)
}

var (
	fencePattern         = regexp.MustCompile("```(?:json|JSON)?")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// FixupJSON repairs the usual model formatting slips: markdown fences, prose
// around the object, and trailing commas.
func FixupJSON(raw string) string {
	s := fencePattern.ReplaceAllString(raw, "")
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// ParsePlanJSON fixes up and validates model output: at least one item, each
// with a MEAL or WORKOUT kind, a title and a parseable start.
func ParsePlanJSON(raw string, loc *time.Location) ([]PlanItem, string, error) {
	var rp rawPlan
	if err := json.Unmarshal([]byte(FixupJSON(raw)), &rp); err != nil {
		return nil, "", fmt.Errorf("invalid plan JSON: %w", err)
	}
	if len(rp.Items) == 0 {
		return nil, "", errors.New("plan has no items")
	}

	items := make([]PlanItem, 0, len(rp.Items))
	for i, ri := range rp.Items {
		kind := ItemKind(strings.ToUpper(strings.TrimSpace(ri.Kind)))
		if kind != KindMeal && kind != KindWorkout {
			return nil, "", fmt.Errorf("item %d: invalid kind %q", i, ri.Kind)
		}
		title := strings.TrimSpace(ri.Title)
		if title == "" {
			return nil, "", fmt.Errorf("item %d: missing title", i)
		}
		start, ok := parseTimestamp(ri.Start, loc)
		if !ok {
			return nil, "", fmt.Errorf("item %d: invalid start %q", i, ri.Start)
		}
		end, ok := parseTimestamp(ri.End, loc)
		if !ok || !end.After(start) {
			end = start.Add(defaultDuration(kind))
		}

		items = append(items, PlanItem{
			Kind:     kind,
			Title:    title,
			Vendor:   strings.TrimSpace(ri.Vendor),
			Location: strings.TrimSpace(ri.Location),
			Start:    start,
			End:      end,
			Kcal:     int(math.Round(math.Max(ri.Kcal, 0))),
			ProteinG: int(math.Round(math.Max(ri.ProteinG, 0))),
			Source:   strings.TrimSpace(ri.Source),
		})
	}
	return items, strings.TrimSpace(rp.Rationale), nil
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func defaultDuration(kind ItemKind) time.Duration {
	if kind == KindWorkout {
		return time.Hour
	}
	return 30 * time.Minute
}
