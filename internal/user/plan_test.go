package user

import (
	"io"
	"net/http"
	"testing"

	"bluewell/internal/openaiservice"
	"bluewell/internal/planner"
	"bluewell/internal/utility"

	"github.com/go-gomail/gomail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodayPlanIsCached(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	seedMenu(t, api.store)

	first := api.do(t, http.MethodGet, "/api/plan/today", nil)
	assertStatus(t, http.StatusOK, first)
	assert.Equal(t, "false", first.Header().Get("X-Plan-Cached"))

	plan, err := planner.DecodePlan(first.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, planner.FallbackModel, plan.Model)
	assert.Len(t, plan.Meals(), 3)

	second := api.do(t, http.MethodGet, "/api/plan/today", nil)
	assertStatus(t, http.StatusOK, second)
	assert.Equal(t, "true", second.Header().Get("X-Plan-Cached"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	refreshed := api.do(t, http.MethodGet, "/api/plan/today?refresh=true", nil)
	assertStatus(t, http.StatusOK, refreshed)
	assert.Equal(t, "false", refreshed.Header().Get("X-Plan-Cached"))
}

func TestPlanKinds(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	seedMenu(t, api.store)

	rec := api.do(t, http.MethodGet, "/api/plan/week", nil)
	assertStatus(t, http.StatusOK, rec)
	week, err := planner.DecodePlan(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, week.Items, 28)

	rec = api.do(t, http.MethodGet, "/api/plan/next6h", nil)
	assertStatus(t, http.StatusOK, rec)
	next, err := planner.DecodePlan(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "NEXT_6_HOURS", string(next.Kind))

	rec = api.do(t, http.MethodPost, "/api/plan/generate", map[string]interface{}{"kind": "week"})
	assertStatus(t, http.StatusOK, rec)
	assert.Equal(t, "true", rec.Header().Get("X-Plan-Cached"))

	rec = api.do(t, http.MethodPost, "/api/plan/generate", map[string]interface{}{"kind": "MONTH"})
	assertStatus(t, http.StatusBadRequest, rec)
}

func TestPlanWithoutDiningData(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	rec := api.do(t, http.MethodGet, "/api/plan/today", nil)
	assertStatus(t, http.StatusConflict, rec)

	var body struct {
		Error   string                 `json:"error"`
		Details map[string]interface{} `json:"details"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "DUKE_DINING", body.Details["source"])
	assert.Equal(t, float64(0), body.Details["vendors"])
}

func TestPlanProviderErrors(t *testing.T) {
	cases := map[int]int{
		http.StatusUnauthorized:    http.StatusBadGateway,
		http.StatusTooManyRequests: http.StatusTooManyRequests,
		http.StatusBadGateway:      http.StatusOK,
	}
	for providerStatus, want := range cases {
		ai := &fakeAI{complete: func(openaiservice.CompletionRequest) (*openaiservice.Completion, error) {
			return nil, &openaiservice.APIError{StatusCode: providerStatus}
		}}
		api := newTestAPI(t, apiOptions{ai: ai})
		seedMenu(t, api.store)

		rec := api.do(t, http.MethodPost, "/api/plan/generate", map[string]interface{}{"kind": "TODAY", "refresh": true})
		assertStatus(t, want, rec)
	}
}

func TestPlanFromModel(t *testing.T) {
	ai := &fakeAI{complete: replyWith(`{"rationale":"Protein first","items":[
		{"kind":"MEAL","title":"Lunch","start":"2026-03-04T12:30:00","kcal":460},
		{"kind":"WORKOUT","title":"Campus Walk","start":"2026-03-04T17:00:00"}]}`)}
	api := newTestAPI(t, apiOptions{ai: ai})
	seedMenu(t, api.store)

	rec := api.do(t, http.MethodGet, "/api/plan/today", nil)
	assertStatus(t, http.StatusOK, rec)

	plan, err := planner.DecodePlan(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "fake-model", plan.Model)
	require.Len(t, plan.Items, 2)
	assert.Equal(t, "Grilled Chicken Salad", plan.Items[0].Title)
	assert.Equal(t, "Marketplace", plan.Items[0].Vendor)
}

func TestEmailPlan(t *testing.T) {
	var sent []*gomail.Message
	m := utility.NewMailerWithSender("plans@bluewell.test", gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		sent = append(sent, msg.(*gomail.Message))
		return nil
	}))
	api := newTestAPI(t, apiOptions{mailer: m})
	seedMenu(t, api.store)

	rec := api.do(t, http.MethodPost, "/api/plan/email", map[string]interface{}{})
	assertStatus(t, http.StatusOK, rec)
	require.Len(t, sent, 1)
	assert.Equal(t, []string{testUserID + "@duke.edu"}, sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Your BlueWell plan for 2026-03-04"}, sent[0].GetHeader("Subject"))

	rec = api.do(t, http.MethodPost, "/api/plan/email", map[string]interface{}{"to": "not-an-email"})
	assertStatus(t, http.StatusBadRequest, rec)
}

func TestEmailPlanWithoutSMTP(t *testing.T) {
	api := newTestAPI(t, apiOptions{mailer: utility.NewMailer(utility.SMTPConfig{})})
	seedMenu(t, api.store)

	rec := api.do(t, http.MethodPost, "/api/plan/email", map[string]interface{}{"to": "friend@duke.edu"})
	assertStatus(t, http.StatusServiceUnavailable, rec)
}
