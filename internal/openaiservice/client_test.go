package openaiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, v interface{}) *http.Response {
	b, _ := json.Marshal(v)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(b)),
	}
}

func completionBody(content string) map[string]interface{} {
	return map[string]interface{}{
		"model": "gpt-test",
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	}
}

func newTestClient(t *testing.T, fn roundTripperFunc) *HTTPClient {
	t.Helper()
	return NewWithHTTPClient(Config{
		APIKey:         "sk-test",
		BaseURL:        "http://upstream/v1/",
		Model:          "gpt-test",
		EmbeddingModel: "embed-test",
	}, &http.Client{Transport: fn})
}

func fastBackoff(t *testing.T) {
	t.Helper()
	prev := initialBackoff
	initialBackoff = time.Millisecond
	t.Cleanup(func() { initialBackoff = prev })
}

func TestCompleteSendsJSONModeAndTools(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/v1/chat/completions", req.URL.Path)
		assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))

		var in openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))
		assert.Equal(t, "gpt-test", in.Model)
		require.NotNil(t, in.ResponseFormat)
		assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, in.ResponseFormat.Type)
		require.Len(t, in.Tools, 1)
		require.NotNil(t, in.Tools[0].Function)
		assert.Equal(t, "search_menu", in.Tools[0].Function.Name)

		return jsonResponse(http.StatusOK, map[string]interface{}{
			"choices": []map[string]interface{}{{
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": nil,
					"tool_calls": []map[string]interface{}{{
						"id": "call_1", "type": "function",
						"function": map[string]string{"name": "search_menu", "arguments": `{"query":"eggs"}`},
					}},
				},
			}},
		}), nil
	})

	resp, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "plan"}},
		Tools:    []Tool{{Type: "function", Function: ToolFunction{Name: "search_menu"}}},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", resp.Model)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, `{"query":"eggs"}`, resp.ToolCalls[0].Function.Arguments)
}

func TestCompleteWithoutKey(t *testing.T) {
	c := NewWithHTTPClient(Config{}, nil)

	_, err := c.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCompleteSurfacesStatus(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, map[string]string{"error": "bad key"}), nil
	})

	_, err := c.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestEmbedOrdersByIndex(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/v1/embeddings", req.URL.Path)

		var in struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))
		assert.Equal(t, "embed-test", in.Model)
		assert.Equal(t, []string{"a", "b"}, in.Input)

		return jsonResponse(http.StatusOK, map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.3, 0.4}, "index": 1},
				{"embedding": []float32{0.1, 0.2}, "index": 0},
			},
		}), nil
	})

	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vecs[0])
	assert.Equal(t, []float32{0.3, 0.4}, vecs[1])
}

func TestWithRetryRetriesRateLimits(t *testing.T) {
	fastBackoff(t)

	var calls int32
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return jsonResponse(http.StatusTooManyRequests, map[string]string{"error": "slow down"}), nil
		}
		return jsonResponse(http.StatusOK, completionBody(`{"name":"Bagel","calories":290,"proteinG":11,"carbsG":56,"fatG":2,"confidence":0.9}`)), nil
	})

	est, err := EstimateFromText(context.Background(), c, "one plain bagel")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "Bagel", est.Name)
	assert.Equal(t, 290, est.Calories)
}

func TestWithRetryStopsOnClientErrors(t *testing.T) {
	fastBackoff(t)

	var calls int32
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(http.StatusUnauthorized, map[string]string{"error": "bad key"}), nil
	})

	_, err := EstimateFromText(context.Background(), c, "salad")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestWithRetryStopsOnMalformedOutput(t *testing.T) {
	fastBackoff(t)

	for name, content := range map[string]string{
		"not json":     "sorry, I cannot see the plate",
		"missing name": `{"calories":400}`,
	} {
		t.Run(name, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
				atomic.AddInt32(&calls, 1)
				return jsonResponse(http.StatusOK, completionBody(content)), nil
			})

			_, err := EstimateFromText(context.Background(), c, "pasta")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedOutput)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestWithRetryGivesUpAfterThreeAttempts(t *testing.T) {
	fastBackoff(t)

	var calls int32
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(http.StatusBadGateway, nil), nil
	})

	_, err := EmbedWithRetry(context.Background(), c, []string{"x"})
	require.Error(t, err)
	assert.Equal(t, int32(maxRetries), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
}

func TestEstimateFromPhotoSendsDataURL(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		var in struct {
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))
		require.Len(t, in.Messages, 2)

		var parts []ContentPart
		require.NoError(t, json.Unmarshal(in.Messages[1].Content, &parts))
		require.Len(t, parts, 2)
		assert.Contains(t, parts[0].Text, "Additional hint: vegetarian")
		assert.Equal(t, "data:image/png;base64,AQID", parts[1].ImageURL.URL)

		return jsonResponse(http.StatusOK, completionBody(`{"name":"Veggie bowl","calories":-5,"confidence":3}`)), nil
	})

	est, err := EstimateFromPhoto(context.Background(), c, []byte{1, 2, 3}, "image/png", "vegetarian")
	require.NoError(t, err)
	assert.Equal(t, 0, est.Calories)
	assert.Equal(t, 1.0, est.Confidence)
}

func TestGenerateInsight(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, completionBody("  Great start, add protein at dinner.  ")), nil
	})

	text, err := GenerateInsight(context.Background(), c, ProgressSummary{TargetKcal: 2000, ConsumedKcal: 900})
	require.NoError(t, err)
	assert.Equal(t, "Great start, add protein at dinner.", text)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity(nil, nil))
}

func TestParseEstimateRoundsFractionalCalories(t *testing.T) {
	for raw, want := range map[string]int{
		`{"name":"Burrito","calories":520.0}`: 520,
		`{"name":"Burrito","calories":520.4}`: 520,
		`{"name":"Burrito","calories":520.6}`: 521,
		`{"name":"Burrito","calories":612}`:   612,
	} {
		est, err := parseEstimate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, est.Calories, raw)
		assert.Equal(t, "Burrito", est.Name)
	}
}
