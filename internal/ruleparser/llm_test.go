package ruleparser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[0].Content, "s1: Alex")

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
}

func TestLLMParserSuccess(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "```json\n{\"type\":\"max_hours\",\"parameters\":{\"staff_id\":\"s1\",\"max_hours_per_week\":35},\"suggested_weight\":80,\"explanation\":\"cap\"}\n```")
	defer srv.Close()

	p := NewLLMParser(LLMConfig{URL: srv.URL, APIKey: "key", Model: "m"}, srv.Client(), nil)
	res, err := p.Parse(context.Background(), "Alex max 35 hours", map[string]string{"s1": "Alex"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, models.MaxHours{StaffID: "s1", MaxHoursPerWeek: 35}, res.Constraint)
	assert.Equal(t, 80, *res.SuggestedWeight)
	assert.Equal(t, "cap", res.Explanation)
}

func TestLLMParserCapitalisedDayOfWeekValidates(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"type":"day_off","parameters":{"staff_id":"s1","day_of_week":"Monday"},"explanation":"Alex off Mondays"}`)
	defer srv.Close()

	p := NewLLMParser(LLMConfig{URL: srv.URL, APIKey: "key", Model: "m"}, srv.Client(), nil)
	res, err := p.Parse(context.Background(), "Alex can't do Mondays", map[string]string{"s1": "Alex"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, models.DayOff{StaffID: "s1", DayOfWeek: "monday"}, res.Constraint)
	assert.True(t, Validate(res.Constraint).IsValid)
}

func TestLLMParserUpstreamFailureIsUnsuccessfulResult(t *testing.T) {
	srv := chatServer(t, http.StatusServiceUnavailable, "")
	defer srv.Close()

	p := NewLLMParser(LLMConfig{URL: srv.URL, APIKey: "key"}, srv.Client(), nil)
	res, err := p.Parse(context.Background(), "Alex max 35 hours", map[string]string{"s1": "Alex"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "503")
}

func TestLLMParserMalformedContent(t *testing.T) {
	for _, content := range []string{"not json", `{"type":"overtime","parameters":{}}`, `{"error":"not a scheduling rule"}`} {
		srv := chatServer(t, http.StatusOK, content)
		p := NewLLMParser(LLMConfig{URL: srv.URL, APIKey: "key"}, srv.Client(), nil)
		res, err := p.Parse(context.Background(), "hello", map[string]string{"s1": "Alex"})
		srv.Close()
		require.NoError(t, err)
		assert.False(t, res.Success, content)
		assert.NotEmpty(t, res.Error)
	}
}

func TestLLMParserRequiresConfiguration(t *testing.T) {
	_, err := NewLLMParser(LLMConfig{}, nil, nil).Parse(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(` {"a":1} `))
}
