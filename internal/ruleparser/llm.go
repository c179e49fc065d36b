package ruleparser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

// LLMConfig configures the chat-completion endpoint used for parsing.
type LLMConfig struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// ErrNotConfigured is returned when the LLM backend has no endpoint or key.
var ErrNotConfigured = errors.New("rule parser is not configured")

// LLMParser parses rule text by prompting a chat-completion API for JSON.
type LLMParser struct {
	cfg    LLMConfig
	client *http.Client
	logger *zap.Logger
}

// NewLLMParser builds an LLM-backed parser. A nil client gets one with cfg.Timeout.
func NewLLMParser(cfg LLMConfig, client *http.Client, logger *zap.Logger) *LLMParser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMParser{cfg: cfg, client: client, logger: logger}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type llmConstraint struct {
	Type            models.ConstraintType `json:"type"`
	Parameters      json.RawMessage       `json:"parameters"`
	SuggestedWeight *float64              `json:"suggested_weight"`
	Explanation     string                `json:"explanation"`
	Error           string                `json:"error"`
}

// Parse implements Parser.
func (p *LLMParser) Parse(ctx context.Context, text string, staff map[string]string) (*ParseResult, error) {
	if p.cfg.URL == "" || p.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Failed("rule text is empty"), nil
	}

	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(staff)},
			{Role: "user", Content: text},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("encode parser request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build parser request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.logger.Warn("rule parser request failed", zap.Error(err))
		return Failed("rule parser unavailable, try again later"), nil
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Failed("rule parser returned an unreadable response"), nil
	}
	p.logger.Debug("rule parser responded", zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))
	if resp.StatusCode >= 300 {
		p.logger.Warn("rule parser upstream error", zap.Int("status", resp.StatusCode), zap.ByteString("body", truncate(raw, 512)))
		return Failed(fmt.Sprintf("rule parser unavailable (status %d)", resp.StatusCode)), nil
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil || len(chat.Choices) == 0 {
		return Failed("rule parser returned a malformed response"), nil
	}
	return decodeLLMContent(chat.Choices[0].Message.Content), nil
}

func decodeLLMContent(content string) *ParseResult {
	content = stripFences(content)
	var out llmConstraint
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return Failed("rule parser returned invalid JSON")
	}
	if out.Error != "" && out.Type == "" {
		return Failed(out.Error)
	}
	c, err := models.DecodeConstraint(models.ConstraintEnvelope{Type: out.Type, Parameters: out.Parameters})
	if err != nil {
		return Failed(err.Error())
	}
	res := &ParseResult{Success: true, Constraint: c, Explanation: out.Explanation}
	if out.SuggestedWeight != nil {
		w := int(*out.SuggestedWeight + 0.5)
		res.SuggestedWeight = &w
	}
	return res
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

func systemPrompt(staff map[string]string) string {
	var sb strings.Builder
	sb.WriteString("You convert café rostering requests into one JSON constraint.\n")
	sb.WriteString(`Reply with only {"type": string, "parameters": object, "suggested_weight": number 0-100, "explanation": string}.` + "\n")
	sb.WriteString(`If the request cannot be expressed, reply {"error": "<reason>"}.` + "\n")
	sb.WriteString("Constraint types and parameters:\n")
	sb.WriteString("- max_hours: staff_id, max_hours_per_week\n")
	sb.WriteString("- min_hours: staff_id, min_hours_per_week\n")
	sb.WriteString("- preferred_hours: staff_id, preferred_hours_per_week\n")
	sb.WriteString("- max_consecutive_days: staff_id (optional), max_days\n")
	sb.WriteString("- day_off: staff_id, day_of_week (monday..sunday)\n")
	sb.WriteString("- no_back_to_back: staff_id (optional), min_rest_hours (optional, default 10)\n")
	sb.WriteString("- requires_keys_for_opening: shift_type (optional, default opening)\n")
	sb.WriteString("- fairness: max_hour_spread\n")
	sb.WriteString("Use staff ids, never names. Staff:\n")

	ids := make([]string, 0, len(staff))
	for id := range staff {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(&sb, "- %s: %s\n", id, staff[id])
	}
	return sb.String()
}
