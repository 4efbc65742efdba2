// Package chat relays a user message to an OpenAI-compatible chat
// completions endpoint and returns the assistant reply.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Domenick1991/ftms/config"
	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/Domenick1991/ftms/internal/metrics"
	"github.com/tidwall/gjson"
)

const DefaultSystemPrompt = "You are the travel assistant of an airline: friendly, professional and knowledgeable.\n" +
	"Help with destinations, local food, sights, transport and trip planning.\n" +
	"You cannot look up flights, fares, remaining seats or orders. When asked for them, " +
	"tell the user to use the flight search or the orders page.\n" +
	"Politely decline topics unrelated to travel."

var ErrUnparsableResponse = errors.New("unable to parse server response")

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

type Relay struct {
	client       *http.Client
	url          string
	apiKey       string
	model        string
	maxTokens    int
	temperature  float64
	systemPrompt string
}

func NewRelay(cfg config.ChatConfig) *Relay {
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	return &Relay{
		client:       &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		url:          cfg.URL,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		systemPrompt: prompt,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Complete sends one user message. extra is appended to the system
// prompt when non-empty. Cancelling ctx aborts the HTTP call.
func (r *Relay) Complete(ctx context.Context, userMessage, extra string) (string, error) {
	reply, err := r.complete(ctx, userMessage, extra)
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ChatCompletions.WithLabelValues(result).Inc()
	return reply, err
}

func (r *Relay) complete(ctx context.Context, userMessage, extra string) (string, error) {
	system := r.systemPrompt
	if extra != "" {
		system += "\n\n" + extra
	}

	body, err := json.Marshal(completionRequest{
		Model: r.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: userMessage},
		},
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("chat service returned status %d", resp.StatusCode)
		if snippet := strings.TrimSpace(truncate(string(data), 200)); snippet != "" {
			msg += ": " + snippet
		}
		return "", errors.New(msg)
	}

	content := gjson.GetBytes(data, "choices.0.message.content")
	if !content.Exists() {
		return "", ErrUnparsableResponse
	}
	return CleanReply(content.String()), nil
}

// CleanReply removes <think> blocks emitted by reasoning models.
func CleanReply(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}

// UserContext describes the requesting user for the system prompt.
func UserContext(user domain.User) string {
	if user.Username == "" {
		return ""
	}
	name := user.RealName
	if name == "" {
		name = user.Username
	}
	return fmt.Sprintf("The user you are talking to is %s (account %s).", name, user.Username)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
