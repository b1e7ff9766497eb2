// Package dispatcher orchestrates one translate-audio request end to end:
// select a backend, build and send the upstream request, parse the reply,
// retry on failure, and account the outcome back to the backend registry. It
// never raises a lower-level error past its boundary — every call returns a
// tagged Result, keeping failure handling out of exception-style control
// flow.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/apierr"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/backend"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/config"
)

// Request is one translate-audio job ready for dispatch: a normalized,
// canonical WAV already on disk.
type Request struct {
	AudioPath       string
	TargetLanguages []string
	UserPrompt      string
	// HashKey identifies the caller for the consistent-hash strategy, e.g.
	// the credential's secret. Ignored by every other strategy.
	HashKey string
}

// Result is the tagged outcome of a dispatch: either Success with the
// parsed fields, or a non-nil Err describing what went wrong — callers
// branch on Success rather than a returned error.
type Result struct {
	Success     bool
	BackendUsed string
	RawText     string
	Fields      map[string]string
	FieldOrder  []string
	Attempts    int
	Err         *apierr.Error
}

type Dispatcher struct {
	registry      *backend.Registry
	selector      *backend.Selector
	client        *http.Client
	maxRetries    int
	defaultPrompt string
	maxTokens     int
	temperature   float64
}

// New builds a Dispatcher. maxTokens and temperature are the chat-completion
// request's generation limits, sent on every upstream call; callers pass 0
// for maxTokens/temperature to fall back to 200/0.
func New(registry *backend.Registry, selector *backend.Selector, maxRetries int, defaultPrompt string, maxTokens int, temperature float64) *Dispatcher {
	if maxTokens <= 0 {
		maxTokens = 200
	}
	return &Dispatcher{
		registry:      registry,
		selector:      selector,
		client:        &http.Client{},
		maxRetries:    maxRetries,
		defaultPrompt: defaultPrompt,
		maxTokens:     maxTokens,
		temperature:   temperature,
	}
}

// Dispatch runs the select → call → retry loop. attempts is bounded by
// maxRetries+1; a backend that fails is still eligible for the next attempt
// under strategies that don't exclude it — round robin naturally rotates
// past it, and the loop keeps no separate exclusion set.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	prompt := req.UserPrompt
	if prompt == "" {
		prompt = d.defaultPrompt
	}

	var lastErr *apierr.Error
	attempts := d.maxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		chosen, err := d.selector.Select(ctx, req.HashKey)
		if err != nil {
			lastErr = toAPIError(err, apierr.NoBackend)
			break // selection itself failed; no backend exists to retry against
		}

		// Select already reserved a connection slot for chosen as part of
		// picking it; release it once this attempt is done either way.
		start := time.Now()
		text, callErr := d.callBackend(ctx, chosen, req.AudioPath, req.TargetLanguages, prompt)
		elapsed := time.Since(start)
		d.registry.ReleaseConnection(chosen.Name)
		d.registry.RecordResult(chosen.Name, callErr == nil, elapsed)

		if callErr == nil {
			parsed := ParseModelResponse(text)
			return Result{
				Success:     true,
				BackendUsed: chosen.Name,
				RawText:     text,
				Fields:      parsed.Fields,
				FieldOrder:  parsed.Order,
				Attempts:    attempt + 1,
			}
		}
		lastErr = toAPIError(callErr, apierr.UpstreamError)
	}

	if lastErr == nil {
		lastErr = apierr.New(apierr.AllBackendsFailed, "all backends failed")
	} else if lastErr.Kind != apierr.NoBackend {
		lastErr = apierr.Wrap(apierr.AllBackendsFailed, "all backends failed", lastErr)
	}
	return Result{Success: false, Attempts: attempts, Err: lastErr}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	InputAudio *inputAudio `json:"input_audio,omitempty"`
}

type inputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// callBackend builds a chat-completion request carrying the audio as an
// input_audio content part and posts it to the backend's OpenAI-compatible
// endpoint. No available SDK models this content-part shape, so the body is
// hand-built JSON instead.
func (d *Dispatcher) callBackend(ctx context.Context, b config.BackendConfig, audioPath string, targetLanguages []string, userPrompt string) (string, error) {
	payload, err := buildRequestBody(b.Model, audioPath, targetLanguages, userPrompt, d.maxTokens, d.temperature)
	if err != nil {
		return "", apierr.Wrap(apierr.IO, "building upstream request", err)
	}

	timeout := b.Timeout()
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, b.URL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, "building upstream HTTP request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.Credential)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		if reqCtx.Err() != nil {
			return "", apierr.Wrap(apierr.Timeout, "upstream request timed out", err)
		}
		return "", apierr.Wrap(apierr.UpstreamError, "calling upstream backend", err)
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apierr.Wrap(apierr.UpstreamError, "decoding upstream response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("upstream returned status %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", apierr.New(apierr.UpstreamError, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", apierr.New(apierr.UpstreamError, "upstream response had no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func buildRequestBody(model, audioPath string, targetLanguages []string, userPrompt string, maxTokens int, temperature float64) ([]byte, error) {
	raw, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("reading normalized audio: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: buildSystemPrompt(targetLanguages)},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: userPrompt},
				{Type: "input_audio", InputAudio: &inputAudio{Data: encoded, Format: "wav"}},
			}},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	return json.Marshal(body)
}

func toAPIError(err error, fallback apierr.Kind) *apierr.Error {
	if asErr, ok := err.(*apierr.Error); ok {
		return asErr
	}
	return apierr.Wrap(fallback, err.Error(), err)
}
