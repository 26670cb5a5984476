package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-facewatch/internal/httpc"
)

const (
	openAIBaseURL  = "https://api.openai.com/v1"
	providerOpenAI = "openai"

	// VoiceNova is the default hosted voice. Any voice name the API
	// accepts can be passed through Request.Voice or WithVoice.
	VoiceNova = "nova"

	ModelTTS1   = "tts-1"
	ModelTTS1HD = "tts-1-hd"

	// openAISampleRate is the rate of every clip /audio/speech returns.
	openAISampleRate = 24000
)

// OpenAI synthesizes through the hosted /audio/speech endpoint.
type OpenAI struct {
	cfg      *Config
	http     *http.Client
	log      *slog.Logger
	endpoint string // base URL without trailing slash
}

type openAISpeechRequest struct {
	Model          string  `json:"model"`
	Voice          string  `json:"voice"`
	Input          string  `json:"input"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewOpenAI creates an OpenAI provider. An API key is required.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTTS1
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = VoiceNova
	}

	endpoint := openAIBaseURL
	if cfg.BaseURL != "" {
		endpoint = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAI{
		cfg:      cfg,
		http:     httpc.New(cfg.Timeout),
		log:      cfg.Logger.With("component", "tts.openai"),
		endpoint: endpoint,
	}, nil
}

// Name returns "openai".
func (o *OpenAI) Name() string { return providerOpenAI }

// Synthesize renders the request to an encoded clip.
func (o *OpenAI) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyText)
	}

	payload := openAISpeechRequest{
		Model:          o.cfg.ModelID,
		Voice:          o.cfg.VoiceID,
		Input:          req.Text,
		ResponseFormat: string(o.cfg.OutputFormat),
		Speed:          openAISpeed(req.Rate),
	}
	if req.Voice != "" {
		payload.Voice = req.Voice
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("encode speech request: %w", err))
	}

	began := time.Now()
	audio, err := o.send(ctx, http.MethodPost, "/audio/speech", body)
	if err != nil {
		return nil, err
	}
	took := time.Since(began).Milliseconds()

	o.log.Debug("speech synthesized",
		"voice", payload.Voice,
		"chars", len(req.Text),
		"bytes", len(audio),
		"latency_ms", took,
	)
	return &AudioResult{
		Audio:     audio,
		Format:    AudioFormat{Encoding: o.cfg.OutputFormat, SampleRate: openAISampleRate, Channels: 1},
		Duration:  EstimateDuration(req.Text, req.Rate),
		CharCount: len(req.Text),
		LatencyMs: took,
	}, nil
}

// Health lists models, which checks both connectivity and the key.
func (o *OpenAI) Health(ctx context.Context) error {
	_, err := o.send(ctx, http.MethodGet, "/models", nil)
	return err
}

// Close drops pooled connections.
func (o *OpenAI) Close() error {
	httpc.CloseIdle()
	return nil
}

// openAISpeed clamps a rate multiplier to the API's 0.25–4 range.
// Zero means unset and is omitted from the payload.
func openAISpeed(rate float64) float64 {
	if rate <= 0 {
		return 0
	}
	return math.Max(0.25, math.Min(4.0, rate))
}

// send performs one API call and returns the response body. Rate limits
// and 5xx responses are retried up to MaxRetries with linear backoff.
func (o *OpenAI) send(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var err error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			o.log.Warn("retrying", "path", path, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * o.cfg.RetryDelay):
			}
		}

		var data []byte
		data, err = o.once(ctx, method, path, body)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if apiErr, ok := err.(*APIError); ok && !apiErr.IsRetryable() {
			return nil, err
		}
	}
	return nil, err
}

func (o *OpenAI) once(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, o.endpoint+path, reader)
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp.StatusCode, data)
	}
	return data, nil
}

func decodeAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: string(data), Provider: providerOpenAI}
	var parsed openAIErrorBody
	if json.Unmarshal(data, &parsed) == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
		apiErr.Code = parsed.Error.Code
	}
	return apiErr
}

var _ Provider = (*OpenAI)(nil)
