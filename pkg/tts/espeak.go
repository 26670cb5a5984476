package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const providerEspeak = "espeak"

// espeak-ng defaults: 175 words per minute, pitch 50 on a 0-99 scale.
const (
	espeakBaseWPM   = 175
	espeakBasePitch = 50
)

// Espeak synthesizes offline by running espeak-ng and capturing WAV on stdout.
type Espeak struct {
	config *Config
	logger *slog.Logger
	binary string
}

// NewEspeak creates an espeak-ng provider. It fails if the binary is not on PATH.
func NewEspeak(opts ...Option) (*Espeak, error) {
	cfg := DefaultConfig()
	cfg.Binary = "espeak-ng"
	cfg.OutputFormat = EncodingWAV
	cfg.Apply(opts...)

	bin, err := exec.LookPath(cfg.Binary)
	if err != nil {
		return nil, WrapError(providerEspeak, fmt.Errorf("%s not found: %w", cfg.Binary, err))
	}

	return &Espeak{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.espeak"),
		binary: bin,
	}, nil
}

// Name returns "espeak".
func (e *Espeak) Name() string { return providerEspeak }

// Synthesize renders the request to WAV.
func (e *Espeak) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, WrapError(providerEspeak, ErrEmptyText)
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, espeakArgs(req, e.config.VoiceID)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, WrapError(providerEspeak, ctx.Err())
		}
		return nil, WrapError(providerEspeak, fmt.Errorf("run: %w: %s", err, strings.TrimSpace(stderr.String())))
	}

	e.logger.Debug("synthesized audio", "chars", len(req.Text), "bytes", stdout.Len())

	return &AudioResult{
		Audio:     stdout.Bytes(),
		Format:    AudioFormat{Encoding: EncodingWAV, SampleRate: 22050, Channels: 1},
		Duration:  EstimateDuration(req.Text, req.Rate),
		CharCount: len(req.Text),
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Health runs espeak-ng --version.
func (e *Espeak) Health(ctx context.Context) error {
	if err := exec.CommandContext(ctx, e.binary, "--version").Run(); err != nil {
		return WrapError(providerEspeak, err)
	}
	return nil
}

// Close is a no-op.
func (e *Espeak) Close() error { return nil }

// espeakArgs maps request settings onto espeak-ng flags. Text goes last.
func espeakArgs(req Request, defaultVoice string) []string {
	args := []string{"--stdout"}

	voice := req.Voice
	if voice == "" {
		voice = defaultVoice
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	if req.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(int(espeakBaseWPM*req.Rate)))
	}
	if req.Pitch > 0 {
		p := int(espeakBasePitch * req.Pitch)
		if p > 99 {
			p = 99
		}
		args = append(args, "-p", strconv.Itoa(p))
	}
	if req.Volume > 0 {
		args = append(args, "-a", strconv.Itoa(int(100*req.Volume)))
	}
	return append(args, "--", req.Text)
}

// Verify Espeak implements Provider at compile time.
var _ Provider = (*Espeak)(nil)
