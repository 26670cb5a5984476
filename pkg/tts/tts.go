// Package tts turns narration text into playable audio.
//
// Providers hide the synthesis backend: OpenAI's speech endpoint for a
// natural voice, espeak-ng for an offline fallback, and Mock for tests.
// A Chain tries providers in order so the dashboard keeps talking when the
// network goes away.
//
//	provider, _ := tts.NewOpenAI(tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, tts.Request{Text: "One face detected."})
//	// result.Audio holds an encoded clip (see result.Format)
package tts

import (
	"context"
	"math"
	"time"
)

// Provider synthesizes speech.
type Provider interface {
	// Synthesize renders the request to a complete audio clip.
	Synthesize(ctx context.Context, req Request) (*AudioResult, error)

	// Health checks that the backend is usable.
	Health(ctx context.Context) error

	// Name identifies the provider in logs and errors.
	Name() string

	Close() error
}

// Request is one utterance to synthesize. Zero-valued fields fall back to
// the provider's configuration.
type Request struct {
	Text  string
	Voice string

	// Rate is a speaking-rate multiplier, 1.0 is normal speed.
	Rate float64
	// Pitch is a multiplier around 1.0. Providers without pitch control ignore it.
	Pitch float64
	// Volume is in [0,1]. Applied by the player, carried for providers that can bake it in.
	Volume float64
}

// AudioResult is a synthesized clip.
type AudioResult struct {
	Audio     []byte
	Format    AudioFormat
	Duration  time.Duration // Estimated playback time, zero if unknown
	CharCount int
	LatencyMs int64
}

// AudioFormat describes the clip encoding.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
}

// Encoding names an audio container/codec.
type Encoding string

const (
	EncodingMP3  Encoding = "mp3"
	EncodingWAV  Encoding = "wav"
	EncodingOpus Encoding = "opus"
	EncodingPCM  Encoding = "pcm" // 24kHz mono PCM16
)

// Ext returns a file extension for the encoding, including the dot.
func (e Encoding) Ext() string {
	switch e {
	case EncodingWAV:
		return ".wav"
	case EncodingOpus:
		return ".opus"
	case EncodingPCM:
		return ".pcm"
	default:
		return ".mp3"
	}
}

// EstimateDuration guesses playback time from text length, about 15
// characters per second at normal rate.
func EstimateDuration(text string, rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	ms := float64(len([]rune(text))) * 1000 / (15 * rate)
	return time.Duration(math.Round(ms)) * time.Millisecond
}
