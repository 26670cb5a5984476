package app

import (
	"github.com/teslashibe/go-facewatch/pkg/speech"
	"github.com/teslashibe/go-facewatch/pkg/tts"
)

// initSpeech builds the speaker: OpenAI when a key is set, espeak-ng as
// the offline fallback, played through ffplay. Missing pieces degrade to
// speech.Unsupported.
func (a *App) initSpeech() speech.Speaker {
	var providers []tts.Provider

	if a.config.OpenAIKey != "" {
		opts := []tts.Option{tts.WithAPIKey(a.config.OpenAIKey), tts.WithLogger(a.base)}
		if a.config.Voice != "" {
			opts = append(opts, tts.WithVoice(a.config.Voice))
		}
		if p, err := tts.NewOpenAI(opts...); err == nil {
			providers = append(providers, p)
		} else {
			a.logger.Warn("openai tts unavailable", "error", err)
		}
	}

	if p, err := tts.NewEspeak(tts.WithVoice(a.config.EspeakVoice), tts.WithLogger(a.base)); err == nil {
		providers = append(providers, p)
	} else {
		a.logger.Debug("espeak unavailable", "error", err)
	}

	if len(providers) == 0 {
		a.logger.Warn("no speech synthesis backend, narration disabled")
		return speech.Unsupported{}
	}

	provider, err := tts.NewChainWithLogger(a.base, providers...)
	if err != nil {
		return speech.Unsupported{}
	}

	var player speech.Player
	if a.config.Headless {
		player = speech.Discard{}
	} else if ff, err := speech.NewFFPlay(); err == nil {
		player = ff
	} else {
		a.logger.Warn("no audio player, narration disabled", "error", err)
		provider.Close()
		return speech.Unsupported{}
	}

	a.logger.Info("speech ready", "provider", provider.Name())
	return speech.Detect(provider, player, speech.WithLogger(a.base))
}
