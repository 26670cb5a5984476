package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/teslashibe/go-facewatch/pkg/tts"
)

// Player plays a synthesized clip and returns when playback ends or ctx is
// canceled.
type Player interface {
	Play(ctx context.Context, clip *tts.AudioResult, volume float64) error
}

// FFPlay plays clips through an ffplay subprocess fed on stdin.
type FFPlay struct {
	binary string
}

// NewFFPlay finds ffplay on PATH.
func NewFFPlay() (*FFPlay, error) {
	bin, err := exec.LookPath("ffplay")
	if err != nil {
		return nil, fmt.Errorf("speech: ffplay not found: %w", err)
	}
	return &FFPlay{binary: bin}, nil
}

// Play blocks until ffplay exits. Canceling ctx kills the process.
func (p *FFPlay) Play(ctx context.Context, clip *tts.AudioResult, volume float64) error {
	if clip == nil || len(clip.Audio) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, p.binary, ffplayArgs(clip.Format, volume)...)
	cmd.Stdin = bytes.NewReader(clip.Audio)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("speech: ffplay: %w", err)
	}
	return nil
}

func ffplayArgs(format tts.AudioFormat, volume float64) []string {
	args := []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}

	if volume > 0 {
		v := int(volume * 100)
		if v > 100 {
			v = 100
		}
		args = append(args, "-volume", strconv.Itoa(v))
	}

	// Raw PCM carries no header
	if format.Encoding == tts.EncodingPCM {
		rate := format.SampleRate
		if rate == 0 {
			rate = 24000
		}
		channels := format.Channels
		if channels == 0 {
			channels = 1
		}
		args = append(args, "-f", "s16le", "-ar", strconv.Itoa(rate), "-ch_layout", channelLayout(channels))
	}

	return append(args, "-i", "-")
}

func channelLayout(channels int) string {
	if channels == 2 {
		return "stereo"
	}
	return "mono"
}

// Discard drops audio, waiting out the clip's duration so utterances keep
// realistic timing on headless hosts.
type Discard struct{}

// Play waits for clip.Duration or ctx.
func (Discard) Play(ctx context.Context, clip *tts.AudioResult, _ float64) error {
	if clip == nil || clip.Duration <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(clip.Duration):
		return nil
	}
}

var (
	_ Player = (*FFPlay)(nil)
	_ Player = Discard{}
)
