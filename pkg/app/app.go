package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"go.uber.org/multierr"

	"github.com/teslashibe/go-facewatch/pkg/capture"
	"github.com/teslashibe/go-facewatch/pkg/debug"
	"github.com/teslashibe/go-facewatch/pkg/detection"
	"github.com/teslashibe/go-facewatch/pkg/narration"
	"github.com/teslashibe/go-facewatch/pkg/overlay"
	"github.com/teslashibe/go-facewatch/pkg/scheduler"
	"github.com/teslashibe/go-facewatch/pkg/session"
	"github.com/teslashibe/go-facewatch/pkg/speech"
	"github.com/teslashibe/go-facewatch/pkg/web"
)

const overlayJPEGQuality = 75

// SourceOpener opens the capture source described by the config.
type SourceOpener func(cfg Config, logger *slog.Logger) (capture.Source, error)

// Option overrides a component, mainly for tests.
type Option func(*App)

// WithDetector uses d instead of opening the configured model.
func WithDetector(d detection.Detector) Option {
	return func(a *App) {
		a.detector = d
	}
}

// WithSpeaker uses sp instead of detecting a speech backend.
func WithSpeaker(sp speech.Speaker) Option {
	return func(a *App) {
		a.speaker = sp
	}
}

// WithSourceOpener replaces how capture sources are opened.
func WithSourceOpener(open SourceOpener) Option {
	return func(a *App) {
		a.openSource = open
	}
}

// WithClock sets the clock for the scheduler, session and status cadence.
func WithClock(c clock.Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.base = logger
	}
}

// App is the facewatch orchestrator. It owns every component's lifecycle.
type App struct {
	config Config
	base   *slog.Logger // handed to components
	logger *slog.Logger
	clock  clock.Clock

	detector   detection.Detector
	speaker    speech.Speaker
	openSource SourceOpener

	narrator  *narration.Trigger
	session   *session.Aggregator
	scheduler *scheduler.Scheduler
	renderer  *overlay.Renderer
	webServer *web.Server

	// canvas is only touched from the scheduler loop goroutine
	canvas *overlay.GGCanvas

	mu         sync.Mutex
	source     capture.Source
	captureErr string
	lastBatch  detection.Batch
	exported   bool
}

// New validates cfg and creates an uninitialized app.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug.Enabled = cfg.Debug
	debug.Frames = cfg.DebugFrames

	a := &App{
		config:     cfg,
		base:       slog.Default(),
		clock:      clock.New(),
		openSource: OpenSource,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.base.With("component", "app")
	return a, nil
}

// Init creates every component and opens the capture source. A capture
// failure is not fatal: it is reported in Status and retried by
// StartDetection.
func (a *App) Init() error {
	if a.detector == nil {
		d, err := openDetector(a.config)
		if err != nil {
			return fmt.Errorf("detector: %w", err)
		}
		a.detector = d
	}
	a.logger.Info("detector ready", "detector", a.config.Detector)

	if a.speaker == nil {
		a.speaker = a.initSpeech()
	}

	a.narrator = narration.New(a.speaker,
		narration.WithLogger(a.base),
		narration.WithVoice(speech.Options{
			Rate:   a.config.SpeechRate,
			Pitch:  1.0,
			Volume: speech.DefaultOptions().Volume,
		}),
		narration.WithSettle(a.config.Settle),
		narration.WithEnabled(a.config.Narrate),
	)

	a.session = session.New(session.WithClock(a.clock))

	schedCfg := scheduler.DefaultConfig()
	schedCfg.MinInterval = a.config.MinInterval
	a.scheduler = scheduler.New(schedCfg, a.detector,
		scheduler.WithClock(a.clock),
		scheduler.WithLogger(a.base),
	)

	if a.config.Source == SourceCamera {
		a.renderer = overlay.NewRenderer(overlay.LiveStyle())
	} else {
		a.renderer = overlay.NewRenderer(overlay.StillStyle())
	}

	if a.config.Port != "" {
		a.webServer = web.NewServer(a.config.Port, a)
	}

	a.mu.Lock()
	err := a.openSourceLocked()
	a.mu.Unlock()
	if err != nil {
		a.logger.Warn("capture unavailable", "source", a.config.Source, "error", err)
	}
	return nil
}

// Run serves the dashboard and starts detection, then blocks until ctx is
// canceled or the web server fails.
func (a *App) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	if a.webServer != nil {
		a.webServer.StartAsync(errc)
		a.webServer.AddLog("info", "facewatch started")
	}

	if err := a.StartDetection(); err != nil {
		a.logger.Warn("detection not started", "error", err)
	}

	ticker := a.clock.Ticker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return fmt.Errorf("web server: %w", err)
		case <-ticker.C:
			a.publishStatus()
		}
	}
}

// Shutdown stops detection and releases every component.
func (a *App) Shutdown() error {
	var err error

	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.session != nil {
		a.session.Stop()
	}
	if a.narrator != nil {
		a.narrator.Reset()
	}
	if a.webServer != nil {
		err = multierr.Append(err, a.webServer.Shutdown())
	}

	a.mu.Lock()
	if a.source != nil {
		err = multierr.Append(err, a.source.Close())
		a.source = nil
	}
	a.mu.Unlock()

	if c, ok := a.speaker.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	if a.detector != nil {
		err = multierr.Append(err, a.detector.Close())
	}
	return err
}

// StartDetection opens the source if needed and starts the scheduler and
// session clock. It is the retry path after a capture failure.
func (a *App) StartDetection() error {
	a.mu.Lock()
	if a.scheduler.Running() {
		a.mu.Unlock()
		return scheduler.ErrAlreadyRunning
	}
	if a.source == nil {
		if err := a.openSourceLocked(); err != nil {
			a.mu.Unlock()
			a.publishStatus()
			return err
		}
	}
	src := a.source
	a.mu.Unlock()

	if err := a.scheduler.Start(src, a.onBatch); err != nil {
		return err
	}
	a.session.Start()

	a.logger.Info("detection started", "source", a.config.Source)
	a.log("info", "Detection started")
	a.publishStatus()
	return nil
}

// StopDetection stops the loop and releases the capture source. Session
// counters are kept.
func (a *App) StopDetection() {
	a.scheduler.Stop()
	a.session.Stop()

	a.mu.Lock()
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			a.logger.Warn("close source", "error", err)
		}
		a.source = nil
	}
	a.mu.Unlock()

	a.logger.Info("detection stopped")
	a.log("info", "Detection stopped")
	a.publishStatus()
}

// RestartSession zeroes the session counters.
func (a *App) RestartSession() session.Stats {
	a.session.Restart()
	if !a.scheduler.Running() {
		a.session.Stop()
	}
	a.narrator.Reset()
	a.publishStatus()
	return a.session.Snapshot()
}

// SetNarration turns narration on or off.
func (a *App) SetNarration(enabled bool) narration.State {
	a.narrator.SetEnabled(enabled)
	st := a.narrator.State()
	a.logger.Info("narration toggled", "enabled", st.Enabled)
	a.publishStatus()
	return st
}

// Describe speaks a full description of the latest batch. Without speech
// support the text is still returned alongside speech.ErrUnsupported.
func (a *App) Describe() (string, error) {
	a.mu.Lock()
	batch := a.lastBatch
	a.mu.Unlock()

	text, err := a.narrator.DescribeNow(batch)
	if errors.Is(err, speech.ErrUnsupported) {
		return a.narrator.Describe(batch), err
	}
	return text, err
}

// Export writes the current frame with the latest overlay as PNG.
func (a *App) Export(w io.Writer) error {
	a.mu.Lock()
	src, batch := a.source, a.lastBatch
	a.mu.Unlock()

	frame, over, err := a.annotate(src, batch)
	if err != nil {
		return err
	}
	return overlay.Export(w, frame, over)
}

// annotate renders batch onto a fresh canvas the size of the current frame.
func (a *App) annotate(src capture.Source, batch detection.Batch) (frame, over image.Image, err error) {
	if src == nil || !src.Ready() {
		return nil, nil, capture.ErrNotReady
	}
	frame, err = src.Frame()
	if err != nil {
		return nil, nil, err
	}

	b := frame.Bounds()
	c := overlay.NewGGCanvas(b.Dx(), b.Dy(), fontSize(b.Size()))
	a.renderer.Render(c, batch)
	return frame, c.Image(), nil
}

// saveExport writes the annotated still into ExportDir.
func (a *App) saveExport(src capture.Source, batch detection.Batch) {
	frame, over, err := a.annotate(src, batch)
	if err == nil {
		var path string
		path, err = overlay.SaveExport(a.config.ExportDir, frame, over, a.clock.Now())
		if err == nil {
			a.logger.Info("export saved", "path", path, "faces", batch.Count())
			a.log("info", "Saved "+path)
			return
		}
	}
	a.logger.Warn("export failed", "dir", a.config.ExportDir, "error", err)
}

// Status returns the dashboard snapshot.
func (a *App) Status() web.Status {
	a.mu.Lock()
	captureErr, faces := a.captureErr, a.lastBatch.Count()
	a.mu.Unlock()

	return web.Status{
		Source:       a.config.Source,
		Detector:     a.config.Detector,
		Running:      a.scheduler.Running(),
		CaptureError: captureErr,
		Faces:        faces,
		FPS:          a.scheduler.FPS(),
		Session:      a.session.Snapshot(),
		Narration:    a.narrator.State(),
		Scheduler:    a.scheduler.Stats(),
	}
}

// onBatch runs on the scheduler loop goroutine.
func (a *App) onBatch(batch detection.Batch) {
	a.session.OnBatch(batch)

	a.mu.Lock()
	prev := a.lastBatch.Count()
	a.lastBatch = batch
	src := a.source
	saveNow := a.config.ExportDir != "" && !a.exported && src != nil
	if saveNow {
		a.exported = true
	}
	a.mu.Unlock()

	a.narrator.OnBatch(batch)

	if saveNow {
		a.saveExport(src, batch)
	}

	if prev != batch.Count() {
		a.log("face", fmt.Sprintf("%d face(s) in view", batch.Count()))
	}

	if a.webServer != nil && src != nil {
		a.publishOverlay(src, batch)
		a.publishStatus()
	}
}

// publishOverlay composites the batch over the current frame and pushes it
// as JPEG.
func (a *App) publishOverlay(src capture.Source, batch detection.Batch) {
	frame, err := src.Frame()
	if err != nil {
		return
	}

	size := frame.Bounds().Size()
	if a.canvas == nil || a.canvas.Width() != size.X || a.canvas.Height() != size.Y {
		a.canvas = overlay.NewGGCanvas(size.X, size.Y, fontSize(size))
	}
	a.renderer.Render(a.canvas, batch)

	var buf bytes.Buffer
	img := overlay.Composite(frame, a.canvas.Image())
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(overlayJPEGQuality)); err != nil {
		a.logger.Warn("encode overlay frame", "error", err)
		return
	}
	a.webServer.SendOverlayFrame(buf.Bytes())
}

func (a *App) publishStatus() {
	if a.webServer != nil {
		a.webServer.PublishStatus(a.Status())
	}
}

func (a *App) log(kind, msg string) {
	if a.webServer != nil {
		a.webServer.AddLog(kind, msg)
	}
}

// openSourceLocked opens the configured source. Callers hold a.mu.
func (a *App) openSourceLocked() error {
	src, err := a.openSource(a.config, a.base)
	if err != nil {
		a.captureErr = err.Error()
		return err
	}
	a.source = src
	a.captureErr = ""
	return nil
}

// OpenSource opens the webcam or the still image named by cfg.Source.
func OpenSource(cfg Config, logger *slog.Logger) (capture.Source, error) {
	if cfg.Source == SourceCamera {
		cam, err := capture.OpenWebcam(cfg.Device, logger)
		if err != nil {
			return nil, err
		}
		return cam, nil
	}
	still, err := capture.OpenStill(cfg.Source)
	if err != nil {
		return nil, err
	}
	return still, nil
}

func openDetector(cfg Config) (detection.Detector, error) {
	switch cfg.Detector {
	case DetectorCascade:
		cc := detection.DefaultCascadeConfig()
		cc.ModelPath = cfg.CascadePath
		d, err := detection.NewCascade(cc)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		dc := detection.DefaultConfig()
		dc.ModelPath = cfg.ModelPath
		d, err := detection.NewYuNet(dc)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// fontSize scales label text with the frame height.
func fontSize(size image.Point) float64 {
	return max(12, float64(size.Y)/40)
}
