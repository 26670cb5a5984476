package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-facewatch/pkg/capture"
	"github.com/teslashibe/go-facewatch/pkg/narration"
	"github.com/teslashibe/go-facewatch/pkg/session"
	"github.com/teslashibe/go-facewatch/pkg/speech"
)

type fakeController struct {
	status      Status
	startErr    error
	stopped     bool
	narration   narration.State
	describe    string
	describeErr error
	exportErr   error
}

func (f *fakeController) Status() Status { return f.status }

func (f *fakeController) StartDetection() error {
	if f.startErr != nil {
		f.status.CaptureError = f.startErr.Error()
		return f.startErr
	}
	f.status.Running = true
	return nil
}

func (f *fakeController) StopDetection() {
	f.stopped = true
	f.status.Running = false
}

func (f *fakeController) RestartSession() session.Stats {
	f.status.Session = session.Stats{ID: "new", Active: f.status.Running}
	return f.status.Session
}

func (f *fakeController) SetNarration(enabled bool) narration.State {
	f.narration.Enabled = enabled && f.narration.Supported
	return f.narration
}

func (f *fakeController) Describe() (string, error) { return f.describe, f.describeErr }

func (f *fakeController) Export(w io.Writer) error {
	if f.exportErr != nil {
		return f.exportErr
	}
	_, err := w.Write([]byte("\x89PNG"))
	return err
}

func do(t *testing.T, s *Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestStatus(t *testing.T) {
	ctrl := &fakeController{status: Status{Source: "camera:0", Faces: 2, FPS: 14.5}}
	s := NewServer("0", ctrl)

	resp, body := do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st Status
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 2, st.Faces)
	assert.Equal(t, "camera:0", st.Source)
	assert.Equal(t, 14.5, st.FPS)
}

func TestStartStop(t *testing.T) {
	ctrl := &fakeController{}
	s := NewServer("0", ctrl)

	resp, _ := do(t, s, http.MethodPost, "/api/detection/start", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ctrl.status.Running)

	resp, _ = do(t, s, http.MethodPost, "/api/detection/stop", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ctrl.stopped)
}

func TestStartCaptureUnavailable(t *testing.T) {
	ctrl := &fakeController{startErr: fmt.Errorf("camera 0: %w", capture.ErrUnavailable)}
	s := NewServer("0", ctrl)

	resp, body := do(t, s, http.MethodPost, "/api/detection/start", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "capture_error")

	logs := s.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "error", logs[0].Type)
}

func TestRestartSession(t *testing.T) {
	ctrl := &fakeController{status: Status{Running: true}}
	s := NewServer("0", ctrl)

	resp, body := do(t, s, http.MethodPost, "/api/session/restart", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st session.Stats
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "new", st.ID)
	assert.True(t, st.Active)
}

func TestNarrationToggle(t *testing.T) {
	ctrl := &fakeController{narration: narration.State{Supported: true}}
	s := NewServer("0", ctrl)

	resp, body := do(t, s, http.MethodPost, "/api/narration", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st narration.State
	require.NoError(t, json.Unmarshal(body, &st))
	assert.True(t, st.Enabled)

	resp, _ = do(t, s, http.MethodPost, "/api/narration", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ctrl.narration.Supported = false
	resp, _ = do(t, s, http.MethodPost, "/api/narration", `{"enabled":true}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDescribe(t *testing.T) {
	ctrl := &fakeController{describe: "One face in view."}
	s := NewServer("0", ctrl)

	resp, body := do(t, s, http.MethodPost, "/api/describe", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"text":"One face in view.","spoken":true}`, string(body))

	ctrl.describeErr = speech.ErrUnsupported
	_, body = do(t, s, http.MethodPost, "/api/describe", "")
	assert.JSONEq(t, `{"text":"One face in view.","spoken":false}`, string(body))

	ctrl.describeErr = errors.New("boom")
	resp, _ = do(t, s, http.MethodPost, "/api/describe", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestExport(t *testing.T) {
	ctrl := &fakeController{}
	s := NewServer("0", ctrl)

	resp, body := do(t, s, http.MethodGet, "/api/export", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="face-detection-`)
	assert.Equal(t, "\x89PNG", string(body))

	ctrl.exportErr = capture.ErrNotReady
	resp, _ = do(t, s, http.MethodGet, "/api/export", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLogsBuffer(t *testing.T) {
	s := NewServer("0", &fakeController{})
	for i := 0; i < maxLogs+10; i++ {
		s.AddLog("info", fmt.Sprintf("line %d", i))
	}

	logs := s.Logs()
	require.Len(t, logs, maxLogs)
	assert.Equal(t, "line 10", logs[0].Message)

	resp, body := do(t, s, http.MethodGet, "/api/logs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got []LogEntry
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Len(t, got, maxLogs)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s := NewServer("0", &fakeController{})
	resp, _ := do(t, s, http.MethodGet, "/ws/status", "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestDashboardIndex(t *testing.T) {
	s := NewServer("0", &fakeController{})
	resp, body := do(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<title>Facewatch</title>")
}
