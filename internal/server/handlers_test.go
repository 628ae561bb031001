package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kweber/scribeq/internal/engine"
	"github.com/kweber/scribeq/internal/job"
	"github.com/kweber/scribeq/internal/metrics"
	"github.com/kweber/scribeq/internal/worker"
)

// stubEngine writes a fake transcript per file; failOn fails the nth
// call, and block (when non-nil) gates every call until closed.
type stubEngine struct {
	failOn int
	block  chan struct{}
	calls  int
}

func (e *stubEngine) Run(ctx context.Context, inputPath, outputPath, token string, onStage engine.StageFunc) error {
	e.calls++
	if e.block != nil {
		<-e.block
	}
	if e.failOn == e.calls {
		return errors.New("diarization failed: bad audio")
	}
	return os.WriteFile(outputPath, []byte("transcript of "+filepath.Base(inputPath)), 0o644)
}

func newTestServer(t *testing.T, eng engine.Engine, defaultToken string) (*Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	collector := metrics.NewCollector()
	srv := New(Options{
		Store:        job.NewStore(),
		Worker:       worker.New(eng, collector, logger),
		Metrics:      collector,
		Logger:       logger,
		DefaultToken: defaultToken,
		WorkDir:      t.TempDir(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func multipartBody(t *testing.T, token string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if token != "" {
		require.NoError(t, mw.WriteField("token", token))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func submit(t *testing.T, ts *httptest.Server, token string, files map[string]string) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, token, files)
	resp, err := http.Post(ts.URL+"/jobs", contentType, body)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func getStatus(t *testing.T, ts *httptest.Server, id string) (statusResponse, int) {
	t.Helper()
	resp, err := http.Get(ts.URL + "/jobs/" + id + "/status")
	require.NoError(t, err)
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return statusResponse{}, resp.StatusCode
	}
	var sr statusResponse
	decodeJSON(t, resp, &sr)
	return sr, http.StatusOK
}

func waitForTerminal(t *testing.T, ts *httptest.Server, id string) statusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sr, code := getStatus(t, ts, id)
		require.Equal(t, http.StatusOK, code)
		if sr.Status == string(job.StatusCompleted) || sr.Status == string(job.StatusFailed) {
			return sr
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return statusResponse{}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		defToken   string
		files      map[string]string
		wantDetail string
	}{
		{
			name:       "no files",
			token:      "tok",
			wantDetail: "no audio files uploaded",
		},
		{
			name:       "no token resolvable",
			files:      map[string]string{"a.wav": "x"},
			wantDetail: "missing credential token",
		},
		{
			name:       "disallowed extension",
			token:      "tok",
			files:      map[string]string{"evil.exe": "x"},
			wantDetail: "unsupported file type: evil.exe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t, &stubEngine{}, tt.defToken)
			resp := submit(t, ts, tt.token, tt.files)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body map[string]string
			decodeJSON(t, resp, &body)
			assert.Equal(t, tt.wantDetail, body["detail"])
		})
	}
}

func TestSubmitAllowsEmptyExtension(t *testing.T) {
	_, ts := newTestServer(t, &stubEngine{}, "")
	resp := submit(t, ts, "tok", map[string]string{"recording": "x"})
	var body map[string]string
	decodeJSON(t, resp, &body)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, body["job_id"])
}

func TestSubmitFallsBackToDefaultToken(t *testing.T) {
	_, ts := newTestServer(t, &stubEngine{}, "server-default")
	resp := submit(t, ts, "", map[string]string{"a.wav": "x"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestFullBatchLifecycle(t *testing.T) {
	_, ts := newTestServer(t, &stubEngine{}, "")
	resp := submit(t, ts, "tok", map[string]string{
		"first.wav":  "a",
		"second.mp3": "b",
		"third.flac": "c",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var created map[string]string
	decodeJSON(t, resp, &created)
	id := created["job_id"]
	require.NotEmpty(t, id)

	final := waitForTerminal(t, ts, id)
	assert.Equal(t, string(job.StatusCompleted), final.Status)
	assert.Equal(t, 3, final.TotalFiles)
	assert.Equal(t, 3, final.DoneFiles)
	assert.Empty(t, final.Error)

	dl, err := http.Get(ts.URL + "/jobs/" + id + "/download")
	require.NoError(t, err)
	defer dl.Body.Close()
	require.Equal(t, http.StatusOK, dl.StatusCode)
	assert.Equal(t, "application/zip", dl.Header.Get("Content-Type"))
	assert.Contains(t, dl.Header.Get("Content-Disposition"), "transcripts_"+id+".zip")

	data, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.Equal(t, map[string]bool{
		"first_text.txt":  true,
		"second_text.txt": true,
		"third_text.txt":  true,
	}, names)

	// Single delivery: the job is consumed by the successful download.
	_, code := getStatus(t, ts, id)
	assert.Equal(t, http.StatusNotFound, code)
	second, err := http.Get(ts.URL + "/jobs/" + id + "/download")
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusNotFound, second.StatusCode)
}

func TestBatchFailsOnSecondFile(t *testing.T) {
	_, ts := newTestServer(t, &stubEngine{failOn: 2}, "")
	resp := submit(t, ts, "tok", map[string]string{
		"a_one.wav": "a",
		"b_two.wav": "b",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var created map[string]string
	decodeJSON(t, resp, &created)

	final := waitForTerminal(t, ts, created["job_id"])
	assert.Equal(t, string(job.StatusFailed), final.Status)
	assert.Equal(t, 1, final.DoneFiles)
	assert.Equal(t, 2, final.TotalFiles)
	assert.Contains(t, final.Error, "diarization failed")

	dl, err := http.Get(ts.URL + "/jobs/" + created["job_id"] + "/download")
	require.NoError(t, err)
	var body map[string]string
	decodeJSON(t, dl, &body)
	assert.Equal(t, http.StatusConflict, dl.StatusCode)
	assert.Equal(t, "job is not completed yet", body["detail"])
}

func TestDownloadBeforeCompletionConflicts(t *testing.T) {
	eng := &stubEngine{block: make(chan struct{})}
	_, ts := newTestServer(t, eng, "")
	resp := submit(t, ts, "tok", map[string]string{"a.wav": "x"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var created map[string]string
	decodeJSON(t, resp, &created)
	id := created["job_id"]

	dl, err := http.Get(ts.URL + "/jobs/" + id + "/download")
	require.NoError(t, err)
	dl.Body.Close()
	assert.Equal(t, http.StatusConflict, dl.StatusCode)

	// The conflict must not have consumed the record.
	_, code := getStatus(t, ts, id)
	assert.Equal(t, http.StatusOK, code)

	close(eng.block)
	waitForTerminal(t, ts, id)
}

func TestStatusUnknownJob(t *testing.T) {
	_, ts := newTestServer(t, &stubEngine{}, "")
	_, code := getStatus(t, ts, "nope")
	assert.Equal(t, http.StatusNotFound, code)

	dl, err := http.Get(ts.URL + "/jobs/nope/download")
	require.NoError(t, err)
	dl.Body.Close()
	assert.Equal(t, http.StatusNotFound, dl.StatusCode)
}

func TestHealthAndStats(t *testing.T) {
	_, ts := newTestServer(t, &stubEngine{}, "")

	health, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(health.Body)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
	assert.Equal(t, "ok\n", string(body))

	stats, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	var snap metrics.Snapshot
	decodeJSON(t, stats, &snap)
	assert.Equal(t, http.StatusOK, stats.StatusCode)
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestIndexPage(t *testing.T) {
	_, ts := newTestServer(t, &stubEngine{}, "")
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "scribeq")
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"talk.wav":            "talk.wav",
		"../../etc/passwd":    "passwd",
		`C:\music\song.mp3`:   "song.mp3",
		"dir/nested/file.ogg": "file.ogg",
		"":                    "audio",
		".":                   "audio",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeName(in), "safeName(%q)", in)
	}
}
