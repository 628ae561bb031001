package client

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAudio(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("audio-bytes"), 0o644))
	return p
}

func TestSubmit(t *testing.T) {
	var gotToken string
	var gotFiles []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/jobs", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotToken = r.FormValue("token")
		for _, fh := range r.MultipartForm.File["files"] {
			gotFiles = append(gotFiles, fh.Filename)
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"job_id":"abc123"}`))
	}))
	defer ts.Close()

	c := New(ts.URL)
	id, err := c.Submit(context.Background(), []string{
		writeAudio(t, "one.wav"),
		writeAudio(t, "two.mp3"),
	}, "hf_tok")
	require.NoError(t, err)

	assert.Equal(t, "abc123", id)
	assert.Equal(t, "hf_tok", gotToken)
	assert.Equal(t, []string{"one.wav", "two.mp3"}, gotFiles)
}

func TestSubmitServerRejection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"missing credential token"}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	_, err := New(ts.URL).Submit(context.Background(), []string{writeAudio(t, "a.wav")}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing credential token")
}

func TestStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jobs/abc/status", r.URL.Path)
		w.Write([]byte(`{"job_id":"abc","status":"running","message":"[1/2] a.wav - transcribing","total_files":2,"done_files":0,"current_file":"a.wav","error":""}`))
	}))
	defer ts.Close()

	status, err := New(ts.URL).Status(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, 2, status.TotalFiles)
	assert.False(t, status.Terminal())
}

func TestStatusNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"job not found"}`, http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := New(ts.URL).Status(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDownload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jobs/abc/download", r.URL.Path)
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("zip-bytes"))
	}))
	defer ts.Close()

	var buf bytes.Buffer
	require.NoError(t, New(ts.URL).Download(context.Background(), "abc", &buf))
	assert.Equal(t, "zip-bytes", buf.String())
}

func TestDownloadConflict(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"job is not completed yet"}`, http.StatusConflict)
	}))
	defer ts.Close()

	err := New(ts.URL).Download(context.Background(), "abc", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, JobStatus{Status: "completed"}.Terminal())
	assert.True(t, JobStatus{Status: "failed"}.Terminal())
	assert.False(t, JobStatus{Status: "queued"}.Terminal())
	assert.False(t, JobStatus{Status: "running"}.Terminal())
}
