package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kweber/scribeq/internal/job"
)

func TestStreamPushesUntilTerminal(t *testing.T) {
	eng := &stubEngine{block: make(chan struct{})}
	_, ts := newTestServer(t, eng, "")

	resp := submit(t, ts, "tok", map[string]string{"a.wav": "x"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var created map[string]string
	decodeJSON(t, resp, &created)
	id := created["job_id"]

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/jobs/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// Let the engine finish while we are subscribed.
	close(eng.block)

	var last statusResponse
	for {
		var sr statusResponse
		if err := conn.ReadJSON(&sr); err != nil {
			// Normal closure after the terminal snapshot.
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		assert.Equal(t, id, sr.ID)
		if last.Status != "" {
			assert.LessOrEqual(t, last.DoneFiles, sr.DoneFiles, "progress must not regress")
		}
		last = sr
	}

	assert.Equal(t, string(job.StatusCompleted), last.Status)
	assert.Equal(t, 1, last.DoneFiles)
}

func TestStreamUnknownJob(t *testing.T) {
	_, ts := newTestServer(t, &stubEngine{}, "")

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/jobs/nope/stream"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
