// Package client provides an HTTP client for the scribeq server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Errors mapping the server's lookup and state-conflict responses.
var (
	ErrNotFound = errors.New("job not found")
	ErrNotReady = errors.New("job is not completed yet")
)

// Client talks to a scribeq server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client. If baseURL is empty, uses the SCRIBEQ_SERVER_URL
// env var or defaults to localhost:8134. The timeout can be configured
// via SCRIBEQ_CLIENT_TIMEOUT (default 15m: uploads can be large).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("SCRIBEQ_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8134"
	}

	timeout := 15 * time.Minute
	if t := os.Getenv("SCRIBEQ_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// JobStatus is the wire shape of a status poll.
type JobStatus struct {
	ID          string `json:"job_id"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	TotalFiles  int    `json:"total_files"`
	DoneFiles   int    `json:"done_files"`
	CurrentFile string `json:"current_file"`
	Error       string `json:"error"`
}

// Terminal reports whether the job can still make progress.
func (s JobStatus) Terminal() bool {
	return s.Status == "completed" || s.Status == "failed"
}

// apiError is the server's JSON error payload.
type apiError struct {
	Detail string `json:"detail"`
}

func responseError(resp *http.Response) error {
	var apiErr apiError
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Detail != "" {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Detail)
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", ErrNotReady, apiErr.Detail)
		}
		return fmt.Errorf("server error: %s", apiErr.Detail)
	}
	return fmt.Errorf("server error: %s", resp.Status)
}

// Submit uploads the given audio files as one batch and returns the new
// job id. The token may be empty when the server has a default.
func (c *Client) Submit(ctx context.Context, paths []string, token string) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeSubmitForm(mw, paths, token)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", pr)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", responseError(resp)
	}

	var created struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return created.JobID, nil
}

func writeSubmitForm(mw *multipart.Writer, paths []string, token string) error {
	if token != "" {
		if err := mw.WriteField("token", token); err != nil {
			return err
		}
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		fw, err := mw.CreateFormFile("files", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(fw, f)
		}
		f.Close()
		if err != nil {
			return fmt.Errorf("upload %s: %w", path, err)
		}
	}
	return nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, id string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+id+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &status, nil
}

// Download streams the result archive to w. The server consumes the job
// on success, so this can succeed at most once per job.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+id+"/download", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	return nil
}
