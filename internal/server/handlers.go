package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kweber/scribeq/internal/job"
	"github.com/kweber/scribeq/internal/metrics"
	"github.com/kweber/scribeq/internal/worker"
	"github.com/kweber/scribeq/web"
)

// allowedExtensions is the accepted set of upload extensions. Files with
// no extension at all are permitted.
var allowedExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true,
	".flac": true, ".ogg": true, ".aac": true,
}

// statusResponse is the wire shape of a status poll.
type statusResponse struct {
	ID          string `json:"job_id"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	TotalFiles  int    `json:"total_files"`
	DoneFiles   int    `json:"done_files"`
	CurrentFile string `json:"current_file"`
	Error       string `json:"error"`
}

func statusFromSnapshot(snap job.Snapshot) statusResponse {
	return statusResponse{
		ID:          snap.ID,
		Status:      string(snap.Status),
		Message:     snap.Message,
		TotalFiles:  snap.TotalFiles,
		DoneFiles:   snap.DoneFiles,
		CurrentFile: snap.CurrentFile,
		Error:       snap.Error,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

// handleSubmit accepts a multipart batch, stages every file into a fresh
// working area, and only then publishes the job record and starts its
// worker. Validation and staging failures leave no record behind.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	token := strings.TrimSpace(r.FormValue("token"))
	if token == "" {
		token = strings.TrimSpace(r.FormValue("hf_token")) // legacy field name
	}
	if token == "" {
		token = s.defaultToken
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing credential token")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["audio_files"] // legacy field name
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no audio files uploaded")
		return
	}

	for _, fh := range files {
		name := safeName(fh.Filename)
		if ext := strings.ToLower(filepath.Ext(name)); ext != "" && !allowedExtensions[ext] {
			writeError(w, http.StatusBadRequest, "unsupported file type: "+name)
			return
		}
	}

	id := job.NewID()
	ws, err := worker.NewWorkspace(s.workDir, id)
	if err != nil {
		s.logger.Error("failed to create working area", "error", err)
		writeError(w, http.StatusInternalServerError, "could not stage uploads")
		return
	}

	inputs, err := s.stageFiles(ws, files)
	if err != nil {
		ws.Remove()
		s.logger.Error("failed to stage uploads", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not stage uploads")
		return
	}

	rec := job.NewRecordWithID(id)
	s.store.Put(rec)
	go s.worker.Run(context.Background(), rec, ws, inputs, token)

	s.metrics.RecordTiming(metrics.OpSubmit, time.Since(start))
	s.logger.Info("job accepted", "job_id", id, "files", len(inputs))
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

// stageFiles copies every upload into the workspace's input directory,
// preserving submission order.
func (s *Server) stageFiles(ws worker.Workspace, files []*multipart.FileHeader) ([]string, error) {
	inputs := make([]string, 0, len(files))
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}

		dstPath := filepath.Join(ws.InputDir, safeName(fh.Filename))
		dst, err := os.Create(dstPath)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("create %s: %w", dstPath, err)
		}
		_, err = io.Copy(dst, src)
		src.Close()
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", dstPath, err)
		}
		inputs = append(inputs, dstPath)
	}
	return inputs, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, statusFromSnapshot(rec.Snapshot()))
}

// handleDownload serves the result archive and consumes the record: a
// job can be downloaded successfully at most once.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	snap := rec.Snapshot()
	if snap.Status != job.StatusCompleted || len(snap.Bundle) == 0 {
		writeError(w, http.StatusConflict, "job is not completed yet")
		return
	}

	// Evict before writing: the bytes are already in hand, and the
	// record must not be downloadable twice.
	s.store.Remove(id)

	start := time.Now()
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "transcripts_"+id+".zip"))
	w.WriteHeader(http.StatusOK)
	w.Write(snap.Bundle)
	s.metrics.RecordTiming(metrics.OpDownload, time.Since(start))
	s.logger.Info("result delivered", "job_id", id, "bundle_bytes", len(snap.Bundle))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) indexHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := web.Content.ReadFile("index.html")
		if err != nil {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	})
}

// safeName strips any directory components from an uploaded filename.
func safeName(name string) string {
	name = filepath.Base(filepath.Clean(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "audio"
	}
	return name
}
