// Package worker drives the transcription engine over one job's staged
// files, updating the job record as it progresses and producing the
// bundled result.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kweber/scribeq/internal/bundle"
	"github.com/kweber/scribeq/internal/engine"
	"github.com/kweber/scribeq/internal/job"
	"github.com/kweber/scribeq/internal/metrics"
)

// Worker executes jobs one batch at a time; every accepted submission
// gets its own Run goroutine.
type Worker struct {
	engine  engine.Engine
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates a worker bound to an engine.
func New(eng engine.Engine, collector *metrics.Collector, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{engine: eng, metrics: collector, logger: logger}
}

// Run processes the staged input files in order and leaves the record in
// a terminal state. One file's failure aborts the whole batch: a result
// archive silently missing a transcript would be worse than a visible
// batch failure. The working area is deleted on every exit path,
// including a panicking engine; errors never propagate out of Run.
func (w *Worker) Run(ctx context.Context, rec *job.Record, ws Workspace, inputs []string, token string) {
	defer func() {
		if err := ws.Remove(); err != nil {
			w.logger.Warn("failed to remove working area", "job_id", rec.ID, "path", ws.Root, "error", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker panicked", "job_id", rec.ID, "panic", r)
			w.fail(rec, fmt.Errorf("internal panic: %v", r))
		}
	}()

	total := len(inputs)
	rec.Update(func(s *job.State) {
		s.Status = job.StatusRunning
		s.Message = "preparing"
		s.TotalFiles = total
		s.DoneFiles = 0
	})
	w.logger.Info("job started", "job_id", rec.ID, "files", total)

	var outputs []string
	for i, inputPath := range inputs {
		index := i + 1
		name := filepath.Base(inputPath)
		outputPath := filepath.Join(ws.OutputDir, stem(name)+"_text.txt")

		progress := func(stage string) {
			rec.Update(func(s *job.State) {
				s.CurrentFile = name
				s.Message = fmt.Sprintf("[%d/%d] %s - %s", index, total, name, stage)
			})
		}
		progress("starting")

		start := time.Now()
		err := w.engine.Run(ctx, inputPath, outputPath, token, progress)
		w.metrics.RecordTiming(metrics.OpEngineRun, time.Since(start))
		if err != nil {
			w.logger.Error("engine failed", "job_id", rec.ID, "file", name, "error", err)
			w.fail(rec, err)
			return
		}

		outputs = append(outputs, outputPath)
		rec.Update(func(s *job.State) {
			s.DoneFiles = index
			s.Message = fmt.Sprintf("[%d/%d] %s - done", index, total, name)
		})
	}

	start := time.Now()
	archive, err := bundle.Build(outputs)
	w.metrics.RecordTiming(metrics.OpBundle, time.Since(start))
	if err != nil {
		w.logger.Error("bundling failed", "job_id", rec.ID, "error", err)
		w.fail(rec, err)
		return
	}

	rec.Update(func(s *job.State) {
		s.Status = job.StatusCompleted
		s.Bundle = archive
		s.Message = "all done"
	})
	w.logger.Info("job completed", "job_id", rec.ID, "files", total, "bundle_bytes", len(archive))
}

func (w *Worker) fail(rec *job.Record, cause error) {
	rec.Update(func(s *job.State) {
		s.Status = job.StatusFailed
		s.Error = cause.Error()
		s.Message = "processing failed"
	})
}

// stem strips the final extension from a file name.
func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
