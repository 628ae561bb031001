package worker

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is the private, job-scoped directory tree holding staged
// uploads and engine output. It is created at submission and removed
// unconditionally when the worker finishes; it never outlives the job.
type Workspace struct {
	Root      string
	InputDir  string
	OutputDir string
}

// NewWorkspace creates the working area for a job under baseDir (the OS
// temp directory when empty).
func NewWorkspace(baseDir, jobID string) (Workspace, error) {
	root, err := os.MkdirTemp(baseDir, "scribeq_"+jobID+"_")
	if err != nil {
		return Workspace{}, fmt.Errorf("create working area: %w", err)
	}

	ws := Workspace{
		Root:      root,
		InputDir:  filepath.Join(root, "input"),
		OutputDir: filepath.Join(root, "output"),
	}
	for _, dir := range []string{ws.InputDir, ws.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			os.RemoveAll(root)
			return Workspace{}, fmt.Errorf("create working area: %w", err)
		}
	}
	return ws, nil
}

// Remove deletes the whole working area recursively.
func (w Workspace) Remove() error {
	if w.Root == "" {
		return nil
	}
	return os.RemoveAll(w.Root)
}
