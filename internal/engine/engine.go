// Package engine abstracts the external transcription pipeline. The
// service treats it as an opaque long-running operation: one input file
// in, one transcript file out, with optional stage notifications along
// the way.
package engine

import "context"

// StageFunc receives short human-readable stage labels while a run is in
// progress. Implementations may call it zero or more times; it must not
// be called after Run returns.
type StageFunc func(stage string)

// Engine runs the transcription pipeline for a single file. It either
// writes the transcript to outputPath or returns an error; there is no
// partial success.
type Engine interface {
	Run(ctx context.Context, inputPath, outputPath, token string, onStage StageFunc) error
}
