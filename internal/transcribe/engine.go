// Package transcribe wraps the external speech-to-text capability behind an
// Engine interface and adds the pieces the job service needs around it:
// a process-local model cache, a device fallback policy, and parameter
// normalization.
package transcribe

import (
	"context"

	"github.com/stagezero-42/whisper-api-service/internal/jobs"
)

// Options are the per-call knobs forwarded to the model. FP16 is derived from
// the device the model actually loaded on, never from the requested device.
type Options struct {
	Task           string
	Language       string
	InitialPrompt  string
	Temperature    float64
	BestOf         int
	WordTimestamps bool
	Verbose        jobs.Verbosity
	FP16           bool
}

// Model is one loaded model instance bound to a concrete execution device.
type Model interface {
	// Device reports the device the model actually loaded on ("cuda", "cpu").
	Device() string
	Transcribe(ctx context.Context, audioPath string, opts Options) (*jobs.Transcript, error)
}

// Engine is the opaque model-inference capability: load a model variant by
// name onto a device. Its internals are out of scope; only this contract
// matters.
type Engine interface {
	Load(ctx context.Context, modelName, device string) (Model, error)
}
