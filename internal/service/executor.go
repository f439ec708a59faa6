package service

import (
	"context"
	"fmt"
	"os"

	"github.com/stagezero-42/whisper-api-service/internal/jobs"
	"github.com/stagezero-42/whisper-api-service/pkg/log"
)

// Transcriber is what the worker needs from the transcription adapter.
type Transcriber interface {
	Transcribe(ctx context.Context, audioRef string, params jobs.Parameters) (*jobs.Transcript, error)
}

// NewExecutor builds the queue executor around the adapter. It guarantees two
// things the queue relies on: a panic in the adapter becomes an ordinary
// failure instead of killing the worker loop, and the input artifact is
// deleted once the job is done, on success and failure alike.
func NewExecutor(transcriber Transcriber) jobs.Executor {
	return func(ctx context.Context, job *jobs.Job) (result *jobs.Transcript, err error) {
		defer removeInput(job)
		defer func() {
			if r := recover(); r != nil {
				result = nil
				err = NewError(ErrUnknown, fmt.Sprintf("transcription aborted: %v", r))
			}
		}()

		result, err = transcriber.Transcribe(ctx, job.InputRef, job.Parameters)
		return result, err
	}
}

// removeInput deletes the staged upload. Deletion failure is logged, never
// fatal; an already-missing file is not an error.
func removeInput(job *jobs.Job) {
	if job == nil || job.InputRef == "" {
		return
	}
	if err := os.Remove(job.InputRef); err != nil {
		if os.IsNotExist(err) {
			log.Debug("Input %s for job %s already gone", job.InputRef, job.ID)
			return
		}
		log.Error("Failed to delete input %s for job %s: %v", job.InputRef, job.ID, err)
		return
	}
	log.Debug("Deleted input %s for job %s", job.InputRef, job.ID)
}
