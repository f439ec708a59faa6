package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagezero-42/whisper-api-service/internal/jobs"
)

type stubTranscriber struct {
	result   *jobs.Transcript
	err      error
	panicMsg string
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ string, _ jobs.Parameters) (*jobs.Transcript, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.result, s.err
}

func stageInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.wav")
	require.NoError(t, os.WriteFile(path, []byte("riff"), 0o644))
	return path
}

func TestExecutor_DeletesInputOnSuccess(t *testing.T) {
	input := stageInput(t)
	exec := NewExecutor(&stubTranscriber{result: &jobs.Transcript{FullText: "hello"}})

	result, err := exec(context.Background(), &jobs.Job{ID: "j1", InputRef: input})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "hello", result.FullText)
	assert.NoFileExists(t, input)
}

func TestExecutor_DeletesInputOnFailure(t *testing.T) {
	input := stageInput(t)
	exec := NewExecutor(&stubTranscriber{err: NewError(ErrTranscription, "decode failed")})

	result, err := exec(context.Background(), &jobs.Job{ID: "j2", InputRef: input})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsErrorType(err, ErrTranscription))
	assert.NoFileExists(t, input)
}

func TestExecutor_PanicBecomesFailure(t *testing.T) {
	input := stageInput(t)
	exec := NewExecutor(&stubTranscriber{panicMsg: "index out of range"})

	result, err := exec(context.Background(), &jobs.Job{ID: "j3", InputRef: input})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsErrorType(err, ErrUnknown))
	assert.Contains(t, err.Error(), "transcription aborted")
	assert.Contains(t, err.Error(), "index out of range")
	assert.NoFileExists(t, input)
}

func TestExecutor_MissingInputIsNotFatal(t *testing.T) {
	exec := NewExecutor(&stubTranscriber{result: &jobs.Transcript{FullText: "ok"}})

	job := &jobs.Job{ID: "j4", InputRef: filepath.Join(t.TempDir(), "gone.wav")}
	result, err := exec(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.FullText)
}

func TestExecutor_PassthroughOfPlainErrors(t *testing.T) {
	input := stageInput(t)
	cause := errors.New("disk on fire")
	exec := NewExecutor(&stubTranscriber{err: cause})

	_, err := exec(context.Background(), &jobs.Job{ID: "j5", InputRef: input})
	require.ErrorIs(t, err, cause)
}
