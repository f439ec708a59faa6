package transcribe

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

// fakeRunner records the invocation and plants a result document in the
// directory the caller asked for via --output_dir.
type fakeRunner struct {
	lastName string
	lastArgs []string

	output string
	stderr string
	err    error
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (string, string, error) {
	r.lastName = name
	r.lastArgs = args
	if r.err != nil {
		return "", r.stderr, r.err
	}
	if r.output != "" {
		outDir := argValue(args, "--output_dir")
		base := filepath.Base(args[0])
		base = base[:len(base)-len(filepath.Ext(base))]
		if err := os.WriteFile(filepath.Join(outDir, base+".json"), []byte(r.output), 0o644); err != nil {
			return "", "", err
		}
	}
	return "", "", nil
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newFakeCLIModel(runner *fakeRunner) *cliModel {
	return &cliModel{
		bin:    "/usr/bin/whisper",
		runner: runner,
		model:  "base",
		device: "cuda",
	}
}

func TestCLIModel_BuildsInvocation(t *testing.T) {
	runner := &fakeRunner{output: `{"text":"hi","language":"en","segments":[]}`}
	model := newFakeCLIModel(runner)

	opts := Options{
		Task:           "translate",
		Language:       "fr",
		InitialPrompt:  "names: Anna",
		Temperature:    0.2,
		BestOf:         3,
		WordTimestamps: true,
		Verbose:        jobs.VerbosityQuiet,
		FP16:           true,
	}
	result, err := model.Transcribe(context.Background(), "/audio/clip.wav", opts)
	require.NoError(t, err)
	assert.Equal(t, "hi", result.FullText)

	assert.Equal(t, "/usr/bin/whisper", runner.lastName)
	assert.Equal(t, "/audio/clip.wav", runner.lastArgs[0])
	assert.Equal(t, "base", argValue(runner.lastArgs, "--model"))
	assert.Equal(t, "cuda", argValue(runner.lastArgs, "--device"))
	assert.Equal(t, "translate", argValue(runner.lastArgs, "--task"))
	assert.Equal(t, "json", argValue(runner.lastArgs, "--output_format"))
	assert.Equal(t, "0.2", argValue(runner.lastArgs, "--temperature"))
	assert.Equal(t, "3", argValue(runner.lastArgs, "--best_of"))
	assert.Equal(t, "True", argValue(runner.lastArgs, "--fp16"))
	assert.Equal(t, "True", argValue(runner.lastArgs, "--word_timestamps"))
	assert.Equal(t, "fr", argValue(runner.lastArgs, "--language"))
	assert.Equal(t, "names: Anna", argValue(runner.lastArgs, "--initial_prompt"))
	assert.Equal(t, "False", argValue(runner.lastArgs, "--verbose"))
}

func TestCLIModel_OmitsUnsetFlags(t *testing.T) {
	runner := &fakeRunner{output: `{"text":"hi","segments":[]}`}
	model := newFakeCLIModel(runner)

	_, err := model.Transcribe(context.Background(), "/audio/clip.wav", Options{
		Task:   "transcribe",
		BestOf: 5,
	})
	require.NoError(t, err)

	assert.NotContains(t, runner.lastArgs, "--language")
	assert.NotContains(t, runner.lastArgs, "--initial_prompt")
	assert.NotContains(t, runner.lastArgs, "--verbose")
	assert.Equal(t, "False", argValue(runner.lastArgs, "--fp16"))
}

func TestCLIModel_ParsesSegments(t *testing.T) {
	runner := &fakeRunner{output: `{
		"text": " hello world ",
		"language": "en",
		"segments": [
			{"start": 0, "end": 1.5, "text": "hello"},
			{"start": 1.5, "end": 3, "text": "world"}
		]
	}`}
	model := newFakeCLIModel(runner)

	result, err := model.Transcribe(context.Background(), "/audio/clip.wav", Options{Task: "transcribe", BestOf: 5})
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.FullText)
	assert.Equal(t, "en", result.Language)
	require.Len(t, result.Segments, 2)
	assert.Equal(t, jobs.Segment{Start: 1.5, End: 3, Text: "world"}, result.Segments[1])
}

func TestCLIModel_SurfacesStderrOnFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1"), stderr: "CUDA out of memory\n"}
	model := newFakeCLIModel(runner)

	_, err := model.Transcribe(context.Background(), "/audio/clip.wav", Options{Task: "transcribe", BestOf: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestCLIModel_MissingOutputDocument(t *testing.T) {
	runner := &fakeRunner{}
	model := newFakeCLIModel(runner)

	_, err := model.Transcribe(context.Background(), "/audio/clip.wav", Options{Task: "transcribe", BestOf: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read whisper output")
}
