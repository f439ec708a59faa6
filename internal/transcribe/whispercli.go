package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stagezero-42/whisper-api-service/internal/jobs"
)

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// CLIEngine runs the whisper command-line tool as the model-inference
// capability. Each "model" is just the binary bound to a model name and
// device; the heavy lifting happens per invocation.
type CLIEngine struct {
	bin    string
	runner commandRunner
}

func NewCLIEngine(bin string) *CLIEngine {
	if bin == "" {
		bin = "whisper"
	}
	return &CLIEngine{bin: bin, runner: execRunner{}}
}

func (e *CLIEngine) Load(_ context.Context, modelName, device string) (Model, error) {
	path, err := exec.LookPath(e.bin)
	if err != nil {
		return nil, fmt.Errorf("whisper binary %q not found: %w", e.bin, err)
	}
	return &cliModel{
		bin:    path,
		runner: e.runner,
		model:  modelName,
		device: device,
	}, nil
}

type cliModel struct {
	bin    string
	runner commandRunner
	model  string
	device string
}

func (m *cliModel) Device() string {
	return m.device
}

func (m *cliModel) Transcribe(ctx context.Context, audioPath string, opts Options) (*jobs.Transcript, error) {
	outDir, err := os.MkdirTemp("", "whisper-out-")
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{
		audioPath,
		"--model", m.model,
		"--device", m.device,
		"--task", opts.Task,
		"--output_format", "json",
		"--output_dir", outDir,
		"--temperature", strconv.FormatFloat(opts.Temperature, 'f', -1, 64),
		"--best_of", strconv.Itoa(opts.BestOf),
		"--fp16", pythonBool(opts.FP16),
		"--word_timestamps", pythonBool(opts.WordTimestamps),
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if opts.InitialPrompt != "" {
		args = append(args, "--initial_prompt", opts.InitialPrompt)
	}
	switch opts.Verbose {
	case jobs.VerbosityVerbose:
		args = append(args, "--verbose", "True")
	case jobs.VerbosityQuiet:
		args = append(args, "--verbose", "False")
	}

	_, stderr, err := m.runner.Run(ctx, m.bin, args...)
	if err != nil {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("whisper invocation failed: %s", msg)
	}

	return readCLIResult(outDir, audioPath)
}

// cliResult matches the JSON document whisper writes next to the audio name.
type cliResult struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func readCLIResult(outDir, audioPath string) (*jobs.Transcript, error) {
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	data, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}

	var raw cliResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	ret := &jobs.Transcript{
		FullText: strings.TrimSpace(raw.Text),
		Language: raw.Language,
		Segments: make([]jobs.Segment, 0, len(raw.Segments)),
	}
	for _, seg := range raw.Segments {
		ret.Segments = append(ret.Segments, jobs.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return ret, nil
}

func pythonBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
