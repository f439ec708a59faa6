package jobs

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CanTransitionTo encodes the pending -> running -> {succeeded, failed} state
// machine. Terminal states accept nothing.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusSucceeded || next == StatusFailed
	default:
		return false
	}
}

// Verbosity is the tri-state verbose preference forwarded to the model.
type Verbosity string

const (
	VerbosityDefault Verbosity = "default"
	VerbosityQuiet   Verbosity = "quiet"
	VerbosityVerbose Verbosity = "verbose"
)

// Parameters is the immutable transcription request record captured at
// submission time. OutputFormat and Simplified are defaults for status
// formatting; they do not influence the transcription itself.
type Parameters struct {
	ModelName      string    `json:"model_name"`
	Task           string    `json:"task"`
	Language       string    `json:"language,omitempty"`
	InitialPrompt  string    `json:"initial_prompt,omitempty"`
	Temperature    float64   `json:"temperature"`
	BestOf         int       `json:"best_of"`
	WordTimestamps bool      `json:"word_timestamps"`
	Verbose        Verbosity `json:"verbose"`
	OutputFormat   string    `json:"output_format"`
	Simplified     bool      `json:"simplified_output"`
}

// Segment is one time-bounded span of transcribed text. Start and End are
// offsets in seconds from the beginning of the audio.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the raw result produced by the model.
type Transcript struct {
	FullText string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

type EnqueueRequest struct {
	InputRef         string
	OriginalFilename string
	Parameters       Parameters
}

// Job is one transcription request's full lifecycle record. Result and Error
// are mutually exclusive and only set once the job is terminal.
type Job struct {
	ID               string      `json:"id"`
	InputRef         string      `json:"input_ref"`
	OriginalFilename string      `json:"original_filename,omitempty"`
	Parameters       Parameters  `json:"parameters"`
	Status           Status      `json:"status"`
	Result           *Transcript `json:"result,omitempty"`
	Error            string      `json:"error,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
