package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/stagezero-42/whisper-api-service/internal/format"
	"github.com/stagezero-42/whisper-api-service/internal/jobs"
	"github.com/stagezero-42/whisper-api-service/internal/service"
	"github.com/stagezero-42/whisper-api-service/pkg/file"
	"github.com/stagezero-42/whisper-api-service/pkg/log"
)

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.HTTP.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "malformed or oversized multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	upload, header, err := r.FormFile("audio_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no audio_file part in the request")
		return
	}
	defer upload.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "no selected file")
		return
	}
	ext := file.ExtLower(header.Filename)
	if ext == "" || !s.cfg.ExtensionAllowed(ext) {
		writeError(w, http.StatusBadRequest, "file type not allowed")
		return
	}

	inputRef, err := s.stageUpload(upload, ext)
	if err != nil {
		log.Error("Failed to stage upload %s: %v", header.Filename, err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	params, verr := parseParameters(r)
	if verr != nil {
		// The job is never enqueued on a validation failure, so the staged
		// file must not be left behind.
		if err := os.Remove(inputRef); err != nil {
			log.Error("Failed to clean up staged upload %s: %v", inputRef, err)
		}
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	}

	job := s.queue.Enqueue(jobs.EnqueueRequest{
		InputRef:         inputRef,
		OriginalFilename: header.Filename,
		Parameters:       params,
	})
	log.Info("Accepted job %s for %s (model=%s)", job.ID, header.Filename, params.ModelName)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id":    job.ID,
		"status_url": "/status/" + job.ID,
	})
}

// stageUpload copies the upload into the staging directory under a fresh
// unique name. The returned path is owned by the job from here on.
func (s *Server) stageUpload(upload multipart.File, ext string) (string, error) {
	if err := os.MkdirAll(s.cfg.Storage.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	path := filepath.Join(s.cfg.Storage.UploadDir, uuid.NewString()+"."+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, upload); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write staged file: %w", err)
	}
	return path, nil
}

func parseParameters(r *http.Request) (jobs.Parameters, *service.Error) {
	params := jobs.Parameters{
		ModelName:     r.FormValue("model_name"),
		Language:      r.FormValue("language"),
		InitialPrompt: r.FormValue("initial_prompt"),
	}

	params.Task = r.FormValue("task")
	if params.Task == "" {
		params.Task = "transcribe"
	}
	if params.Task != "transcribe" && params.Task != "translate" {
		return params, service.NewError(service.ErrValidation,
			fmt.Sprintf("Invalid task value: %s", params.Task))
	}

	temperatureStr := r.FormValue("temperature")
	if temperatureStr == "" {
		temperatureStr = "0.0"
	}
	temperature, err := strconv.ParseFloat(temperatureStr, 64)
	if err != nil {
		return params, service.NewError(service.ErrValidation,
			fmt.Sprintf("Invalid temperature value: %s", temperatureStr))
	}
	if temperature < 0 {
		return params, service.NewError(service.ErrValidation,
			fmt.Sprintf("Invalid temperature value: %s (must be non-negative)", temperatureStr))
	}
	params.Temperature = temperature

	bestOfStr := r.FormValue("best_of")
	if bestOfStr == "" {
		bestOfStr = "5"
	}
	bestOf, err := strconv.Atoi(bestOfStr)
	if err != nil {
		return params, service.NewError(service.ErrValidation,
			fmt.Sprintf("Invalid best_of value: %s", bestOfStr))
	}
	if bestOf < 1 {
		return params, service.NewError(service.ErrValidation,
			fmt.Sprintf("Invalid best_of value: %s (must be positive)", bestOfStr))
	}
	params.BestOf = bestOf

	params.WordTimestamps = parseFormBool(r.FormValue("word_timestamps"))

	switch r.FormValue("verbose_output") {
	case "true":
		params.Verbose = jobs.VerbosityVerbose
	case "false":
		params.Verbose = jobs.VerbosityQuiet
	default:
		params.Verbose = jobs.VerbosityDefault
	}

	params.OutputFormat = r.FormValue("output_format")
	if params.OutputFormat == "" {
		params.OutputFormat = format.FormatJSON
	}
	if !format.Known(params.OutputFormat) {
		return params, service.NewError(service.ErrValidation,
			fmt.Sprintf("Invalid output_format value: %s", params.OutputFormat))
	}

	params.Simplified = parseFormBool(r.FormValue("simplified_output"))

	return params, nil
}

// parseFormBool mirrors HTML form boolean conventions: "true", "on" and "1"
// are true, everything else is false.
func parseFormBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "on", "1":
		return true
	default:
		return false
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/status/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing task id")
		return
	}

	job, ok := s.queue.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	outputFormat := job.Parameters.OutputFormat
	if q := r.URL.Query().Get("output_format"); q != "" {
		outputFormat = q
	}
	if outputFormat == "" {
		outputFormat = format.FormatJSON
	}
	if !format.Known(outputFormat) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid output_format value: %s", outputFormat))
		return
	}

	simplified := job.Parameters.Simplified
	if q := r.URL.Query().Get("simplified_output"); q != "" {
		simplified = parseFormBool(q)
	}

	resp := statusResponse{
		TaskID: job.ID,
		Status: job.Status,
	}
	switch job.Status {
	case jobs.StatusSucceeded:
		resp.Result = buildResult(job.Result, outputFormat, simplified)
	case jobs.StatusFailed:
		resp.ErrorInfo = &job.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	TaskID    string      `json:"task_id"`
	Status    jobs.Status `json:"status"`
	Result    any         `json:"result"`
	ErrorInfo *string     `json:"error_info"`
}

// buildResult applies the formatter to a finished transcript. Every
// format/simplified combination is defined here, including empty segment
// lists; none is an error.
func buildResult(t *jobs.Transcript, outputFormat string, simplified bool) map[string]any {
	if t == nil {
		t = &jobs.Transcript{}
	}

	if simplified {
		var formatted any
		switch outputFormat {
		case format.FormatSRT:
			formatted = format.SRTMap(t.Segments)
		case format.FormatVTT:
			formatted = format.VTTMap(t.Segments)
		case format.FormatTSV:
			formatted = format.TSV(t.Segments)
		default:
			// txt and json both reduce to the plain text in simplified mode.
			formatted = t.FullText
		}
		return map[string]any{"formatted_output": formatted}
	}

	ret := map[string]any{"transcription_details": t}
	switch outputFormat {
	case format.FormatText:
		ret["formatted_output"] = t.FullText
	case format.FormatSRT:
		ret["formatted_output"] = format.SRT(t.Segments)
	case format.FormatVTT:
		ret["formatted_output"] = format.VTT(t.Segments)
	case format.FormatTSV:
		ret["formatted_output"] = format.TSV(t.Segments)
	}
	// json: the details are already the main content.
	return ret
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.queue.List())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
