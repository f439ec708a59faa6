package transcribe

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/stagezero-42/whisper-api-service/internal/jobs"
	"github.com/stagezero-42/whisper-api-service/internal/service"
	"github.com/stagezero-42/whisper-api-service/pkg/log"
)

// Adapter turns a job's parameters into one model invocation. Every failure
// path produces a typed service.Error; nothing escapes untyped.
type Adapter struct {
	cache        *ModelCache
	policy       DevicePolicy
	defaultModel string
}

func NewAdapter(cache *ModelCache, policy DevicePolicy, defaultModel string) *Adapter {
	if defaultModel == "" {
		defaultModel = "base"
	}
	return &Adapter{
		cache:        cache,
		policy:       policy,
		defaultModel: defaultModel,
	}
}

// Preload warms the cache for modelName on the policy's devices. Used at
// startup so the first job does not pay the load cost.
func (a *Adapter) Preload(ctx context.Context, modelName string) error {
	if modelName == "" {
		modelName = a.defaultModel
	}
	_, err := a.policy.Resolve(ctx, a.cache, modelName)
	return err
}

func (a *Adapter) Transcribe(ctx context.Context, audioRef string, params jobs.Parameters) (*jobs.Transcript, error) {
	if _, err := os.Stat(audioRef); err != nil {
		if os.IsNotExist(err) {
			return nil, service.NewError(service.ErrFileRead, "audio file not found").
				WithContext("path", audioRef)
		}
		return nil, service.WrapError(err, service.ErrFileRead, "audio file is not readable").
			WithContext("path", audioRef)
	}

	modelName := params.ModelName
	if modelName == "" {
		modelName = a.defaultModel
	}

	model, err := a.policy.Resolve(ctx, a.cache, modelName)
	if err != nil {
		return nil, err
	}

	opts := buildOptions(params, model.Device())
	log.Debug("Transcribing %s with model %s on %s", audioRef, modelName, model.Device())

	result, err := model.Transcribe(ctx, audioRef, opts)
	if err != nil {
		var svcErr *service.Error
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}
		return nil, service.WrapError(err, service.ErrTranscription, "transcription failed").
			WithContext("model", modelName).
			WithContext("device", model.Device())
	}
	if result == nil {
		return nil, service.NewError(service.ErrTranscription, "model produced no result").
			WithContext("model", modelName)
	}

	if result.Language == "" && strings.TrimSpace(result.FullText) != "" {
		result.Language = whatlanggo.DetectLang(result.FullText).Iso6391()
	}
	return result, nil
}

// buildOptions normalizes the stored parameters for the model call. Blank
// optional fields become unset; a well-formed BCP-47 language hint is
// canonicalized, anything else is passed through as the model may accept
// plain names like "french".
func buildOptions(params jobs.Parameters, actualDevice string) Options {
	task := params.Task
	if task == "" {
		task = "transcribe"
	}
	verbose := params.Verbose
	if verbose == "" {
		verbose = jobs.VerbosityDefault
	}
	return Options{
		Task:           task,
		Language:       normalizeLanguage(params.Language),
		InitialPrompt:  strings.TrimSpace(params.InitialPrompt),
		Temperature:    params.Temperature,
		BestOf:         params.BestOf,
		WordTimestamps: params.WordTimestamps,
		Verbose:        verbose,
		FP16:           actualDevice == "cuda",
	}
}

func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	if tag, err := language.Parse(lang); err == nil {
		return tag.String()
	}
	return lang
}
