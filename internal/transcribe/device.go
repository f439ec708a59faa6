package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/stagezero-42/whisper-api-service/internal/service"
	"github.com/stagezero-42/whisper-api-service/pkg/log"
)

// DevicePolicy encodes "try the preferred device, else fall back once, else
// fail". A failure on the fallback device is terminal for the call.
type DevicePolicy struct {
	Preferred string
	Fallback  string
}

// DeviceAttempt records the outcome of one load attempt during resolution.
type DeviceAttempt struct {
	Device string
	Err    error
}

func (p DevicePolicy) devices() []string {
	ret := []string{p.Preferred}
	if p.Fallback != "" && p.Fallback != p.Preferred {
		ret = append(ret, p.Fallback)
	}
	return ret
}

// Resolve loads modelName through the cache on the first device that accepts
// it. When every device fails, the returned error is a ModelLoad failure
// carrying each attempt.
func (p DevicePolicy) Resolve(ctx context.Context, cache *ModelCache, modelName string) (Model, error) {
	attempts := make([]DeviceAttempt, 0, 2)
	for _, device := range p.devices() {
		model, err := cache.Get(ctx, modelName, device)
		if err == nil {
			return model, nil
		}
		log.Warn("Failed to load model %q on %s: %v", modelName, device, err)
		attempts = append(attempts, DeviceAttempt{Device: device, Err: err})
	}

	details := make([]string, 0, len(attempts))
	for _, a := range attempts {
		details = append(details, fmt.Sprintf("%s: %v", a.Device, a.Err))
	}
	err := service.NewError(
		service.ErrModelLoad,
		fmt.Sprintf("model %q could not be loaded on any device (%s)", modelName, strings.Join(details, "; ")),
	)
	return nil, err.WithContext("model", modelName)
}
