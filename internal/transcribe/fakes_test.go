package transcribe

import (
	"context"
	"errors"
	"sync"

	"github.com/stagezero-42/whisper-api-service/internal/jobs"
)

type fakeModel struct {
	device string

	mu       sync.Mutex
	lastOpts Options
	result   *jobs.Transcript
	err      error
	panicMsg string
}

func (m *fakeModel) Device() string { return m.device }

func (m *fakeModel) Transcribe(_ context.Context, _ string, opts Options) (*jobs.Transcript, error) {
	m.mu.Lock()
	m.lastOpts = opts
	m.mu.Unlock()
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &jobs.Transcript{FullText: "ok"}, nil
}

func (m *fakeModel) opts() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}

// fakeEngine hands out fakeModels and counts loads per cache key. Devices
// listed in failDevices refuse to load.
type fakeEngine struct {
	mu          sync.Mutex
	loads       map[string]int
	failDevices map[string]bool
	models      map[string]*fakeModel

	// loadGate, when set, blocks loads until released. Used to widen the
	// window for concurrency tests.
	loadGate chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		loads:       make(map[string]int),
		failDevices: make(map[string]bool),
		models:      make(map[string]*fakeModel),
	}
}

func (e *fakeEngine) Load(_ context.Context, modelName, device string) (Model, error) {
	e.mu.Lock()
	key := cacheKey(modelName, device)
	e.loads[key]++
	gate := e.loadGate
	fail := e.failDevices[device]
	e.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		return nil, errors.New("no such device")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	model, ok := e.models[key]
	if !ok {
		model = &fakeModel{device: device}
		e.models[key] = model
	}
	return model, nil
}

func (e *fakeEngine) loadCount(modelName, device string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads[cacheKey(modelName, device)]
}
