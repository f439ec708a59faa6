package service

import (
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stagezero-42/whisper-api-service/internal/jobs"
	"github.com/stagezero-42/whisper-api-service/pkg/file"
	"github.com/stagezero-42/whisper-api-service/pkg/log"
)

type jobLister interface {
	List() []*jobs.Job
}

// Janitor sweeps the upload directory for staged files that outlived their
// job. Workers normally delete inputs themselves; the janitor catches what a
// crash or a failed enqueue left behind.
type Janitor struct {
	uploadDir string
	ttl       time.Duration
	lister    jobLister
}

func NewJanitor(uploadDir string, ttl time.Duration, lister jobLister) *Janitor {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Janitor{
		uploadDir: uploadDir,
		ttl:       ttl,
		lister:    lister,
	}
}

// Schedule registers the sweep on c with the given cron expression.
func (j *Janitor) Schedule(c *cron.Cron, expr string) error {
	_, err := c.AddFunc(expr, func() { j.Sweep() })
	return err
}

// Sweep deletes stale files not referenced by any non-terminal job and
// returns how many were removed.
func (j *Janitor) Sweep() int {
	stale, err := file.FindOlderThan(j.uploadDir, time.Now().Add(-j.ttl))
	if err != nil {
		log.Error("Janitor failed to scan %s: %v", j.uploadDir, err)
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	active := make(map[string]struct{})
	if j.lister != nil {
		for _, job := range j.lister.List() {
			if !job.Status.Terminal() {
				active[job.InputRef] = struct{}{}
			}
		}
	}

	removed := 0
	for _, path := range stale {
		if _, ok := active[path]; ok {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Error("Janitor failed to delete %s: %v", path, err)
			continue
		}
		removed++
		log.Info("Janitor deleted stale upload %s", path)
	}
	return removed
}
