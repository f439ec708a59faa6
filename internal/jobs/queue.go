package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stagezero-42/whisper-api-service/pkg/log"
)

// Executor runs one claimed job to completion and returns the transcript, or
// an error describing why the job failed.
type Executor func(ctx context.Context, job *Job) (*Transcript, error)

type Queue struct {
	workerCount int
	maxJobs     int
	store       Store

	persistRetries int
	persistBackoff time.Duration

	mu         sync.RWMutex
	jobs       map[string]*Job
	started    bool
	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewQueue(workerCount int, store Store) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	q := &Queue{
		workerCount:    workerCount,
		maxJobs:        1000,
		store:          store,
		persistRetries: 3,
		persistBackoff: 100 * time.Millisecond,
		jobs:           make(map[string]*Job),
		pendingIDs:     make(chan string, 1024),
		stopCh:         make(chan struct{}),
	}
	q.hydrateFromStore(context.Background())
	return q
}

// SetMaxJobs caps how many jobs are retained in memory; terminal jobs beyond
// the cap are pruned oldest-first.
func (q *Queue) SetMaxJobs(n int) {
	q.mu.Lock()
	q.maxJobs = n
	q.mu.Unlock()
}

// Enqueue registers a new pending job. Job ids are random and never reused.
func (q *Queue) Enqueue(req EnqueueRequest) *Job {
	now := time.Now()
	job := &Job{
		ID:               uuid.NewString(),
		InputRef:         req.InputRef,
		OriginalFilename: req.OriginalFilename,
		Parameters:       req.Parameters,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	started := q.started
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	if started {
		q.enqueuePendingID(job.ID)
	}
	return snapshot
}

func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.RLock()
	job, ok := q.jobs[id]
	q.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

func (q *Queue) List() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ret := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret
}

func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true

	pending := make([]string, 0)
	for id, job := range q.jobs {
		if job.Status == StatusPending {
			pending = append(pending, id)
		}
	}
	q.mu.Unlock()

	for _, id := range pending {
		q.enqueuePendingID(id)
	}

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(exec)
	}
}

func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.wg.Wait()
	})
}

// worker claims pending jobs one at a time. Executor failures mark the job
// failed and the loop keeps going; it must survive any number of them.
func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.pendingIDs:
			job, ok := q.markRunning(id)
			if !ok {
				continue
			}

			result, err := exec(context.Background(), job)
			if err != nil {
				log.Error("Job %s failed: %v", id, err)
				q.markFailed(id, err)
				continue
			}
			q.markSucceeded(id, result)
			log.Info("Job %s succeeded", id)
		}
	}
}

func (q *Queue) enqueuePendingID(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		go func() { q.pendingIDs <- id }()
	}
}

// markRunning claims the job. The status check under the lock is what makes
// a claim exclusive: a second claimant sees a non-pending status and backs off.
func (q *Queue) markRunning(id string) (*Job, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || !job.Status.CanTransitionTo(StatusRunning) {
		q.mu.Unlock()
		return nil, false
	}
	job.Status = StatusRunning
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	return snapshot, true
}

func (q *Queue) markSucceeded(id string, result *Transcript) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || !job.Status.CanTransitionTo(StatusSucceeded) {
		q.mu.Unlock()
		return
	}
	job.Status = StatusSucceeded
	job.Result = result
	job.Error = ""
	job.UpdatedAt = time.Now()
	pruned := q.pruneTerminalJobsLocked()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	q.deleteJobsFromStore(pruned)
}

func (q *Queue) markFailed(id string, err error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || !job.Status.CanTransitionTo(StatusFailed) {
		q.mu.Unlock()
		return
	}
	job.Status = StatusFailed
	job.Result = nil
	if err != nil {
		job.Error = err.Error()
	}
	job.UpdatedAt = time.Now()
	pruned := q.pruneTerminalJobsLocked()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	q.deleteJobsFromStore(pruned)
}

func (q *Queue) pruneTerminalJobsLocked() []string {
	if q.maxJobs <= 0 || len(q.jobs) <= q.maxJobs {
		return nil
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(q.jobs))
	for id, job := range q.jobs {
		if job == nil || !job.Status.Terminal() {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: job.UpdatedAt})
	}
	if len(terminal) == 0 {
		return nil
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := len(q.jobs) - q.maxJobs
	if toRemove <= 0 {
		return nil
	}
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}

	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		delete(q.jobs, terminal[i].id)
		pruned = append(pruned, terminal[i].id)
	}
	return pruned
}

func (q *Queue) deleteJobsFromStore(ids []string) {
	if q.store == nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if err := q.store.DeleteJob(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned job %s from store: %v", id, err)
		}
	}
}

func (q *Queue) hydrateFromStore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	now := time.Now()
	toPersist := make([]*Job, 0)
	q.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		job := cloneJob(raw)
		// A job that was mid-flight when the process died is re-run from
		// scratch; its previous worker is gone.
		if job.Status == StatusRunning {
			job.Status = StatusPending
			job.UpdatedAt = now
			toPersist = append(toPersist, cloneJob(job))
		}
		q.jobs[job.ID] = job
	}
	q.mu.Unlock()

	for _, job := range toPersist {
		q.persistJob(job)
	}
}

// persistJob writes through to the store, retrying with backoff so a briefly
// unavailable store does not lose a state transition. After the final attempt
// the error is logged and the in-memory state remains authoritative.
func (q *Queue) persistJob(job *Job) {
	if q.store == nil || job == nil {
		return
	}

	backoff := q.persistBackoff
	var err error
	for attempt := 0; attempt <= q.persistRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		if err = q.store.UpsertJob(context.Background(), job); err == nil {
			return
		}
	}
	log.Error("Failed to persist job %s after %d attempts: %v", job.ID, q.persistRetries+1, err)
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	if job.Result != nil {
		result := *job.Result
		result.Segments = append([]Segment(nil), job.Result.Segments...)
		tmp.Result = &result
	}
	return &tmp
}
