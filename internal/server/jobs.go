package server

import (
	"sync"

	"github.com/desertthunder/muzictl/internal/models"
	"github.com/desertthunder/muzictl/internal/shared"
)

// updateBuffer is how many events a job holds before the simulation blocks.
const updateBuffer = 100

// Job is one running import. Its updates channel is consumed by at most one subscriber at a time.
type Job struct {
	ID       string
	Provider string

	updates chan models.ProgressEvent

	mu         sync.Mutex
	subscribed bool
}

func (j *Job) claim() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.subscribed {
		return false
	}
	j.subscribed = true
	return true
}

func (j *Job) release() {
	j.mu.Lock()
	j.subscribed = false
	j.mu.Unlock()
}

// JobStore holds the active jobs by id.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobStore creates an empty store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

// Create registers a new job for provider under a fresh uuid.
func (s *JobStore) Create(provider string) *Job {
	job := &Job{
		ID:       shared.GenerateID(),
		Provider: provider,
		updates:  make(chan models.ProgressEvent, updateBuffer),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job
}

// Get looks up a job by id.
func (s *JobStore) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Remove forgets a job. Later subscriptions to it get 404.
func (s *JobStore) Remove(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// Len returns the number of active jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
