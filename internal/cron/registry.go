package cron

import (
	"context"
	"sync"
	"time"
)

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds jobs in run order with an optional minimum spacing per job.
// A second job with an existing name is ignored. Last-run times live in
// memory, so spacing is per process.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
}

// NewRegistry registers jobs that run on every cycle.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

func (r *Registry) Register(job Job) {
	r.RegisterEvery(job, 0)
}

// RegisterEvery adds job so it runs at most once per every. Zero means every cycle.
func (r *Registry) RegisterEvery(job Job, every time.Duration) {
	if job == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.job.Name() == job.Name() {
			return
		}
	}
	r.entries = append(r.entries, &entry{job: job, every: every})
}

// Due returns the jobs whose spacing has elapsed at now, in run order.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, e := range r.entries {
		if e.every <= 0 || e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.every {
			due = append(due, e.job)
		}
	}
	return due
}

// MarkRan records an attempt so spacing counts from at.
func (r *Registry) MarkRan(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.job.Name() == name {
			e.lastRun = at
			return
		}
	}
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]Job, len(r.entries))
	for i, e := range r.entries {
		jobs[i] = e.job
	}
	return jobs
}

// Names lists job names in run order.
func (r *Registry) Names() []string {
	jobs := r.Jobs()
	names := make([]string, 0, len(jobs))
	for _, job := range jobs {
		names = append(names, job.Name())
	}
	return names
}
