package cron

import "context"

// Job is a unit of scheduled work run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register ignores nil jobs.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
