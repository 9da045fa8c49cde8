package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// JobStatus is the externally visible state of one registered job.
type JobStatus struct {
	Name           string     `json:"name"`
	Spec           string     `json:"spec,omitempty"`
	Running        bool       `json:"running"`
	Runs           int        `json:"runs"`
	LastStartedAt  *time.Time `json:"last_started_at,omitempty"`
	LastFinishedAt *time.Time `json:"last_finished_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	LastResult     any        `json:"last_result,omitempty"`
	NextRun        *time.Time `json:"next_run,omitempty"`
}

type registryEntry struct {
	status   JobStatus
	schedule cron.Schedule
}

// Registry tracks the jobs known to a process. It is created by the
// process that owns the scheduler and lives until that process exits.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*registryEntry
	location *time.Location
	now      func() time.Time
}

// NewRegistry builds an empty registry evaluating cron specs in loc.
func NewRegistry(loc *time.Location) *Registry {
	if loc == nil {
		loc = time.UTC
	}
	return &Registry{entries: make(map[string]*registryEntry), location: loc, now: time.Now}
}

// Location returns the scheduler time zone.
func (r *Registry) Location() *time.Location {
	return r.location
}

// Register adds a job. An empty spec marks a manual-only job.
func (r *Registry) Register(name, spec string) error {
	var schedule cron.Schedule
	if spec != "" {
		parsed, err := cronParser.Parse(spec)
		if err != nil {
			return fmt.Errorf("jobs: invalid cron spec %q for %s: %w", spec, name, err)
		}
		schedule = parsed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("jobs: %s already registered", name)
	}
	r.entries[name] = &registryEntry{status: JobStatus{Name: name, Spec: spec}, schedule: schedule}
	return nil
}

// Started marks a run as in progress.
func (r *Registry) Started(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entry(name)
	now := r.now()
	entry.status.Running = true
	entry.status.LastStartedAt = &now
}

// Finished records the outcome of a run.
func (r *Registry) Finished(name string, result any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entry(name)
	now := r.now()
	entry.status.Running = false
	entry.status.Runs++
	entry.status.LastFinishedAt = &now
	entry.status.LastResult = result
	entry.status.LastError = ""
	if err != nil {
		entry.status.LastError = err.Error()
	}
}

// Status lists every job ordered by name with its next trigger time.
func (r *Registry) Status() []JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().In(r.location)
	out := make([]JobStatus, 0, len(r.entries))
	for _, entry := range r.entries {
		status := entry.status
		if entry.schedule != nil {
			next := entry.schedule.Next(now)
			status.NextRun = &next
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) entry(name string) *registryEntry {
	entry, ok := r.entries[name]
	if !ok {
		entry = &registryEntry{status: JobStatus{Name: name}}
		r.entries[name] = entry
	}
	return entry
}
