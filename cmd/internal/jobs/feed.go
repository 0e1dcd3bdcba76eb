// Package jobs exposes the progress/log feed for long-running document
// pipelines (regulation analysis, CV processing). Pipelines post updates;
// browser clients poll snapshots. The review hub neither reads nor writes
// this feed.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Status is the pipeline job status enum.
type Status string

// Job statuses (wire-stable).
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ValidStatus reports whether s is a known job status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether a job in status s will receive no further updates.
func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed
}

const (
	defaultMaxLogLines       = 200
	defaultTerminalRetention = 15 * time.Minute
)

// ProgressUpdate is one update posted by a pipeline.
type ProgressUpdate struct {
	Status   Status `json:"status"`
	Progress int    `json:"progress"` // percent, 0-100
	Message  string `json:"message,omitempty"`
}

// LogLine is one retained progress message.
type LogLine struct {
	TS      time.Time `json:"ts"`
	Message string    `json:"message"`
}

// Snapshot is the client-facing poll result.
type Snapshot struct {
	JobID     string    `json:"jobId"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Logs      []LogLine `json:"logs"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type jobState struct {
	status    Status
	progress  int
	logs      []LogLine
	updatedAt time.Time
}

// Feed holds per-job progress state with bounded log retention.
type Feed struct {
	log *slog.Logger

	maxLogLines       int
	terminalRetention time.Duration

	mu   sync.RWMutex
	jobs map[string]*jobState
}

// FeedOption configures Feed behavior.
type FeedOption func(*Feed)

// WithMaxLogLines bounds how many log lines are retained per job.
func WithMaxLogLines(n int) FeedOption {
	return func(f *Feed) {
		if n > 0 {
			f.maxLogLines = n
		}
	}
}

// WithTerminalRetention sets how long completed/failed jobs stay pollable.
func WithTerminalRetention(d time.Duration) FeedOption {
	return func(f *Feed) {
		if d > 0 {
			f.terminalRetention = d
		}
	}
}

// NewFeed constructs an empty feed.
func NewFeed(log *slog.Logger, opts ...FeedOption) *Feed {
	if log == nil {
		log = slog.Default()
	}
	f := &Feed{
		log:               log,
		maxLogLines:       defaultMaxLogLines,
		terminalRetention: defaultTerminalRetention,
		jobs:              make(map[string]*jobState),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Publish records an update for jobID, creating the job on first sight.
// The oldest log lines are evicted once the per-job cap is reached.
func (f *Feed) Publish(jobID string, upd ProgressUpdate, now time.Time) {
	if jobID == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	j := f.jobs[jobID]
	if j == nil {
		j = &jobState{status: StatusQueued}
		f.jobs[jobID] = j
	}

	if upd.Status != "" {
		j.status = upd.Status
	}
	if upd.Progress >= 0 && upd.Progress <= 100 {
		j.progress = upd.Progress
	}
	if upd.Message != "" {
		j.logs = append(j.logs, LogLine{TS: now, Message: upd.Message})
		if len(j.logs) > f.maxLogLines {
			j.logs = j.logs[len(j.logs)-f.maxLogLines:]
		}
	}
	j.updatedAt = now
}

// Snapshot returns a copy of the job's current state.
func (f *Feed) Snapshot(jobID string) (Snapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	j := f.jobs[jobID]
	if j == nil {
		return Snapshot{}, false
	}

	logs := make([]LogLine, len(j.logs))
	copy(logs, j.logs)

	return Snapshot{
		JobID:     jobID,
		Status:    j.status,
		Progress:  j.progress,
		Logs:      logs,
		UpdatedAt: j.updatedAt,
	}, true
}

// Count returns the number of tracked jobs.
func (f *Feed) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.jobs)
}

// Prune drops terminal jobs whose last update is older than the retention
// window. Returns the number of jobs removed.
func (f *Feed) Prune(now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	pruned := 0
	for id, j := range f.jobs {
		if !Terminal(j.status) || now.Sub(j.updatedAt) < f.terminalRetention {
			continue
		}
		delete(f.jobs, id)
		pruned++
	}
	if pruned > 0 {
		f.log.Info("jobs.prune", "removed", pruned, "remaining", len(f.jobs))
	}
	return pruned
}

// StartPruner runs Prune on a fixed interval until the context is cancelled.
func (f *Feed) StartPruner(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}

	go func() {
		t := time.NewTicker(every)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				f.Prune(now.UTC())
			}
		}
	}()
}
