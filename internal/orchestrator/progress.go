package orchestrator

import (
	"sync"
	"time"
)

// State of a run as seen from the status endpoint.
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateFinished = "finished"
	StateFailed   = "failed"
)

// Progress holds live counters for the run. It is written by the run
// goroutine and read concurrently by the status server.
type Progress struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Snapshot is a consistent copy of Progress.
type Snapshot struct {
	RunID      string    `json:"run_id"`
	DatasetID  string    `json:"dataset_id"`
	State      string    `json:"state"`
	Total      int       `json:"total"`
	Downloaded int       `json:"downloaded"`
	Skipped    int       `json:"skipped"`
	Bytes      int64     `json:"bytes"`
	StartedAt  time.Time `json:"started_at"`
	Error      string    `json:"error,omitempty"`
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.snapshot
	if s.State == "" {
		s.State = StateIdle
	}

	return s
}

func (p *Progress) start(runID, datasetID string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.snapshot = Snapshot{
		RunID:     runID,
		DatasetID: datasetID,
		State:     StateRunning,
		Total:     total,
		StartedAt: time.Now(),
	}
}

func (p *Progress) downloaded(size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.snapshot.Downloaded++
	p.snapshot.Bytes += size
}

func (p *Progress) skipped() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.snapshot.Skipped++
}

func (p *Progress) finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.snapshot.State = StateFailed
		p.snapshot.Error = err.Error()

		return
	}

	p.snapshot.State = StateFinished
}
