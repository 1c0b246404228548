package models

import "time"

// Status is the lifecycle state of a research job, and the derived state of a batch.
type Status string

const (
	// StatusIdle is only ever derived: a batch without jobs.
	StatusIdle       Status = "idle"
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Terminal reports whether s is an absorbing job state.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Job is one product's research task within a batch.
type Job struct {
	ProductName string         `json:"product_name"`
	Category    string         `json:"category"`
	Status      Status         `json:"status"`
	Result      *ProductRecord `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Batch is a point-in-time copy of one launched group of jobs.
type Batch struct {
	ID        int64     `json:"id"`
	Jobs      []Job     `json:"jobs"`
	CreatedAt time.Time `json:"created_at"`
}

// BatchCounts tallies jobs per status.
type BatchCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Complete   int `json:"complete"`
	Error      int `json:"error"`
}

// OverallStatus derives a batch status from its jobs.
//
// Precedence: no jobs is Idle; any InProgress job makes the batch InProgress;
// once every job is terminal the batch is Error if any job errored, otherwise
// Complete. Anything else (jobs created but not yet dispatched) is Pending.
func OverallStatus(jobs []Job) Status {
	if len(jobs) == 0 {
		return StatusIdle
	}
	allTerminal := true
	anyError := false
	for _, j := range jobs {
		if j.Status == StatusInProgress {
			return StatusInProgress
		}
		if !j.Status.Terminal() {
			allTerminal = false
		}
		if j.Status == StatusError {
			anyError = true
		}
	}
	if !allTerminal {
		return StatusPending
	}
	if anyError {
		return StatusError
	}
	return StatusComplete
}

// OverallStatus derives the batch status from its jobs.
func (b Batch) OverallStatus() Status {
	return OverallStatus(b.Jobs)
}

// Finished reports whether every job in the batch has terminated.
func (b Batch) Finished() bool {
	s := b.OverallStatus()
	return s == StatusComplete || s == StatusError
}

// Results returns the records of successfully completed jobs, in job order.
func (b Batch) Results() []ProductRecord {
	results := make([]ProductRecord, 0, len(b.Jobs))
	for _, j := range b.Jobs {
		if j.Status == StatusComplete && j.Result != nil {
			results = append(results, *j.Result)
		}
	}
	return results
}

// Errored returns the failed jobs with their messages.
func (b Batch) Errored() []Job {
	var failed []Job
	for _, j := range b.Jobs {
		if j.Status == StatusError {
			failed = append(failed, j)
		}
	}
	return failed
}

// Counts tallies the batch's jobs by status.
func (b Batch) Counts() BatchCounts {
	c := BatchCounts{Total: len(b.Jobs)}
	for _, j := range b.Jobs {
		switch j.Status {
		case StatusPending:
			c.Pending++
		case StatusInProgress:
			c.InProgress++
		case StatusComplete:
			c.Complete++
		case StatusError:
			c.Error++
		}
	}
	return c
}
