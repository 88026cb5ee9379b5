// Package jobs owns the processing-job records, their state machine and the
// worker pool that drives scans through the pipeline.
package jobs

import (
	"time"

	"github.com/eduscan/markscan/internal/omr"
)

// Status is the life-cycle position of a processing job.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether next is a legal successor. Transitions are
// monotonic: PENDING -> PROCESSING -> {COMPLETED, FAILED} and nothing leaves
// a terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Job is one scan's unit of work and its persisted life-cycle record.
type Job struct {
	ID        string    `json:"id"`
	ExamID    string    `json:"exam_id"`
	ImagePath string    `json:"image_path"`
	FormType  string    `json:"form_type"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Set only once the job is terminal.
	StudentNumber string  `json:"student_number,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	RawData       []byte  `json:"-"`
	ErrorMessage  string  `json:"error_message,omitempty"`
}

// State is a tagged view of the job: either still in flight with no payload,
// or terminal with the full pipeline result. Whether there is a result to
// read is answered by the tag, not by a nil check on RawData.
type State struct {
	Status Status
	// Result is the decoded pipeline output; set only for COMPLETED jobs.
	Result *omr.Result
	// ErrorMessage is set only for FAILED jobs.
	ErrorMessage string
}

// Terminal reports whether the state carries a final outcome.
func (s State) Terminal() bool { return s.Status.Terminal() }

// State decodes the job's tagged life-cycle state.
func (j *Job) State() (State, error) {
	st := State{Status: j.Status}
	switch j.Status {
	case StatusCompleted:
		r, err := omr.UnmarshalResult(j.RawData)
		if err != nil {
			return State{}, err
		}
		st.Result = r
	case StatusFailed:
		st.ErrorMessage = j.ErrorMessage
	}
	return st, nil
}
