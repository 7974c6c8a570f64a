// Package job defines the unit of scheduled analysis work and the queue
// contract that drives it.  A Job carries one coordinate and one use-case
// profile through the pipeline; the queue owns every job and status
// transitions are the only permitted mutations.  Queue implementations live
// in infrastructure (postgres for durable multi-process operation, memory
// for single-process runs and tests).
package job

import (
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

// Status is the job lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// validTransitions encodes the state machine: pending → in_progress →
// {done | failed}; in_progress reverts to pending on clean stop or stale
// reclaim; failed returns to pending only through an explicit retry.
var validTransitions = map[Status]map[Status]bool{
	StatusPending:    {StatusInProgress: true},
	StatusInProgress: {StatusDone: true, StatusFailed: true, StatusPending: true},
	StatusFailed:     {StatusPending: true},
	StatusDone:       {},
}

// ValidTransition reports whether a job may move from one status to another.
func ValidTransition(from, to Status) bool {
	return validTransitions[from][to]
}

// Job is one schedulable analysis unit. NotBefore delays eligibility after a
// retryable failure; LastError keeps the most recent failure reason for scan
// reports. A zero ScanID marks an ad-hoc job outside any bulk scan.
type Job struct {
	ID          uuid.UUID
	ScanID      uuid.UUID
	Coordinate  geo.Coordinate
	Profile     string
	Status      Status
	Priority    int
	RetryCount  int
	LastError   string
	NotBefore   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New constructs a pending job for one coordinate and profile.
func New(scanID uuid.UUID, coord geo.Coordinate, profile string, priority int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         uuid.New(),
		ScanID:     scanID,
		Coordinate: coord,
		Profile:    profile,
		Status:     StatusPending,
		Priority:   priority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Ready reports whether a pending job is eligible to be claimed at now.
func (j *Job) Ready(now time.Time) bool {
	return j.Status == StatusPending && !now.Before(j.NotBefore)
}

// Start moves the job to in_progress and stamps the attempt start.
func (j *Job) Start() error {
	if err := j.transition(StatusInProgress); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.StartedAt = &now
	return nil
}

// Complete marks the job done.
func (j *Job) Complete() error {
	if err := j.transition(StatusDone); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.CompletedAt = &now
	return nil
}

// Fail records a failed attempt. Permanent failures move the job to its
// terminal failed status; retryable ones return it to pending with an
// incremented retry count, eligible again at retryAt.
func (j *Job) Fail(cause string, retryAt time.Time, permanent bool) error {
	if permanent {
		if err := j.transition(StatusFailed); err != nil {
			return err
		}
		now := time.Now().UTC()
		j.CompletedAt = &now
		j.LastError = cause
		return nil
	}
	if err := j.transition(StatusPending); err != nil {
		return err
	}
	j.RetryCount++
	j.NotBefore = retryAt
	j.LastError = cause
	j.StartedAt = nil
	return nil
}

// Revert returns an in-progress job to pending without counting an attempt.
// Used on clean worker stop and when reclaiming jobs stranded by a crash.
func (j *Job) Revert() error {
	if err := j.transition(StatusPending); err != nil {
		return err
	}
	j.StartedAt = nil
	return nil
}

// Clone returns a deep copy, so queue internals never alias caller state.
func (j *Job) Clone() *Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (j *Job) transition(to Status) error {
	if !ValidTransition(j.Status, to) {
		return errors.Newf(errors.ErrCodeJobTransitionInvalid,
			"job %s cannot move from %s to %s", j.ID, j.Status, to)
	}
	j.Status = to
	j.UpdatedAt = time.Now().UTC()
	return nil
}
