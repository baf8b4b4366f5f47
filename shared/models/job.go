package models

import (
	"time"

	"github.com/google/uuid"
)

type Job struct {
	ID          string    `json:"id,omitempty"`
	RequesterID int64     `json:"user_id"`
	SourceGroup string    `json:"from_group"`
	TargetGroup string    `json:"to_group"`
	EnqueuedAt  time.Time `json:"enqueued_at,omitempty"`
}

func NewJob(requesterID int64, source, target string) Job {
	return Job{
		ID:          uuid.New().String(),
		RequesterID: requesterID,
		SourceGroup: source,
		TargetGroup: target,
		EnqueuedAt:  time.Now().UTC(),
	}
}

// Settings is the persisted service toggle.
type Settings struct {
	IsActive bool `json:"is_active"`
}
