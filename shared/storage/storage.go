// Package storage defines the persisted stores shared by the scheduler,
// the health monitor and the intake flow, and their file-backed implementations.
//
// Every mutation is a read-modify-write of the whole collection performed under
// the store's own lock, with no network I/O in between.
package storage

import (
	"context"

	"memberflow/shared/models"
)

// Accounts is the Credential Store. APIID is unique.
type Accounts interface {
	LoadAll(ctx context.Context) ([]models.Account, error)
	// Save reports false without error when an account with the same APIID exists.
	Save(ctx context.Context, account models.Account) (bool, error)
	ReplaceAll(ctx context.Context, accounts []models.Account) error
	// Remove drops the given API IDs in a single rewrite and reports how many were removed.
	Remove(ctx context.Context, apiIDs ...int) (int, error)
}

// Queue is the FIFO Job Queue.
type Queue interface {
	// Push appends a job and returns its 1-based position.
	Push(ctx context.Context, job models.Job) (int, error)
	// Pop removes and returns the head, or nil when the queue is empty.
	Pop(ctx context.Context) (*models.Job, error)
	Len(ctx context.Context) (int, error)
}

// Toggle is the persisted service on/off switch.
type Toggle interface {
	IsActive(ctx context.Context) (bool, error)
	SetActive(ctx context.Context, active bool) error
}

// Ledger is the append-only set of member IDs that must never be targeted again.
type Ledger interface {
	Contains(ctx context.Context, memberID int64) (bool, error)
	Add(ctx context.Context, memberID int64) error
	Len(ctx context.Context) (int, error)
	Close() error
}
