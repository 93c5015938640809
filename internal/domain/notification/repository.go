package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClaimRequest describes one claim of due records by a processor instance.
type ClaimRequest struct {
	Owner string
	Now   time.Time
	Limit int
	TTL   time.Duration
}

// ListFilter narrows the diagnostic listing of records.
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}

type Repository interface {
	// Insert stores a new pending record (joins the caller's transaction if any)
	Insert(ctx context.Context, rec *Record) error

	// Claim atomically leases up to req.Limit due pending records to req.Owner,
	// oldest first. Records leased by another live owner are skipped.
	Claim(ctx context.Context, req ClaimRequest) ([]*Record, error)

	// MarkSent, MarkRetry and MarkDeadLetter persist the record's new state and
	// clear the lease. They fail with ErrClaimLost when owner no longer holds
	// the lease or the stored record is no longer pending.
	MarkSent(ctx context.Context, rec *Record, owner string) error
	MarkRetry(ctx context.Context, rec *Record, owner string) error
	MarkDeadLetter(ctx context.Context, rec *Record, owner string) error

	// Release drops owner's lease without changing the record's state
	Release(ctx context.Context, id uuid.UUID, owner string) error

	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context, filter ListFilter) ([]*Record, error)
}
