package models

import (
	"context"

	"github.com/google/uuid"
)

// CidrFilter selects stored CIDRs through enabled lists of one user.
// ListType is required; when ListID is set the tag filter is ignored.
type CidrFilter struct {
	UserID   uuid.UUID
	ListType ListType
	ListID   string
	Tags     []string
}

// UserStore is the persistence surface for accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	UpdatePassword(ctx context.Context, login, salt, hash string) error
}

// ListStore is the persistence surface for lists. UpdateList writes the
// list and, when job is non-nil, enqueues it in the same transaction.
type ListStore interface {
	CreateList(ctx context.Context, list *List) error
	GetList(ctx context.Context, id string, userID uuid.UUID) (*List, error)
	ListLists(ctx context.Context, userID uuid.UUID) ([]List, error)
	UpdateList(ctx context.Context, list *List, job *CidrJob) error
	DeleteList(ctx context.Context, id string, userID uuid.UUID) error
	GetListCidrs(ctx context.Context, id string, userID uuid.UUID) ([]Cidr, error)
}

// QueueStore enqueues CIDR jobs for the background worker.
type QueueStore interface {
	EnqueueJob(ctx context.Context, job *CidrJob) error
}

// CidrQueryStore is the read path over stored CIDRs.
type CidrQueryStore interface {
	QueryCidrs(ctx context.Context, filter CidrFilter) ([]Cidr, error)
	QueryCidrsPage(ctx context.Context, listID string, beforeID int64, limit int32) ([]Cidr, error)
}

// Store aggregates every persistence surface the API layer needs.
type Store interface {
	UserStore
	ListStore
	QueueStore
	CidrQueryStore
}
