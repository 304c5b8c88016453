// Package models defines the domain records of the CIDR listing service:
// users, lists, stored CIDR rows and the queued jobs that mutate them.
package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// ListType is the polarity of a list.
type ListType string

const (
	// ListTypeDeny marks a block list.
	ListTypeDeny ListType = "DENY"
	// ListTypeSafe marks an allow list. Enabled SAFE entries are carved
	// out of every DENY list of the same user.
	ListTypeSafe ListType = "SAFE"
)

// IsValid reports whether t is a known list type.
func (t ListType) IsValid() bool {
	return t == ListTypeDeny || t == ListTypeSafe
}

// Action is the kind of work a queued CIDR job carries.
type Action string

const (
	ActionAdd    Action = "add"
	ActionDelete Action = "delete"
	// ActionUpdate re-applies a SAFE list against the user's DENY lists.
	// Enqueued when a SAFE list flips from disabled to enabled.
	ActionUpdate Action = "update"
)

// Role is a user's privilege level.
type Role string

const (
	RoleUser      Role = "USER"
	RoleSuperuser Role = "SUPERUSER"
)

// User is an account row. Salt is mixed into the password before hashing
// and stored alongside the hash.
type User struct {
	ID             uuid.UUID `json:"id"`
	Login          string    `json:"login" validate:"required,min=3,max=64,login"`
	Salt           string    `json:"-"`
	HashedPassword string    `json:"-"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// List is a named, user-scoped collection of CIDRs of one polarity.
// The id is globally unique across all users.
type List struct {
	ID          string    `json:"id" validate:"required,max=64,listid"`
	UserID      uuid.UUID `json:"user_id"`
	ListType    ListType  `json:"list_type" validate:"required,oneof=DENY SAFE"`
	Enabled     bool      `json:"enabled"`
	Tags        []string  `json:"tags" validate:"dive,max=16,tag"`
	Description string    `json:"description" validate:"max=256"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultTag is implicitly present on every list.
const DefaultTag = "DEFAULT"

// NormalizeTags deduplicates, forces the DEFAULT tag and sorts the result.
func NormalizeTags(tags []string) []string {
	set := map[string]struct{}{DefaultTag: {}}
	for _, t := range tags {
		set[t] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Cidr is a stored prefix row. The id is a monotonic integer used only for
// pagination; uniqueness is (address, list_id).
type Cidr struct {
	ID        int64      `json:"id,omitempty"`
	Address   string     `json:"address"`
	ListID    string     `json:"list_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CidrJob is the payload of one queued mutation. It is serialised to JSON
// in the job_queue table and decoded by the worker.
type CidrJob struct {
	JobID       uuid.UUID `json:"job_id"`
	Action      Action    `json:"action"`
	ListID      string    `json:"list_id"`
	ListType    ListType  `json:"list_type"`
	ListEnabled bool      `json:"list_enabled"`
	UserID      uuid.UUID `json:"user_id"`
	Cidrs       []string  `json:"cidrs"`
	TTL         *int64    `json:"ttl,omitempty"`
}

// NewCidrJob builds a job against a target list with a fresh job id.
func NewCidrJob(action Action, list *List, cidrs []string, ttl *int64) *CidrJob {
	return &CidrJob{
		JobID:       uuid.New(),
		Action:      action,
		ListID:      list.ID,
		ListType:    list.ListType,
		ListEnabled: list.Enabled,
		UserID:      list.UserID,
		Cidrs:       cidrs,
		TTL:         ttl,
	}
}
