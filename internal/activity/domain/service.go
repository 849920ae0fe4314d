package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// DefaultListLimit caps the timeline window shown in the console.
const DefaultListLimit = 20

// Entry is the caller-facing shape of an append request.
type Entry struct {
	SubscriptionID snowflake.ID
	Type           Type
	Description    string
	Actor          string
	Metadata       map[string]any
}

type ListActivityResponse struct {
	Activities []Activity `json:"activities"`
}

type Service interface {
	// Append writes one entry inside the caller's transaction. tx may be
	// nil, in which case the write uses the service's own connection.
	Append(ctx context.Context, tx *gorm.DB, entry Entry) error
	// List returns entries for a subscription, most recent first. limit <= 0
	// falls back to DefaultListLimit.
	List(ctx context.Context, subscriptionID snowflake.ID, limit int) (ListActivityResponse, error)
}

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidActivity = errors.New("invalid_activity")
)
