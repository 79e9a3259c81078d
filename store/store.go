// Package store persists try-on sessions and user profiles.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raushankrgupta/fashionfit/models"
)

var (
	ErrInvalidSession  = errors.New("invalid try-on session")
	ErrProfileNotFound = errors.New("profile not found")
	ErrSchemaVersion   = errors.New("unsupported schema version")
)

// Sessions is the append-only try-on history.
type Sessions interface {
	// Save assigns an id and timestamp and appends the record.
	Save(ctx context.Context, in models.NewTryOn) (models.TryOnSession, error)
	// List returns every record in insertion order. It never returns nil.
	List(ctx context.Context) ([]models.TryOnSession, error)
}

// Profiles keeps the current-user pointer and the profiles seen so far.
type Profiles interface {
	// Current returns nil without error when nobody is signed in.
	Current(ctx context.Context) (*models.UserProfile, error)
	SetCurrent(ctx context.Context, p models.UserProfile) error
	ClearCurrent(ctx context.Context) error

	FindByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	FindByID(ctx context.Context, uid string) (*models.UserProfile, error)
	Put(ctx context.Context, p models.UserProfile) error
}

func newSessionID() string {
	return "session_" + uuid.NewString()
}

// stamp keeps timestamps non-decreasing even if the wall clock steps back.
func stamp(now time.Time, last int64) int64 {
	ts := now.UnixMilli()
	if ts < last {
		return last
	}
	return ts
}

func validate(in models.NewTryOn) error {
	if err := in.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return nil
}
