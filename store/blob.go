package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/raushankrgupta/fashionfit/kv"
	"github.com/raushankrgupta/fashionfit/models"
)

// Keys of the blob layout.
const (
	SessionsKey    = "fashionfit_sessions"
	CurrentUserKey = "fashionfit_mock_user"
	ProfilesKey    = "fashionfit_profiles"

	SchemaVersion = 1
)

type envelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	Data          json.RawMessage `json:"data"`
}

func readBlob(ctx context.Context, s kv.Store, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	if env.SchemaVersion != SchemaVersion {
		return false, fmt.Errorf("%w: %s has version %d", ErrSchemaVersion, key, env.SchemaVersion)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func writeBlob(ctx context.Context, s kv.Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(envelope{SchemaVersion: SchemaVersion, Data: data})
	if err != nil {
		return err
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// BlobSessions keeps the whole history as one JSON list under SessionsKey.
type BlobSessions struct {
	mu  sync.Mutex
	kv  kv.Store
	now func() time.Time
}

func NewBlobSessions(s kv.Store) *BlobSessions {
	return &BlobSessions{kv: s, now: time.Now}
}

func (b *BlobSessions) Save(ctx context.Context, in models.NewTryOn) (models.TryOnSession, error) {
	if err := validate(in); err != nil {
		return models.TryOnSession{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sessions, err := b.load(ctx)
	if err != nil {
		return models.TryOnSession{}, err
	}

	var last int64
	if n := len(sessions); n > 0 {
		last = sessions[n-1].Timestamp
	}
	sess := in.Session(newSessionID(), stamp(b.now(), last))

	if err := writeBlob(ctx, b.kv, SessionsKey, append(sessions, sess)); err != nil {
		return models.TryOnSession{}, err
	}
	return sess, nil
}

func (b *BlobSessions) List(ctx context.Context) ([]models.TryOnSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(ctx)
}

func (b *BlobSessions) load(ctx context.Context) ([]models.TryOnSession, error) {
	sessions := []models.TryOnSession{}
	if _, err := readBlob(ctx, b.kv, SessionsKey, &sessions); err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []models.TryOnSession{}
	}
	return sessions, nil
}

// profileRecord is the stored form of a profile. Unlike the API form it keeps
// the password hash.
type profileRecord struct {
	UID          string        `json:"uid"`
	Email        string        `json:"email,omitempty"`
	Gender       models.Gender `json:"gender"`
	CreatedAt    int64         `json:"createdAt"`
	PasswordHash string        `json:"passwordHash,omitempty"`
}

func toRecord(p models.UserProfile) profileRecord {
	return profileRecord{UID: p.UID, Email: p.Email, Gender: p.Gender, CreatedAt: p.CreatedAt, PasswordHash: p.PasswordHash}
}

func (r profileRecord) profile() *models.UserProfile {
	return &models.UserProfile{UID: r.UID, Email: r.Email, Gender: r.Gender, CreatedAt: r.CreatedAt, PasswordHash: r.PasswordHash}
}

// BlobProfiles stores the current user under CurrentUserKey and the profile
// directory under ProfilesKey.
type BlobProfiles struct {
	mu sync.Mutex
	kv kv.Store
}

func NewBlobProfiles(s kv.Store) *BlobProfiles {
	return &BlobProfiles{kv: s}
}

func (b *BlobProfiles) Current(ctx context.Context) (*models.UserProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var rec profileRecord
	ok, err := readBlob(ctx, b.kv, CurrentUserKey, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return rec.profile(), nil
}

func (b *BlobProfiles) SetCurrent(ctx context.Context, p models.UserProfile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return writeBlob(ctx, b.kv, CurrentUserKey, toRecord(p))
}

func (b *BlobProfiles) ClearCurrent(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.kv.Delete(ctx, CurrentUserKey)
}

func (b *BlobProfiles) FindByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	return b.find(ctx, func(r profileRecord) bool {
		return r.Email != "" && strings.EqualFold(r.Email, email)
	})
}

func (b *BlobProfiles) FindByID(ctx context.Context, uid string) (*models.UserProfile, error) {
	return b.find(ctx, func(r profileRecord) bool { return r.UID == uid })
}

func (b *BlobProfiles) find(ctx context.Context, match func(profileRecord) bool) (*models.UserProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dir, err := b.directory(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range dir {
		if match(rec) {
			return rec.profile(), nil
		}
	}
	return nil, ErrProfileNotFound
}

func (b *BlobProfiles) Put(ctx context.Context, p models.UserProfile) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	dir, err := b.directory(ctx)
	if err != nil {
		return err
	}
	dir[p.UID] = toRecord(p)
	return writeBlob(ctx, b.kv, ProfilesKey, dir)
}

func (b *BlobProfiles) directory(ctx context.Context) (map[string]profileRecord, error) {
	dir := map[string]profileRecord{}
	if _, err := readBlob(ctx, b.kv, ProfilesKey, &dir); err != nil {
		return nil, err
	}
	if dir == nil {
		dir = map[string]profileRecord{}
	}
	return dir, nil
}
