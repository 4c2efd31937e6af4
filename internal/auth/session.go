package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	sessionTTL       = 24 * time.Hour
)

// Identity is what a session resolves to.
type Identity struct {
	UserID int64
	Role   string
}

// Store manages sessions in Redis. The value is "userID:role" so the
// middleware can authorize without a DB round-trip.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore returns a new session store.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = sessionTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Create stores a new session for the user and returns its ID.
func (s *Store) Create(ctx context.Context, id Identity) (string, error) {
	sid, err := newSessionID()
	if err != nil {
		return "", err
	}
	val := strconv.FormatInt(id.UserID, 10) + ":" + id.Role
	if err := s.rdb.Set(ctx, sessionKeyPrefix+sid, val, s.ttl).Err(); err != nil {
		return "", err
	}
	return sid, nil
}

// Delete removes a session by ID.
func (s *Store) Delete(ctx context.Context, sid string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+sid).Err()
}

// Get resolves a session ID to its identity. ok is false when the session
// does not exist or the stored value is unreadable.
func (s *Store) Get(ctx context.Context, sid string) (Identity, bool) {
	val, err := s.rdb.Get(ctx, sessionKeyPrefix+sid).Result()
	if err != nil {
		return Identity{}, false
	}
	userPart, role, found := strings.Cut(val, ":")
	if !found {
		return Identity{}, false
	}
	userID, err := strconv.ParseInt(userPart, 10, 64)
	if err != nil || userID == 0 {
		return Identity{}, false
	}
	return Identity{UserID: userID, Role: role}, true
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}
