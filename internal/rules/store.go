package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// VerificationStore remembers that a user passed a preflight check
// for a quiz, so the check is not repeated on every page of the
// attempt. Entries live until the attempt finishes or the TTL runs
// out.
type VerificationStore interface {
	IsVerified(ctx context.Context, quizID uint, userID string) bool
	MarkVerified(ctx context.Context, quizID uint, userID string) error
	Clear(ctx context.Context, quizID uint, userID string) error
}

const verificationTTL = 12 * time.Hour

// ===== REDIS =====

type redisVerificationStore struct {
	client *redis.Client
}

// NewRedisVerificationStore keeps verification marks in Redis so they
// survive restarts and are shared between instances.
func NewRedisVerificationStore(client *redis.Client) VerificationStore {
	return &redisVerificationStore{client: client}
}

func (s *redisVerificationStore) key(quizID uint, userID string) string {
	return fmt.Sprintf("preflight:quiz:%d:user:%s", quizID, userID)
}

func (s *redisVerificationStore) IsVerified(ctx context.Context, quizID uint, userID string) bool {
	if s.client == nil {
		return false
	}
	n, err := s.client.Exists(ctx, s.key(quizID, userID)).Result()
	return err == nil && n > 0
}

func (s *redisVerificationStore) MarkVerified(ctx context.Context, quizID uint, userID string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Set(ctx, s.key(quizID, userID), "1", verificationTTL).Err()
}

func (s *redisVerificationStore) Clear(ctx context.Context, quizID uint, userID string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.key(quizID, userID)).Err()
}

// ===== MEMORY =====

type memoryVerificationStore struct {
	mu    sync.RWMutex
	marks map[string]struct{}
}

// NewMemoryVerificationStore is the single-instance fallback used
// when Redis is not configured, and the store tests run against.
func NewMemoryVerificationStore() VerificationStore {
	return &memoryVerificationStore{marks: make(map[string]struct{})}
}

func (s *memoryVerificationStore) key(quizID uint, userID string) string {
	return fmt.Sprintf("%d:%s", quizID, userID)
}

func (s *memoryVerificationStore) IsVerified(_ context.Context, quizID uint, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.marks[s.key(quizID, userID)]
	return ok
}

func (s *memoryVerificationStore) MarkVerified(_ context.Context, quizID uint, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[s.key(quizID, userID)] = struct{}{}
	return nil
}

func (s *memoryVerificationStore) Clear(_ context.Context, quizID uint, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.marks, s.key(quizID, userID))
	return nil
}
