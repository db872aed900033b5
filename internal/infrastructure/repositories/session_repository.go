package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/you/projectsvc/domain"
)

const (
	sessionPrefix   = "session:"
	userIndexPrefix = "user_sessions:"
	maxWatchRetries = 3
)

// SessionRepositoryImpl implements domain.SessionRepository using Redis.
//
// Each session is a JSON document under session:{id} whose TTL ends at
// ExpiresAt. The set user_sessions:{userID} indexes a user's session ids; entries
// whose document has expired are pruned lazily by reads and by DeleteExpired.
type SessionRepositoryImpl struct {
	client *redis.Client
	maxTTL time.Duration
	now    func() time.Time
	newID  func() string
}

// NewSessionRepository creates a new session repository. maxTTL caps the
// lifetime of every created session.
func NewSessionRepository(client *redis.Client, maxTTL time.Duration) *SessionRepositoryImpl {
	return &SessionRepositoryImpl{
		client: client,
		maxTTL: maxTTL,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// WithClock replaces the repository clock
func (r *SessionRepositoryImpl) WithClock(now func() time.Time) *SessionRepositoryImpl {
	r.now = now
	return r
}

func sessionKey(id string) string { return sessionPrefix + id }

func userIndexKey(userID uint) string {
	return userIndexPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Create implements domain.SessionRepository
func (r *SessionRepositoryImpl) Create(ctx context.Context, userID uint, meta domain.SessionMetadata) (*domain.Session, error) {
	if userID == 0 {
		return nil, fmt.Errorf("create session: %w: user id is required", domain.ErrInvalidInput)
	}

	now := r.now().UTC()
	expiresAt := meta.ExpiresAt.UTC()
	if ceiling := now.Add(r.maxTTL); r.maxTTL > 0 && (expiresAt.IsZero() || expiresAt.After(ceiling)) {
		expiresAt = ceiling
	}
	if !expiresAt.After(now) {
		return nil, fmt.Errorf("create session: %w: expiry must be in the future", domain.ErrInvalidInput)
	}

	session := &domain.Session{
		ID:             r.newID(),
		UserID:         userID,
		DeviceName:     meta.DeviceName,
		OSName:         meta.OSName,
		BrowserName:    meta.BrowserName,
		BrowserVersion: meta.BrowserVersion,
		DeviceType:     meta.DeviceType,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		CreatedAt:      now,
		LastActiveAt:   now,
		ExpiresAt:      expiresAt,
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), data, expiresAt.Sub(now))
		pipe.SAdd(ctx, userIndexKey(userID), session.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return session, nil
}

// Get implements domain.SessionRepository
func (r *SessionRepositoryImpl) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionNotFound
	}

	data, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	session, err := decodeSession(data)
	if err != nil {
		return nil, err
	}

	if session.IsExpired(r.now()) {
		// Clean up expired session
		r.remove(ctx, session.UserID, session.ID)
		return nil, domain.ErrSessionExpired
	}

	return session, nil
}

// ListByUser implements domain.SessionRepository. Sessions are ordered by
// LastActiveAt, most recent first.
func (r *SessionRepositoryImpl) ListByUser(ctx context.Context, userID uint) ([]*domain.Session, error) {
	indexKey := userIndexKey(userID)
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list session ids: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Session{}, nil
	}

	live, stale, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		r.prune(ctx, indexKey, stale)
	}

	sortByActivity(live)
	return live, nil
}

// CountByUser implements domain.SessionRepository
func (r *SessionRepositoryImpl) CountByUser(ctx context.Context, userID uint) (int, int, error) {
	ids, err := r.client.SMembers(ctx, userIndexKey(userID)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list session ids: %w", err)
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}

	live, _, err := r.load(ctx, ids)
	if err != nil {
		return 0, 0, err
	}
	return len(ids), len(live), nil
}

// Terminate implements domain.SessionRepository
func (r *SessionRepositoryImpl) Terminate(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	data, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	session, err := decodeSession(data)
	if err != nil {
		return false, err
	}

	var del *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, sessionKey(sessionID))
		pipe.SRem(ctx, userIndexKey(session.UserID), sessionID)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to terminate session: %w", err)
	}

	return del.Val() > 0, nil
}

// TerminateAll implements domain.SessionRepository
func (r *SessionRepositoryImpl) TerminateAll(ctx context.Context, userID uint, exceptID string) (int, error) {
	indexKey := userIndexKey(userID)
	removed := 0

	txf := func(tx *redis.Tx) error {
		ids, err := tx.SMembers(ctx, indexKey).Result()
		if err != nil {
			return err
		}

		targets := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != exceptID {
				targets = append(targets, id)
			}
		}
		if len(targets) == 0 {
			removed = 0
			return nil
		}

		keys := make([]string, len(targets))
		members := make([]interface{}, len(targets))
		for i, id := range targets {
			keys[i] = sessionKey(id)
			members[i] = id
		}

		var del *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			del = pipe.Del(ctx, keys...)
			pipe.SRem(ctx, indexKey, members...)
			return nil
		})
		if err != nil {
			return err
		}
		removed = int(del.Val())
		return nil
	}

	if err := r.watch(ctx, txf, indexKey); err != nil {
		return 0, fmt.Errorf("failed to terminate sessions: %w", err)
	}
	return removed, nil
}

// Touch implements domain.SessionRepository
func (r *SessionRepositoryImpl) Touch(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	key := sessionKey(sessionID)
	touched := false

	txf := func(tx *redis.Tx) error {
		touched = false
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return err
		}

		session, err := decodeSession(data)
		if err != nil {
			return err
		}
		now := r.now().UTC()
		if session.IsExpired(now) {
			return nil
		}
		if now.After(session.LastActiveAt) {
			session.LastActiveAt = now
		}

		updated, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		// KeepTTL leaves the expiry fixed at ExpiresAt.
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		touched = true
		return nil
	}

	if err := r.watch(ctx, txf, key); err != nil {
		return false, fmt.Errorf("failed to touch session: %w", err)
	}
	return touched, nil
}

// DeleteExpired implements domain.SessionRepository. Redis expires the session
// documents itself; this removes the index entries left behind, plus any
// document whose ExpiresAt has passed but whose key has not been evicted yet.
func (r *SessionRepositoryImpl) DeleteExpired(ctx context.Context) (int, error) {
	total := 0
	iter := r.client.Scan(ctx, 0, userIndexPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()
		ids, err := r.client.SMembers(ctx, indexKey).Result()
		if err != nil {
			return total, fmt.Errorf("failed to list session ids: %w", err)
		}
		if len(ids) == 0 {
			continue
		}

		_, stale, err := r.load(ctx, ids)
		if err != nil {
			return total, err
		}
		if len(stale) == 0 {
			continue
		}

		keys := make([]string, len(stale))
		members := make([]interface{}, len(stale))
		for i, id := range stale {
			keys[i] = sessionKey(id)
			members[i] = id
		}
		_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			pipe.SRem(ctx, indexKey, members...)
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("failed to prune sessions: %w", err)
		}
		total += len(stale)
	}
	if err := iter.Err(); err != nil {
		return total, fmt.Errorf("failed to scan session indexes: %w", err)
	}
	return total, nil
}

// load fetches the documents for ids and splits them into live sessions and
// ids that are missing or expired.
func (r *SessionRepositoryImpl) load(ctx context.Context, ids []string) ([]*domain.Session, []string, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	now := r.now()
	live := make([]*domain.Session, 0, len(values))
	var stale []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		session, err := decodeSession([]byte(raw))
		if err != nil {
			return nil, nil, err
		}
		if session.IsExpired(now) {
			stale = append(stale, ids[i])
			continue
		}
		live = append(live, session)
	}
	return live, stale, nil
}

func (r *SessionRepositoryImpl) prune(ctx context.Context, indexKey string, ids []string) {
	keys := make([]string, len(ids))
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
		members[i] = id
	}
	// Best effort; DeleteExpired catches anything left behind.
	_, _ = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, indexKey, members...)
		return nil
	})
}

func (r *SessionRepositoryImpl) remove(ctx context.Context, userID uint, sessionID string) {
	r.prune(ctx, userIndexKey(userID), []string{sessionID})
}

func (r *SessionRepositoryImpl) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < maxWatchRetries; i++ {
		err = r.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func decodeSession(data []byte) (*domain.Session, error) {
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func sortByActivity(sessions []*domain.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.LastActiveAt.Equal(b.LastActiveAt) {
			return a.LastActiveAt.After(b.LastActiveAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return strings.Compare(a.ID, b.ID) < 0
	})
}

var _ domain.SessionRepository = (*SessionRepositoryImpl)(nil)
