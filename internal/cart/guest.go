package cart

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
)

var ErrInvalidSession = apperror.Validation("missing or invalid cart session")

// GuestStore holds anonymous carts keyed by a session id. Contents may expire.
type GuestStore interface {
	Lines(ctx context.Context, sessionID string) ([]Line, error)
	Add(ctx context.Context, sessionID string, itemID, quantity int) error
	Set(ctx context.Context, sessionID string, itemID, quantity int) error
	Remove(ctx context.Context, sessionID string, itemID int) error
	Clear(ctx context.Context, sessionID string) error
}

func NewSessionID() string {
	return uuid.NewString()
}

func validSession(sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return ErrInvalidSession
	}
	return nil
}

type guestEntry struct {
	lines   map[int]int
	expires time.Time
}

type InMemoryGuestStore struct {
	mu        sync.Mutex
	sessions  map[string]*guestEntry
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewInMemoryGuestStore(ttl time.Duration) *InMemoryGuestStore {
	return &InMemoryGuestStore{sessions: make(map[string]*guestEntry), ttl: ttl, now: time.Now}
}

// sweep drops abandoned sessions, at most once per TTL.
func (s *InMemoryGuestStore) sweep(now time.Time) {
	if s.ttl <= 0 || now.Sub(s.lastSweep) < s.ttl {
		return
	}
	for id, e := range s.sessions {
		if now.After(e.expires) {
			delete(s.sessions, id)
		}
	}
	s.lastSweep = now
}

// entry returns the live session, dropping it first if it has expired.
func (s *InMemoryGuestStore) entry(sessionID string, create bool) *guestEntry {
	s.sweep(s.now())
	e, ok := s.sessions[sessionID]
	if ok && s.ttl > 0 && s.now().After(e.expires) {
		delete(s.sessions, sessionID)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		e = &guestEntry{lines: make(map[int]int)}
		s.sessions[sessionID] = e
	}
	if create {
		e.expires = s.now().Add(s.ttl)
	}
	return e
}

func (s *InMemoryGuestStore) Lines(_ context.Context, sessionID string) ([]Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(sessionID, false)
	out := make([]Line, 0)
	if e == nil {
		return out, nil
	}
	for itemID, qty := range e.lines {
		out = append(out, Line{ItemID: itemID, Quantity: qty})
	}
	sortLines(out)
	return out, nil
}

func (s *InMemoryGuestStore) Add(_ context.Context, sessionID string, itemID, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(sessionID, true).lines[itemID] += quantity
	return nil
}

func (s *InMemoryGuestStore) Set(_ context.Context, sessionID string, itemID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(sessionID, true)
	if quantity <= 0 {
		delete(e.lines, itemID)
		return nil
	}
	e.lines[itemID] = quantity
	return nil
}

func (s *InMemoryGuestStore) Remove(_ context.Context, sessionID string, itemID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entry(sessionID, false); e != nil {
		delete(e.lines, itemID)
	}
	return nil
}

func (s *InMemoryGuestStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// RedisGuestStore keeps each guest cart in a hash guestcart:<session>
// (field item id, value quantity). Every write refreshes the TTL.
type RedisGuestStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuestStore(client *redis.Client, ttl time.Duration) *RedisGuestStore {
	return &RedisGuestStore{client: client, ttl: ttl}
}

// touch refreshes the TTL. A zero TTL keeps carts until cleared.
func (s *RedisGuestStore) touch(ctx context.Context, pipe redis.Pipeliner, key string) {
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

func guestKey(sessionID string) string {
	return "guestcart:" + sessionID
}

func (s *RedisGuestStore) Lines(ctx context.Context, sessionID string) ([]Line, error) {
	raw, err := s.client.HGetAll(ctx, guestKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(raw))
	for field, value := range raw {
		itemID, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(value)
		if err != nil || qty <= 0 {
			continue
		}
		out = append(out, Line{ItemID: itemID, Quantity: qty})
	}
	sortLines(out)
	return out, nil
}

func (s *RedisGuestStore) Add(ctx context.Context, sessionID string, itemID, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	key := guestKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, strconv.Itoa(itemID), int64(quantity))
		s.touch(ctx, pipe, key)
		return nil
	})
	return err
}

func (s *RedisGuestStore) Set(ctx context.Context, sessionID string, itemID, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, sessionID, itemID)
	}
	key := guestKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, strconv.Itoa(itemID), quantity)
		s.touch(ctx, pipe, key)
		return nil
	})
	return err
}

func (s *RedisGuestStore) Remove(ctx context.Context, sessionID string, itemID int) error {
	return s.client.HDel(ctx, guestKey(sessionID), strconv.Itoa(itemID)).Err()
}

func (s *RedisGuestStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, guestKey(sessionID)).Err()
}
