// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/meridianhealth/meridian-site/internal/cache"
	"github.com/meridianhealth/meridian-site/internal/content"
)

// EventType identifies a change to a session's authentication state.
type EventType string

const (
	// EventLogin is published when a session gains an authenticated identity.
	EventLogin EventType = "login"
	// EventLogout is published when a session's identity is revoked, either
	// by an explicit logout or by the revalidation sweep.
	EventLogout EventType = "logout"
)

// Event describes a login or logout that other components may react to,
// for example to discard pending edit drafts.
type Event struct {
	Type       EventType
	IdentityID string
}

const identityKeyPrefix = "identity:"

// Store resolves the identity behind a session's auth token and caches the
// result. Resolution for the same token is coalesced so that concurrent
// requests trigger at most one backend call.
type Store struct {
	manager *scs.SessionManager
	client  *content.Client
	cache   *cache.TypedCache[content.Identity]
	ttl     time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	inflight map[string]*resolveCall
	tracked  map[string]string // cache key -> token, for the revalidation sweep

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

type resolveCall struct {
	done     chan struct{}
	identity *content.Identity
	err      error
}

// StoreOptions configures a Store.
type StoreOptions struct {
	Manager     *scs.SessionManager
	Client      *content.Client
	Backing     cache.Cacher
	IdentityTTL time.Duration
	Logger      *slog.Logger
}

// NewStore creates a session identity store.
func NewStore(opts StoreOptions) *Store {
	ttl := opts.IdentityTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		manager:  opts.Manager,
		client:   opts.Client,
		cache:    cache.NewTypedCache[content.Identity](opts.Backing, ttl),
		ttl:      ttl,
		logger:   logger,
		inflight: make(map[string]*resolveCall),
		tracked:  make(map[string]string),
		subs:     make(map[int]chan Event),
	}
}

// Manager returns the underlying scs session manager.
func (s *Store) Manager() *scs.SessionManager {
	return s.manager
}

// Token returns the auth token stored in the current session, or "" when the
// session is anonymous.
func (s *Store) Token(ctx context.Context) string {
	return s.manager.GetString(ctx, KeyAuthToken)
}

// Login stores the auth token in the session, seeds the identity cache and
// publishes a login event. The session token is renewed to prevent fixation.
func (s *Store) Login(ctx context.Context, token string, identity *content.Identity) error {
	if err := s.manager.RenewToken(ctx); err != nil {
		return err
	}
	s.manager.Put(ctx, KeyAuthToken, token)

	key := identityCacheKey(token)
	if err := s.cache.Set(ctx, key, identity); err != nil {
		s.logger.Warn("identity cache seed failed", "error", err.Error())
	}
	s.track(key, token)

	s.publish(Event{Type: EventLogin, IdentityID: identity.ID})
	return nil
}

// Logout removes the auth token, destroys the session and publishes a logout
// event. It is a no-op on anonymous sessions.
func (s *Store) Logout(ctx context.Context) error {
	token := s.Token(ctx)
	if token == "" {
		return nil
	}

	var identityID string
	key := identityCacheKey(token)
	if cached, ok := s.cache.Get(ctx, key); ok {
		identityID = cached.ID
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("identity cache delete failed", "error", err.Error())
	}
	s.untrack(key)

	if err := s.manager.Destroy(ctx); err != nil {
		return err
	}

	s.publish(Event{Type: EventLogout, IdentityID: identityID})
	return nil
}

// Identity resolves the identity for the session in ctx. An anonymous
// session, an expired token and a token the backend rejects all yield
// (nil, nil); only transport-level failures surface as errors.
func (s *Store) Identity(ctx context.Context) (*content.Identity, error) {
	return s.ResolveIdentity(ctx, s.Token(ctx))
}

// ResolveIdentity resolves the identity behind token, consulting the cache
// first. Tokens whose exp claim has already passed are rejected locally
// without a backend round trip.
func (s *Store) ResolveIdentity(ctx context.Context, token string) (*content.Identity, error) {
	if token == "" {
		return nil, nil
	}
	if tokenExpired(token, time.Now()) {
		return nil, nil
	}

	key := identityCacheKey(token)
	if identity, ok := s.cache.Get(ctx, key); ok {
		return identity, nil
	}

	s.mu.Lock()
	if call, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.identity, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &resolveCall{done: make(chan struct{})}
	s.inflight[key] = call
	s.mu.Unlock()

	call.identity, call.err = s.resolve(ctx, key, token)
	close(call.done)

	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()

	return call.identity, call.err
}

func (s *Store) resolve(ctx context.Context, key, token string) (*content.Identity, error) {
	identity, err := s.client.CurrentIdentity(ctx, token)
	if err != nil {
		if errors.Is(err, content.ErrUnauthorized) {
			s.untrack(key)
			return nil, nil
		}
		return nil, err
	}

	if err := s.cache.Set(ctx, key, identity); err != nil {
		s.logger.Warn("identity cache write failed", "error", err.Error())
	}
	s.track(key, token)
	return identity, nil
}

// RevalidateCached re-resolves every cached identity against the backend and
// evicts entries whose token no longer authenticates. It backs up the login
// and logout events for credential changes that happen out of band.
func (s *Store) RevalidateCached(ctx context.Context) {
	s.mu.Lock()
	tokens := make(map[string]string, len(s.tracked))
	for key, token := range s.tracked {
		tokens[key] = token
	}
	s.mu.Unlock()

	now := time.Now()
	for key, token := range tokens {
		identity, ok := s.cache.Get(ctx, key)
		if !ok {
			s.untrack(key)
			continue
		}

		if tokenExpired(token, now) {
			s.evict(ctx, key, identity.ID)
			continue
		}

		fresh, err := s.client.CurrentIdentity(ctx, token)
		if err != nil {
			if errors.Is(err, content.ErrUnauthorized) {
				s.evict(ctx, key, identity.ID)
			} else {
				s.logger.Warn("identity revalidation failed", "error", err.Error())
			}
			continue
		}

		if err := s.cache.Set(ctx, key, fresh); err != nil {
			s.logger.Warn("identity cache write failed", "error", err.Error())
		}
	}
}

func (s *Store) evict(ctx context.Context, key, identityID string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("identity cache delete failed", "error", err.Error())
	}
	s.untrack(key)
	s.publish(Event{Type: EventLogout, IdentityID: identityID})
}

// Subscribe registers for login and logout events. The returned function
// unsubscribes and closes the channel. Slow subscribers drop events rather
// than block publishers.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Event, 16)
	s.subs[id] = ch

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

func (s *Store) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Store) track(key, token string) {
	s.mu.Lock()
	s.tracked[key] = token
	s.mu.Unlock()
}

func (s *Store) untrack(key string) {
	s.mu.Lock()
	delete(s.tracked, key)
	s.mu.Unlock()
}

// identityCacheKey hashes the token so raw credentials never appear as
// cache keys.
func identityCacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return identityKeyPrefix + hex.EncodeToString(sum[:16])
}

// tokenExpired reports whether token is a JWT whose exp claim has passed.
// Tokens that are not JWTs or carry no exp claim are left for the backend
// to judge.
func tokenExpired(token string, now time.Time) bool {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
