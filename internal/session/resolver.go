// Package session resolves who the current viewer is on this device.
//
// Two sources are reconciled: a guest record persisted in device-local
// storage, and the backend's auth stream. Each resolution cycle takes exactly
// one of two paths, decided before any asynchronous work starts:
//
//   - a well-formed persisted guest is adopted synchronously and the auth
//     stream is not subscribed to, or
//   - the resolver subscribes to the auth stream once and waits for either an
//     authenticated user or an explicit "no identity" signal, which makes it
//     synthesize and persist a fresh guest.
//
// A persisted guest therefore wins over whatever the backend reports for as
// long as the record exists.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// AuthStream is the backend's push-style session feed.
type AuthStream interface {
	// Subscribe registers fn and returns a function that cancels the
	// registration. fn receives nil for "no identity". It may be invoked
	// synchronously from Subscribe or later from another goroutine.
	Subscribe(fn func(*AuthUser)) (unsubscribe func())
	// SignOut terminates the backend session. The stream reports the change
	// through the subscription.
	SignOut(ctx context.Context) error
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for non-fatal storage problems.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithIDGenerator overrides how synthesized guest identifiers are minted.
func WithIDGenerator(fn func() string) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// Resolver owns the current Identity for one device. It is safe for
// concurrent use.
type Resolver struct {
	storage Storage
	stream  AuthStream
	logger  *slog.Logger
	newID   func() string

	mu          sync.Mutex
	current     Identity
	cycle       uint64
	unsubscribe func()
	closed      bool
	listeners   map[int]func(Identity)
	nextID      int
}

// NewResolver returns a pending Resolver. Call Start to resolve.
func NewResolver(storage Storage, stream AuthStream, opts ...Option) *Resolver {
	if storage == nil {
		panic("session: storage must not be nil")
	}
	if stream == nil {
		panic("session: auth stream must not be nil")
	}

	r := &Resolver{
		storage:   storage,
		stream:    stream,
		logger:    slog.Default(),
		newID:     func() string { return "guest-" + uuid.NewString() },
		current:   Identity{Kind: KindPending},
		listeners: make(map[int]func(Identity)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Current returns the latest identity.
func (r *Resolver) Current() Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Subscribe registers fn for every identity transition and returns a function
// that removes it. fn is not called with the current value.
func (r *Resolver) Subscribe(fn func(Identity)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return func() {}
	}

	id := r.nextID
	r.nextID++
	r.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

// Start begins a resolution cycle, cancelling any stream subscription held by
// the previous one.
func (r *Resolver) Start() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	r.cycle++
	cycle := r.cycle
	previous := r.unsubscribe
	r.unsubscribe = nil

	if rec, ok := r.readGuest(); ok {
		notify := r.setLocked(rec.Identity())
		r.mu.Unlock()
		if previous != nil {
			previous()
		}
		notify()
		return
	}
	r.mu.Unlock()

	if previous != nil {
		previous()
	}

	unsubscribe := r.stream.Subscribe(func(u *AuthUser) {
		r.handleAuth(cycle, u)
	})

	r.mu.Lock()
	if r.closed || r.cycle != cycle {
		r.mu.Unlock()
		unsubscribe()
		return
	}
	r.unsubscribe = unsubscribe
	r.mu.Unlock()
}

// ContinueAsGuest persists a new guest record and re-resolves, which adopts it.
// Unlike automatic synthesis, a failed write is reported because the caller
// explicitly asked for a durable guest session.
func (r *Resolver) ContinueAsGuest() (Identity, error) {
	rec := GuestRecord{
		Identifier:  r.newID(),
		IsGuest:     true,
		DisplayName: GuestDisplayName,
	}
	raw, err := rec.Encode()
	if err != nil {
		return Identity{}, err
	}
	if err := r.storage.Set(GuestKey, string(raw)); err != nil {
		return Identity{}, err
	}

	r.Start()
	return r.Current(), nil
}

// SignOut ends the current session. A guest's record is removed and the
// resolver re-resolves from scratch. An authenticated session is terminated
// at the backend, and the stream's resulting "no identity" signal drives
// guest synthesis.
func (r *Resolver) SignOut(ctx context.Context) error {
	r.mu.Lock()
	kind := r.current.Kind
	closed := r.closed
	r.mu.Unlock()

	if closed {
		return errors.New("session: resolver closed")
	}

	switch kind {
	case KindGuest:
		if err := r.storage.Remove(GuestKey); err != nil {
			return err
		}
		r.mu.Lock()
		notify := r.setLocked(Identity{Kind: KindUnauthenticated})
		r.mu.Unlock()
		notify()
		r.Start()
		return nil
	case KindAuthenticated:
		return r.stream.SignOut(ctx)
	default:
		return nil
	}
}

// Wait blocks until the resolver leaves the pending state or ctx is done.
func (r *Resolver) Wait(ctx context.Context) (Identity, error) {
	done := make(chan Identity, 1)
	unsubscribe := r.Subscribe(func(id Identity) {
		if id.Resolved() {
			select {
			case done <- id:
			default:
			}
		}
	})
	defer unsubscribe()

	if current := r.Current(); current.Resolved() {
		return current, nil
	}

	select {
	case id := <-done:
		return id, nil
	case <-ctx.Done():
		return r.Current(), ctx.Err()
	}
}

// Close cancels the stream subscription and drops all listeners. Stream
// callbacks that arrive afterwards are ignored.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.listeners = make(map[int]func(Identity))
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (r *Resolver) handleAuth(cycle uint64, u *AuthUser) {
	r.mu.Lock()
	if r.closed || cycle != r.cycle {
		r.mu.Unlock()
		return
	}

	var next Identity
	switch {
	case u != nil && u.ID != "":
		next = authenticated(*u)
	case u != nil:
		r.mu.Unlock()
		r.logger.Warn("ignoring auth payload without user id")
		return
	case r.current.Kind == KindGuest:
		// Repeated "no identity" signals keep the guest we already made.
		r.mu.Unlock()
		return
	default:
		next = r.synthesizeGuestLocked()
	}

	notify := r.setLocked(next)
	r.mu.Unlock()
	notify()
}

func (r *Resolver) synthesizeGuestLocked() Identity {
	avatar := GuestAvatarURL
	rec := GuestRecord{
		Identifier:  r.newID(),
		IsGuest:     true,
		DisplayName: GuestDisplayName,
		AvatarRef:   &avatar,
	}

	raw, err := rec.Encode()
	if err == nil {
		err = r.storage.Set(GuestKey, string(raw))
	}
	if err != nil {
		r.logger.Warn("guest session kept in memory only", "guest_id", rec.Identifier, "error", err)
	} else {
		r.logger.Debug("created guest session", "guest_id", rec.Identifier)
	}

	return rec.Identity()
}

// readGuest never fails: unreadable or malformed records count as absent.
func (r *Resolver) readGuest() (GuestRecord, bool) {
	raw, err := r.storage.Get(GuestKey)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			r.logger.Warn("read guest record", "error", err)
		}
		return GuestRecord{}, false
	}

	rec, err := ParseGuestRecord([]byte(raw))
	if err != nil {
		r.logger.Debug("ignoring persisted guest record", "error", err)
		return GuestRecord{}, false
	}
	return rec, true
}

// setLocked updates the identity and returns a function that notifies
// listeners. The caller invokes it after releasing the lock.
func (r *Resolver) setLocked(next Identity) func() {
	r.current = next

	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fns := make([]func(Identity), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.listeners[id])
	}

	return func() {
		for _, fn := range fns {
			fn(next)
		}
	}
}
