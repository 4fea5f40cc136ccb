package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	mu           sync.Mutex
	subscribers  map[int]func(*AuthUser)
	next         int
	subscribed   int
	unsubscribed int
	signOuts     int
	signOutErr   error
}

func newFakeStream() *fakeStream {
	return &fakeStream{subscribers: make(map[int]func(*AuthUser))}
}

func (s *fakeStream) Subscribe(fn func(*AuthUser)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subscribed++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			s.unsubscribed++
		}
	}
}

func (s *fakeStream) SignOut(context.Context) error {
	s.mu.Lock()
	s.signOuts++
	err := s.signOutErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.emit(nil)
	return nil
}

// emit delivers u to every live subscriber.
func (s *fakeStream) emit(u *AuthUser) {
	s.mu.Lock()
	fns := make([]func(*AuthUser), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

func (s *fakeStream) counts() (subscribed, unsubscribed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed, s.unsubscribed
}

type failingStorage struct {
	*MemoryStorage
	getErr error
	setErr error
}

func (s failingStorage) Get(key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.MemoryStorage.Get(key)
}

func (s failingStorage) Set(key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.MemoryStorage.Set(key, value)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("guest-%d", n)
	}
}

func newTestResolver(t *testing.T, storage Storage, stream AuthStream) *Resolver {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewResolver(storage, stream, WithLogger(logger), WithIDGenerator(sequentialIDs()))
	t.Cleanup(r.Close)
	return r
}

func persistGuest(t *testing.T, storage Storage, id string) {
	t.Helper()
	raw, err := GuestRecord{Identifier: id, IsGuest: true, DisplayName: GuestDisplayName}.Encode()
	require.NoError(t, err)
	require.NoError(t, storage.Set(GuestKey, string(raw)))
}

func TestResolverAdoptsPersistedGuestWithoutSubscribing(t *testing.T) {
	storage := NewMemoryStorage()
	persistGuest(t, storage, "guest-persisted")
	stream := newFakeStream()

	r := newTestResolver(t, storage, stream)
	r.Start()

	current := r.Current()
	assert.Equal(t, KindGuest, current.Kind)
	assert.Equal(t, "guest-persisted", current.ID)
	assert.Equal(t, GuestDisplayName, current.DisplayName)

	subscribed, _ := stream.counts()
	assert.Zero(t, subscribed)
}

func TestResolverPersistedGuestWinsOverStream(t *testing.T) {
	storage := NewMemoryStorage()
	persistGuest(t, storage, "guest-persisted")
	stream := newFakeStream()

	r := newTestResolver(t, storage, stream)
	r.Start()
	stream.emit(&AuthUser{ID: "user-1"})

	assert.Equal(t, "guest-persisted", r.Current().ID)
}

func TestResolverSubscribesOnceForInvalidRecords(t *testing.T) {
	cases := map[string]func(Storage){
		"missing":      func(Storage) {},
		"not json":     func(s Storage) { _ = s.Set(GuestKey, "{not json") },
		"empty id":     func(s Storage) { _ = s.Set(GuestKey, `{"identifier":"","isGuest":true}`) },
		"not a guest":  func(s Storage) { _ = s.Set(GuestKey, `{"identifier":"x","isGuest":false}`) },
		"wrong shape":  func(s Storage) { _ = s.Set(GuestKey, `[1,2,3]`) },
		"empty string": func(s Storage) { _ = s.Set(GuestKey, "") },
	}

	for name, prepare := range cases {
		t.Run(name, func(t *testing.T) {
			storage := NewMemoryStorage()
			prepare(storage)
			stream := newFakeStream()

			r := newTestResolver(t, storage, stream)
			r.Start()

			subscribed, _ := stream.counts()
			assert.Equal(t, 1, subscribed)
			assert.Equal(t, KindPending, r.Current().Kind)
		})
	}
}

func TestResolverReadFailureFallsThroughToStream(t *testing.T) {
	storage := failingStorage{MemoryStorage: NewMemoryStorage(), getErr: errors.New("disk gone")}
	stream := newFakeStream()

	r := newTestResolver(t, storage, stream)
	r.Start()

	subscribed, _ := stream.counts()
	assert.Equal(t, 1, subscribed)
}

func TestResolverStaysPendingUntilStreamEmits(t *testing.T) {
	stream := newFakeStream()
	r := newTestResolver(t, NewMemoryStorage(), stream)
	r.Start()

	assert.False(t, r.Current().Resolved())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolverAdoptsAuthenticatedUser(t *testing.T) {
	stream := newFakeStream()
	r := newTestResolver(t, NewMemoryStorage(), stream)

	var seen []Identity
	r.Subscribe(func(id Identity) { seen = append(seen, id) })
	r.Start()
	stream.emit(&AuthUser{ID: "user-1", DisplayName: "Ada", Email: "ada@example.com"})

	current := r.Current()
	assert.Equal(t, KindAuthenticated, current.Kind)
	assert.Equal(t, "user-1", current.ID)
	assert.Equal(t, "ada@example.com", current.Email)
	require.Len(t, seen, 1)
	assert.Equal(t, current, seen[0])
}

func TestResolverSynthesizesAndPersistsGuest(t *testing.T) {
	storage := NewMemoryStorage()
	stream := newFakeStream()
	r := newTestResolver(t, storage, stream)
	r.Start()

	stream.emit(nil)

	current := r.Current()
	assert.Equal(t, KindGuest, current.Kind)
	assert.Equal(t, "guest-1", current.ID)
	assert.Equal(t, GuestDisplayName, current.DisplayName)
	assert.Equal(t, GuestAvatarURL, current.AvatarURL)

	raw, err := storage.Get(GuestKey)
	require.NoError(t, err)
	rec, err := ParseGuestRecord([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "guest-1", rec.Identifier)
	require.NotNil(t, rec.AvatarRef)
	assert.Equal(t, GuestAvatarURL, *rec.AvatarRef)

	// A later process adopts the persisted guest without the stream.
	next := newFakeStream()
	again := newTestResolver(t, storage, next)
	again.Start()
	assert.Equal(t, "guest-1", again.Current().ID)
	subscribed, _ := next.counts()
	assert.Zero(t, subscribed)
}

func TestResolverRepeatedNoIdentityKeepsGuest(t *testing.T) {
	stream := newFakeStream()
	r := newTestResolver(t, NewMemoryStorage(), stream)
	r.Start()

	stream.emit(nil)
	stream.emit(nil)

	assert.Equal(t, "guest-1", r.Current().ID)
}

func TestResolverGuestWriteFailureIsNotFatal(t *testing.T) {
	storage := failingStorage{MemoryStorage: NewMemoryStorage(), setErr: errors.New("quota exceeded")}
	stream := newFakeStream()
	r := newTestResolver(t, storage, stream)
	r.Start()

	stream.emit(nil)

	current := r.Current()
	assert.Equal(t, KindGuest, current.Kind)
	assert.Equal(t, "guest-1", current.ID)

	_, err := storage.MemoryStorage.Get(GuestKey)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestResolverIgnoresPayloadWithoutID(t *testing.T) {
	stream := newFakeStream()
	r := newTestResolver(t, NewMemoryStorage(), stream)
	r.Start()

	stream.emit(&AuthUser{DisplayName: "nobody"})

	assert.Equal(t, KindPending, r.Current().Kind)
}

func TestResolverGuestSignOutMintsFreshIdentifier(t *testing.T) {
	storage := NewMemoryStorage()
	persistGuest(t, storage, "guest-old")
	stream := newFakeStream()
	r := newTestResolver(t, storage, stream)
	r.Start()

	var kinds []Kind
	r.Subscribe(func(id Identity) { kinds = append(kinds, id.Kind) })

	require.NoError(t, r.SignOut(context.Background()))

	_, err := storage.Get(GuestKey)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, KindUnauthenticated, r.Current().Kind)

	subscribed, _ := stream.counts()
	assert.Equal(t, 1, subscribed)

	stream.emit(nil)

	current := r.Current()
	assert.Equal(t, KindGuest, current.Kind)
	assert.NotEqual(t, "guest-old", current.ID)
	assert.Equal(t, []Kind{KindUnauthenticated, KindGuest}, kinds)
}

func TestResolverSynthesizedGuestSignOutResubscribes(t *testing.T) {
	storage := NewMemoryStorage()
	stream := newFakeStream()
	r := newTestResolver(t, storage, stream)
	r.Start()
	stream.emit(nil)
	require.Equal(t, "guest-1", r.Current().ID)

	require.NoError(t, r.SignOut(context.Background()))

	subscribed, unsubscribed := stream.counts()
	assert.Equal(t, 2, subscribed)
	assert.Equal(t, 1, unsubscribed)

	stream.emit(nil)
	assert.Equal(t, "guest-2", r.Current().ID)
}

func TestResolverAuthenticatedSignOutDelegatesToStream(t *testing.T) {
	storage := NewMemoryStorage()
	stream := newFakeStream()
	r := newTestResolver(t, storage, stream)
	r.Start()
	stream.emit(&AuthUser{ID: "user-1"})

	require.NoError(t, r.SignOut(context.Background()))

	assert.Equal(t, 1, stream.signOuts)
	current := r.Current()
	assert.Equal(t, KindGuest, current.Kind)
	assert.Equal(t, "guest-1", current.ID)
}

func TestResolverAuthenticatedSignOutError(t *testing.T) {
	stream := newFakeStream()
	stream.signOutErr = errors.New("offline")
	r := newTestResolver(t, NewMemoryStorage(), stream)
	r.Start()
	stream.emit(&AuthUser{ID: "user-1"})

	err := r.SignOut(context.Background())
	assert.EqualError(t, err, "offline")
	assert.Equal(t, KindAuthenticated, r.Current().Kind)
}

func TestResolverContinueAsGuest(t *testing.T) {
	storage := NewMemoryStorage()
	stream := newFakeStream()
	r := newTestResolver(t, storage, stream)
	r.Start()

	id, err := r.ContinueAsGuest()
	require.NoError(t, err)
	assert.Equal(t, KindGuest, id.Kind)
	assert.Empty(t, id.AvatarURL)

	_, unsubscribed := stream.counts()
	assert.Equal(t, 1, unsubscribed)

	raw, err := storage.Get(GuestKey)
	require.NoError(t, err)
	rec, err := ParseGuestRecord([]byte(raw))
	require.NoError(t, err)
	assert.Nil(t, rec.AvatarRef)
	assert.Equal(t, id.ID, rec.Identifier)
}

func TestResolverContinueAsGuestReportsWriteFailure(t *testing.T) {
	storage := failingStorage{MemoryStorage: NewMemoryStorage(), setErr: errors.New("read-only")}
	r := newTestResolver(t, storage, newFakeStream())

	_, err := r.ContinueAsGuest()
	assert.EqualError(t, err, "read-only")
}

func TestResolverIgnoresCallbacksAfterClose(t *testing.T) {
	stream := newFakeStream()
	r := NewResolver(NewMemoryStorage(), stream, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	var captured func(*AuthUser)
	r.Start()
	stream.mu.Lock()
	for _, fn := range stream.subscribers {
		captured = fn
	}
	stream.mu.Unlock()
	require.NotNil(t, captured)

	calls := 0
	r.Subscribe(func(Identity) { calls++ })
	r.Close()

	captured(&AuthUser{ID: "user-1"})

	assert.Equal(t, KindPending, r.Current().Kind)
	assert.Zero(t, calls)
	_, unsubscribed := stream.counts()
	assert.Equal(t, 1, unsubscribed)
}

func TestResolverIgnoresCallbacksFromPreviousCycle(t *testing.T) {
	storage := NewMemoryStorage()
	stream := newFakeStream()
	r := newTestResolver(t, storage, stream)
	r.Start()

	var stale func(*AuthUser)
	stream.mu.Lock()
	for _, fn := range stream.subscribers {
		stale = fn
	}
	stream.mu.Unlock()

	_, err := r.ContinueAsGuest()
	require.NoError(t, err)
	guestID := r.Current().ID

	stale(&AuthUser{ID: "user-1"})

	assert.Equal(t, KindGuest, r.Current().Kind)
	assert.Equal(t, guestID, r.Current().ID)
}

func TestResolverWaitReturnsResolvedIdentity(t *testing.T) {
	stream := newFakeStream()
	r := newTestResolver(t, NewMemoryStorage(), stream)
	r.Start()

	go stream.emit(&AuthUser{ID: "user-1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	id, err := r.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.ID)
}

func TestResolverUnsubscribeStopsNotifications(t *testing.T) {
	stream := newFakeStream()
	r := newTestResolver(t, NewMemoryStorage(), stream)

	calls := 0
	unsubscribe := r.Subscribe(func(Identity) { calls++ })
	unsubscribe()
	unsubscribe()

	r.Start()
	stream.emit(&AuthUser{ID: "user-1"})
	assert.Zero(t, calls)
}
