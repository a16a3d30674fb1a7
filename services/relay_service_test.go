package services

import (
	"chatline/contract"
	"chatline/domain"
	"chatline/domain/event"
	apperrors "chatline/errors"
	"chatline/mocks"
	"chatline/observability"
	"chatline/repositories"
	"chatline/runtime"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	alice = "+61400000001"
	bob   = "+61400000002"
)

func knownTo(t *testing.T, phones ...string) *mocks.MockIIdentityResolver {
	t.Helper()
	resolver := mocks.NewMockIIdentityResolver(gomock.NewController(t))
	for _, phone := range phones {
		resolver.EXPECT().Resolve(gomock.Any(), phone).
			Return(domain.Identity{Phone: phone}, nil).AnyTimes()
	}
	return resolver
}

func TestRelay_Send_Writes_Both_Mailboxes(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	directory := mocks.NewMockISessionDirectory(gomock.NewController(t))
	relay := NewMessageRelay(knownTo(t, alice, bob), store, directory,
		observability.NewMonitor(nil), slog.Default())
	ctx := context.Background()

	// The recipient is offline; a missed live push does not matter
	directory.EXPECT().DeliverTo(bob, gomock.Any()).Return(false)

	// When sending
	sent, err := relay.Send(ctx, alice, bob, "hi")
	req.NoError(err)
	req.NotEmpty(sent.ID)

	// Then both mailboxes hold a copy with identical id, time and body
	fromAlice, err := relay.FetchAll(ctx, alice, bob)
	req.NoError(err)
	fromBob, err := relay.FetchAll(ctx, bob, alice)
	req.NoError(err)
	req.Len(fromAlice, 1)
	req.Len(fromBob, 1)
	req.Equal(fromAlice[0], fromBob[0])
	req.Equal(sent.ID, fromAlice[0].ID)
	req.Equal("hi", fromAlice[0].Body)
}

func TestRelay_Send_Pushes_To_Bound_Recipient(t *testing.T) {
	req := require.New(t)
	directory := mocks.NewMockISessionDirectory(gomock.NewController(t))
	monitor := observability.NewMonitor(nil)
	relay := NewMessageRelay(knownTo(t, bob), newTestStore(t), directory, monitor, slog.Default())

	var pushed event.Outbound
	directory.EXPECT().DeliverTo(bob, gomock.Any()).
		DoAndReturn(func(_ string, e event.Outbound) bool {
			pushed = e
			return true
		})

	sent, err := relay.Send(context.Background(), alice, bob, "hi")
	req.NoError(err)

	req.Equal(event.NewMessage, pushed.Event)
	req.Equal(sent, pushed.Data)
	req.Equal(uint64(1), monitor.LivePushes.Load())
}

func TestRelay_Send_Self_Chat_Stores_One_Copy(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	// No DeliverTo expectation: self-chat never live-pushes
	directory := mocks.NewMockISessionDirectory(gomock.NewController(t))
	relay := NewMessageRelay(knownTo(t, alice), store, directory,
		observability.NewMonitor(nil), slog.Default())
	ctx := context.Background()

	sent, err := relay.Send(ctx, alice, alice, "note to self")
	req.NoError(err)

	docs, err := store.List(ctx, mailboxCollection(alice, alice))
	req.NoError(err)
	req.Len(docs, 1)
	req.Equal(sent.ID, docs[0].ID)
}

func TestRelay_Send_Unknown_Recipient(t *testing.T) {
	req := require.New(t)
	resolver := mocks.NewMockIIdentityResolver(gomock.NewController(t))
	resolver.EXPECT().Resolve(gomock.Any(), bob).
		Return(domain.Identity{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownIdentity, bob))
	// Strict mocks: no store write and no delivery may happen
	store := mocks.NewMockIDocumentStore(gomock.NewController(t))
	directory := mocks.NewMockISessionDirectory(gomock.NewController(t))
	relay := NewMessageRelay(resolver, store, directory,
		observability.NewMonitor(nil), slog.Default())

	_, err := relay.Send(context.Background(), alice, bob, "hi")
	req.ErrorIs(err, apperrors.ErrUnknownIdentity)
}

// failingSetStore delegates to a real store but refuses the recipient
// copy, forcing the compensation path.
type failingSetStore struct {
	repositories.IDocumentStore
}

func (s failingSetStore) Set(context.Context, string, []byte) error {
	return fmt.Errorf("connection reset")
}

func TestRelay_Send_Compensates_On_Recipient_Write_Failure(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	directory := mocks.NewMockISessionDirectory(gomock.NewController(t))
	monitor := observability.NewMonitor(nil)
	relay := NewMessageRelay(knownTo(t, alice, bob), failingSetStore{store}, directory,
		monitor, slog.Default())
	ctx := context.Background()

	// When the recipient-mailbox write fails
	_, err := relay.Send(ctx, alice, bob, "hi")

	// Then the caller sees a failure, never a one-sided success
	req.ErrorIs(err, apperrors.ErrPartialWrite)

	// And the sender copy was rolled back
	fromAlice, err := relay.FetchAll(ctx, alice, bob)
	req.NoError(err)
	req.Empty(fromAlice)
	req.Equal(uint64(1), monitor.Compensations.Load())
	req.Equal(uint64(0), monitor.MessagesRelayed.Load())
}

func TestRelay_Send_Compensation_Failure_Leaves_Orphan(t *testing.T) {
	req := require.New(t)
	store := mocks.NewMockIDocumentStore(gomock.NewController(t))
	directory := mocks.NewMockISessionDirectory(gomock.NewController(t))
	monitor := observability.NewMonitor(nil)
	relay := NewMessageRelay(knownTo(t, bob), store, directory, monitor, slog.Default())

	store.EXPECT().Add(gomock.Any(), mailboxCollection(alice, bob), gomock.Any()).
		Return("doc-1", nil)
	store.EXPECT().Set(gomock.Any(), messagePath(bob, alice, "doc-1"), gomock.Any()).
		Return(fmt.Errorf("connection reset"))
	store.EXPECT().Delete(gomock.Any(), messagePath(alice, bob, "doc-1")).
		Return(fmt.Errorf("still down"))

	_, err := relay.Send(context.Background(), alice, bob, "hi")

	// The rollback itself failed: generic failure to the caller, orphan
	// counted for the operator
	req.ErrorIs(err, apperrors.ErrCompensationFailed)
	req.Equal(uint64(1), monitor.Orphans.Load())
}

// gatedSetStore delegates to a real store but parks the recipient copy
// until released, holding a send in flight.
type gatedSetStore struct {
	repositories.IDocumentStore
	entered chan struct{}
	release chan struct{}
}

func (s gatedSetStore) Set(ctx context.Context, path string, doc []byte) error {
	close(s.entered)
	<-s.release
	return s.IDocumentStore.Set(ctx, path, doc)
}

func TestRelay_Sender_Disconnect_During_Inflight_Send(t *testing.T) {
	req := require.New(t)
	store := gatedSetStore{
		IDocumentStore: newTestStore(t),
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	resolver := knownTo(t, alice, bob)
	directory := runtime.NewDirectory(resolver, slog.Default())
	relay := NewMessageRelay(resolver, store, directory,
		observability.NewMonitor(directory.Count), slog.Default())
	ctx := context.Background()

	aliceConn := &recorderSink{}
	req.Equal(contract.Connected, directory.Bind(ctx, alice, aliceConn))

	done := make(chan error, 1)
	go func() {
		_, err := relay.Send(ctx, alice, bob, "hi")
		done <- err
	}()

	// When the sender disconnects while the recipient write is parked
	<-store.entered
	directory.Unbind(aliceConn)

	// Then the binding is gone immediately, not after the send completes
	_, bound := directory.Resolve(aliceConn)
	req.False(bound)

	// And the completing send succeeds without resurrecting it
	close(store.release)
	req.NoError(<-done)
	req.Zero(directory.Count())
	_, bound = directory.Resolve(aliceConn)
	req.False(bound)

	// The message itself still landed on the recipient side
	msgs, err := relay.FetchAll(ctx, bob, alice)
	req.NoError(err)
	req.Len(msgs, 1)
}

func TestRelay_FetchAll_Unknown_Counterpart(t *testing.T) {
	req := require.New(t)
	resolver := mocks.NewMockIIdentityResolver(gomock.NewController(t))
	resolver.EXPECT().Resolve(gomock.Any(), bob).
		Return(domain.Identity{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownIdentity, bob))
	relay := NewMessageRelay(resolver, newTestStore(t),
		mocks.NewMockISessionDirectory(gomock.NewController(t)),
		observability.NewMonitor(nil), slog.Default())

	_, err := relay.FetchAll(context.Background(), alice, bob)
	req.ErrorIs(err, apperrors.ErrUnknownIdentity)
}
