package runtime

import (
	"chatline/contract"
	"chatline/domain"
	"chatline/domain/event"
	apperrors "chatline/errors"
	"chatline/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeSink records every pushed event; tests run single-flow so no
// locking is needed.
type fakeSink struct {
	events []event.Outbound
	dead   bool
}

func (f *fakeSink) Push(e event.Outbound) bool {
	if f.dead {
		return false
	}
	f.events = append(f.events, e)
	return true
}

func (f *fakeSink) Alive() bool { return !f.dead }

func (f *fakeSink) names() []string {
	var out []string
	for _, e := range f.events {
		out = append(out, e.Event)
	}
	return out
}

func knownResolver(t *testing.T, phones ...string) *mocks.MockIIdentityResolver {
	t.Helper()
	resolver := mocks.NewMockIIdentityResolver(gomock.NewController(t))
	for _, phone := range phones {
		resolver.EXPECT().Resolve(gomock.Any(), phone).
			Return(domain.Identity{Phone: phone}, nil).AnyTimes()
	}
	return resolver
}

func TestDirectory_Bind_And_Resolve(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory(knownResolver(t, "+61400000001"), slog.Default())
	conn := &fakeSink{}

	// When a known identity binds
	outcome := directory.Bind(context.Background(), "+61400000001", conn)

	// Then the connection resolves to its key
	req.Equal(contract.Connected, outcome)
	key, ok := directory.Resolve(conn)
	req.True(ok)
	req.Equal("+61400000001", key)
	req.Equal(1, directory.Count())
}

func TestDirectory_Bind_Unknown_Identity(t *testing.T) {
	req := require.New(t)
	resolver := mocks.NewMockIIdentityResolver(gomock.NewController(t))
	resolver.EXPECT().Resolve(gomock.Any(), "+61400000009").
		Return(domain.Identity{}, fmt.Errorf("%w: +61400000009", apperrors.ErrUnknownIdentity))
	directory := NewDirectory(resolver, slog.Default())
	conn := &fakeSink{}

	req.Equal(contract.Unauthenticated, directory.Bind(context.Background(), "+61400000009", conn))
	_, ok := directory.Resolve(conn)
	req.False(ok)
}

func TestDirectory_Bind_Lookup_Error(t *testing.T) {
	req := require.New(t)
	resolver := mocks.NewMockIIdentityResolver(gomock.NewController(t))
	resolver.EXPECT().Resolve(gomock.Any(), "+61400000001").
		Return(domain.Identity{}, fmt.Errorf("%w: directory down", apperrors.ErrUpstream))
	directory := NewDirectory(resolver, slog.Default())

	// A lookup fault leaves the connection unbound, same as no account
	req.Equal(contract.Unauthenticated, directory.Bind(context.Background(), "+61400000001", &fakeSink{}))
	req.Equal(0, directory.Count())
}

func TestDirectory_Duplicate_Bind_Is_Rejected(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory(knownResolver(t, "+61400000001"), slog.Default())
	first := &fakeSink{}
	second := &fakeSink{}
	ctx := context.Background()

	// Given a live session for the key
	req.Equal(contract.Connected, directory.Bind(ctx, "+61400000001", first))

	// When a second connection binds the same key
	outcome := directory.Bind(ctx, "+61400000001", second)

	// Then it is rejected, the old binding survives and close-old-session
	// is broadcast to every bound connection
	req.Equal(contract.Rejected, outcome)
	key, ok := directory.Resolve(first)
	req.True(ok)
	req.Equal("+61400000001", key)
	_, ok = directory.Resolve(second)
	req.False(ok)
	req.Contains(first.names(), event.CloseOldSession)
	req.Equal(1, directory.Count())
}

func TestDirectory_Bind_Dead_Connection(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory(knownResolver(t, "+61400000001"), slog.Default())
	conn := &fakeSink{dead: true}

	// A connection that died while the lookup was outstanding is never
	// registered
	req.Equal(contract.Unauthenticated, directory.Bind(context.Background(), "+61400000001", conn))
	req.Equal(0, directory.Count())
}

func TestDirectory_Unbind_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory(knownResolver(t, "+61400000001"), slog.Default())
	conn := &fakeSink{}
	ctx := context.Background()

	req.Equal(contract.Connected, directory.Bind(ctx, "+61400000001", conn))

	directory.Unbind(conn)
	directory.Unbind(conn) // double teardown must be safe

	_, ok := directory.Resolve(conn)
	req.False(ok)
	req.Equal(0, directory.Count())

	// And the key is free for a fresh bind
	req.Equal(contract.Connected, directory.Bind(ctx, "+61400000001", &fakeSink{}))
}

func TestDirectory_DeliverTo_Offline(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory(knownResolver(t), slog.Default())

	req.False(directory.DeliverTo("+61400000001", event.Outbound{Event: event.NewMessage}))
}

func TestDirectory_BroadcastExcept_Skips_Source(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory(knownResolver(t, "+61400000001", "+61400000002"), slog.Default())
	alice := &fakeSink{}
	bob := &fakeSink{}
	ctx := context.Background()

	req.Equal(contract.Connected, directory.Bind(ctx, "+61400000001", alice))
	req.Equal(contract.Connected, directory.Bind(ctx, "+61400000002", bob))

	directory.BroadcastExcept(alice, event.Outbound{Event: event.ChangedName})

	req.Empty(alice.names())
	req.Contains(bob.names(), event.ChangedName)
}
