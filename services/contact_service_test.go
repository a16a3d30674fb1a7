package services

import (
	"chatline/domain"
	apperrors "chatline/errors"
	"chatline/mocks"
	"chatline/repositories"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestStore(t *testing.T) repositories.IDocumentStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewBadgerDocumentStore(db, slog.Default())
}

func TestContactGraph_Add_Then_Add_Again(t *testing.T) {
	req := require.New(t)
	resolver := mocks.NewMockIIdentityResolver(gomock.NewController(t))
	resolver.EXPECT().Resolve(gomock.Any(), "+61400000002").
		Return(domain.Identity{Phone: "+61400000002", DisplayName: "Bob", PhotoURL: "https://img/bob"}, nil).
		Times(2)
	graph := NewContactGraph(resolver, newTestStore(t), slog.Default())
	ctx := context.Background()

	// When adding a fresh contact
	contact, err := graph.AddContact(ctx, "+61400000001", "+61400000002")

	// Then the denormalized snapshot comes back
	req.NoError(err)
	req.Equal(domain.Contact{Phone: "+61400000002", Name: "Bob", PhotoURL: "https://img/bob"}, contact)

	// And adding it again is the idempotent no-op, not a failure
	_, err = graph.AddContact(ctx, "+61400000001", "+61400000002")
	req.ErrorIs(err, apperrors.ErrAlreadyExists)

	// And the membership is visible exactly once
	seq, err := graph.ListContacts(ctx, "+61400000001")
	req.NoError(err)
	count := 0
	for range seq {
		count++
	}
	req.Equal(1, count)
}

func TestContactGraph_Add_Unknown_Contact(t *testing.T) {
	req := require.New(t)
	resolver := mocks.NewMockIIdentityResolver(gomock.NewController(t))
	resolver.EXPECT().Resolve(gomock.Any(), "+61400000009").
		Return(domain.Identity{}, fmt.Errorf("%w: +61400000009", apperrors.ErrUnknownIdentity))
	graph := NewContactGraph(resolver, newTestStore(t), slog.Default())

	_, err := graph.AddContact(context.Background(), "+61400000001", "+61400000009")
	req.ErrorIs(err, apperrors.ErrUnknownIdentity)
}

func TestContactGraph_List_Tolerates_Resolution_Faults(t *testing.T) {
	req := require.New(t)
	resolver := mocks.NewMockIIdentityResolver(gomock.NewController(t))
	store := newTestStore(t)
	graph := NewContactGraph(resolver, store, slog.Default())
	ctx := context.Background()

	// Given two memberships, one of which no longer resolves
	req.NoError(store.Set(ctx, contactPath("+61400000001", "+61400000002"), []byte("{}")))
	req.NoError(store.Set(ctx, contactPath("+61400000001", "+61400000003"), []byte("{}")))
	resolver.EXPECT().Resolve(gomock.Any(), "+61400000002").
		Return(domain.Identity{Phone: "+61400000002", DisplayName: "Bob"}, nil)
	resolver.EXPECT().Resolve(gomock.Any(), "+61400000003").
		Return(domain.Identity{}, fmt.Errorf("%w: directory down", apperrors.ErrUpstream))

	// When listing
	seq, err := graph.ListContacts(ctx, "+61400000001")
	req.NoError(err)

	byPhone := map[string]error{}
	for contact, err := range seq {
		byPhone[contact.Phone] = err
	}

	// Then the faulty contact is present as an errored unit and the
	// healthy one is unaffected
	req.Len(byPhone, 2)
	req.NoError(byPhone["+61400000002"])
	req.ErrorIs(byPhone["+61400000003"], apperrors.ErrUpstream)
}
