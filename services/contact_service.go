package services

import (
	"chatline/domain"
	apperrors "chatline/errors"
	"chatline/identity"
	"chatline/repositories"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
)

type IContactGraph interface {
	AddContact(ctx context.Context, owner, contact string) (domain.Contact, error)
	ListContacts(ctx context.Context, owner string) (iter.Seq2[domain.Contact, error], error)
}

// ContactGraph maintains per-identity idempotent contact membership on
// top of the document store.
type ContactGraph struct {
	resolver identity.IIdentityResolver
	store    repositories.IDocumentStore
	log      *slog.Logger
}

func NewContactGraph(resolver identity.IIdentityResolver, store repositories.IDocumentStore,
	log *slog.Logger) *ContactGraph {
	return &ContactGraph{resolver: resolver, store: store, log: log}
}

// AddContact adds contact to owner's list and returns the denormalized
// snapshot taken at add time. errors.ErrAlreadyExists signals the
// idempotent no-op, errors.ErrUnknownIdentity a contact with no account.
//
// Lookup-then-create is not transactional: two racing adds for the same
// pair may both observe "not present" and both write. The marker write
// is idempotent at the storage layer, so only the Added/AlreadyExists
// signal can be imprecise under race, which callers tolerate.
func (g *ContactGraph) AddContact(ctx context.Context, owner, contact string) (domain.Contact, error) {
	resolved, err := g.resolver.Resolve(ctx, contact)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnknownIdentity) {
			return domain.Contact{}, err
		}
		return domain.Contact{}, fmt.Errorf("%w: resolving %s: %v", apperrors.ErrUpstream, contact, err)
	}

	path := contactPath(owner, contact)
	if _, err = g.store.Get(ctx, path); err == nil {
		return domain.Contact{}, fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, contact)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return domain.Contact{}, fmt.Errorf("%w: reading %s: %v", apperrors.ErrUpstream, path, err)
	}

	if err = g.store.Set(ctx, path, []byte("{}")); err != nil {
		return domain.Contact{}, fmt.Errorf("%w: writing %s: %v", apperrors.ErrUpstream, path, err)
	}
	g.log.Info(fmt.Sprintf("Contact %s added for %s", contact, owner))
	return resolved.AsContact(), nil
}

// ListContacts enumerates owner's contacts as a lazy, finite,
// non-restartable sequence of per-contact snapshots. A resolution
// failure for one contact is yielded as that contact's phone plus the
// error and does not abort the rest. The listing itself failing is the
// returned error.
func (g *ContactGraph) ListContacts(ctx context.Context, owner string) (iter.Seq2[domain.Contact, error], error) {
	docs, err := g.store.List(ctx, contactsCollection(owner))
	if err != nil {
		return nil, fmt.Errorf("%w: listing contacts for %s: %v", apperrors.ErrUpstream, owner, err)
	}

	return func(yield func(domain.Contact, error) bool) {
		for _, doc := range docs {
			resolved, err := g.resolver.Resolve(ctx, doc.ID)
			if err != nil {
				g.log.Warn(fmt.Sprintf("Contact %s of %s did not resolve: %v", doc.ID, owner, err))
				if !yield(domain.Contact{Phone: doc.ID}, err) {
					return
				}
				continue
			}
			if !yield(resolved.AsContact(), nil) {
				return
			}
		}
	}, nil
}
