package identity

import (
	"chatline/domain"
	apperrors "chatline/errors"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const accountPrefix = "account:"

// BadgerDirectory is a self-hosted identity directory backed by
// BadgerDB, keyed "account:{phone}". It stands in for the external
// provider in deployments that do not have one; accounts are created
// out of band with the seed tool.
type BadgerDirectory struct {
	db *badger.DB
}

func NewBadgerDirectory(db *badger.DB) *BadgerDirectory {
	return &BadgerDirectory{db: db}
}

func (d *BadgerDirectory) Resolve(_ context.Context, phone string) (domain.Identity, error) {
	var identity domain.Identity
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(accountPrefix + phone))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &identity)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Identity{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownIdentity, phone)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}
	return identity, nil
}

func (d *BadgerDirectory) UpdateDisplayName(ctx context.Context, phone, name string) error {
	identity, err := d.Resolve(ctx, phone)
	if err != nil {
		return err
	}
	identity.DisplayName = name
	return d.put(identity)
}

// CreateAccount registers a new identity. Used by the seed tool and by
// tests; the relay itself never creates accounts.
func (d *BadgerDirectory) CreateAccount(identity domain.Identity) error {
	return d.put(identity)
}

func (d *BadgerDirectory) put(identity domain.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(accountPrefix+identity.Phone), data)
	})
}
