//go:generate go run go.uber.org/mock/mockgen -source=document_store.go -destination=../mocks/mock_document_store.go -package=mocks
package repositories

import (
	apperrors "chatline/errors"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Document is one stored document plus the ID it lives under.
type Document struct {
	ID   string
	Data []byte
}

// IDocumentStore is a key-path document/collection store. Paths are
// slash-separated; a collection is a path whose direct children are
// documents. There are no transactions across paths.
type IDocumentStore interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Set(ctx context.Context, path string, doc []byte) error
	// Add stores doc under a generated ID inside the collection and
	// returns that ID.
	Add(ctx context.Context, collection string, doc []byte) (string, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, collection string) ([]Document, error)
}

const docPrefix = "doc:"

// BadgerDocumentStore persists documents in BadgerDB.
// The key is formatted as "doc:{path}" so that listing a collection is
// a prefix scan over "doc:{collection}/".
type BadgerDocumentStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerDocumentStore(db *badger.DB, log *slog.Logger) *BadgerDocumentStore {
	return &BadgerDocumentStore{db: db, log: log}
}

func (s *BadgerDocumentStore) Get(_ context.Context, path string) ([]byte, error) {
	var doc []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(docPrefix + path))
		if err != nil {
			return err
		}
		doc, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, path)
	}
	return doc, err
}

func (s *BadgerDocumentStore) Set(_ context.Context, path string, doc []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(docPrefix+path), doc)
	})
}

func (s *BadgerDocumentStore) Add(ctx context.Context, collection string, doc []byte) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection+"/"+id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *BadgerDocumentStore) Delete(_ context.Context, path string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(docPrefix + path))
	})
}

// List returns the direct children of a collection. Grandchildren
// (documents holding sub-collections) are skipped, mirroring how a
// document store separates a document from the collections below it.
func (s *BadgerDocumentStore) List(_ context.Context, collection string) ([]Document, error) {
	var docs []Document
	prefix := []byte(docPrefix + collection + "/")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			if strings.Contains(id, "/") {
				continue
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			docs = append(docs, Document{ID: id, Data: data})
		}
		return nil
	})
	return docs, err
}
