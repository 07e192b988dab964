// Package firestorestore implements store.Store on Firestore. Each namespace
// maps to a collection and each key to a document holding the raw value.
package firestorestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bft-labs/syncwire/pkg/log"
	"github.com/bft-labs/syncwire/pkg/store"
)

const valueField = "value"

// ErrNilClient is returned when no Firestore client is supplied.
var ErrNilClient = errors.New("firestorestore: client is required")

// Store is a Firestore backed store.Store. The client lifecycle stays with
// the caller.
type Store struct {
	client           *firestore.Client
	collectionPrefix string
	logger           log.Logger
}

// New wraps client. collectionPrefix namespaces the collections used.
func New(client *firestore.Client, collectionPrefix string, logger log.Logger) (*Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if collectionPrefix == "" {
		collectionPrefix = "syncwire"
	}
	return &Store{
		client:           client,
		collectionPrefix: collectionPrefix,
		logger:           log.OrNoop(logger).With(log.Component("firestorestore")),
	}, nil
}

func (s *Store) doc(namespace, key string) *firestore.DocumentRef {
	return s.client.Collection(s.collectionPrefix + "_" + namespace).Doc(key)
}

func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := store.ValidateKey(namespace, key); err != nil {
		return nil, err
	}
	snap, err := s.doc(namespace, key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, store.ErrNotFound
		}
		s.logger.Error("firestore get failed", log.String("namespace", namespace), log.String("key", key), log.Err(err))
		return nil, fmt.Errorf("firestore get %s/%s: %w", namespace, key, err)
	}
	raw, err := snap.DataAt(valueField)
	if err != nil {
		return nil, fmt.Errorf("firestore read %s/%s: %w", namespace, key, err)
	}
	value, ok := raw.([]byte)
	if !ok {
		return nil, fmt.Errorf("firestore read %s/%s: unexpected value type %T", namespace, key, raw)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := store.ValidateKey(namespace, key); err != nil {
		return err
	}
	_, err := s.doc(namespace, key).Set(ctx, map[string]interface{}{
		valueField:  value,
		"updatedAt": time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("firestore set failed", log.String("namespace", namespace), log.String("key", key), log.Err(err))
		return fmt.Errorf("firestore set %s/%s: %w", namespace, key, err)
	}
	return nil
}
