package snapshot

import (
	"go.etcd.io/bbolt"

	"github.com/memscape/eastl/errors"
)

var bucketName = []byte("snapshots")

// Store keeps encoded images in a bbolt database, keyed by snapshot id.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o666, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores the image under its id, replacing a previous capture with the
// same id.
func (s *Store) Put(img *Image) error {
	data, err := Encode(img)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(img.ID), data)
	})
}

// Get loads and verifies the image stored under id.
func (s *Store) Get(id string) (*Image, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(id))
		if v == nil {
			return errors.NotFound(errors.PhaseRead, "snapshot "+id)
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Delete removes the image stored under id.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(id)) == nil {
			return errors.NotFound(errors.PhaseWrite, "snapshot "+id)
		}
		return b.Delete([]byte(id))
	})
}

// List returns every stored snapshot id in key order.
func (s *Store) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}
