package corpus

import (
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketConversions = []byte("conversions")

// Cache is a durable cache of converted document markup, keyed by
// document base name, so repeated indexing runs skip re-conversion.
type Cache struct {
	db *bbolt.DB
}

// OpenCache opens (or creates) the conversion cache at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversion cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketConversions)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached markup for the given document name.
func (c *Cache) Get(name string) (string, bool, error) {
	var markup string
	var found bool
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketConversions).Get([]byte(name))
		if data != nil {
			markup = string(data)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache: %w", err)
	}
	return markup, found, nil
}

// Put stores the markup for the given document name.
func (c *Cache) Put(name, markup string) error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConversions).Put([]byte(name), []byte(markup))
	})
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}
