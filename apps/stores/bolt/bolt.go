// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package bolt provides a persistent storage area kept in a single bolt database file, the Go
counterpart of a browser's localStorage.

Entries live in one bucket. With WithSecretKey, values are sealed with NaCl secretbox before
they are written; keys are stored in the clear so the cache can scan them.
*/
package bolt

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var defaultBucket = []byte("msal-auth-cache")

// ErrTampered is returned by Get when a sealed value cannot be opened with the store's key.
var ErrTampered = errors.New("bolt store: sealed value failed authentication")

// Options configure a Store.
type Options struct {
	// Bucket is the bucket entries are kept in.
	Bucket string
	// Timeout bounds how long Open waits for the file lock. Zero waits forever.
	Timeout time.Duration

	secretKey *[32]byte
}

// Option is an optional argument to Open.
type Option func(o *Options)

// WithBucket keeps entries in the named bucket, letting several caches share one file.
func WithBucket(name string) Option {
	return func(o *Options) {
		o.Bucket = name
	}
}

// WithTimeout bounds the wait for the database file lock.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithSecretKey seals every value with key.
func WithSecretKey(key [32]byte) Option {
	return func(o *Options) {
		o.secretKey = &key
	}
}

// Store is a storage area on a bolt database. It is safe for concurrent use.
type Store struct {
	db     *bolt.DB
	bucket []byte
	key    *[32]byte
}

// Open opens, creating if needed, the database at path.
func Open(path string, options ...Option) (*Store, error) {
	opts := Options{Bucket: string(defaultBucket)}
	for _, o := range options {
		o(&opts)
	}
	if opts.Bucket == "" {
		return nil, errors.New("bolt store: bucket name cannot be empty")
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("opening bolt store %s: %w", path, err)
	}

	s := &Store{db: db, bucket: []byte(opts.Bucket), key: opts.secretKey}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bolt bucket %s: %w", opts.Bucket, err)
	}
	return s, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// Get implements cache.Store.Get().
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	var (
		raw   []byte
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		// Get returns nil only for absent keys; an empty value is an empty, non-nil slice.
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		// v is only valid inside the transaction.
		raw = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("reading %q from bolt store: %w", key, err)
	}
	if !found {
		return "", false, nil
	}

	value, err := s.open(raw)
	if err != nil {
		return "", false, fmt.Errorf("reading %q from bolt store: %w", key, err)
	}
	return value, true, nil
}

// Set implements cache.Store.Set().
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), sealed)
	})
	if err != nil {
		return fmt.Errorf("writing %q to bolt store: %w", key, err)
	}
	return nil
}

// Remove implements cache.Store.Remove().
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("removing %q from bolt store: %w", key, err)
	}
	return nil
}

// Clear implements cache.Store.Clear().
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
	if err != nil {
		return fmt.Errorf("clearing bolt store: %w", err)
	}
	return nil
}

// Keys implements cache.Store.Keys(). Keys are returned in byte order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing bolt store keys: %w", err)
	}
	return keys, nil
}

func (s *Store) seal(value string) ([]byte, error) {
	if s.key == nil {
		return []byte(value), nil
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(value), &nonce, s.key), nil
}

func (s *Store) open(raw []byte) (string, error) {
	if s.key == nil {
		return string(raw), nil
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrTampered
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, s.key)
	if !ok {
		return "", ErrTampered
	}
	return string(plain), nil
}
