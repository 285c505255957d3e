// Package ledger stores transactions in a local JSONL file, one transaction
// per line, most recent first.
//
// The whole file is loaded in memory when opened and rewritten after every
// change. It suits a single user tracking a few thousand purchases without a
// database.
package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/etnz/dca"
)

// Store is a dca.Store saved to a JSONL file.
type Store struct {
	path string

	mu  sync.RWMutex
	mem *dca.MemoryStore
}

// Open loads the ledger file at path. A missing file is an empty ledger, it is
// created on the first change.
func Open(path string) (*Store, error) {
	s := &Store{path: path, mem: dca.NewMemoryStore()}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not open ledger file %q: %w", path, err)
	}
	defer f.Close()
	txs, err := dca.DecodeTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode ledger file %q: %w", path, err)
	}
	s.mem = dca.NewMemoryStore(txs...)
	return s, nil
}

// Path returns the ledger file.
func (s *Store) Path() string { return s.path }

func (s *Store) Find(ctx context.Context, owner string, page dca.Page) (dca.PageResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mem.Find(ctx, owner, page)
}

func (s *Store) Summary(ctx context.Context, owner string) (dca.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mem.Summary(ctx, owner)
}

func (s *Store) Insert(ctx context.Context, tx dca.Transaction) (dca.Transaction, error) {
	var out dca.Transaction
	err := s.change("insert", func() (err error) {
		out, err = s.mem.Insert(ctx, tx)
		return err
	})
	return out, err
}

func (s *Store) Update(ctx context.Context, tx dca.Transaction) (dca.Transaction, error) {
	var out dca.Transaction
	err := s.change("update", func() (err error) {
		out, err = s.mem.Update(ctx, tx)
		return err
	})
	return out, err
}

func (s *Store) Delete(ctx context.Context, owner, id string) error {
	return s.change("delete", func() error { return s.mem.Delete(ctx, owner, id) })
}

// change applies f to the in-memory ledger and saves it. If the file cannot be
// written the in-memory ledger is restored.
func (s *Store) change(op string, f func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.mem.All()
	if err := f(); err != nil {
		return err
	}
	if err := s.save(); err != nil {
		s.mem = dca.NewMemoryStore(before...)
		return &dca.StorageError{Op: op, Err: err}
	}
	return nil
}

// save writes the ledger to a temporary file then renames it over the ledger
// file, so that the file is never half written.
func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create directory for ledger %q: %w", s.path, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("error opening ledger file %q for writing: %w", s.path, err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed
	if err := dca.EncodeTransactions(tmp, s.mem.All()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
