package dca

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a Store that keeps transactions in memory.
type MemoryStore struct {
	mu  sync.RWMutex
	txs map[string]Transaction // by id
}

// NewMemoryStore returns a store holding txs. Transactions without an id get
// one.
func NewMemoryStore(txs ...Transaction) *MemoryStore {
	s := &MemoryStore{txs: make(map[string]Transaction, len(txs))}
	for _, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		s.txs[tx.ID] = tx
	}
	return s
}

// All returns every transaction of every owner, most recent first.
func (s *MemoryStore) All() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		all = append(all, tx)
	}
	slices.SortFunc(all, compareRecentFirst)
	return all
}

// owned returns the owner's transactions sorted most recent first, s.mu must be held.
func (s *MemoryStore) owned(owner string) []Transaction {
	var out []Transaction
	for _, tx := range s.txs {
		if tx.Owner == owner {
			out = append(out, tx)
		}
	}
	slices.SortFunc(out, compareRecentFirst)
	return out
}

// sameCurrency checks that tx is in the currency of the other transactions
// of its owner, s.mu must be held.
func (s *MemoryStore) sameCurrency(tx Transaction) error {
	for id, o := range s.txs {
		if o.Owner == tx.Owner && id != tx.ID && o.Fiat.Currency() != tx.Fiat.Currency() {
			return fmt.Errorf("%w: %s, recorded in %s", ErrCurrencyMismatch, tx.Fiat.Currency(), o.Fiat.Currency())
		}
	}
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, owner string, page Page) (PageResult, error) {
	page = page.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.owned(owner)
	from, to := page.Window(len(all))
	return PageResult{Page: page, Rows: slices.Clone(all[from:to]), Total: len(all)}, nil
}

func (s *MemoryStore) Summary(ctx context.Context, owner string) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, err := Summarize(s.owned(owner))
	if err != nil {
		return Summary{}, &StorageError{Op: "summarize", Err: err}
	}
	return sum, nil
}

func (s *MemoryStore) Insert(ctx context.Context, tx Transaction) (Transaction, error) {
	if tx.Owner == "" {
		return Transaction{}, &StorageError{Op: "insert", Err: errors.New("owner is required")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sameCurrency(tx); err != nil {
		return Transaction{}, &StorageError{Op: "insert", Err: err}
	}
	tx.ID = uuid.NewString()
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *MemoryStore) Update(ctx context.Context, tx Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.txs[tx.ID]
	if !ok || old.Owner != tx.Owner {
		return Transaction{}, &StorageError{Op: "update", Err: ErrNotFound}
	}
	if err := s.sameCurrency(tx); err != nil {
		return Transaction{}, &StorageError{Op: "update", Err: err}
	}
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *MemoryStore) Delete(ctx context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.txs[id]
	if !ok || old.Owner != owner {
		return &StorageError{Op: "delete", Err: ErrNotFound}
	}
	delete(s.txs, id)
	return nil
}
