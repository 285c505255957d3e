package dca

import (
	"cmp"
	"context"
	"errors"
	"fmt"
)

// DefaultPageSize is the number of transactions per page.
const DefaultPageSize = 10

// ErrNotFound is returned when no transaction of the owner has the id.
var ErrNotFound = errors.New("transaction not found")

// StorageError reports a failed store operation. The operation had no effect.
type StorageError struct {
	Op  string // Op is the store operation, e.g. "insert".
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("cannot %s transaction: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Page selects a window of transactions, Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// FirstPage returns the first page of size transactions.
func FirstPage(size int) Page { return Page{Number: 1, Size: size} }

// Normalize returns p with a positive number and size.
func (p Page) Normalize() Page {
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Number < 1 {
		p.Number = 1
	}
	return p
}

// Offset returns the index of the first row of the page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// Window returns the bounds [from, to) of the page within n rows.
func (p Page) Window(n int) (from, to int) {
	from = min(p.Offset(), n)
	to = min(from+p.Size, n)
	return from, to
}

// TotalPages returns the number of pages of size needed for total rows.
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// PageResult is one page of transactions, most recent first.
type PageResult struct {
	Page  Page          // Page is the requested page.
	Rows  []Transaction // Rows are at most Page.Size transactions.
	Total int           // Total is the number of transactions of the owner, all pages.
}

// TotalPages returns the number of pages.
func (r PageResult) TotalPages() int { return TotalPages(r.Total, r.Page.Size) }

// HasNext reports whether a page follows.
func (r PageResult) HasNext() bool { return r.Page.Number < r.TotalPages() }

// HasPrev reports whether a page precedes.
func (r PageResult) HasPrev() bool { return r.Page.Number > 1 }

// Store persists transactions, scoped by owner.
//
// Implementations return *StorageError for failures and wrap ErrNotFound when
// the id does not exist for that owner.
type Store interface {
	// Find returns a page of the owner's transactions sorted by date, most
	// recent first, ties broken by id.
	Find(ctx context.Context, owner string, page Page) (PageResult, error)
	// Summary returns the aggregate of the owner's transactions. An owner
	// without transactions gets the zero Summary.
	Summary(ctx context.Context, owner string) (Summary, error)
	// Insert stores tx with a new id and returns it.
	Insert(ctx context.Context, tx Transaction) (Transaction, error)
	// Update replaces every field of the transaction with tx.ID, owned by tx.Owner.
	Update(ctx context.Context, tx Transaction) (Transaction, error)
	// Delete removes the transaction for good.
	Delete(ctx context.Context, owner, id string) error
}

// compareRecentFirst orders transactions by date descending, then by id.
func compareRecentFirst(a, b Transaction) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
