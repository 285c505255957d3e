// Package sqlstore stores transactions in a SQL database, sqlite or postgres.
//
// The schema is created and upgraded by embedded migrations when the store is
// opened. Besides the transactions table it maintains the dca_summary read
// model, one row per owner, updated in the same database transaction as every
// write.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/etnz/dca"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrations embed.FS

// Supported database/sql driver names.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Store is a dca.Store backed by a SQL database.
type Store struct {
	db     *sql.DB
	driver string
	log    *slog.Logger
}

// Open connects to the database dsn with driver, SQLite or Postgres, and
// applies the pending migrations. A nil logger means slog.Default().
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if driver == SQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s database: %w", driver, err)
	}
	if driver == SQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot reach %s database: %w", driver, err)
	}
	s := &Store{db: db, driver: driver, log: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("database ready", "driver", driver)
	return s, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func (s *Store) migrate() error {
	var (
		target database.Driver
		err    error
	)
	switch s.driver {
	case SQLite:
		target, err = sqlite.WithInstance(s.db, &sqlite.Config{})
	case Postgres:
		target, err = postgres.WithInstance(s.db, &postgres.Config{})
	default:
		return fmt.Errorf("unsupported database driver %q, want %q or %q", s.driver, SQLite, Postgres)
	}
	if err != nil {
		return fmt.Errorf("cannot create %s migration driver: %w", s.driver, err)
	}
	src, err := iofs.New(migrations, "migrations/"+s.driver)
	if err != nil {
		return fmt.Errorf("cannot read migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, s.driver, target)
	if err != nil {
		return fmt.Errorf("cannot create migration: %w", err)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			s.log.Debug("no database migration to apply")
			return nil
		}
		return fmt.Errorf("cannot apply migrations: %w", err)
	}
	s.log.Info("database migrations applied")
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const columns = "id, owner_id, purchase_date, exchange, fiat_amount, coin_amount, fee, currency"

type scanner interface{ Scan(dest ...any) error }

func scanTransaction(row scanner) (dca.Transaction, error) {
	var (
		tx              dca.Transaction
		fiat, coin, fee decimal.Decimal
		currency        string
	)
	if err := row.Scan(&tx.ID, &tx.Owner, &tx.Date, &tx.Exchange, &fiat, &coin, &fee, &currency); err != nil {
		return dca.Transaction{}, err
	}
	tx.Fiat = dca.M(fiat, currency)
	tx.Coin = dca.Q(coin)
	tx.Fee = dca.M(fee, currency)
	return tx, nil
}

func (s *Store) Find(ctx context.Context, owner string, page dca.Page) (dca.PageResult, error) {
	page = page.Normalize()
	fail := func(err error) (dca.PageResult, error) {
		return dca.PageResult{}, &dca.StorageError{Op: "find", Err: err}
	}
	var total int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM transactions WHERE owner_id = ?`), owner).Scan(&total); err != nil {
		return fail(err)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+columns+` FROM transactions
		WHERE owner_id = ?
		ORDER BY purchase_date DESC, id ASC
		LIMIT ? OFFSET ?`), owner, page.Size, page.Offset())
	if err != nil {
		return fail(err)
	}
	defer rows.Close()
	r := dca.PageResult{Page: page, Total: total}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return fail(err)
		}
		r.Rows = append(r.Rows, tx)
	}
	if err := rows.Err(); err != nil {
		return fail(err)
	}
	return r, nil
}

func (s *Store) Summary(ctx context.Context, owner string) (dca.Summary, error) {
	var (
		invested, coin decimal.Decimal
		count          int
		currency       string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT total_invested, total_coin, tx_count, currency FROM dca_summary WHERE owner_id = ?`), owner).
		Scan(&invested, &coin, &count, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return dca.Summary{}, nil
	}
	if err != nil {
		return dca.Summary{}, &dca.StorageError{Op: "summarize", Err: err}
	}
	return dca.Summary{Invested: dca.M(invested, currency), Holdings: dca.Q(coin), Count: count}, nil
}

func (s *Store) Insert(ctx context.Context, tx dca.Transaction) (dca.Transaction, error) {
	if tx.Owner == "" {
		return dca.Transaction{}, &dca.StorageError{Op: "insert", Err: errors.New("owner is required")}
	}
	tx.ID = uuid.NewString()
	err := s.inTx(ctx, func(sqltx *sql.Tx) error {
		_, err := sqltx.ExecContext(ctx, s.rebind(`INSERT INTO transactions (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			tx.ID, tx.Owner, tx.Date, tx.Exchange, tx.Fiat.Decimal(), tx.Coin.Decimal(), tx.Fee.Decimal(), tx.Fiat.Currency())
		if err != nil {
			return err
		}
		return s.adjust(ctx, sqltx, tx.Owner, delta(tx))
	})
	if err != nil {
		return dca.Transaction{}, &dca.StorageError{Op: "insert", Err: err}
	}
	s.log.Debug("transaction inserted", "id", tx.ID, "owner", tx.Owner)
	return tx, nil
}

func (s *Store) Update(ctx context.Context, tx dca.Transaction) (dca.Transaction, error) {
	err := s.inTx(ctx, func(sqltx *sql.Tx) error {
		old, err := s.get(ctx, sqltx, tx.Owner, tx.ID)
		if err != nil {
			return err
		}
		_, err = sqltx.ExecContext(ctx, s.rebind(`UPDATE transactions
			SET purchase_date = ?, exchange = ?, fiat_amount = ?, coin_amount = ?, fee = ?, currency = ?
			WHERE id = ? AND owner_id = ?`),
			tx.Date, tx.Exchange, tx.Fiat.Decimal(), tx.Coin.Decimal(), tx.Fee.Decimal(), tx.Fiat.Currency(), tx.ID, tx.Owner)
		if err != nil {
			return err
		}
		if err := s.adjust(ctx, sqltx, tx.Owner, negate(delta(old))); err != nil {
			return err
		}
		return s.adjust(ctx, sqltx, tx.Owner, delta(tx))
	})
	if err != nil {
		return dca.Transaction{}, &dca.StorageError{Op: "update", Err: err}
	}
	s.log.Debug("transaction updated", "id", tx.ID, "owner", tx.Owner)
	return tx, nil
}

func (s *Store) Delete(ctx context.Context, owner, id string) error {
	err := s.inTx(ctx, func(sqltx *sql.Tx) error {
		old, err := s.get(ctx, sqltx, owner, id)
		if err != nil {
			return err
		}
		if _, err := sqltx.ExecContext(ctx, s.rebind(`DELETE FROM transactions WHERE id = ? AND owner_id = ?`), id, owner); err != nil {
			return err
		}
		return s.adjust(ctx, sqltx, owner, negate(delta(old)))
	})
	if err != nil {
		return &dca.StorageError{Op: "delete", Err: err}
	}
	s.log.Debug("transaction deleted", "id", id, "owner", owner)
	return nil
}

// get returns the owner's transaction id, or dca.ErrNotFound.
func (s *Store) get(ctx context.Context, sqltx *sql.Tx, owner, id string) (dca.Transaction, error) {
	row := sqltx.QueryRowContext(ctx, s.rebind(`SELECT `+columns+` FROM transactions WHERE id = ? AND owner_id = ?`), id, owner)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return dca.Transaction{}, dca.ErrNotFound
	}
	return tx, err
}

// delta is the contribution of tx to its owner's summary.
func delta(tx dca.Transaction) dca.Summary {
	return dca.Summary{Invested: tx.Fiat, Holdings: tx.Coin, Count: 1}
}

func negate(s dca.Summary) dca.Summary {
	return dca.Summary{Invested: s.Invested.Neg(), Holdings: dca.Q(s.Holdings.Decimal().Neg()), Count: -s.Count}
}

// summaryRowQuery selects the owner's summary row, locked until the end of
// the transaction on postgres. Sqlite has a single connection.
func (s *Store) summaryRowQuery() string {
	q := `SELECT total_invested, total_coin, tx_count, currency FROM dca_summary WHERE owner_id = ?`
	if s.driver == Postgres {
		q += ` FOR UPDATE`
	}
	return s.rebind(q)
}

// adjust adds change to the owner's summary row, creating it if needed. An
// owner's summary holds a single currency.
func (s *Store) adjust(ctx context.Context, sqltx *sql.Tx, owner string, change dca.Summary) error {
	if _, err := sqltx.ExecContext(ctx, s.rebind(`INSERT INTO dca_summary (owner_id, currency) VALUES (?, ?) ON CONFLICT (owner_id) DO NOTHING`),
		owner, change.Invested.Currency()); err != nil {
		return err
	}
	var (
		invested, coin decimal.Decimal
		n              int
		currency       string
	)
	if err := sqltx.QueryRowContext(ctx, s.summaryRowQuery(), owner).Scan(&invested, &coin, &n, &currency); err != nil {
		return err
	}
	if n > 0 && currency != change.Invested.Currency() {
		return fmt.Errorf("%w: %s, recorded in %s", dca.ErrCurrencyMismatch, change.Invested.Currency(), currency)
	}
	_, err := sqltx.ExecContext(ctx, s.rebind(`UPDATE dca_summary SET total_invested = ?, total_coin = ?, tx_count = ?, currency = ? WHERE owner_id = ?`),
		invested.Add(change.Invested.Decimal()), coin.Add(change.Holdings.Decimal()), n+change.Count, change.Invested.Currency(), owner)
	return err
}

// inTx runs f in a database transaction, committed if f succeeds.
func (s *Store) inTx(ctx context.Context, f func(*sql.Tx) error) error {
	sqltx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := f(sqltx); err != nil {
		if rerr := sqltx.Rollback(); rerr != nil {
			s.log.Warn("cannot roll back", "error", rerr)
		}
		return err
	}
	return sqltx.Commit()
}
