// Package db wraps SQL execution with timing, slow-query logging, bounded
// admission to the connection pool, and an optional read-through hook into
// the in-process cache.
//
// Database errors are never swallowed here: they are logged with diagnostic
// context and returned to the caller. Retries and circuit breaking belong to
// callers, not this layer.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"portfolio/internal/cache"
	"portfolio/internal/logger"
)

const (
	defaultMaxConns    = 10
	defaultWaitTimeout = 5 * time.Second
	defaultSlowAfter   = 1000 * time.Millisecond
	connMaxLifetime    = 5 * time.Minute
)

// ErrBusy is returned when every pooled connection is held and the bounded
// wait times out. Callers should surface it as a retryable overload.
var ErrBusy = errors.New("db: connection pool busy")

// Rows is the shape Execute returns: one map per row, column name to value.
type Rows = []map[string]any

// Options requests read-through caching for a single Execute call.
type Options struct {
	UseCache bool
	CacheKey string
	CacheTTL time.Duration
}

// Statement is one entry in an ExecuteBatch call.
type Statement struct {
	Query string
	Args  []any
}

// ExecResult reports the outcome of a write statement.
type ExecResult struct {
	RowsAffected int64
	LastInsertID int64
}

// Config tunes the wrapper. Zero values fall back to defaults.
type Config struct {
	MaxConns    int
	WaitTimeout time.Duration
	SlowAfter   time.Duration
}

// DB is the query execution wrapper around a sqlite database.
type DB struct {
	dbx   *sqlx.DB
	cache *cache.Memory // may be nil; caching is then skipped
	log   *logger.Logger

	sem         *semaphore.Weighted
	waitTimeout time.Duration
	slowAfter   time.Duration
}

// Open connects to the sqlite database at path and verifies it with a ping.
func Open(path string, memCache *cache.Memory, log *logger.Logger, cfg Config) (*DB, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = defaultMaxConns
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaultWaitTimeout
	}
	if cfg.SlowAfter <= 0 {
		cfg.SlowAfter = defaultSlowAfter
	}

	dbx, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}
	dbx.SetMaxOpenConns(cfg.MaxConns)
	dbx.SetMaxIdleConns(cfg.MaxConns / 2)
	dbx.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbx.PingContext(ctx); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	return &DB{
		dbx:         dbx,
		cache:       memCache,
		log:         log,
		sem:         semaphore.NewWeighted(int64(cfg.MaxConns)),
		waitTimeout: cfg.WaitTimeout,
		slowAfter:   cfg.SlowAfter,
	}, nil
}

// Execute runs a parameterized query and returns its rows. With opts.UseCache
// set, a cache hit under opts.CacheKey skips the database entirely and a
// successful miss populates the cache for opts.CacheTTL.
func (d *DB) Execute(ctx context.Context, query string, args []any, opts *Options) (Rows, error) {
	if opts != nil && opts.UseCache && d.cache != nil {
		if v, ok := d.cache.Get(opts.CacheKey); ok {
			if rows, ok := v.(Rows); ok {
				return rows, nil
			}
		}
	}

	release, err := d.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	sqlRows, err := d.dbx.QueryxContext(ctx, query, args...)
	if err != nil {
		d.logFailure(query, args, time.Since(start), err)
		return nil, fmt.Errorf("db: query: %w", err)
	}
	defer sqlRows.Close()

	var result Rows
	for sqlRows.Next() {
		row := map[string]any{}
		if err := sqlRows.MapScan(row); err != nil {
			d.logFailure(query, args, time.Since(start), err)
			return nil, fmt.Errorf("db: scan: %w", err)
		}
		normalizeRow(row)
		result = append(result, row)
	}
	if err := sqlRows.Err(); err != nil {
		d.logFailure(query, args, time.Since(start), err)
		return nil, fmt.Errorf("db: rows: %w", err)
	}

	d.logSuccess(query, time.Since(start), len(result))

	if opts != nil && opts.UseCache && d.cache != nil {
		d.cache.Set(opts.CacheKey, result, opts.CacheTTL)
	}
	return result, nil
}

// ExecuteSingle returns the first row of a query, or nil when it matches
// nothing. Same caching and error semantics as Execute.
func (d *DB) ExecuteSingle(ctx context.Context, query string, args []any, opts *Options) (map[string]any, error) {
	rows, err := d.Execute(ctx, query, args, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Exec runs a write statement with the same timing and logging as Execute.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (ExecResult, error) {
	release, err := d.acquire(ctx)
	if err != nil {
		return ExecResult{}, err
	}
	defer release()
	return d.execLocked(ctx, d.dbx, query, args)
}

// ExecuteBatch runs statements sequentially without an implicit transaction.
// On the first failure the batch aborts: earlier statements stay committed
// and the error propagates with the failing index attached.
func (d *DB) ExecuteBatch(ctx context.Context, stmts []Statement) ([]ExecResult, error) {
	results := make([]ExecResult, 0, len(stmts))
	for i, s := range stmts {
		res, err := d.Exec(ctx, s.Query, s.Args...)
		if err != nil {
			return results, fmt.Errorf("db: batch statement %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// ExecuteTransaction runs fn inside a transaction on a dedicated connection.
// Commit on success, rollback on error or panic; the connection is released
// on every exit path.
func (d *DB) ExecuteTransaction(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	release, err := d.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := d.dbx.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				d.log.Error("db: rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		d.log.Database("transaction rolled back", zap.Error(err))
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("db: commit: %w", err)
	}
	return nil
}

// Select runs a query and scans all rows into dest (a pointer to a slice),
// with the wrapper's timing and logging but no cache hook. Store-level
// callers layer the tiered cache on top instead.
func (d *DB) Select(ctx context.Context, dest any, query string, args ...any) error {
	release, err := d.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	if err := d.dbx.SelectContext(ctx, dest, query, args...); err != nil {
		d.logFailure(query, args, time.Since(start), err)
		return fmt.Errorf("db: select: %w", err)
	}
	d.logSuccess(query, time.Since(start), -1)
	return nil
}

// Get runs a query expected to return one row and scans it into dest.
// Returns sql.ErrNoRows (wrapped) when nothing matches.
func (d *DB) Get(ctx context.Context, dest any, query string, args ...any) error {
	release, err := d.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	if err := d.dbx.GetContext(ctx, dest, query, args...); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			d.logFailure(query, args, time.Since(start), err)
		}
		return fmt.Errorf("db: get: %w", err)
	}
	d.logSuccess(query, time.Since(start), 1)
	return nil
}

// Ping measures a database round trip. Used by the metrics endpoint.
func (d *DB) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := d.dbx.PingContext(ctx)
	return time.Since(start), err
}

// Close shuts the pool down.
func (d *DB) Close() error {
	return d.dbx.Close()
}

// acquire takes a pool slot, waiting at most waitTimeout. This bounds the
// queue that forms when every connection is busy instead of letting it grow
// without limit.
func (d *DB) acquire(ctx context.Context) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, d.waitTimeout)
	defer cancel()
	if err := d.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrBusy
	}
	return func() { d.sem.Release(1) }, nil
}

func (d *DB) execLocked(ctx context.Context, ext sqlx.ExtContext, query string, args []any) (ExecResult, error) {
	start := time.Now()
	res, err := ext.ExecContext(ctx, query, args...)
	duration := time.Since(start)
	if err != nil {
		d.logFailure(query, args, duration, err)
		return ExecResult{}, fmt.Errorf("db: exec: %w", err)
	}
	affected, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	d.logSuccess(query, duration, int(affected))
	return ExecResult{RowsAffected: affected, LastInsertID: lastID}, nil
}

func (d *DB) logSuccess(query string, duration time.Duration, rows int) {
	fields := []zap.Field{
		zap.String("verb", queryVerb(query)),
		zap.Duration("duration", duration),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int("rows", rows))
	}
	if duration > d.slowAfter {
		d.log.Warn("slow query", append(fields, zap.String("query", compactQuery(query)))...)
		return
	}
	d.log.Database("query executed", fields...)
}

func (d *DB) logFailure(query string, args []any, duration time.Duration, err error) {
	d.log.Error("query failed",
		zap.String("verb", queryVerb(query)),
		zap.String("query", compactQuery(query)),
		zap.Int("args", len(args)),
		zap.Duration("duration", duration),
		zap.Error(err),
	)
}

// queryVerb extracts the leading SQL keyword for logging.
func queryVerb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}

// compactQuery collapses whitespace so multi-line SQL logs on one line.
func compactQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// normalizeRow converts []byte column values to string so cached rows
// JSON-encode as text rather than base64.
func normalizeRow(row map[string]any) {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
}
