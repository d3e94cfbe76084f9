package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pairs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE(question, answer)
);
CREATE INDEX IF NOT EXISTS idx_pairs_question ON pairs(question);
`

// SQLiteDataset stores pairs in an embedded SQLite database. It honours the
// same contract as CSVDataset, so the responder does not care which one runs.
type SQLiteDataset struct {
	db  *sql.DB
	log zerolog.Logger

	mu  sync.Mutex
	cur atomic.Pointer[[]Pair]
}

func NewSQLiteDataset(path string, log zerolog.Logger) (*SQLiteDataset, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteDataset{db: db, log: log.With().Str("store", "dataset_sqlite").Logger()}, nil
}

func (d *SQLiteDataset) Close() error { return d.db.Close() }

func (d *SQLiteDataset) Pairs(ctx context.Context) []Pair {
	if p := d.cur.Load(); p != nil {
		return *p
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadUnlocked(ctx)
}

func (d *SQLiteDataset) loadUnlocked(ctx context.Context) []Pair {
	if p := d.cur.Load(); p != nil {
		return *p
	}
	pairs, err := d.query(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed loading dataset, using empty")
		return []Pair{}
	}
	d.cur.Store(&pairs)
	return pairs
}

func (d *SQLiteDataset) query(ctx context.Context) ([]Pair, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT question, answer FROM pairs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query pairs: %w", err)
	}
	defer rows.Close()
	pairs := []Pair{}
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.Question, &p.Answer); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func (d *SQLiteDataset) refreshUnlocked(ctx context.Context) {
	d.cur.Store(nil)
	d.loadUnlocked(ctx)
}

func (d *SQLiteDataset) Contains(ctx context.Context, p Pair) bool {
	return containsPair(d.Pairs(ctx), p)
}

func (d *SQLiteDataset) Append(ctx context.Context, p Pair) error {
	p, ok := p.Trimmed()
	if !ok {
		return ErrEmptyPair
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pairs (question, answer, created_at) VALUES (?, ?, ?)`,
		p.Question, p.Answer, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert pair: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicatePair
	}
	d.refreshUnlocked(ctx)
	return nil
}

func (d *SQLiteDataset) Delete(ctx context.Context, question, answer string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var (
		res sql.Result
		err error
	)
	if answer == "" {
		res, err = d.db.ExecContext(ctx, `DELETE FROM pairs WHERE question = ?`, question)
	} else {
		res, err = d.db.ExecContext(ctx, `DELETE FROM pairs WHERE question = ? AND answer = ?`, question, answer)
	}
	if err != nil {
		return 0, fmt.Errorf("delete pairs: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		d.refreshUnlocked(ctx)
	}
	return int(n), nil
}

func (d *SQLiteDataset) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.db.ExecContext(ctx, `DELETE FROM pairs`); err != nil {
		return fmt.Errorf("reset pairs: %w", err)
	}
	d.refreshUnlocked(ctx)
	return nil
}

// Export writes the pairs in the dataset.csv format.
func (d *SQLiteDataset) Export(ctx context.Context, w io.Writer) error {
	pairs, err := d.query(ctx)
	if err != nil {
		return err
	}
	return writeCSV(w, pairs)
}

func (d *SQLiteDataset) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cur.Store(nil)
}
