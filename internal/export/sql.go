package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
	"github.com/Lumos-Labs-HQ/flashseed/internal/seeder"
	"github.com/Masterminds/squirrel"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// OpenDB opens and pings a store for the given provider.
func OpenDB(provider, url string) (*sql.DB, Dialect, error) {
	d, err := DialectFor(provider)
	if err != nil {
		return nil, Dialect{}, err
	}
	if d.Name == "sqlite" && !strings.Contains(url, "?") {
		url += "?_journal_mode=WAL&_foreign_keys=on"
	}
	db, err := sql.Open(d.Driver, url)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed to open %s: %w", d.Name, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, Dialect{}, fmt.Errorf("failed to connect to %s: %w", d.Name, err)
	}
	return db, d, nil
}

// SQLSink creates the tables and inserts every row inside one transaction,
// parents before children.
type SQLSink struct {
	db        *sql.DB
	dialect   Dialect
	batchSize int
	qb        squirrel.StatementBuilderType
}

func NewSQLSink(db *sql.DB, d Dialect, batchSize int) *SQLSink {
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &SQLSink{
		db:        db,
		dialect:   d,
		batchSize: batchSize,
		qb:        squirrel.StatementBuilder.PlaceholderFormat(d.Placeholder),
	}
}

func (s *SQLSink) Name() string {
	return s.dialect.Name
}

func (s *SQLSink) Write(ctx context.Context, p *schema.Project, data *seeder.GeneratedData, progress func(table string, rows int)) (map[string]int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range data.Order {
		t, ok := p.Table(name)
		if !ok {
			return nil, fmt.Errorf("table %s is not part of the project", name)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.CreateTableSQL(p, t)); err != nil {
			return nil, fmt.Errorf("failed to create table %s: %w", name, err)
		}
	}

	written := make(map[string]int, len(data.Order))
	for _, name := range data.Order {
		t, _ := p.Table(name)
		n, err := s.insertRows(ctx, tx, t, data.Rows[name])
		if err != nil {
			return nil, err
		}
		written[name] = n
		if progress != nil {
			progress(name, n)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return written, nil
}

func (s *SQLSink) insertRows(ctx context.Context, tx *sql.Tx, t *schema.Table, rows []schema.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	columns := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = s.dialect.Quote(c.Name)
	}
	batch := s.batchSize
	if limit := s.dialect.MaxParams / len(columns); batch > limit {
		batch = limit
	}
	if batch < 1 {
		batch = 1
	}

	for start := 0; start < len(rows); start += batch {
		if err := ctx.Err(); err != nil {
			return start, err
		}
		end := start + batch
		if end > len(rows) {
			end = len(rows)
		}
		q := s.qb.Insert(s.dialect.Quote(t.Name)).Columns(columns...)
		for _, row := range rows[start:end] {
			values := make([]any, len(t.Columns))
			for i := range t.Columns {
				c := &t.Columns[i]
				values[i] = s.dialect.bindValue(c, row[c.Name])
			}
			q = q.Values(values...)
		}
		query, args, err := q.ToSql()
		if err != nil {
			return start, fmt.Errorf("failed to build insert for %s: %w", t.Name, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return start, fmt.Errorf("failed to insert rows into %s: %w", t.Name, err)
		}
	}
	return len(rows), nil
}
