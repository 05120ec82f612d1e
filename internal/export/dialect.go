package export

import (
	"fmt"
	"strings"

	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// Dialect captures what differs between the supported stores.
type Dialect struct {
	Name        string
	Driver      string
	Placeholder squirrel.PlaceholderFormat
	MaxParams   int
	types       map[schema.DType]string
}

var (
	SQLite = Dialect{
		Name: "sqlite", Driver: "sqlite3", Placeholder: squirrel.Question, MaxParams: 30000,
		types: map[schema.DType]string{
			schema.DTypeInt: "INTEGER", schema.DTypeDecimal: "REAL", schema.DTypeText: "TEXT",
			schema.DTypeBool: "INTEGER", schema.DTypeDate: "TEXT", schema.DTypeDatetime: "TEXT",
			schema.DTypeBytes: "BLOB",
		},
	}
	Postgres = Dialect{
		Name: "postgres", Driver: "pgx", Placeholder: squirrel.Dollar, MaxParams: 65000,
		types: map[schema.DType]string{
			schema.DTypeInt: "BIGINT", schema.DTypeDecimal: "DOUBLE PRECISION", schema.DTypeText: "TEXT",
			schema.DTypeBool: "SMALLINT", schema.DTypeDate: "DATE", schema.DTypeDatetime: "TIMESTAMP",
			schema.DTypeBytes: "BYTEA",
		},
	}
	MySQL = Dialect{
		Name: "mysql", Driver: "mysql", Placeholder: squirrel.Question, MaxParams: 65000,
		types: map[schema.DType]string{
			schema.DTypeInt: "BIGINT", schema.DTypeDecimal: "DOUBLE", schema.DTypeText: "VARCHAR(255)",
			schema.DTypeBool: "TINYINT", schema.DTypeDate: "DATE", schema.DTypeDatetime: "DATETIME",
			schema.DTypeBytes: "BLOB",
		},
	}
)

// DialectFor maps a configured provider name onto a dialect.
func DialectFor(provider string) (Dialect, error) {
	switch strings.ToLower(provider) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgresql", "postgres":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	}
	return Dialect{}, fmt.Errorf("unsupported database provider: %s. Supported providers: sqlite, postgresql, mysql", provider)
}

func (d Dialect) Quote(ident string) string {
	if d.Name == "mysql" {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return pq.QuoteIdentifier(ident)
}

func (d Dialect) ColumnType(c *schema.Column) string {
	return d.types[c.BaseDType()]
}

// CreateTableSQL renders the DDL of one table with its key, uniqueness and
// foreign key constraints.
func (d Dialect) CreateTableSQL(p *schema.Project, t *schema.Table) string {
	var defs []string
	for i := range t.Columns {
		c := &t.Columns[i]
		def := d.Quote(c.Name) + " " + d.ColumnType(c)
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		} else {
			if !c.Nullable {
				def += " NOT NULL"
			}
			if c.Unique {
				def += " UNIQUE"
			}
		}
		defs = append(defs, def)
	}
	for _, fk := range p.IncomingFKs(t.Name) {
		defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			d.Quote(fk.ChildColumn), d.Quote(fk.ParentTable), d.Quote(fk.ParentColumn)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", d.Quote(t.Name), strings.Join(defs, ",\n  "))
}

// DDL renders every table of the project in dependency order.
func (d Dialect) DDL(p *schema.Project, order []string) string {
	stmts := make([]string, 0, len(order))
	for _, name := range order {
		if t, ok := p.Table(name); ok {
			stmts = append(stmts, d.CreateTableSQL(p, t)+";")
		}
	}
	return strings.Join(stmts, "\n\n")
}

// bindValue adapts a generated value to what the driver expects.
func (d Dialect) bindValue(c *schema.Column, v any) any {
	s, ok := v.(string)
	if !ok || d.Name != "mysql" || c.DType != schema.DTypeDatetime {
		return v
	}
	return strings.TrimSuffix(strings.Replace(s, "T", " ", 1), "Z")
}
