package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
	"github.com/Lumos-Labs-HQ/flashseed/internal/seeder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportProject() *schema.Project {
	return &schema.Project{
		Name: "export",
		Seed: 3,
		Tables: []schema.Table{
			{Name: "authors", RowCount: 12, Columns: []schema.Column{
				{Name: "id", DType: schema.DTypeInt, PrimaryKey: true},
				{Name: "name", DType: schema.DTypeText},
				{Name: "active", DType: schema.DTypeBool},
				{Name: "avatar", DType: schema.DTypeBytes},
			}},
			{Name: "posts", Columns: []schema.Column{
				{Name: "id", DType: schema.DTypeInt, PrimaryKey: true},
				{Name: "author_id", DType: schema.DTypeInt},
				{Name: "score", DType: schema.DTypeDecimal, Nullable: true, Params: map[string]any{"null_rate": 0.3}},
				{Name: "published", DType: schema.DTypeDate},
				{Name: "edited_at", DType: schema.DTypeDatetime},
			}},
		},
		ForeignKeys: []schema.ForeignKey{{
			ChildTable: "posts", ChildColumn: "author_id",
			ParentTable: "authors", ParentColumn: "id",
			MinChildren: 1, MaxChildren: 4,
		}},
	}
}

func exportData(t *testing.T, p *schema.Project) *seeder.GeneratedData {
	t.Helper()
	data, err := seeder.Generate(context.Background(), p, seeder.Options{})
	require.NoError(t, err)
	return data
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{[]byte("hi"), "aGk="},
		{int64(-4), "-4"},
		{7, "7"},
		{12.5, "12.5"},
		{true, "1"},
		{false, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}

func TestCSVSink(t *testing.T) {
	p := exportProject()
	data := exportData(t, p)
	dir := filepath.Join(t.TempDir(), "csv")

	var progressed []string
	sink := NewCSVSink(dir, 5)
	assert.Equal(t, "csv", sink.Name())
	written, err := sink.Write(context.Background(), p, data, func(table string, rows int) {
		progressed = append(progressed, table)
	})
	require.NoError(t, err)
	assert.Equal(t, data.RowCounts(), written)
	assert.Equal(t, []string{"authors", "posts"}, progressed)

	f, err := os.Open(filepath.Join(dir, "authors.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 13)
	assert.Equal(t, []string{"id", "name", "active", "avatar"}, records[0])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, FormatValue(data.Rows["authors"][0]["avatar"]), records[1][3])
	assert.Contains(t, []string{"0", "1"}, records[1][2])
}

func TestCSVSinkStopsOnCancel(t *testing.T) {
	p := exportProject()
	data := exportData(t, p)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCSVSink(t.TempDir(), 0).Write(ctx, p, data, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDialectFor(t *testing.T) {
	for provider, want := range map[string]string{
		"sqlite": "sqlite", "SQLite3": "sqlite", "postgresql": "postgres", "postgres": "postgres", "mysql": "mysql",
	} {
		d, err := DialectFor(provider)
		require.NoError(t, err)
		assert.Equal(t, want, d.Name)
	}
	_, err := DialectFor("oracle")
	assert.ErrorContains(t, err, "unsupported database provider: oracle")
}

func TestCreateTableSQL(t *testing.T) {
	p := exportProject()
	posts, _ := p.Table("posts")

	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "posts" (
  "id" BIGINT PRIMARY KEY,
  "author_id" BIGINT NOT NULL,
  "score" DOUBLE PRECISION,
  "published" DATE NOT NULL,
  "edited_at" TIMESTAMP NOT NULL,
  FOREIGN KEY ("author_id") REFERENCES "authors" ("id")
)`, Postgres.CreateTableSQL(p, posts))

	mysql := MySQL.CreateTableSQL(p, posts)
	assert.Contains(t, mysql, "`edited_at` DATETIME NOT NULL")
	assert.Contains(t, mysql, "REFERENCES `authors` (`id`)")

	ddl := SQLite.DDL(p, []string{"authors", "posts"})
	assert.Contains(t, ddl, `"avatar" BLOB NOT NULL`)
	assert.Less(t, strings.Index(ddl, `"authors"`), strings.Index(ddl, `"posts"`))
}

func TestBindValue(t *testing.T) {
	c := &schema.Column{Name: "at", DType: schema.DTypeDatetime}
	assert.Equal(t, "2024-03-01 10:11:12", MySQL.bindValue(c, "2024-03-01T10:11:12Z"))
	assert.Equal(t, "2024-03-01T10:11:12Z", Postgres.bindValue(c, "2024-03-01T10:11:12Z"))
	assert.Equal(t, int64(3), MySQL.bindValue(&schema.Column{Name: "n", DType: schema.DTypeInt}, int64(3)))
}

func TestSQLSinkSQLite(t *testing.T) {
	p := exportProject()
	data := exportData(t, p)

	db, d, err := OpenDB("sqlite", filepath.Join(t.TempDir(), "out.db"))
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, "sqlite", d.Name)

	sink := NewSQLSink(db, d, 4)
	assert.Equal(t, "sqlite", sink.Name())
	written, err := sink.Write(context.Background(), p, data, nil)
	require.NoError(t, err)
	assert.Equal(t, data.RowCounts(), written)

	for table, want := range data.RowCounts() {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
		assert.Equal(t, want, n, table)
	}

	var orphans int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM posts WHERE author_id NOT IN (SELECT id FROM authors)`).Scan(&orphans))
	assert.Zero(t, orphans)

	var avatar []byte
	require.NoError(t, db.QueryRow(`SELECT avatar FROM authors WHERE id = 1`).Scan(&avatar))
	assert.Equal(t, data.Rows["authors"][0]["avatar"], avatar)
}

func TestOpenDBUnknownProvider(t *testing.T) {
	_, _, err := OpenDB("oracle", "x")
	assert.Error(t, err)
}
