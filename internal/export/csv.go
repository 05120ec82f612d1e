package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
	"github.com/Lumos-Labs-HQ/flashseed/internal/seeder"
)

// CSVSink writes one <table>.csv per table with a header row in schema
// column order.
type CSVSink struct {
	Dir        string
	BufferRows int
}

func NewCSVSink(dir string, bufferRows int) *CSVSink {
	if bufferRows <= 0 {
		bufferRows = 5000
	}
	return &CSVSink{Dir: dir, BufferRows: bufferRows}
}

func (s *CSVSink) Name() string {
	return "csv"
}

func (s *CSVSink) Write(ctx context.Context, p *schema.Project, data *seeder.GeneratedData, progress func(table string, rows int)) (map[string]int, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	written := make(map[string]int, len(data.Order))
	for _, name := range data.Order {
		t, ok := p.Table(name)
		if !ok {
			return written, fmt.Errorf("table %s is not part of the project", name)
		}
		n, err := s.writeTable(ctx, t, data.Rows[name])
		if err != nil {
			return written, err
		}
		written[name] = n
		if progress != nil {
			progress(name, n)
		}
	}
	return written, nil
}

func (s *CSVSink) writeTable(ctx context.Context, t *schema.Table, rows []schema.Row) (int, error) {
	path := filepath.Join(s.Dir, t.Name+".csv")
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	columns := t.ColumnNames()
	if err := w.Write(columns); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(columns))
	for i, row := range rows {
		if i%s.BufferRows == 0 {
			if err := ctx.Err(); err != nil {
				w.Flush()
				return i, err
			}
		}
		for j, col := range columns {
			record[j] = FormatValue(row[col])
		}
		if err := w.Write(record); err != nil {
			return i, fmt.Errorf("failed to write CSV row: %w", err)
		}
		if (i+1)%s.BufferRows == 0 {
			w.Flush()
			if err := w.Error(); err != nil {
				return i, fmt.Errorf("failed to flush CSV: %w", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return len(rows), fmt.Errorf("failed to flush CSV: %w", err)
	}
	return len(rows), nil
}
