package generator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

func init() {
	register("sample_csv", genSampleCSV, validateSampleCSV)
}

type poolKey struct {
	path   string
	column int
	header bool
}

// valuePools caches CSV columns so a file is read once per process.
var valuePools = struct {
	sync.Mutex
	pools map[poolKey][]string
}{pools: make(map[poolKey][]string)}

// LoadCSVColumn reads one column of a CSV file, skipping the header row
// when asked. Blank cells are dropped.
func LoadCSVColumn(path string, column int, skipHeader bool) ([]string, error) {
	key := poolKey{path: path, column: column, header: skipHeader}
	valuePools.Lock()
	defer valuePools.Unlock()
	if pool, ok := valuePools.pools[key]; ok {
		return pool, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample CSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var values []string
	first := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sample CSV %s: %w", path, err)
		}
		if first && skipHeader {
			first = false
			continue
		}
		first = false
		if column < len(rec) && rec[column] != "" {
			values = append(values, rec[column])
		}
	}
	valuePools.pools[key] = values
	return values, nil
}

func genSampleCSV(ctx *Context, p Params) (any, error) {
	col, err := p.Int("column_index", 0)
	if err != nil {
		return nil, paramError(ctx, err)
	}
	path := p.String("path", "")
	values, err := LoadCSVColumn(path, col, p.String("header", "true") != "false")
	if err != nil {
		return nil, apperrors.Generation(ctx.location(), err.Error(), "check params.path")
	}
	if len(values) == 0 {
		return nil, apperrors.Generationf(ctx.location(), "point params.column_index at a populated column",
			"sample CSV %s has no values in column %d", path, col)
	}
	return values[ctx.Rand.Intn(len(values))], nil
}

func validateSampleCSV(t *schema.Table, c *schema.Column) error {
	loc := columnLoc(t.Name, c.Name)
	p := Params(c.Params)
	path := p.String("path", "")
	if path == "" {
		return apperrors.Validation(loc, "sample_csv requires params.path", "set params.path to a CSV file")
	}
	if _, err := os.Stat(path); err != nil {
		return apperrors.Validationf(loc, "check that the file exists", "sample CSV '%s' is not readable", path)
	}
	idx, err := p.Int("column_index", 0)
	if err != nil || idx < 0 {
		return apperrors.Validation(loc, "params.column_index must be a non-negative integer", "fix params.column_index")
	}
	return nil
}
