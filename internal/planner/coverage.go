package planner

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// VerifyCoverage checks that the chunks of every table cover [1, rows]
// exactly once.
func VerifyCoverage(entries []ChunkEntry, counts map[string]int) error {
	covered := make(map[string]*roaring.Bitmap)
	for _, e := range entries {
		if e.StartRow < 1 || e.EndRow < e.StartRow {
			return fmt.Errorf("table %s chunk %d has invalid range [%d, %d]", e.Table, e.ChunkIndex, e.StartRow, e.EndRow)
		}
		bm, ok := covered[e.Table]
		if !ok {
			bm = roaring.New()
			covered[e.Table] = bm
		}
		chunk := roaring.New()
		chunk.AddRange(uint64(e.StartRow), uint64(e.EndRow)+1)
		if bm.Intersects(chunk) {
			return fmt.Errorf("table %s chunk %d overlaps an earlier chunk", e.Table, e.ChunkIndex)
		}
		bm.Or(chunk)
	}

	for table, bm := range covered {
		want := counts[table]
		if int(bm.GetCardinality()) != want || bm.Minimum() != 1 || int(bm.Maximum()) != want {
			return fmt.Errorf("table %s chunks cover %d rows, expected rows 1..%d", table, bm.GetCardinality(), want)
		}
	}
	for table, n := range counts {
		if _, ok := covered[table]; !ok && n > 0 {
			return fmt.Errorf("table %s has %d rows but no chunks", table, n)
		}
	}
	return nil
}
