package planner

import (
	"math"

	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"

	bytesPerCellMemory = 48
	bytesPerCellWrite  = 24
	rowsPerSecond      = 75000
)

type TableEstimate struct {
	Table          string  `json:"table_name"`
	Rows           int     `json:"rows"`
	Columns        int     `json:"columns"`
	MemoryMB       float64 `json:"memory_mb"`
	WriteMB        float64 `json:"write_mb"`
	Seconds        float64 `json:"seconds"`
	Risk           string  `json:"risk"`
	Recommendation string  `json:"recommendation"`
}

// EstimateWorkload gives a rough per-table cost for the selected tables.
func EstimateWorkload(p *schema.Project, pr Profile) ([]TableEstimate, error) {
	if err := pr.Validate(p); err != nil {
		return nil, err
	}
	order, err := SelectTables(p, pr.TargetTables)
	if err != nil {
		return nil, err
	}
	counts, err := EffectiveRowCounts(p, pr)
	if err != nil {
		return nil, err
	}

	out := make([]TableEstimate, 0, len(order))
	for _, name := range order {
		t, _ := p.Table(name)
		rows, cols := counts[name], len(t.Columns)
		cells := float64(rows) * float64(cols)
		e := TableEstimate{
			Table:    name,
			Rows:     rows,
			Columns:  cols,
			MemoryMB: round2(cells * bytesPerCellMemory / (1024 * 1024)),
			WriteMB:  round2(cells * bytesPerCellWrite / (1024 * 1024)),
			Seconds:  round2(float64(rows) * (1 + math.Max(0, float64(cols-4))*0.08) / rowsPerSecond),
		}
		switch {
		case e.MemoryMB >= 512 || e.Seconds >= 20:
			e.Risk = RiskHigh
			e.Recommendation = "split the run with target_tables or lower chunk_size_rows and write to csv"
		case e.MemoryMB >= 128 || e.Seconds >= 5:
			e.Risk = RiskMedium
			e.Recommendation = "consider multi_process_local execution"
		default:
			e.Risk = RiskLow
			e.Recommendation = "no action needed"
		}
		out = append(out, e)
	}
	return out, nil
}

type EstimateSummary struct {
	TotalRows     int
	TotalMemoryMB float64
	TotalWriteMB  float64
	TotalSeconds  float64
	HighestRisk   string
}

func SummarizeEstimates(estimates []TableEstimate) EstimateSummary {
	s := EstimateSummary{HighestRisk: RiskLow}
	rank := map[string]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2}
	for _, e := range estimates {
		s.TotalRows += e.Rows
		s.TotalMemoryMB += e.MemoryMB
		s.TotalWriteMB += e.WriteMB
		s.TotalSeconds += e.Seconds
		if rank[e.Risk] > rank[s.HighestRisk] {
			s.HighestRisk = e.Risk
		}
	}
	s.TotalMemoryMB = round2(s.TotalMemoryMB)
	s.TotalWriteMB = round2(s.TotalWriteMB)
	s.TotalSeconds = round2(s.TotalSeconds)
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
