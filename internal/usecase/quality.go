package usecase

import (
	"fmt"
	"strings"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
)

// ValidateSnapshot runs quality checks over a snapshot and returns the issues
// found. Findings are advisory; collection never fails on them.
func ValidateSnapshot(snap *models.Snapshot) []string {
	var issues []string

	if snap.NumRows() == 0 {
		issues = append(issues, "snapshot is empty")
		return issues
	}

	// Columns with more than half the cells missing.
	for i, col := range snap.Columns {
		missing := 0
		for _, row := range snap.Rows {
			if i >= len(row) || row[i] == nil {
				missing++
			}
		}
		if pct := float64(missing) / float64(len(snap.Rows)); pct > 0.5 {
			issues = append(issues, fmt.Sprintf("column %s is %.0f%% missing", col, pct*100))
		}
	}

	// Duplicate rows.
	seen := make(map[string]struct{}, len(snap.Rows))
	dups := 0
	for _, row := range snap.Rows {
		key := rowKey(row)
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	if dups > 0 {
		issues = append(issues, fmt.Sprintf("%d duplicate rows", dups))
	}

	// Constant columns carry no signal.
	for i, col := range snap.Columns {
		if len(snap.Rows) < 2 {
			break
		}
		constant := true
		first := cellKey(snap.Rows[0], i)
		for _, row := range snap.Rows[1:] {
			if cellKey(row, i) != first {
				constant = false
				break
			}
		}
		if constant {
			issues = append(issues, fmt.Sprintf("column %s is constant", col))
		}
	}

	return issues
}

func rowKey(row []any) string {
	var b strings.Builder
	for i, v := range row {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		fmt.Fprintf(&b, "%v", v)
	}
	return b.String()
}

func cellKey(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return "\x00"
	}
	return fmt.Sprintf("%v", row[i])
}
