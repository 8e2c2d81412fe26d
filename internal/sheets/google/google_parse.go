package google

import (
	"fmt"
	"strings"

	"finboard/internal/core"
	ports "finboard/internal/sheets"
)

// parseRows converts a values matrix (as returned by Sheets API) into rows.
// A header row and rows without an id or a parseable amount are skipped.
func parseRows(values [][]any) []ports.Row {
	out := make([]ports.Row, 0, len(values))
	for i, raw := range values {
		cols := toStrings(raw)
		if i == 0 && len(cols) > 0 && strings.EqualFold(cols[0], ports.Header[0]) {
			continue
		}
		id := safeGet(cols, 0)
		if id == "" {
			continue
		}
		amount, err := core.ParseAmount(safeGet(cols, 5))
		if err != nil {
			continue
		}
		out = append(out, ports.Row{
			ID:          id,
			Date:        safeGet(cols, 1),
			Type:        core.Kind(strings.ToLower(safeGet(cols, 2))),
			Category:    safeGet(cols, 3),
			Description: safeGet(cols, 4),
			Amount:      amount,
		})
	}
	return out
}

// findRow returns the zero-based index of the row whose first cell is id, or -1.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i
		}
	}
	return -1
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
