// Package format renders sizes for display.
package format

import (
	"fmt"
	"strconv"
)

var units = []string{"B", "KB", "MB", "GB", "TB"}

// HumanBytes formats b in 1024-based units with at most two decimals,
// e.g. "512 B", "1.5 KB", "48.83 MB".
func HumanBytes(b int64) string {
	if b < 0 {
		// -(b+1) cannot overflow, unlike -b for math.MinInt64.
		return "-" + humanBytes(uint64(-(b+1))+1)
	}
	return humanBytes(uint64(b))
}

func humanBytes(b uint64) string {
	size := float64(b)
	unit := 0
	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%s %s", strconv.FormatFloat(roundTwo(size), 'f', -1, 64), units[unit])
}

func roundTwo(f float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 2, 64), 64)
	return v
}
