package format

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{100 * 1024, "100 KB"},
		{50_000, "48.83 KB"},
		{50 * 1024 * 1024, "50 MB"},
		{3 * 1024 * 1024 * 1024, "3 GB"},
		{-2048, "-2 KB"},
		{math.MaxInt64, "8388608 TB"},
		{math.MinInt64, "-8388608 TB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, HumanBytes(tt.in))
		})
	}
}
