package sigv4

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModTime_AcceptsAnyFractionalPrecision(t *testing.T) {
	fallback := time.Date(2024, 3, 12, 10, 15, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"milliseconds", "2024-03-01T08:30:00.000Z", time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)},
		{"two digits", "2024-03-01T08:30:00.12Z", time.Date(2024, 3, 1, 8, 30, 0, 120_000_000, time.UTC)},
		{"microseconds", "2024-03-01T08:30:00.123456Z", time.Date(2024, 3, 1, 8, 30, 0, 123_456_000, time.UTC)},
		{"whole seconds", "2024-03-01T08:30:00Z", time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)},
		{"garbage", "last tuesday", fallback},
		{"empty", "", fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseModTime(tt.raw, fallback))
		})
	}
}

func TestParseSize(t *testing.T) {
	assert.Equal(t, int64(2048), parseSize("2048"))
	assert.Equal(t, int64(0), parseSize("not-a-number"))
	assert.Equal(t, int64(0), parseSize("-7"))
	assert.Equal(t, int64(0), parseSize(""))
}

func TestParseListing_VariablePrecisionTimestamps(t *testing.T) {
	body := []byte(`<ListBucketResult>
  <Contents>
    <Key>a.bin</Key>
    <Size>1</Size>
    <LastModified>2024-03-01T08:30:00.123456Z</LastModified>
  </Contents>
</ListBucketResult>`)

	entries, err := parseListing(body, time.Now())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 30, 0, 123_456_000, time.UTC), entries[0].lastModified)
}
