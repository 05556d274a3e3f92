package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0.0 B"},
		{512, "512.0 B"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
		{1099511627776, "1.0 TB"},
		{5 * 1099511627776 * 1024, "5120.0 TB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in), "input %d", tt.in)
	}
}

func TestFormatSpeed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0.0 B/s", FormatSpeed(0))
	assert.Equal(t, "0.0 B/s", FormatSpeed(-5))
	assert.Equal(t, "2.0 KB/s", FormatSpeed(2048))
	assert.Equal(t, "250.0 MB/s", FormatSpeed(250*1024*1024))
	assert.Equal(t, "1000.0 MB/s", FormatSpeed(1000*1024*1024))
	assert.Equal(t, "1.50 GB/s", FormatSpeed(1536*1024*1024))
}

func TestFormatUptime(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00:00:00", FormatUptime(0))
	assert.Equal(t, "01:02:03", FormatUptime(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "2.03:00:10", FormatUptime(51*time.Hour+10*time.Second))
}

func TestFormatUnavailable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, NA, FormatTemperature(55, false))
	assert.Equal(t, "55 °C", FormatTemperature(55, true))
	assert.Equal(t, NA, FormatWatts(0, false))
	assert.Equal(t, "12.5 W", FormatWatts(12.5, true))
	assert.Equal(t, "1.100 V", FormatVolts(1.1, true))
	assert.Equal(t, NA, FormatMHz(0))
	assert.Equal(t, "3.60 GHz", FormatMHz(3600))
	assert.Equal(t, "42%", FormatPercent(42.4))
}
