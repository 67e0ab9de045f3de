package taximeter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in  time.Duration
		out string
	}{
		{in: -5 * time.Millisecond, out: "00:00:00"},
		{in: 0, out: "00:00:00"},
		{in: 999 * time.Millisecond, out: "00:00:00"},
		{in: 3661000 * time.Millisecond, out: "01:01:01"},
		{in: 59*time.Minute + 59*time.Second + 999*time.Millisecond, out: "00:59:59"},
		{in: 99 * time.Hour, out: "99:00:00"},
		{in: 123 * time.Hour, out: "123:00:00"},
	}

	for _, test := range tests {
		t.Run(test.out, func(t *testing.T) {
			assert.Equal(t, test.out, FormatDuration(test.in))
		})
	}
}
