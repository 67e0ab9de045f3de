package taximeter

import (
	"fmt"
	"time"
)

// FormatDuration renders d as HH:MM:SS, truncated to whole seconds.
// Negative durations render as 00:00:00.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}
