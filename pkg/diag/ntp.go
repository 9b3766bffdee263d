// Package diag provides small operational diagnostics for the capture
// service, starting with clock-offset checking against an NTP server —
// useful for judging how trustworthy a frame's wall-clock capture
// timestamp is relative to the device's own free-running USB PTS clock.
package diag

import (
	"time"

	"github.com/beevik/ntp"
)

// ClockOffset reports how far the local clock is from server's: adding it
// to local time gives the server's time, so a positive value means the
// local clock is behind.
func ClockOffset(server string) (time.Duration, error) {
	resp, err := ntp.Query(server)
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}
