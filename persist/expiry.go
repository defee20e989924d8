package persist

import "time"

// Fitter decides how long a disconnected session should be kept before
// it's considered truly gone, the same role rmqtt's Fitter trait plays for
// the original rebuild path. A real broker core would derive this from
// listener config and protocol version; tests can stub it.
type Fitter interface {
	SessionExpiryInterval(rec SessionRecord) time.Duration
}

// FixedFitter always returns the same interval regardless of session
// state, useful as a default and in tests.
type FixedFitter time.Duration

func (f FixedFitter) SessionExpiryInterval(SessionRecord) time.Duration { return time.Duration(f) }

// remainingExpiryMillis computes how many milliseconds of session expiry
// remain given when the client disconnected and how long the fitter says
// the session should survive - equivalent to the original's
// session_expiry_interval: fitter interval minus elapsed time since
// disconnect. A value <= 0 means the session has already expired and
// should not be rebuilt.
func remainingExpiryMillis(fitter Fitter, rec SessionRecord, nowMillis int64) int64 {
	disconnectedAt := rec.LastUpdate
	if rec.Disconnect != nil && rec.Disconnect.DisconnectedAt > 0 {
		disconnectedAt = rec.Disconnect.DisconnectedAt
	}

	interval := fitter.SessionExpiryInterval(rec).Milliseconds()
	elapsed := nowMillis - disconnectedAt
	return interval - elapsed
}
