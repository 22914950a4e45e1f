package speech

import (
	"net/url"
	"time"
)

// sasExpiry extracts the signed-expiry (se) parameter from a pre-signed
// storage URL. Returns "" when the URL is malformed or carries no expiry.
func sasExpiry(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("se")
}

// sasExpired reports whether the URL's signed expiry is at or before now.
// An unreadable expiry counts as valid so a malformed timestamp never blocks
// a download attempt.
func sasExpired(raw string, now time.Time) bool {
	se := sasExpiry(raw)
	if se == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339, se)
	if err != nil {
		return false
	}
	return !now.Before(t)
}
