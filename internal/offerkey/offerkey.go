// Package offerkey derives the identity of an assignment offer and its
// remaining time to live. Two offers for the same delivery with different
// expiry instants are distinct identities; a re-offer must never be
// mistaken for a duplicate of the one that expired.
package offerkey

import (
	"fmt"
	"time"
)

// NoExpiry is the sentinel stamp for offers that arrived without an expiry.
const NoExpiry = "noexp"

// Key returns the stable identity key for (delivery id, expiry instant).
func Key(deliveryID int64, expiresAt *time.Time) string {
	stamp := NoExpiry
	if expiresAt != nil {
		stamp = fmt.Sprintf("%d", expiresAt.UnixMilli())
	}
	return fmt.Sprintf("%d:%s", deliveryID, stamp)
}

// SecondsRemaining returns the whole seconds left until expiry, clamped at
// zero. ok is false when there is no expiry at all; callers must treat that
// as "no deadline", not as zero.
func SecondsRemaining(expiresAt *time.Time, now time.Time) (secs int, ok bool) {
	if expiresAt == nil {
		return 0, false
	}
	d := expiresAt.Sub(now)
	if d < 0 {
		return 0, true
	}
	return int(d / time.Second), true
}
