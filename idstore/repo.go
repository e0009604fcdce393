package idstore

import "time"

// Entry records one seen (entityID, id) pair and when it stops being
// fresh. Entries past ExpiryTime are logically dead even when still
// present; removal is maintenance, not correctness.
type Entry struct {
	EntityID   string
	ID         string
	ExpiryTime time.Time
}

// Store is the replay-defense primitive. Every inbound SAML message id is
// checked against and then recorded into this store before it is trusted;
// outbound request ids are recorded so responses can be matched on the
// way back.
type Store interface {
	// Set upserts the entry keyed by (entityID, id). Calling twice with
	// the same key overwrites the expiry rather than erroring.
	Set(entityID, id string, expiryTime time.Time) error

	// Has reports whether an unexpired entry exists for the key. An
	// entry whose expiry is at or before the current time counts as
	// absent.
	Has(entityID, id string) bool
}
