package redisx

import "time"

const (
	// Dedup of processor notifications: dedup:{scope}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Intent status cache for success pages: intent_status:{correlation_key}
	KeyIntentStatus = "intent_status:%s"
)

var (
	// TTLDedup matches the processor's redelivery window.
	TTLDedup = 72 * time.Hour
	// TTLDedupLease bounds how long an uncommitted claim blocks redeliveries
	// when the process handling it dies.
	TTLDedupLease  = 2 * time.Minute
	TTLStatusCache = 30 * time.Second
)
