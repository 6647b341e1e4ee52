package redis

import "time"

const (
	keyPrefix = "agency/"

	keyPrefixSession      = keyPrefix + "sessions/"
	keyPrefixUserSessions = keyPrefix + "user_sessions/"
	keyPrefixRateLimit    = keyPrefix + "ratelimit/"
	keyPrefixLock         = keyPrefix + "locks/"

	lockTTL = 30 * time.Second

	// KeyLeadOutbox is the list new leads are pushed to for downstream consumers
	KeyLeadOutbox = keyPrefix + "outbox/leads"
)
