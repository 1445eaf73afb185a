package constants

import (
	"time"
)

// Redis Cache Configuration
// This file centralizes all Redis keys and TTL values for the booking service
// Pattern: boxoffice:{module}:{operation}:{identifier}

// ================== CACHE TTL DURATIONS ==================

// Highly Dynamic (Micro TTL: real-time sensitive)
const (
	TTL_REALTIME_SHORT = 30 * time.Second // 30 seconds - for live seat maps
)

// Deduplication windows
const (
	TTL_DEDUP_DAY = 24 * time.Hour // 24 hours - provider webhook retry window
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "boxoffice"
)

// ================== INVENTORY MODULE ==================

const (
	CACHE_KEY_SEAT_MAP = CACHE_PREFIX + ":inventory:seat_map:show:" // + show-id
)

const (
	TTL_SEAT_MAP = TTL_REALTIME_SHORT // 30 seconds
)

// ================== EXPIRATION MODULE ==================

const (
	LOCK_KEY_SWEEP = CACHE_PREFIX + ":expiration:sweep:lease"
)

// ================== PAYMENTS MODULE ==================

const (
	CACHE_KEY_WEBHOOK_EVENT = CACHE_PREFIX + ":payments:webhook:event:" // + provider event-id
)

const (
	TTL_WEBHOOK_EVENT = TTL_DEDUP_DAY // 24 hours
)

// ================== RATE LIMITING ==================

const (
	RATE_LIMIT_PREFIX = CACHE_PREFIX + ":rate_limit"
)

// ================== HELPER FUNCTIONS ==================

func BuildSeatMapKey(showID string) string {
	return CACHE_KEY_SEAT_MAP + showID
}

func BuildWebhookEventKey(eventID string) string {
	return CACHE_KEY_WEBHOOK_EVENT + eventID
}
