package constants

import (
	"fmt"
	"time"
)

// Redis key layout for the festival backend
// Pattern: festival:{module}:{operation}:{identifier}:{params?}

// ================== CACHE TTL DURATIONS ==================

const (
	TTL_SEMI_STATIC_SHORT = 1 * time.Hour    // 1 hour - for audit reports
	TTL_DYNAMIC_QUICK     = 2 * time.Minute  // 2 minutes - for on-sale listings
	TTL_REALTIME_SHORT    = 30 * time.Second // 30 seconds - for stats summaries
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX     = "festival"
	RATELIMIT_PREFIX = CACHE_PREFIX + ":ratelimit"
)

// ================== TICKETS MODULE ==================

const (
	// Version counter bumped on every ticket type mutation
	CACHE_KEY_TICKETS_ON_SALE_VERSION = CACHE_PREFIX + ":tickets:on_sale:version"

	// On-sale listing, scoped by version and edition
	CACHE_KEY_TICKETS_ON_SALE = CACHE_PREFIX + ":tickets:on_sale" // + :v:X:ed:Y

	CACHE_KEY_TICKETS_STATS = CACHE_PREFIX + ":tickets:stats" // + :v:X:ed:Y
)

const (
	TTL_TICKETS_ON_SALE = TTL_DYNAMIC_QUICK  // 2 minutes
	TTL_TICKETS_STATS   = TTL_REALTIME_SHORT // 30 seconds
)

// ================== SCHEDULE MODULE ==================

const (
	// Version counter bumped on every slot write within an edition
	CACHE_KEY_SCHEDULE_VERSION = CACHE_PREFIX + ":schedule:version:ed:" // + edition-id

	// Derived views (audit, calendar exports), scoped by version
	CACHE_KEY_SCHEDULE_AUDIT = CACHE_PREFIX + ":schedule:audit" // + :v:X:ed:Y
)

const (
	TTL_SCHEDULE_AUDIT = TTL_SEMI_STATIC_SHORT // 1 hour
)

// ================== HELPER FUNCTIONS ==================

func editionScope(editionID string) string {
	if editionID == "" {
		return "all"
	}
	return editionID
}

// BuildOnSaleKey -> "festival:tickets:on_sale:v:3:ed:all"
func BuildOnSaleKey(version int64, editionID string) string {
	return fmt.Sprintf("%s:v:%d:ed:%s", CACHE_KEY_TICKETS_ON_SALE, version, editionScope(editionID))
}

func BuildTicketStatsKey(version int64, editionID string) string {
	return fmt.Sprintf("%s:v:%d:ed:%s", CACHE_KEY_TICKETS_STATS, version, editionScope(editionID))
}

func BuildScheduleVersionKey(editionID string) string {
	return CACHE_KEY_SCHEDULE_VERSION + editionID
}

func BuildScheduleAuditKey(version int64, editionID string) string {
	return fmt.Sprintf("%s:v:%d:ed:%s", CACHE_KEY_SCHEDULE_AUDIT, version, editionID)
}

func BuildRateLimitKey(clientIP, limitType string) string {
	return RATELIMIT_PREFIX + ":" + clientIP + ":" + limitType
}
