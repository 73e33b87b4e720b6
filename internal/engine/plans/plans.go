package plans

import "strings"

// Tier is the closed set of subscription levels. External input (the
// organizations table, billing webhooks) is normalized through ParseTier at
// the point of entry; everything past that works with the enum.
type Tier int

const (
	TierFree Tier = iota
	TierStarter
	TierPro
	TierEnterprise
)

func (t Tier) String() string {
	switch t {
	case TierStarter:
		return "starter"
	case TierPro:
		return "pro"
	case TierEnterprise:
		return "enterprise"
	default:
		return "free"
	}
}

// ParseTier maps a raw tier string onto the enum. Unknown or empty values
// fall back to the lowest tier.
func ParseTier(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "starter":
		return TierStarter
	case "pro":
		return TierPro
	case "enterprise":
		return TierEnterprise
	default:
		return TierFree
	}
}

// Limit is a per-resource ceiling: either a finite count or unbounded.
// Unbounded is an explicit marker, never a float infinity or a sentinel
// integer, so comparisons stay exact.
type Limit struct {
	n         int64
	unbounded bool
}

func Finite(n int64) Limit {
	return Limit{n: n}
}

func Unbounded() Limit {
	return Limit{unbounded: true}
}

// Allows reports whether one more unit may be created at the given current
// count.
func (l Limit) Allows(current int64) bool {
	return l.unbounded || current < l.n
}

// Value returns the finite ceiling and true, or zero and false when the
// limit is unbounded.
func (l Limit) Value() (int64, bool) {
	if l.unbounded {
		return 0, false
	}
	return l.n, true
}

// Limits holds the metered-resource ceilings for one tier. Contacts and
// Members are standing totals; Signals is a per-calendar-month volume.
type Limits struct {
	Contacts Limit
	Signals  Limit
	Members  Limit
}

var tierLimits = [...]Limits{
	TierFree:       {Contacts: Finite(1000), Signals: Finite(5000), Members: Finite(3)},
	TierStarter:    {Contacts: Finite(10000), Signals: Finite(50000), Members: Finite(10)},
	TierPro:        {Contacts: Finite(100000), Signals: Finite(500000), Members: Finite(50)},
	TierEnterprise: {Contacts: Unbounded(), Signals: Unbounded(), Members: Unbounded()},
}

func LimitsFor(t Tier) Limits {
	if t < TierFree || t > TierEnterprise {
		t = TierFree
	}
	return tierLimits[t]
}

// RateLimitTier describes one short-window request ceiling used for
// infrastructure visibility. These are independent of the business quotas
// above: they protect the instance, not the subscription.
type RateLimitTier struct {
	Label             string `json:"label"`
	PathPrefix        string `json:"path_prefix"`
	RequestsPerMinute int    `json:"requests_per_minute"`
}

var tierRateLimits = [...][]RateLimitTier{
	TierFree: {
		{Label: "API requests", PathPrefix: "/api/", RequestsPerMinute: 600},
		{Label: "Signal ingest", PathPrefix: "/api/v1/signals", RequestsPerMinute: 60},
		{Label: "Analytics", PathPrefix: "/api/v1/usage", RequestsPerMinute: 60},
	},
	TierStarter: {
		{Label: "API requests", PathPrefix: "/api/", RequestsPerMinute: 3000},
		{Label: "Signal ingest", PathPrefix: "/api/v1/signals", RequestsPerMinute: 300},
		{Label: "Analytics", PathPrefix: "/api/v1/usage", RequestsPerMinute: 300},
	},
	TierPro: {
		{Label: "API requests", PathPrefix: "/api/", RequestsPerMinute: 12000},
		{Label: "Signal ingest", PathPrefix: "/api/v1/signals", RequestsPerMinute: 1200},
		{Label: "Analytics", PathPrefix: "/api/v1/usage", RequestsPerMinute: 600},
	},
	TierEnterprise: {
		{Label: "API requests", PathPrefix: "/api/", RequestsPerMinute: 60000},
		{Label: "Signal ingest", PathPrefix: "/api/v1/signals", RequestsPerMinute: 6000},
		{Label: "Analytics", PathPrefix: "/api/v1/usage", RequestsPerMinute: 1200},
	},
}

// RateLimitsFor returns the ordered rate-limit tiers for the plan. Callers
// must not mutate the returned slice.
func RateLimitsFor(t Tier) []RateLimitTier {
	if t < TierFree || t > TierEnterprise {
		t = TierFree
	}
	return tierRateLimits[t]
}
