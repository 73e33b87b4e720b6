package usage

import (
	"math"
	"sort"
	"strings"
	"time"

	"signalcrm/internal/engine/plans"
)

// Analytics computes the four read-only usage views from recorder data. All
// work is pure in-memory aggregation; nothing here touches the network or the
// durable store, so these paths never block a request.
//
// Two windowing regimes coexist and must not be mixed up: the summary
// counters cut at UTC calendar boundaries (start of day, of the Monday week,
// of the month), while the time series and rate-limit views use rolling
// windows anchored to now.
type Analytics struct {
	rec *Recorder
	now func() time.Time
}

func NewAnalytics(rec *Recorder) *Analytics {
	return &Analytics{rec: rec, now: time.Now}
}

type EndpointCount struct {
	Method   string `json:"method"`
	Endpoint string `json:"endpoint"`
	Count    int    `json:"count"`
}

type Summary struct {
	RequestsToday     int             `json:"requests_today"`
	RequestsThisWeek  int             `json:"requests_this_week"`
	RequestsThisMonth int             `json:"requests_this_month"`
	AvgResponseTimeMs int64           `json:"avg_response_time_ms"`
	ErrorRate         float64         `json:"error_rate"`
	TopEndpoints      []EndpointCount `json:"top_endpoints"`
}

// Summary aggregates the organization's retained records against UTC
// calendar boundaries.
func (a *Analytics) Summary(orgID string) Summary {
	records := a.rec.RecordsFor(orgID)
	now := a.now().UTC()

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := dayStart.AddDate(0, 0, -mondayOffset(dayStart))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var s Summary
	var totalLatency int64
	var errorCount int

	counts := make(map[[2]string]int)
	firstSeen := make(map[[2]string]int)

	for _, r := range records {
		ts := r.Timestamp.UTC()
		if !ts.Before(dayStart) {
			s.RequestsToday++
		}
		if !ts.Before(weekStart) {
			s.RequestsThisWeek++
		}
		if !ts.Before(monthStart) {
			s.RequestsThisMonth++
		}

		totalLatency += r.ResponseTimeMs
		if r.StatusCode >= 400 {
			errorCount++
		}

		pair := [2]string{r.Method, r.Endpoint}
		if _, ok := counts[pair]; !ok {
			firstSeen[pair] = len(firstSeen)
		}
		counts[pair]++
	}

	if len(records) > 0 {
		s.AvgResponseTimeMs = int64(math.Round(float64(totalLatency) / float64(len(records))))
		s.ErrorRate = round2(100 * float64(errorCount) / float64(len(records)))
	}

	top := rankEndpoints(counts, firstSeen, 5)
	s.TopEndpoints = make([]EndpointCount, len(top))
	for i, pair := range top {
		s.TopEndpoints[i] = EndpointCount{Method: pair[0], Endpoint: pair[1], Count: counts[pair]}
	}
	return s
}

type TimeBucket struct {
	Hour              string `json:"hour"`
	Count             int    `json:"count"`
	Errors            int    `json:"errors"`
	AvgResponseTimeMs int64  `json:"avg_response_time_ms"`
}

// TimeSeries returns exactly hours contiguous one-hour buckets ending at the
// current hour, zero-filled where no traffic occurred, oldest first. Dense
// output is a guarantee: charting clients never see gaps.
func (a *Analytics) TimeSeries(orgID string, hours int) []TimeBucket {
	if hours < 1 {
		hours = 1
	}
	now := a.now().UTC()

	buckets := make([]TimeBucket, hours)
	index := make(map[string]int, hours)
	for i := 0; i < hours; i++ {
		label := now.Add(-time.Duration(hours-1-i) * time.Hour).Format(HourBucketLayout)
		buckets[i] = TimeBucket{Hour: label}
		index[label] = i
	}

	latencySums := make([]int64, hours)
	for _, r := range a.rec.RecordsFor(orgID) {
		i, ok := index[r.HourBucket]
		if !ok {
			continue
		}
		buckets[i].Count++
		latencySums[i] += r.ResponseTimeMs
		if r.StatusCode >= 400 {
			buckets[i].Errors++
		}
	}

	for i := range buckets {
		if buckets[i].Count > 0 {
			buckets[i].AvgResponseTimeMs = int64(math.Round(float64(latencySums[i]) / float64(buckets[i].Count)))
		}
	}
	return buckets
}

type EndpointStat struct {
	Method            string  `json:"method"`
	Endpoint          string  `json:"endpoint"`
	Count             int     `json:"count"`
	AvgResponseTimeMs int64   `json:"avg_response_time_ms"`
	Errors            int     `json:"errors"`
	ErrorRate         float64 `json:"error_rate"`
}

// EndpointBreakdown returns at most 20 method+endpoint pairs ordered by
// request count descending. Ties are broken by first-seen order so the
// result is deterministic for equal counts.
func (a *Analytics) EndpointBreakdown(orgID string) []EndpointStat {
	counts := make(map[[2]string]int)
	firstSeen := make(map[[2]string]int)
	latency := make(map[[2]string]int64)
	errors := make(map[[2]string]int)

	for _, r := range a.rec.RecordsFor(orgID) {
		pair := [2]string{r.Method, r.Endpoint}
		if _, ok := counts[pair]; !ok {
			firstSeen[pair] = len(firstSeen)
		}
		counts[pair]++
		latency[pair] += r.ResponseTimeMs
		if r.StatusCode >= 400 {
			errors[pair]++
		}
	}

	ranked := rankEndpoints(counts, firstSeen, 20)
	stats := make([]EndpointStat, len(ranked))
	for i, pair := range ranked {
		n := counts[pair]
		stats[i] = EndpointStat{
			Method:            pair[0],
			Endpoint:          pair[1],
			Count:             n,
			AvgResponseTimeMs: int64(math.Round(float64(latency[pair]) / float64(n))),
			Errors:            errors[pair],
			ErrorRate:         round2(100 * float64(errors[pair]) / float64(n)),
		}
	}
	return stats
}

type RateLimitStat struct {
	Label             string `json:"label"`
	PathPrefix        string `json:"path_prefix"`
	RequestsPerMinute int    `json:"requests_per_minute"`
	Current           int    `json:"current"`
	Percentage        int    `json:"percentage"`
}

// RateLimitStatus evaluates the tier's configured rate-limit entries against
// the trailing rolling 60 seconds, not the calendar minute. Percentages clamp
// to [0,100]; a non-positive limit reports 0 so a misconfigured tier can
// never divide by zero.
func (a *Analytics) RateLimitStatus(orgID string, tier plans.Tier) []RateLimitStat {
	cutoff := a.now().Add(-time.Minute)
	return evalRateLimits(a.rec.RecordsFor(orgID), plans.RateLimitsFor(tier), cutoff)
}

func evalRateLimits(records []Record, limits []plans.RateLimitTier, cutoff time.Time) []RateLimitStat {
	stats := make([]RateLimitStat, len(limits))
	for i, rl := range limits {
		current := 0
		for _, r := range records {
			if r.Timestamp.After(cutoff) && strings.HasPrefix(r.Endpoint, rl.PathPrefix) {
				current++
			}
		}

		pct := 0
		if rl.RequestsPerMinute > 0 {
			pct = int(math.Round(100 * float64(current) / float64(rl.RequestsPerMinute)))
			if pct > 100 {
				pct = 100
			}
		}

		stats[i] = RateLimitStat{
			Label:             rl.Label,
			PathPrefix:        rl.PathPrefix,
			RequestsPerMinute: rl.RequestsPerMinute,
			Current:           current,
			Percentage:        pct,
		}
	}
	return stats
}

// mondayOffset is the number of days since the most recent Monday.
func mondayOffset(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	return wd - 1
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// rankEndpoints sorts pairs by count descending, first-seen order on ties,
// and truncates to limit. The first-seen tiebreak keeps the ranking
// deterministic even though the input is a map.
func rankEndpoints(counts map[[2]string]int, firstSeen map[[2]string]int, limit int) [][2]string {
	pairs := make([][2]string, 0, len(counts))
	for pair := range counts {
		pairs = append(pairs, pair)
	}

	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return firstSeen[a] < firstSeen[b]
	})

	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}
