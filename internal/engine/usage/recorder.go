package usage

import (
	"sync"
	"time"
)

// HourBucketLayout is the label format of one analytics hour bucket, always
// rendered in UTC.
const HourBucketLayout = "2006-01-02-15"

// DefaultRetention covers the longest window any analytics view reads (the
// calendar-month counters), with headroom for a 31-day month.
const DefaultRetention = 32 * 24 * time.Hour

// Record is one completed request. Endpoint is the registered path template,
// never a concrete URL, so breakdowns group correctly.
type Record struct {
	OrganizationID string    `json:"organization_id"`
	Timestamp      time.Time `json:"timestamp"`
	Method         string    `json:"method"`
	Endpoint       string    `json:"endpoint"`
	StatusCode     int       `json:"status_code"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	HourBucket     string    `json:"hour_bucket"`
}

// NewRecord fills in the precomputed hour bucket.
func NewRecord(orgID string, ts time.Time, method, endpoint string, status int, responseTimeMs int64) Record {
	return Record{
		OrganizationID: orgID,
		Timestamp:      ts,
		Method:         method,
		Endpoint:       endpoint,
		StatusCode:     status,
		ResponseTimeMs: responseTimeMs,
		HourBucket:     ts.UTC().Format(HourBucketLayout),
	}
}

type orgBuffer struct {
	mu      sync.Mutex
	records []Record
}

// Recorder holds the in-process request log, partitioned per organization so
// unrelated tenants never contend on the same lock. Records live only in
// memory and are lost on restart; aged entries are pruned lazily on read and
// by the periodic sweep.
type Recorder struct {
	mu        sync.RWMutex
	orgs      map[string]*orgBuffer
	retention time.Duration
	now       func() time.Time
}

func NewRecorder(retention time.Duration) *Recorder {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Recorder{
		orgs:      make(map[string]*orgBuffer),
		retention: retention,
		now:       time.Now,
	}
}

func (r *Recorder) buffer(orgID string) *orgBuffer {
	r.mu.RLock()
	buf := r.orgs[orgID]
	r.mu.RUnlock()
	if buf != nil {
		return buf
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if buf = r.orgs[orgID]; buf == nil {
		buf = &orgBuffer{}
		r.orgs[orgID] = buf
	}
	return buf
}

// Record appends the entry to its organization's buffer. Safe for any number
// of concurrent writers.
func (r *Recorder) Record(rec Record) {
	buf := r.buffer(rec.OrganizationID)
	buf.mu.Lock()
	buf.records = append(buf.records, rec)
	buf.mu.Unlock()
}

// RecordsFor returns a copy of the organization's retained records in
// insertion order, dropping anything past the retention horizon first.
// Callers doing windowed reads filter by timestamp themselves.
func (r *Recorder) RecordsFor(orgID string) []Record {
	r.mu.RLock()
	buf := r.orgs[orgID]
	r.mu.RUnlock()
	if buf == nil {
		return nil
	}

	cutoff := r.now().Add(-r.retention)

	buf.mu.Lock()
	defer buf.mu.Unlock()

	buf.records = pruneBefore(buf.records, cutoff)

	out := make([]Record, len(buf.records))
	copy(out, buf.records)
	return out
}

// Sweep prunes every organization's buffer against the retention horizon.
// Reads already prune lazily; the sweep only bounds growth for tenants
// nobody is querying.
func (r *Recorder) Sweep() {
	cutoff := r.now().Add(-r.retention)

	r.mu.RLock()
	bufs := make([]*orgBuffer, 0, len(r.orgs))
	for _, buf := range r.orgs {
		bufs = append(bufs, buf)
	}
	r.mu.RUnlock()

	for _, buf := range bufs {
		buf.mu.Lock()
		buf.records = pruneBefore(buf.records, cutoff)
		buf.mu.Unlock()
	}
}

// pruneBefore drops the aged prefix. Records arrive in near-insertion order,
// so a prefix scan is enough; a stray out-of-order record survives until the
// prefix catches up, which is acceptable for advisory telemetry.
func pruneBefore(records []Record, cutoff time.Time) []Record {
	i := 0
	for i < len(records) && records[i].Timestamp.Before(cutoff) {
		i++
	}
	if i == 0 {
		return records
	}
	kept := make([]Record, len(records)-i)
	copy(kept, records[i:])
	return kept
}
