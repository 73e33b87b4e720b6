package quota

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"signalcrm/internal/engine/plans"
)

// Metered resource kinds. These double as the resource argument of the
// durable-store Count call.
const (
	ResourceContacts = "contacts"
	ResourceSignals  = "signals"
	ResourceMembers  = "members"
)

// Store is the slice of the durable store quota enforcement reads from. The
// enforcer never writes.
type Store interface {
	Count(ctx context.Context, resource, orgID string, since *time.Time) (int64, error)
	PlanTierOf(ctx context.Context, orgID string) (string, error)
}

// Denial is the 402 response body produced when a ceiling is hit. Limit is a
// pointer only for the JSON shape; a denial always carries a finite limit
// because unbounded ceilings never deny.
type Denial struct {
	Error      string `json:"error"`
	Limit      *int64 `json:"limit"`
	Current    int64  `json:"current"`
	Tier       string `json:"tier"`
	UpgradeURL string `json:"upgradeUrl"`
}

type resourceRule struct {
	label   string
	limitOf func(plans.Limits) plans.Limit
	monthly bool
}

// One rule per metered resource; the check algorithm itself is shared.
var resourceRules = map[string]resourceRule{
	ResourceContacts: {
		label:   "Contact limit reached",
		limitOf: func(l plans.Limits) plans.Limit { return l.Contacts },
	},
	ResourceSignals: {
		label:   "Signal limit reached",
		limitOf: func(l plans.Limits) plans.Limit { return l.Signals },
		monthly: true,
	},
	ResourceMembers: {
		label:   "Member limit reached",
		limitOf: func(l plans.Limits) plans.Limit { return l.Members },
	},
}

type Enforcer struct {
	store      Store
	upgradeURL string
	timeout    time.Duration
	now        func() time.Time
}

func NewEnforcer(store Store, upgradeURL string, timeout time.Duration) *Enforcer {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Enforcer{
		store:      store,
		upgradeURL: upgradeURL,
		timeout:    timeout,
		now:        time.Now,
	}
}

// Check decides whether the organization may create one more unit of the
// resource. A nil Denial means the request proceeds.
//
// Quota enforcement fails open: any error out of the store or tier lookup is
// logged and converted into an allow. A broken limit check must never take
// the platform down; this is the deliberate opposite of how authentication
// treats its own failures.
func (e *Enforcer) Check(ctx context.Context, orgID, resource string) *Denial {
	rule, ok := resourceRules[resource]
	if !ok {
		log.Warn().Str("resource", resource).Msg("quota check for unknown resource, allowing")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rawTier, err := e.store.PlanTierOf(ctx, orgID)
	if err != nil {
		log.Error().Err(err).Str("org_id", orgID).Msg("plan tier lookup failed, allowing request")
		return nil
	}
	tier := plans.ParseTier(rawTier)

	limit := rule.limitOf(plans.LimitsFor(tier))
	ceiling, finite := limit.Value()
	if !finite {
		return nil
	}

	var since *time.Time
	if rule.monthly {
		monthStart := startOfMonthUTC(e.now())
		since = &monthStart
	}

	current, err := e.store.Count(ctx, resource, orgID, since)
	if err != nil {
		log.Error().Err(err).Str("org_id", orgID).Str("resource", resource).Msg("usage count failed, allowing request")
		return nil
	}

	if limit.Allows(current) {
		return nil
	}

	return &Denial{
		Error:      rule.label,
		Limit:      &ceiling,
		Current:    current,
		Tier:       strings.ToUpper(tier.String()),
		UpgradeURL: e.upgradeURL,
	}
}

// CheckContacts, CheckSignals and CheckMembers are the three concrete gates;
// each is the shared algorithm parameterized by one resource rule.
func (e *Enforcer) CheckContacts(ctx context.Context, orgID string) *Denial {
	return e.Check(ctx, orgID, ResourceContacts)
}

func (e *Enforcer) CheckSignals(ctx context.Context, orgID string) *Denial {
	return e.Check(ctx, orgID, ResourceSignals)
}

func (e *Enforcer) CheckMembers(ctx context.Context, orgID string) *Denial {
	return e.Check(ctx, orgID, ResourceMembers)
}

func startOfMonthUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
