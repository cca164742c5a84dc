package pipeline

import (
	"context"
	"fmt"
	"time"

	"sia/internal/logging"
	"sia/internal/source"
)

// Sensor ingests one or more source domains into a CurrentState. Only
// metadata-level fields leave the sources.
type Sensor struct {
	sources *source.Registry
	logger  logging.Logger
	now     func() time.Time
}

func NewSensor(registry *source.Registry, logger logging.Logger) *Sensor {
	return &Sensor{sources: registry, logger: logging.OrNop(logger), now: time.Now}
}

// scopeFor picks the read scope per domain.
func scopeFor(domain string) string {
	switch domain {
	case "email":
		return source.ScopeMetadataAndSubject
	case "github":
		return source.ScopePRMetadata
	case "health":
		return source.ScopeDailyMetrics
	case "finance":
		return source.ScopeTransactionMeta
	}
	return source.ScopeMetadata
}

// Collect reads the given domains. Preloaded states (from tests or
// event payloads) substitute for source reads per domain.
func (s *Sensor) Collect(ctx context.Context, domains []string, preloaded map[string]*DomainState) (*CurrentState, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("sensor: no domains requested")
	}

	state := &CurrentState{
		Timestamp: s.now(),
		States:    map[string]*DomainState{},
		Source:    "sample_data",
	}

	for _, domain := range domains {
		if pre, ok := preloaded[domain]; ok && pre != nil {
			pre.Domain = domain
			aggregate(pre, s.now())
			state.States[domain] = pre
			continue
		}

		src := s.sources.ByDomain(domain)
		if src == nil {
			return nil, fmt.Errorf("sensor: no connected source for domain %q", domain)
		}
		result, err := src.Read(ctx, scopeFor(domain), nil)
		if err != nil {
			return nil, fmt.Errorf("sensor: read %s: %w", domain, err)
		}

		ds := &DomainState{Domain: domain}
		switch data := result.Data.(type) {
		case []source.Email:
			ds.Emails = data
		case []source.PullRequest:
			ds.PullRequests = data
		case []source.HealthRecord:
			ds.Health = data
		case []source.Transaction:
			ds.Transactions = data
		}
		aggregate(ds, s.now())
		state.States[domain] = ds
	}

	if len(domains) == 1 {
		state.Domain = domains[0]
	} else {
		state.Domain = MultiDomain
		state.Domains = append([]string(nil), domains...)
	}

	s.logger.Debug("sensor: collected %d domain(s)", len(state.States))
	return state, nil
}

// aggregate computes the per-domain rollups downstream rules consume.
func aggregate(ds *DomainState, now time.Time) {
	if ds.Emails != nil {
		ds.TotalEmails = len(ds.Emails)
		ds.UnreadCount = 0
		for _, e := range ds.Emails {
			if !e.Read {
				ds.UnreadCount++
			}
		}
	}
	if ds.PullRequests != nil {
		ds.PendingReviews = 0
		for _, pr := range ds.PullRequests {
			if pr.Status == "pending_review" {
				ds.PendingReviews++
			}
		}
	}
	if len(ds.Health) > 0 {
		var sum float64
		for _, r := range ds.Health {
			sum += r.SleepHours
		}
		ds.AvgSleepHours = sum / float64(len(ds.Health))
	}
	if ds.Transactions != nil {
		cutoff := now.AddDate(0, 0, -7)
		totals := map[string]float64{}
		for _, t := range ds.Transactions {
			if t.Date.After(cutoff) {
				totals[t.Category] += t.Amount
			}
		}
		ds.WeeklyCategoryTotals = totals
	}
}
