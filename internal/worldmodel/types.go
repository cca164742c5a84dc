// Package worldmodel holds the persistent model of the user: goals,
// preferences, connected sources, learned patterns, problems and
// per-domain history. It is the only durable store in the pipeline.
package worldmodel

import (
	"time"

	"sia/internal/agent"
	"sia/internal/problem"
)

// Goal is one free-text objective with a priority rank (1 = highest).
type Goal struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Priority int    `json:"priority"`
}

// NotificationPrefs holds the notification frequency preference:
// minimal, moderate or frequent.
type NotificationPrefs struct {
	Frequency string `json:"frequency"`
}

// AutomationPrefs holds the automation acceptance preference:
// low, moderate or high.
type AutomationPrefs struct {
	Acceptance string `json:"acceptance"`
}

// Preferences groups the user's standing preferences.
type Preferences struct {
	Notifications NotificationPrefs `json:"notifications"`
	Automation    AutomationPrefs   `json:"automation"`
}

// Permissions lists the granted read scopes and write action tokens for
// a connected source.
type Permissions struct {
	Read  []string `json:"read,omitempty"`
	Write []string `json:"write,omitempty"`
}

// ConnectedSource is one external data source the user has linked.
type ConnectedSource struct {
	Name        string      `json:"name"`
	Domain      string      `json:"domain"`
	Status      string      `json:"status"`
	Permissions Permissions `json:"permissions"`
}

// Pattern is a learned observation about the user's behavior.
type Pattern struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Behavior  string             `json:"behavior"`
	Domain    string             `json:"domain"`
	LearnedAt time.Time          `json:"learned_at"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// IdealState is a per-domain target condition.
type IdealState struct {
	ID          string `json:"id"`
	Domain      string `json:"domain"`
	Description string `json:"description"`
	Criterion   string `json:"criterion"`
	TargetValue string `json:"target_value,omitempty"`
	Priority    string `json:"priority"`
}

// Policy is the user-level action policy consulted by the permission
// gate.
type Policy struct {
	DefaultWriteBlock bool     `json:"default_write_block"`
	ActionAllowlist   []string `json:"action_allowlist,omitempty"`
	ForbiddenActions  []string `json:"forbidden_actions,omitempty"`
}

// DataGovernance captures data-handling commitments.
type DataGovernance struct {
	RetentionDays  int  `json:"retention_days"`
	MaskBeforeLogs bool `json:"mask_before_logs"`
}

// Safety groups policy and data governance.
type Safety struct {
	Policy         Policy         `json:"policy"`
	DataGovernance DataGovernance `json:"data_governance"`
}

// HistoryRecord is one rolling metric observation used by the baseline
// calculator. Exactly one of the metric fields is set per domain.
type HistoryRecord struct {
	Date                time.Time `json:"date"`
	AvgResponseTimeHrs  float64   `json:"avg_response_time,omitempty"`
	AvgReviewTimeHours  float64   `json:"avg_review_time_hours,omitempty"`
	AvgSleepHours       float64   `json:"avg_sleep_hours,omitempty"`
	DeliverySpending    float64   `json:"delivery_spending,omitempty"`
	WeeklyCategorySpend float64   `json:"weekly_category_spend,omitempty"`
}

// Model is the full World Model document.
type Model struct {
	AbstractGoals     []Goal                     `json:"abstract_goals"`
	Preferences       Preferences                `json:"preferences"`
	ConnectedSources  []ConnectedSource          `json:"connected_sources"`
	Patterns          []Pattern                  `json:"patterns"`
	IdealStates       []IdealState               `json:"ideal_states"`
	ProblemCandidates []problem.Problem          `json:"problem_candidates"`
	ConfirmedProblems []problem.Problem          `json:"confirmed_problems"`
	ActiveAgents      []agent.Config             `json:"active_agents"`
	Safety            Safety                     `json:"safety"`
	History           map[string][]HistoryRecord `json:"history"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}

// Default returns the document created at onboarding: conservative
// safety defaults, empty collections.
func Default() *Model {
	return &Model{
		Preferences: Preferences{
			Notifications: NotificationPrefs{Frequency: "moderate"},
			Automation:    AutomationPrefs{Acceptance: "moderate"},
		},
		Safety: Safety{
			Policy:         Policy{DefaultWriteBlock: true},
			DataGovernance: DataGovernance{RetentionDays: 90, MaskBeforeLogs: true},
		},
		History:   map[string][]HistoryRecord{},
		UpdatedAt: time.Now(),
	}
}

// ActiveSourceRefs converts the active connected sources into the slim
// references composition consumes.
func (m *Model) ActiveSourceRefs() []agent.SourceRef {
	refs := make([]agent.SourceRef, 0, len(m.ConnectedSources))
	for _, src := range m.ConnectedSources {
		if src.Status != "active" {
			continue
		}
		refs = append(refs, agent.SourceRef{
			Name:   src.Name,
			Domain: src.Domain,
			Status: src.Status,
			Permissions: map[string][]string{
				"read":  src.Permissions.Read,
				"write": src.Permissions.Write,
			},
		})
	}
	return refs
}

// SourceByDomain returns the first active source serving domain.
func (m *Model) SourceByDomain(domain string) (ConnectedSource, bool) {
	for _, src := range m.ConnectedSources {
		if src.Status == "active" && src.Domain == domain {
			return src, true
		}
	}
	return ConnectedSource{}, false
}

// HasConfirmedInDomain reports whether any confirmed problem shares the
// given domain. The scorer uses it as a context-importance signal.
func (m *Model) HasConfirmedInDomain(domain string) bool {
	for _, p := range m.ConfirmedProblems {
		if p.Domain == domain {
			return true
		}
	}
	return false
}

// UpsertCandidate inserts or replaces a problem candidate by ID.
func (m *Model) UpsertCandidate(p problem.Problem) {
	for i := range m.ProblemCandidates {
		if m.ProblemCandidates[i].ID == p.ID {
			m.ProblemCandidates[i] = p
			return
		}
	}
	m.ProblemCandidates = append(m.ProblemCandidates, p)
}

// ConfirmProblem moves a candidate into the confirmed collection,
// keeping the status partition invariant.
func (m *Model) ConfirmProblem(p problem.Problem) {
	kept := m.ProblemCandidates[:0]
	for _, candidate := range m.ProblemCandidates {
		if candidate.ID != p.ID {
			kept = append(kept, candidate)
		}
	}
	m.ProblemCandidates = kept
	for i := range m.ConfirmedProblems {
		if m.ConfirmedProblems[i].ID == p.ID {
			m.ConfirmedProblems[i] = p
			return
		}
	}
	m.ConfirmedProblems = append(m.ConfirmedProblems, p)
}

// AllProblems returns pointers to every stored problem, candidates
// first. Mutations through the pointers stay inside the model.
func (m *Model) AllProblems() []*problem.Problem {
	all := make([]*problem.Problem, 0, len(m.ProblemCandidates)+len(m.ConfirmedProblems))
	for i := range m.ProblemCandidates {
		all = append(all, &m.ProblemCandidates[i])
	}
	for i := range m.ConfirmedProblems {
		all = append(all, &m.ConfirmedProblems[i])
	}
	return all
}
