// Package execution runs composed agents through the operational
// checklist: rate limiting, policy, idempotency, conflict arbitration
// and the domain effect, with retries on partial failure.
package execution

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	"sia/internal/agent"
	"sia/internal/audit"
	"sia/internal/logging"
	"sia/internal/obs"
	"sia/internal/policy"
	"sia/internal/worldmodel"
)

// Action outcome classes.
const (
	StatusSuccess         = "success"
	StatusFailed          = "failed"
	StatusRateLimited     = "rate_limited"
	StatusBlocked         = "blocked"
	StatusPendingApproval = "pending_approval"
	StatusSkipped         = "skipped"
	StatusConflict        = "conflict"
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 60 * time.Second
)

// Backoff is the delay before retry number attempt (starting at 0):
// base doubling per attempt, capped.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if max <= 0 {
		max = DefaultMaxDelay
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}

// ActionResult is the outcome of one action in the loop.
type ActionResult struct {
	Do         string  `json:"do"`
	Type       string  `json:"type"`
	Status     string  `json:"status"`
	Output     string  `json:"output,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	RetryAfter float64 `json:"retry_after,omitempty"`
	Retries    int     `json:"retries,omitempty"`
	EventID    string  `json:"event_id,omitempty"`
}

// Summary carries the per-class counts of one run.
type Summary struct {
	TotalActions    int     `json:"total_actions"`
	Successful      int     `json:"successful"`
	Failed          int     `json:"failed"`
	Retried         int     `json:"retried"`
	RateLimited     int     `json:"rate_limited"`
	Skipped         int     `json:"skipped"`
	Conflicts       int     `json:"conflicts"`
	PendingApproval int     `json:"pending_approval"`
	Blocked         int     `json:"blocked"`
	SuccessRate     float64 `json:"success_rate"`
	ProcessedCount  int     `json:"processed_count"`
}

// Result is the outcome of one agent invocation.
type Result struct {
	AgentID      string         `json:"agent_id"`
	SolutionName string         `json:"solution_name"`
	Domain       string         `json:"domain"`
	RunID        string         `json:"run_id"`
	Status       string         `json:"status"`
	Actions      []ActionResult `json:"actions"`
	Summary      Summary        `json:"summary"`
	Processed    ProcessedData  `json:"processed"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
}

// Config bounds the runtime.
type Config struct {
	MaxRequests  int
	Window       time.Duration
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	ProcessedCap int
}

// Runtime executes composed agents. One Runtime is shared by every
// agent so the rate table, processed set and lock table are global to
// the process.
type Runtime struct {
	limiter   *RateLimiter
	tracker   *IdempotencyTracker
	conflicts *ConflictManager
	auditLog  audit.Logger
	metrics   *obs.Metrics
	logger    logging.Logger

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	sleep      func(time.Duration)
}

// NewRuntime wires the runtime. A nil audit logger or metrics
// collector disables that concern.
func NewRuntime(cfg Config, auditLog audit.Logger, metrics *obs.Metrics, logger logging.Logger) *Runtime {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Runtime{
		limiter:    NewRateLimiter(cfg.MaxRequests, cfg.Window),
		tracker:    NewIdempotencyTracker(cfg.ProcessedCap),
		conflicts:  NewConflictManager(),
		auditLog:   auditLog,
		metrics:    metrics,
		logger:     logging.OrNop(logger),
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		sleep:      time.Sleep,
	}
}

// Conflicts exposes the shared lock table, for previews.
func (r *Runtime) Conflicts() *ConflictManager { return r.conflicts }

// Execute runs every action of the agent in declaration order and
// returns the classified result. The result is audited exactly once
// per invocation.
func (r *Runtime) Execute(ctx context.Context, cfg *agent.Config, m *worldmodel.Model, in Input) (*Result, error) {
	result := &Result{
		AgentID:      cfg.ID,
		SolutionName: cfg.SolutionName,
		Domain:       cfg.Domain,
		RunID:        "run_" + ksuid.New().String(),
		StartedAt:    time.Now(),
	}

	for _, action := range cfg.Actions {
		ar := r.runAction(ctx, cfg, m, action, in, &result.Processed)
		result.Actions = append(result.Actions, ar)
		if r.metrics != nil {
			r.metrics.RecordActionOutcome(ctx, cfg.Domain, ar.Status)
		}
	}

	result.Summary = summarize(result.Actions)
	result.Summary.ProcessedCount = processedCount(result.Processed)
	result.Status = "completed"
	if result.Summary.Failed > 0 {
		result.Status = "completed_with_errors"
	}
	result.FinishedAt = time.Now()

	if r.auditLog != nil {
		r.auditLog.Execution(cfg.ID, result.RunID, map[string]any{
			"domain":        cfg.Domain,
			"solution_name": cfg.SolutionName,
			"status":        result.Status,
			"successful":    result.Summary.Successful,
			"failed":        result.Summary.Failed,
			"skipped":       result.Summary.Skipped,
			"conflicts":     result.Summary.Conflicts,
			"success_rate":  result.Summary.SuccessRate,
		})
	}

	r.logger.Info("execution: agent %s run %s %s (%d/%d succeeded)",
		cfg.ID, result.RunID, result.Status, result.Summary.Successful, result.Summary.TotalActions)
	return result, nil
}

func (r *Runtime) runAction(ctx context.Context, cfg *agent.Config, m *worldmodel.Model, action agent.Action, in Input, data *ProcessedData) ActionResult {
	ar := ActionResult{Do: action.Do, Type: action.Type}
	resource := resourceFor(cfg.Domain, action)

	rate := r.limiter.Check(bucketFor(action.Do))
	if !rate.Allowed {
		ar.Status = StatusRateLimited
		ar.RetryAfter = rate.RetryAfter.Seconds()
		ar.Reason = "rate limit window full"
		if r.metrics != nil {
			r.metrics.RecordRateLimitHit(ctx, resource)
		}
		return ar
	}

	tool := toolFor(cfg, action.Do)
	if tool.Type == agent.ToolUnknown {
		ar.Status = StatusBlocked
		ar.Reason = "action backed by an unknown tool"
		return ar
	}

	// Writes through an MCP tool need an explicit write grant for the
	// action's verb; the effect layer is never reached without one.
	if action.Type == agent.ActionWrite && tool.Type == agent.ToolMCP && !policy.WriteBacked(cfg.Tools, action.Do) {
		ar.Status = StatusBlocked
		ar.Reason = "no write grant covers " + action.Do
		return ar
	}

	decision := policy.CheckPermission(action.Do, tool, m, cfg)
	if decision.RequiresApproval || action.RequiresApproval {
		ar.Status = StatusPendingApproval
		ar.Reason = decision.Reason
		return ar
	}
	if !decision.Allowed {
		ar.Status = StatusBlocked
		ar.Reason = decision.Reason
		return ar
	}

	if !guardSatisfied(action.If, in) {
		ar.Status = StatusSuccess
		ar.Output = "condition not satisfied; nothing to do"
		return ar
	}

	ar.EventID = EventID(action.Do, resource, map[string]any{
		"agent_id": cfg.ID,
		"domain":   cfg.Domain,
	})
	if r.tracker.Seen(ar.EventID) {
		ar.Status = StatusSkipped
		ar.Reason = "event already processed"
		return ar
	}

	needsLock := action.Type == agent.ActionWrite
	if needsLock {
		if c := r.conflicts.Check(cfg.ID, action, resource); c.HasConflict {
			if !r.conflicts.Acquire(cfg.ID, resource, action, cfg.Priority()) {
				ar.Status = StatusConflict
				ar.Reason = "lock held by " + c.ConflictingAgent
				if r.metrics != nil {
					r.metrics.RecordLockConflict(ctx, resource)
				}
				return ar
			}
		} else if !r.conflicts.Acquire(cfg.ID, resource, action, cfg.Priority()) {
			ar.Status = StatusConflict
			ar.Reason = "lock acquisition lost"
			if r.metrics != nil {
				r.metrics.RecordLockConflict(ctx, resource)
			}
			return ar
		}
		defer r.conflicts.Release(resource)
	}

	var output string
	var err error
	for attempt := 0; ; attempt++ {
		output, err = applyEffect(action.Do, in, data)
		if err == nil {
			break
		}
		if attempt >= r.maxRetries {
			break
		}
		r.logger.Warn("execution: effect %s failed (attempt %d): %v", action.Do, attempt+1, err)
		r.sleep(Backoff(attempt, r.baseDelay, r.maxDelay))
		ar.Retries++
	}

	if err != nil {
		ar.Status = StatusFailed
		ar.Reason = err.Error()
		if r.auditLog != nil {
			r.auditLog.Error("effect_failed", err.Error(), map[string]any{
				"agent_id": cfg.ID,
				"action":   action.Do,
			})
		}
		return ar
	}

	ar.Status = StatusSuccess
	ar.Output = output
	return ar
}

// resourceFor names the shared resource an action touches, for lock
// and idempotency scoping.
func resourceFor(domain string, action agent.Action) string {
	switch domain {
	case "email":
		return "gmail:inbox"
	case "github":
		return "github:review_queue"
	case "health":
		return "health:metrics"
	case "finance":
		return "finance:ledger"
	}
	return domain + ":" + action.Do
}

// bucketFor names the rate-limit bucket: one per upstream API.
func bucketFor(do string) string {
	if idx := strings.Index(do, "."); idx > 0 {
		return do[:idx] + "_api"
	}
	return do + "_api"
}

// toolFor resolves the composed tool descriptor backing an action by
// matching the action's service prefix against MCP tool sources.
func toolFor(cfg *agent.Config, do string) agent.Tool {
	service := do
	if idx := strings.Index(do, "."); idx > 0 {
		service = do[:idx]
	}
	for _, t := range cfg.Tools {
		if t.Name == service && t.Type == agent.ToolUnknown {
			return t
		}
	}
	for _, t := range cfg.Tools {
		if t.Type == agent.ToolMCP && strings.Contains(strings.ToLower(t.Source), service) {
			return t
		}
	}
	// Non-MCP effects (notify, function tools) carry no source grants.
	return agent.Tool{Type: agent.ToolFunction, Name: service}
}

// guardSatisfied evaluates the action-level guards of the tiny rule
// DSL. Per-item guards (hidden_priority) filter inside the effect and
// always admit the action.
func guardSatisfied(cond string, in Input) bool {
	switch {
	case cond == "":
		return true
	case strings.Contains(cond, "hidden_priority"):
		return true
	case cond == "age_hours > 48":
		now := in.now()
		for _, pr := range in.PullRequests {
			if pr.Status == "pending_review" && pr.AgeHours(now) > 48 {
				return true
			}
		}
		return false
	case cond == "weekly_total > budget":
		return in.CategoryBudget > 0 && weeklyTotal(in) > in.CategoryBudget
	case cond == "sleep_hours < 7":
		return len(in.Health) > 0 && avgSleep(in.Health) < 7
	}
	return true
}

func summarize(actions []ActionResult) Summary {
	s := Summary{TotalActions: len(actions)}
	for _, ar := range actions {
		switch ar.Status {
		case StatusSuccess:
			s.Successful++
			if ar.Retries > 0 {
				s.Retried++
			}
		case StatusFailed:
			s.Failed++
		case StatusRateLimited:
			s.RateLimited++
		case StatusSkipped:
			s.Skipped++
		case StatusConflict:
			s.Conflicts++
		case StatusPendingApproval:
			s.PendingApproval++
		case StatusBlocked:
			s.Blocked++
		}
	}
	if attempted := s.Successful + s.Failed; attempted > 0 {
		s.SuccessRate = float64(s.Successful) / float64(attempted)
	}
	return s
}

func processedCount(data ProcessedData) int {
	count := len(data.Emails) + len(data.Notifications)
	for _, n := range data.Categorized {
		count += n
	}
	if len(data.Metrics) > 0 {
		count++
	}
	return count
}
