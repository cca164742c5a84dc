package pipeline

import (
	"context"
	"fmt"
	"time"

	"sia/internal/agent"
	"sia/internal/audit"
	"sia/internal/execution"
	"sia/internal/llm"
	"sia/internal/logging"
	"sia/internal/obs"
	"sia/internal/policy"
	"sia/internal/problem"
	"sia/internal/prompts"
	"sia/internal/source"
	"sia/internal/worldmodel"
)

// Options tunes the orchestrator.
type Options struct {
	ScoreThreshold float64
	BaselineWeeks  int
	SnoozeSweep    bool
}

// Pipeline is the orchestrator over the nine stages. Comparison runs
// once per domain.
type Pipeline struct {
	sensor         *Sensor
	expectation    *ExpectationStage
	comparison     *ComparisonStage
	interpretation *InterpretationStage
	exploration    *ExplorationStage
	proposals      *ProposalStage
	learning       *LearningStage
	runtime        *execution.Runtime

	store    worldmodel.Store
	sources  *source.Registry
	auditLog audit.Logger
	metrics  *obs.Metrics
	logger   logging.Logger
	opts     Options
	now      func() time.Time
}

// New wires the full pipeline. The LLM client may be nil; every
// reasoning stage then takes its deterministic fallback.
func New(store worldmodel.Store, sources *source.Registry, client llm.Client, loader *prompts.Loader, runtime *execution.Runtime, auditLog audit.Logger, metrics *obs.Metrics, logger logging.Logger, opts Options) *Pipeline {
	logger = logging.OrNop(logger)
	return &Pipeline{
		sensor:         NewSensor(sources, logger),
		expectation:    NewExpectationStage(client, loader, metrics, logger),
		comparison:     NewComparisonStage(client, loader, opts.ScoreThreshold, opts.BaselineWeeks, metrics, logger),
		interpretation: NewInterpretationStage(client, loader, metrics, logger),
		exploration:    NewExplorationStage(client, loader, metrics, logger),
		proposals:      NewProposalStage(store, auditLog, logger),
		learning:       NewLearningStage(store, logger),
		runtime:        runtime,
		store:          store,
		sources:        sources,
		auditLog:       auditLog,
		metrics:        metrics,
		logger:         logger,
		opts:           opts,
		now:            time.Now,
	}
}

// Proposals exposes the proposal stage for decision handling.
func (p *Pipeline) Proposals() *ProposalStage { return p.proposals }

// RunReport is the outcome of one sensing pass.
type RunReport struct {
	Domains   []string      `json:"domains"`
	State     *CurrentState `json:"state"`
	Gaps      int           `json:"gaps"`
	Proposals []*Proposal   `json:"proposals"`
	Woken     int           `json:"woken"`
}

// Run senses the domains, detects and scores gaps, registers problem
// candidates and returns one proposal per surviving gap.
func (p *Pipeline) Run(ctx context.Context, domains []string, preloaded map[string]*DomainState) (*RunReport, error) {
	start := p.now()
	report := &RunReport{Domains: domains}

	if p.opts.SnoozeSweep {
		woken, err := p.sweepSnoozed()
		if err != nil {
			return nil, err
		}
		report.Woken = woken
	}

	state, err := p.sensor.Collect(ctx, domains, preloaded)
	if err != nil {
		p.recordRun(ctx, domains, "error", start)
		return nil, err
	}
	report.State = state

	m, err := p.store.Load()
	if err != nil {
		p.recordRun(ctx, domains, "error", start)
		return nil, err
	}

	for _, domain := range domains {
		exp := p.expectation.Derive(ctx, domain, m, state.Timestamp)
		gaps := p.comparison.Compare(ctx, domain, state, exp, m, state.Timestamp)
		report.Gaps += len(gaps)

		for _, gap := range gaps {
			prob := p.interpretation.Interpret(ctx, gap, m)

			if _, err := p.store.Mutate(func(m *worldmodel.Model) error {
				m.UpsertCandidate(prob)
				return nil
			}); err != nil {
				return nil, fmt.Errorf("register problem %s: %w", prob.ID, err)
			}
			if p.metrics != nil {
				p.metrics.RecordProblem(ctx, domain)
			}

			solutions := p.exploration.Explore(ctx, prob, m)
			prop, err := p.proposals.Create(prob, solutions)
			if err != nil {
				p.logger.Warn("pipeline: proposal for %s failed: %v", prob.ID, err)
				if p.auditLog != nil {
					p.auditLog.Error("proposal_failed", err.Error(), map[string]any{"problem_id": prob.ID})
				}
				continue
			}
			report.Proposals = append(report.Proposals, prop)
		}
	}

	p.recordRun(ctx, domains, "ok", start)
	return report, nil
}

func (p *Pipeline) recordRun(ctx context.Context, domains []string, status string, start time.Time) {
	if p.metrics == nil {
		return
	}
	label := MultiDomain
	if len(domains) == 1 {
		label = domains[0]
	}
	p.metrics.RecordPipelineRun(ctx, label, status, p.now().Sub(start))
}

// sweepSnoozed wakes expired snoozes back to Candidate.
func (p *Pipeline) sweepSnoozed() (int, error) {
	var woken int
	_, err := p.store.Mutate(func(m *worldmodel.Model) error {
		woken = len(problem.CheckSnoozed(m.AllProblems(), p.now()))
		return nil
	})
	return woken, err
}

// Approve confirms a proposal, composes the agent for its recommended
// solution, validates it and registers it as active.
func (p *Pipeline) Approve(prop *Proposal, user string) (*agent.Config, error) {
	updated, err := p.proposals.Decide(prop, Decision{Action: DecisionApprove, User: user})
	if err != nil {
		return nil, err
	}

	m, err := p.store.Load()
	if err != nil {
		return nil, err
	}

	cfg, err := agent.Compose(prop.RecommendedSolution, updated, m.ActiveSourceRefs())
	if err != nil {
		return nil, err
	}

	validation := policy.ValidateAgentConfig(&cfg, m)
	if !validation.Valid {
		return nil, fmt.Errorf("agent config invalid: %v", validation.Errors)
	}
	for _, warning := range validation.Warnings {
		p.logger.Warn("pipeline: agent %s: %s", cfg.ID, warning)
	}

	if _, err := p.store.Mutate(func(m *worldmodel.Model) error {
		m.ActiveAgents = append(m.ActiveAgents, cfg)
		return nil
	}); err != nil {
		return nil, err
	}
	p.logger.Info("pipeline: agent %s composed for %q", cfg.ID, prop.RecommendedSolution.Name)
	return &cfg, nil
}

// Execute runs an active agent over freshly sensed domain data and
// folds the result back through Learning.
func (p *Pipeline) Execute(ctx context.Context, cfg *agent.Config, feedback *Feedback) (*execution.Result, error) {
	if p.runtime == nil {
		return nil, fmt.Errorf("pipeline: no execution runtime configured")
	}

	state, err := p.sensor.Collect(ctx, []string{cfg.Domain}, nil)
	if err != nil {
		return nil, err
	}

	m, err := p.store.Load()
	if err != nil {
		return nil, err
	}

	result, err := p.runtime.Execute(ctx, cfg, m, inputFrom(state.State(cfg.Domain), state.Timestamp))
	if err != nil {
		return nil, err
	}

	if _, err := p.learning.Update(result, feedback); err != nil {
		return nil, err
	}
	return result, nil
}

// inputFrom converts a sensed domain state into runtime input.
func inputFrom(ds *DomainState, at time.Time) execution.Input {
	in := execution.Input{Now: at}
	if ds == nil {
		return in
	}
	in.Emails = ds.Emails
	in.PullRequests = ds.PullRequests
	in.Health = ds.Health
	in.Transactions = ds.Transactions
	in.CategoryBudget = DefaultCategoryBudget
	return in
}
