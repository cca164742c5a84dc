package pipeline

import (
	"errors"
	"fmt"
	"time"

	"sia/internal/agent"
	"sia/internal/audit"
	"sia/internal/logging"
	"sia/internal/problem"
	"sia/internal/worldmodel"
)

// ErrNoSolution is surfaced when a proposal has nothing selectable.
var ErrNoSolution = errors.New("pipeline: no selectable solution")

// ProposalStage selects the recommended solution, promotes the
// candidate problem and records user decisions.
type ProposalStage struct {
	store    worldmodel.Store
	auditLog audit.Logger
	logger   logging.Logger
}

func NewProposalStage(store worldmodel.Store, auditLog audit.Logger, logger logging.Logger) *ProposalStage {
	return &ProposalStage{store: store, auditLog: auditLog, logger: logging.OrNop(logger)}
}

// SelectBest picks argmax(|pros| - |cons| + complexity score) with
// complexity scored {low:3, medium:2, high:1}. Ties keep the earlier
// solution.
func SelectBest(solutions []agent.Solution) (agent.Solution, error) {
	if len(solutions) == 0 {
		return agent.Solution{}, ErrNoSolution
	}
	best := solutions[0]
	bestScore := solutionScore(best)
	for _, sol := range solutions[1:] {
		if score := solutionScore(sol); score > bestScore {
			best = sol
			bestScore = score
		}
	}
	return best, nil
}

func solutionScore(sol agent.Solution) int {
	complexity := 1
	switch sol.Complexity {
	case "low":
		complexity = 3
	case "medium":
		complexity = 2
	}
	return len(sol.Pros) - len(sol.Cons) + complexity
}

// Create builds the proposal, drives the problem Candidate → Proposed
// and persists the transition.
func (s *ProposalStage) Create(prob problem.Problem, solutions []agent.Solution) (*Proposal, error) {
	best, err := SelectBest(solutions)
	if err != nil {
		return nil, fmt.Errorf("proposal for %s: %w", prob.ID, err)
	}

	if err := problem.Promote(&prob, time.Now()); err != nil {
		return nil, err
	}

	if _, err := s.store.Mutate(func(m *worldmodel.Model) error {
		m.UpsertCandidate(prob)
		return nil
	}); err != nil {
		return nil, err
	}

	alternatives := make([]agent.Solution, 0, len(solutions)-1)
	for _, sol := range solutions {
		if sol.ID != best.ID {
			alternatives = append(alternatives, sol)
		}
	}

	prop := &Proposal{
		ID:                   "proposal_" + prob.ID,
		Problem:              prob,
		RecommendedSolution:  best,
		AlternativeSolutions: alternatives,
		Status:               "pending",
		CreatedAt:            time.Now(),
	}

	if s.auditLog != nil {
		s.auditLog.Proposal(prob.ID, map[string]any{
			"proposal_id":   prop.ID,
			"recommended":   best.Name,
			"alternatives":  len(alternatives),
			"problem_score": prob.ProblemScore,
		})
	}
	s.logger.Info("proposal: %s recommends %q for %s", prop.ID, best.Name, prob.Name)
	return prop, nil
}

// Decision carries one user decision on a proposal.
type Decision struct {
	Action     string // approve | reject | snooze
	User       string
	Reason     string
	SnoozeDays int
}

// Decide applies the user decision to the proposal's problem, persists
// the transition and emits the decision audit entry. An illegal
// transition leaves the store untouched and is not audited.
func (s *ProposalStage) Decide(prop *Proposal, decision Decision) (*problem.Problem, error) {
	var updated *problem.Problem

	_, err := s.store.Mutate(func(m *worldmodel.Model) error {
		target := findProblem(m, prop.Problem.ID)
		if target == nil {
			return fmt.Errorf("problem %s not found", prop.Problem.ID)
		}

		now := time.Now()
		var terr error
		switch decision.Action {
		case DecisionApprove:
			terr = problem.Confirm(target, decision.User, now)
			if terr == nil {
				m.ConfirmProblem(*target)
				target = findProblem(m, prop.Problem.ID)
			}
		case DecisionReject:
			terr = problem.Reject(target, decision.Reason, now)
		case DecisionSnooze:
			terr = problem.Snooze(target, decision.SnoozeDays, decision.Reason, now)
		default:
			return fmt.Errorf("unknown decision %q", decision.Action)
		}
		if terr != nil {
			return terr
		}
		clone := *target
		updated = &clone
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch decision.Action {
	case DecisionApprove:
		prop.Status = "approved"
	case DecisionReject:
		prop.Status = "rejected"
	case DecisionSnooze:
		prop.Status = "snoozed"
	}

	if s.auditLog != nil {
		s.auditLog.Decision(prop.Problem.ID, map[string]any{
			"proposal_id": prop.ID,
			"action":      decision.Action,
			"user":        decision.User,
			"reason":      decision.Reason,
			"status":      string(updated.Status),
		})
	}
	return updated, nil
}

func findProblem(m *worldmodel.Model, id string) *problem.Problem {
	for _, p := range m.AllProblems() {
		if p.ID == id {
			return p
		}
	}
	return nil
}
