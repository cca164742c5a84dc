package agent

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/segmentio/ksuid"

	"sia/internal/problem"
)

// SourceRef is the slice of a connected source that composition needs:
// its name, the domain it serves and its granted permission scopes.
type SourceRef struct {
	Name        string
	Domain      string
	Status      string
	Permissions map[string][]string
}

// cronParser validates schedule triggers with the standard five-field
// format before they reach the runtime.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Compose builds a typed agent configuration from an approved solution.
// The domain is resolved from, in order: the problem, the solution's
// required tools, the first active connected source. A missing domain is
// fatal.
func Compose(sol Solution, prob *problem.Problem, sources []SourceRef) (Config, error) {
	domain := resolveDomain(sol, prob, sources)
	if domain == "" {
		return Config{}, ErrMissingDomain
	}

	risk := sol.RiskLevel
	if risk == "" {
		risk = riskFromComplexity(sol.Complexity)
	}

	trigger, err := buildTrigger(domain, sol)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ID:           "agent_" + ksuid.New().String(),
		SolutionID:   sol.ID,
		SolutionName: sol.Name,
		Domain:       domain,
		RiskLevel:    risk,
		Trigger:      trigger,
		Inputs:       inputsForDomain(domain),
		Tools:        mapTools(sol.RequiredTools, sources),
		Logic:        logicForDomain(domain, sol),
		Actions:      actionsForDomain(domain, risk),
		Safety:       safetyForRisk(risk),
	}
	return cfg, nil
}

func resolveDomain(sol Solution, prob *problem.Problem, sources []SourceRef) string {
	if prob != nil && prob.Domain != "" {
		return prob.Domain
	}
	for _, tool := range sol.RequiredTools {
		switch {
		case strings.HasPrefix(tool, "email"), strings.HasPrefix(tool, "gmail"):
			return "email"
		case strings.HasPrefix(tool, "github"), strings.HasPrefix(tool, "pr_"):
			return "github"
		case strings.HasPrefix(tool, "health"), strings.HasPrefix(tool, "sleep"):
			return "health"
		case strings.HasPrefix(tool, "finance"), strings.HasPrefix(tool, "budget"):
			return "finance"
		}
	}
	for _, src := range sources {
		if src.Status == "active" && src.Domain != "" {
			return src.Domain
		}
	}
	return ""
}

func riskFromComplexity(complexity string) string {
	switch complexity {
	case "high":
		return RiskHigh
	case "low":
		return RiskLow
	default:
		return RiskMedium
	}
}

// buildTrigger picks the per-domain default trigger, overridden to a
// schedule form by "review"/"summary" solution keywords.
func buildTrigger(domain string, sol Solution) (Trigger, error) {
	name := strings.ToLower(sol.Name)

	var trigger Trigger
	switch domain {
	case "email":
		trigger = Trigger{Type: TriggerEvent, Source: "gmail", Event: "new_email"}
	case "github":
		trigger = Trigger{Type: TriggerSchedule, Cron: "0 10 * * 1-5"}
	case "health":
		trigger = Trigger{Type: TriggerSchedule, Cron: "0 8 * * *"}
	case "finance":
		trigger = Trigger{Type: TriggerSchedule, Cron: "0 22 * * *"}
	default:
		trigger = Trigger{Type: TriggerEvent, Source: domain, Event: "update"}
	}

	// Keyword overrides: review reminders react to events, summaries run
	// on the morning schedule.
	if strings.Contains(name, "review") {
		trigger = Trigger{Type: TriggerEvent, Source: "github", Event: "pr_pending_review"}
	} else if strings.Contains(name, "summary") {
		trigger = Trigger{Type: TriggerSchedule, Cron: "0 8 * * *"}
	}

	if trigger.Type == TriggerSchedule {
		if _, err := cronParser.Parse(trigger.Cron); err != nil {
			return Trigger{}, fmt.Errorf("invalid trigger schedule %q: %w", trigger.Cron, err)
		}
	}
	return trigger, nil
}

func inputsForDomain(domain string) Inputs {
	switch domain {
	case "email":
		return Inputs{Scope: "metadata_and_subject", Sensitivity: "medium"}
	case "github":
		return Inputs{Scope: "pr_metadata", Sensitivity: "low"}
	case "health":
		return Inputs{Scope: "daily_metrics", Sensitivity: "medium"}
	case "finance":
		return Inputs{Scope: "transaction_metadata", Sensitivity: "medium"}
	default:
		return Inputs{Scope: "event_metadata", Sensitivity: "low"}
	}
}

// knownTools maps required tool names to typed descriptors. Unknown names
// fall through to a ToolUnknown placeholder the executor refuses.
var knownTools = map[string]Tool{
	"email_reader":     {Type: ToolMCP, Name: "email_reader", Description: "read email metadata", Source: "gmail"},
	"label_applier":    {Type: ToolMCP, Name: "label_applier", Description: "apply labels", Source: "gmail"},
	"notification":     {Type: ToolMCP, Name: "notification", Description: "send notification", Source: "slack"},
	"pr_reader":        {Type: ToolMCP, Name: "pr_reader", Description: "read pull request metadata", Source: "github"},
	"dm_sender":        {Type: ToolMCP, Name: "dm_sender", Description: "send direct messages", Source: "slack"},
	"health_reader":    {Type: ToolMCP, Name: "health_reader", Description: "read daily health metrics", Source: "apple health"},
	"finance_reader":   {Type: ToolMCP, Name: "finance_reader", Description: "read transaction metadata", Source: "finance app"},
	"classifier":       {Type: ToolLLM, Name: "classifier", Description: "classify items", Task: "classify"},
	"priority_scorer":  {Type: ToolLLM, Name: "priority_scorer", Description: "score item priority", Task: "score_priority"},
	"summarizer":       {Type: ToolLLM, Name: "summarizer", Description: "summarize items", Task: "summarize"},
	"report_generator": {Type: ToolLLM, Name: "report_generator", Description: "generate a report", Task: "report"},
	"sorter":           {Type: ToolFunction, Name: "sorter", Description: "sort by priority", Function: "sort_by_priority"},
	"metric_tracker":   {Type: ToolFunction, Name: "metric_tracker", Description: "track a metric over time", Function: "track_metric"},
	"categorizer":      {Type: ToolFunction, Name: "categorizer", Description: "categorize transactions", Function: "categorize_transactions"},
}

func mapTools(required []string, sources []SourceRef) []Tool {
	bySource := make(map[string]SourceRef, len(sources))
	for _, src := range sources {
		bySource[strings.ToLower(src.Name)] = src
	}

	tools := make([]Tool, 0, len(required))
	for _, name := range required {
		tool, ok := knownTools[name]
		if !ok {
			tools = append(tools, Tool{Type: ToolUnknown, Name: name})
			continue
		}
		if tool.Type == ToolMCP {
			if src, ok := bySource[tool.Source]; ok {
				tool.Permissions = src.Permissions
			}
		}
		if tool.Type == ToolLLM && tool.Model == "" {
			tool.Model = "claude-3-5-sonnet-20241022"
		}
		tools = append(tools, tool)
	}
	return tools
}

func logicForDomain(domain string, sol Solution) Logic {
	switch domain {
	case "email":
		return Logic{
			Rules: []Rule{
				{If: "hidden_priority == high", Then: "label important"},
				{If: "hidden_priority != high", Then: "label normal"},
			},
			LLMTask: "classify borderline emails by sender and subject",
		}
	case "github":
		return Logic{Rules: []Rule{{If: "age_hours > 48", Then: "remind reviewer"}}}
	case "health":
		return Logic{Rules: []Rule{{If: "sleep_hours < 7", Then: "flag sleep deficit"}}}
	case "finance":
		return Logic{Rules: []Rule{{If: "weekly_total > budget", Then: "flag overspending"}}}
	default:
		return Logic{LLMTask: "interpret " + sol.Name}
	}
}

func actionsForDomain(domain, risk string) []Action {
	requiresApproval := risk == RiskMedium
	switch domain {
	case "email":
		return []Action{
			{Do: "gmail.read_messages", Type: ActionRead, RequiresApproval: false},
			{If: "hidden_priority == high", Do: "gmail.apply_label:important", Type: ActionWrite, RequiresApproval: requiresApproval},
			{If: "hidden_priority != high", Do: "gmail.apply_label:normal", Type: ActionWrite, RequiresApproval: requiresApproval},
		}
	case "github":
		return []Action{
			{Do: "github.read_pull_requests", Type: ActionRead, RequiresApproval: false},
			{If: "age_hours > 48", Do: "slack.send_dm", Type: ActionNotification, RequiresApproval: false},
		}
	case "health":
		return []Action{
			{Do: "health.read_metrics", Type: ActionRead, RequiresApproval: false},
			{Do: "health.track_metric:sleep_hours", Type: ActionWrite, RequiresApproval: requiresApproval},
			{Do: "notify.daily_report", Type: ActionNotification, RequiresApproval: false, Schedule: "0 8 * * *"},
		}
	case "finance":
		return []Action{
			{Do: "finance.read_transactions", Type: ActionRead, RequiresApproval: false},
			{Do: "finance.categorize_transactions", Type: ActionWrite, RequiresApproval: requiresApproval},
			{If: "weekly_total > budget", Do: "notify.budget_alert", Type: ActionNotification, RequiresApproval: false},
		}
	default:
		return []Action{{Do: domain + ".read", Type: ActionRead, RequiresApproval: false}}
	}
}

// safetyForRisk derives the approval policy from the risk level: low
// auto-approves writes, medium requires approval, high blocks them.
func safetyForRisk(risk string) Safety {
	policy := ApprovalPolicy{WriteOperations: "require_approval"}
	switch risk {
	case RiskLow:
		policy.WriteOperations = "auto_approve"
	case RiskHigh:
		policy.WriteOperations = "block"
	}
	return Safety{
		RiskLevel:         risk,
		DefaultWriteBlock: risk != RiskLow,
		ForbiddenActions:  []string{"delete_all", "forward_external"},
		ApprovalPolicy:    policy,
	}
}
