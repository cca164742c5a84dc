// Package agent defines the typed, sandboxed agent specification produced
// by the Composition stage and consumed by the execution runtime.
package agent

import "errors"

// ErrMissingDomain is returned when no domain can be resolved for an
// agent. Composition treats this as fatal.
var ErrMissingDomain = errors.New("agent: no domain resolved from problem, solution or connected sources")

// Risk levels order agents for lock arbitration and approval policy.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Trigger types.
const (
	TriggerEvent    = "event"
	TriggerSchedule = "schedule"
)

// Tool types. ToolUnknown descriptors are placeholders the executor
// refuses to invoke.
const (
	ToolMCP      = "mcp"
	ToolLLM      = "llm"
	ToolFunction = "function"
	ToolUnknown  = "unknown"
)

// Action types.
const (
	ActionRead         = "read"
	ActionWrite        = "write"
	ActionNotification = "notification"
)

// Solution is one candidate remedy for a problem, produced by the
// Exploration stage.
type Solution struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Pros          []string `json:"pros"`
	Cons          []string `json:"cons"`
	Complexity    string   `json:"complexity"`
	RiskLevel     string   `json:"risk_level"`
	RequiredTools []string `json:"required_tools"`
}

// Trigger describes when an agent fires: a source event or a cron
// schedule.
type Trigger struct {
	Type   string `json:"type"`
	Source string `json:"source,omitempty"`
	Event  string `json:"event,omitempty"`
	Cron   string `json:"cron,omitempty"`
}

// Inputs bounds what an agent may read.
type Inputs struct {
	Scope       string `json:"scope"`
	Sensitivity string `json:"sensitivity"`
}

// Tool is a typed tool descriptor.
type Tool struct {
	Type        string              `json:"type"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Source      string              `json:"source,omitempty"`      // mcp
	Permissions map[string][]string `json:"permissions,omitempty"` // mcp
	Model       string              `json:"model,omitempty"`       // llm
	Task        string              `json:"task,omitempty"`        // llm
	Function    string              `json:"function,omitempty"`    // function
}

// Rule is one if->then entry of the tiny logic DSL.
type Rule struct {
	If   string `json:"if"`
	Then string `json:"then"`
}

// Logic is the rule list plus an optional LLM task.
type Logic struct {
	Rules   []Rule `json:"rules,omitempty"`
	LLMTask string `json:"llm_task,omitempty"`
}

// Action names one effect the agent performs.
type Action struct {
	If               string `json:"if,omitempty"`
	Do               string `json:"do"`
	Type             string `json:"type"`
	RequiresApproval bool   `json:"requires_approval"`
	Schedule         string `json:"schedule,omitempty"`
}

// ApprovalPolicy maps an operation class to its handling.
type ApprovalPolicy struct {
	WriteOperations string `json:"write_operations"` // auto_approve | require_approval | block
}

// Safety is the per-agent sandbox configuration.
type Safety struct {
	RiskLevel         string         `json:"risk_level"`
	DefaultWriteBlock bool           `json:"default_write_block"`
	ActionAllowlist   []string       `json:"action_allowlist,omitempty"`
	ForbiddenActions  []string       `json:"forbidden_actions,omitempty"`
	ApprovalPolicy    ApprovalPolicy `json:"approval_policy"`
}

// Config is a fully typed agent specification.
type Config struct {
	ID           string   `json:"id"`
	SolutionID   string   `json:"solution_id"`
	SolutionName string   `json:"solution_name"`
	Domain       string   `json:"domain"`
	RiskLevel    string   `json:"risk_level"`
	Trigger      Trigger  `json:"trigger"`
	Inputs       Inputs   `json:"inputs"`
	Tools        []Tool   `json:"tools"`
	Logic        Logic    `json:"logic"`
	Actions      []Action `json:"actions"`
	Safety       Safety   `json:"safety"`
}

// Priority maps the agent's risk level to its lock-arbitration priority.
func (c Config) Priority() int {
	switch c.RiskLevel {
	case RiskHigh:
		return 9
	case RiskMedium:
		return 7
	default:
		return 5
	}
}

// FindTool returns the descriptor for a tool name, if composed.
func (c Config) FindTool(name string) (Tool, bool) {
	for _, t := range c.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
