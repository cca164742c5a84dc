// Package policy is the central permission gate. CheckPermission is a
// pure function from (action, tool, world model, agent config) to a
// decision value; it never performs the action.
package policy

import (
	"fmt"
	"strings"

	"sia/internal/agent"
	"sia/internal/worldmodel"
)

// Action classes derived from the action string.
const (
	ActionRead         = "read"
	ActionWrite        = "write"
	ActionDelete       = "delete"
	ActionNotification = "notification"
	ActionExecute      = "execute"
)

// Decision is the outcome of a permission check. Denials are values,
// not errors.
type Decision struct {
	Allowed          bool   `json:"allowed"`
	RequiresApproval bool   `json:"requires_approval"`
	Reason           string `json:"reason"`
}

// ClassifyAction buckets an action string by keyword. Write keywords
// are checked before read so "create_read_receipt" classifies as a
// write.
func ClassifyAction(action string) string {
	a := strings.ToLower(action)
	switch {
	case containsAny(a, "delete", "remove", "drop"):
		return ActionDelete
	case containsAny(a, "write", "create", "update", "apply", "send"):
		return ActionWrite
	case containsAny(a, "notify", "notification", "alert"):
		return ActionNotification
	case containsAny(a, "read", "get", "fetch", "load"):
		return ActionRead
	default:
		return ActionExecute
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// CheckPermission decides whether an action may run. Forbidden actions
// are denied regardless; the allowlist exempts an action from the
// default write block; reads are always allowed; unknown actions pass
// with approval required.
func CheckPermission(action string, tool agent.Tool, m *worldmodel.Model, cfg *agent.Config) Decision {
	policy := m.Safety.Policy
	class := ClassifyAction(action)

	for _, forbidden := range policy.ForbiddenActions {
		if forbidden == action {
			return Decision{Reason: fmt.Sprintf("action %q is forbidden", action)}
		}
	}

	for _, allowed := range policy.ActionAllowlist {
		if allowed == action {
			return Decision{Allowed: true, Reason: fmt.Sprintf("action %q is allowlisted", action)}
		}
	}

	if (class == ActionWrite || class == ActionDelete) && policy.DefaultWriteBlock {
		// The agent's own approval policy can still admit the write
		// for its risk tier.
		if cfg != nil && class == ActionWrite {
			switch cfg.Safety.ApprovalPolicy.WriteOperations {
			case "block":
				return Decision{Reason: fmt.Sprintf("writes are blocked at risk level %s", cfg.RiskLevel)}
			case "auto_approve":
				return Decision{Allowed: true, Reason: "writes auto-approved for this agent"}
			case "require_approval":
				return Decision{Allowed: true, RequiresApproval: true, Reason: "write operations require approval"}
			}
		}
		return Decision{RequiresApproval: true, Reason: "write operations are blocked by default and need user approval"}
	}

	if cfg != nil && class == ActionWrite {
		switch cfg.Safety.ApprovalPolicy.WriteOperations {
		case "block":
			return Decision{Reason: fmt.Sprintf("writes are blocked at risk level %s", cfg.RiskLevel)}
		case "require_approval":
			return Decision{Allowed: true, RequiresApproval: true, Reason: "write operations require approval"}
		}
	}

	if class == ActionRead || class == ActionNotification {
		return Decision{Allowed: true, Reason: class + " operations are allowed"}
	}

	return Decision{Allowed: true, RequiresApproval: true, Reason: fmt.Sprintf("unrecognized action %q needs approval", action)}
}

// CheckConsent reports whether the user's connected-source grants cover
// the tool performing this action. Tools with no matching connected
// source have no consent.
func CheckConsent(action string, tool agent.Tool, m *worldmodel.Model) bool {
	name := tool.Source
	if name == "" {
		name = tool.Name
	}
	for _, src := range m.ConnectedSources {
		if !strings.EqualFold(src.Name, name) {
			continue
		}
		if ClassifyAction(action) == ActionWrite && len(src.Permissions.Write) == 0 {
			return false
		}
		return true
	}
	return false
}

// Validation is the outcome of ValidateAgentConfig.
type Validation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidateAgentConfig checks a composed agent before it is persisted:
// required fields present, write actions backed by a tool with write
// grants, high-risk agents warned when writes bypass approval.
func ValidateAgentConfig(cfg *agent.Config, m *worldmodel.Model) Validation {
	var v Validation

	if cfg.ID == "" {
		v.Errors = append(v.Errors, "agent id is required")
	}
	if cfg.Trigger.Type == "" {
		v.Errors = append(v.Errors, "trigger is required")
	}
	if len(cfg.Tools) == 0 {
		v.Errors = append(v.Errors, "at least one tool is required")
	}
	if len(cfg.Actions) == 0 {
		v.Errors = append(v.Errors, "at least one action is required")
	}

	for _, action := range cfg.Actions {
		if action.Type != agent.ActionWrite {
			continue
		}
		if !WriteBacked(cfg.Tools, action.Do) {
			v.Warnings = append(v.Warnings, fmt.Sprintf("no tool with write permission backs action %q", action.Do))
		}
	}

	if cfg.RiskLevel == agent.RiskHigh && cfg.Safety.ApprovalPolicy.WriteOperations == "auto_approve" {
		v.Warnings = append(v.Warnings, "high-risk agents should not auto-approve writes")
	}

	v.Valid = len(v.Errors) == 0
	return v
}

// WriteBacked reports whether any MCP tool grants the write token the
// action needs. Action strings look like "gmail.apply_label:important";
// the token is the part after the dot. A grant may name the full token
// or just its verb before the colon ("apply_label" covers every label).
func WriteBacked(tools []agent.Tool, do string) bool {
	token := do
	if idx := strings.LastIndex(do, "."); idx >= 0 {
		token = do[idx+1:]
	}
	verb := token
	if idx := strings.Index(token, ":"); idx > 0 {
		verb = token[:idx]
	}
	for _, t := range tools {
		if t.Type != agent.ToolMCP {
			continue
		}
		for _, granted := range t.Permissions["write"] {
			if granted == token || granted == verb {
				return true
			}
		}
	}
	return false
}
