// Package source is the capability layer over connected external
// services. Every read is scope-limited and every write is checked
// against the source's granted action tokens before anything happens.
package source

import (
	"context"
	"fmt"
	"time"
)

// Read scopes, most restrictive first. A scope names the maximum
// sensitivity a read may lift from the source; raw message bodies are
// never carried downstream.
const (
	ScopeMetadata           = "metadata"
	ScopeMetadataAndSubject = "metadata_and_subject"
	ScopePRMetadata         = "pr_metadata"
	ScopeDailyMetrics       = "daily_metrics"
	ScopeTransactionMeta    = "transaction_metadata"
)

// Permissions is the grant attached to a connected source.
type Permissions struct {
	Read  []string `json:"read"`
	Write []string `json:"write"`
}

// AllowsWrite reports whether the action token was granted.
func (p Permissions) AllowsWrite(action string) bool {
	for _, a := range p.Write {
		if a == action {
			return true
		}
	}
	return false
}

// PermissionError reports a read or write attempted without the
// matching grant.
type PermissionError struct {
	Source string
	Op     string
	Action string
}

func (e *PermissionError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("source %s: no %s permission for %q", e.Source, e.Op, e.Action)
	}
	return fmt.Sprintf("source %s: no %s permission", e.Source, e.Op)
}

// ReadResult carries scope-filtered records. Data holds the
// domain-typed slice ([]Email, []PullRequest, []HealthRecord,
// []Transaction).
type ReadResult struct {
	Source string `json:"source"`
	Scope  string `json:"scope"`
	Count  int    `json:"count"`
	Data   any    `json:"data"`
}

// WriteResult is the acknowledged effect of one write action.
type WriteResult struct {
	Status     string         `json:"status"`
	Action     string         `json:"action"`
	ResourceID string         `json:"resource_id"`
	Fields     map[string]any `json:"fields,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Source is one connected external service.
type Source interface {
	Name() string
	Domain() string
	Read(ctx context.Context, scope string, filters map[string]any) (*ReadResult, error)
	Write(ctx context.Context, action, resourceID string, data map[string]any) (*WriteResult, error)
}

// Registry resolves sources by domain.
type Registry struct {
	byDomain map[string]Source
}

func NewRegistry(sources ...Source) *Registry {
	r := &Registry{byDomain: map[string]Source{}}
	for _, s := range sources {
		r.byDomain[s.Domain()] = s
	}
	return r
}

// ByDomain returns the source for a domain, or nil.
func (r *Registry) ByDomain(domain string) Source {
	return r.byDomain[domain]
}

// Register adds or replaces a source.
func (r *Registry) Register(s Source) {
	r.byDomain[s.Domain()] = s
}
