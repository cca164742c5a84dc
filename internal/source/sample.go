package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sia/internal/logging"
)

// Sample data file names under the data directory.
const (
	sampleEmailsFile  = "sample_emails.json"
	samplePRsFile     = "sample_github_prs.json"
	sampleHealthFile  = "sample_health_data.json"
	sampleFinanceFile = "sample_finance_data.json"
)

// SampleSource serves JSON fixture files the way a real connector
// would serve API responses. Missing fixtures read as empty, not as
// errors.
type SampleSource struct {
	name        string
	domain      string
	dataDir     string
	permissions Permissions
	logger      logging.Logger
}

// NewSampleSource binds a connector simulation for one domain.
func NewSampleSource(name, domain, dataDir string, perms Permissions, logger logging.Logger) *SampleSource {
	return &SampleSource{
		name:        name,
		domain:      domain,
		dataDir:     dataDir,
		permissions: perms,
		logger:      logging.OrNop(logger),
	}
}

func (s *SampleSource) Name() string   { return s.name }
func (s *SampleSource) Domain() string { return s.domain }

func (s *SampleSource) Read(_ context.Context, scope string, _ map[string]any) (*ReadResult, error) {
	if len(s.permissions.Read) == 0 {
		return nil, &PermissionError{Source: s.name, Op: "read"}
	}

	switch s.domain {
	case "email":
		return s.readEmails(scope)
	case "github":
		return s.readPRs(scope)
	case "health":
		return s.readHealth(scope)
	case "finance":
		return s.readFinance(scope)
	}
	return &ReadResult{Source: s.name, Scope: scope}, nil
}

func (s *SampleSource) readEmails(scope string) (*ReadResult, error) {
	var emails []Email
	if err := s.loadFixture(sampleEmailsFile, &emails); err != nil {
		return nil, err
	}

	// The scope bounds what leaves the source. Metadata drops the
	// subject line and priority hint.
	switch scope {
	case ScopeMetadata:
		for i := range emails {
			emails[i].Subject = ""
			emails[i].HiddenPriority = ""
		}
	case ScopeMetadataAndSubject, "":
	default:
		s.logger.Debug("source %s: unrecognized scope %q, serving metadata only", s.name, scope)
		for i := range emails {
			emails[i].Subject = ""
			emails[i].HiddenPriority = ""
		}
	}

	return &ReadResult{Source: s.name, Scope: scope, Count: len(emails), Data: emails}, nil
}

func (s *SampleSource) readPRs(scope string) (*ReadResult, error) {
	var prs []PullRequest
	if err := s.loadFixture(samplePRsFile, &prs); err != nil {
		return nil, err
	}
	return &ReadResult{Source: s.name, Scope: scope, Count: len(prs), Data: prs}, nil
}

func (s *SampleSource) readHealth(scope string) (*ReadResult, error) {
	var records []HealthRecord
	if err := s.loadFixture(sampleHealthFile, &records); err != nil {
		return nil, err
	}
	return &ReadResult{Source: s.name, Scope: scope, Count: len(records), Data: records}, nil
}

func (s *SampleSource) readFinance(scope string) (*ReadResult, error) {
	var txns []Transaction
	if err := s.loadFixture(sampleFinanceFile, &txns); err != nil {
		return nil, err
	}
	return &ReadResult{Source: s.name, Scope: scope, Count: len(txns), Data: txns}, nil
}

func (s *SampleSource) loadFixture(file string, out any) error {
	path := filepath.Join(s.dataDir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read fixture %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return nil
}

// Write simulates the effect of one granted action and acknowledges
// it. Ungranted actions fail before any effect.
func (s *SampleSource) Write(_ context.Context, action, resourceID string, data map[string]any) (*WriteResult, error) {
	if !s.permissions.AllowsWrite(action) {
		return nil, &PermissionError{Source: s.name, Op: "write", Action: action}
	}

	result := &WriteResult{
		Status:     "success",
		Action:     action,
		ResourceID: resourceID,
		Timestamp:  time.Now(),
	}

	switch action {
	case "apply_label":
		result.Fields = map[string]any{"applied_label": data["label"]}
	case "send_dm", "send_notification":
		result.Fields = map[string]any{
			"recipient": data["recipient"],
			"message":   data["message"],
		}
	}

	s.logger.Info("source %s: %s on %s", s.name, action, resourceID)
	return result, nil
}

// MemorySource serves pre-loaded typed data for tests.
type MemorySource struct {
	SourceName   string
	SourceDomain string
	Perms        Permissions
	Payload      any
	Writes       []WriteResult
}

func (m *MemorySource) Name() string   { return m.SourceName }
func (m *MemorySource) Domain() string { return m.SourceDomain }

func (m *MemorySource) Read(_ context.Context, scope string, _ map[string]any) (*ReadResult, error) {
	if len(m.Perms.Read) == 0 {
		return nil, &PermissionError{Source: m.SourceName, Op: "read"}
	}
	count := 0
	switch data := m.Payload.(type) {
	case []Email:
		count = len(data)
	case []PullRequest:
		count = len(data)
	case []HealthRecord:
		count = len(data)
	case []Transaction:
		count = len(data)
	}
	return &ReadResult{Source: m.SourceName, Scope: scope, Count: count, Data: m.Payload}, nil
}

func (m *MemorySource) Write(_ context.Context, action, resourceID string, data map[string]any) (*WriteResult, error) {
	if !m.Perms.AllowsWrite(action) {
		return nil, &PermissionError{Source: m.SourceName, Op: "write", Action: action}
	}
	result := WriteResult{
		Status:     "success",
		Action:     action,
		ResourceID: resourceID,
		Fields:     data,
		Timestamp:  time.Now(),
	}
	m.Writes = append(m.Writes, result)
	return &result, nil
}
