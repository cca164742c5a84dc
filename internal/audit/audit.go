// Package audit provides the append-only, newline-delimited JSON audit
// trail. Logging failures are swallowed after being reported to the
// application logger; they never propagate to callers.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"sia/internal/logging"
	"sia/internal/security"
)

// Log categories, one JSONL file each.
const (
	CategoryProposals  = "proposals"
	CategoryExecutions = "executions"
	CategoryDecisions  = "decisions"
	CategoryErrors     = "errors"
)

// Entry is one audit record. Exactly one of the category payloads is
// meaningful per entry; Fields carries the domain payload.
type Entry struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	AgentID   string         `json:"agent_id,omitempty"`
	ProblemID string         `json:"problem_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger is the audit sink consulted by every sensitive operation.
type Logger interface {
	Proposal(problemID string, fields map[string]any)
	Execution(agentID, runID string, fields map[string]any)
	Decision(problemID string, fields map[string]any)
	Error(errType, message string, fields map[string]any)
}

// FileLogger appends entries to per-category JSONL files under a log
// directory. High-sensitivity fields are masked before they are written.
type FileLogger struct {
	dir    string
	logger logging.Logger
	mu     sync.Mutex
}

// NewFileLogger creates the log directory if needed.
func NewFileLogger(dir string, logger logging.Logger) (*FileLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileLogger{dir: dir, logger: logging.OrNop(logger)}, nil
}

func (l *FileLogger) Proposal(problemID string, fields map[string]any) {
	l.write(CategoryProposals, Entry{Type: "proposal", ProblemID: problemID, Fields: fields})
}

func (l *FileLogger) Execution(agentID, runID string, fields map[string]any) {
	l.write(CategoryExecutions, Entry{Type: "execution", AgentID: agentID, RunID: runID, Fields: fields})
}

func (l *FileLogger) Decision(problemID string, fields map[string]any) {
	l.write(CategoryDecisions, Entry{Type: "decision", ProblemID: problemID, Fields: fields})
}

func (l *FileLogger) Error(errType, message string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["error_type"] = errType
	fields["error_message"] = message
	l.write(CategoryErrors, Entry{Type: "error", Fields: fields})
}

func (l *FileLogger) write(category string, entry Entry) {
	entry.Timestamp = time.Now()
	if entry.Fields != nil {
		// No field classified high may reach the audit trail.
		entry.Fields = security.MaskSensitiveData(entry.Fields)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Warn("audit: encode %s entry: %v", category, err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.dir, category+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.logger.Warn("audit: open %s: %v", path, err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		l.logger.Warn("audit: append %s: %v", path, err)
	}
}

// History reads back a category, newest first, at most limit entries
// (100 when limit <= 0). An agent ID filters execution entries.
func (l *FileLogger) History(category, agentID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	path := filepath.Join(l.dir, category+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if agentID != "" && entry.AgentID != agentID {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Recorder is an in-memory Logger for tests.
type Recorder struct {
	mu      sync.Mutex
	Entries []Entry
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) record(entry Entry) {
	entry.Timestamp = time.Now()
	if entry.Fields != nil {
		entry.Fields = security.MaskSensitiveData(entry.Fields)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, entry)
}

func (r *Recorder) Proposal(problemID string, fields map[string]any) {
	r.record(Entry{Type: "proposal", ProblemID: problemID, Fields: fields})
}

func (r *Recorder) Execution(agentID, runID string, fields map[string]any) {
	r.record(Entry{Type: "execution", AgentID: agentID, RunID: runID, Fields: fields})
}

func (r *Recorder) Decision(problemID string, fields map[string]any) {
	r.record(Entry{Type: "decision", ProblemID: problemID, Fields: fields})
}

func (r *Recorder) Error(errType, message string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["error_type"] = errType
	fields["error_message"] = message
	r.record(Entry{Type: "error", Fields: fields})
}

// ByType returns the recorded entries of one type.
func (r *Recorder) ByType(entryType string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.Entries {
		if e.Type == entryType {
			out = append(out, e)
		}
	}
	return out
}
