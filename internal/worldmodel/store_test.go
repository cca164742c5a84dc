package worldmodel

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sia/internal/problem"
)

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "world_model.json"))
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestFileStoreLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world_model.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load()
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestFileStoreLoadOrInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "world_model.json")
	store := NewFileStore(path)

	m, err := store.LoadOrInit()
	require.NoError(t, err)
	assert.True(t, m.Safety.Policy.DefaultWriteBlock)
	assert.Equal(t, "moderate", m.Preferences.Notifications.Frequency)

	// The default document was persisted.
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 90, loaded.Safety.DataGovernance.RetentionDays)
}

func TestFileStoreMutatePersists(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "world_model.json"))
	_, err := store.LoadOrInit()
	require.NoError(t, err)

	_, err = store.Mutate(func(m *Model) error {
		m.AbstractGoals = append(m.AbstractGoals, Goal{ID: "goal_1", Text: "inbox zero", Priority: 1})
		return nil
	})
	require.NoError(t, err)

	m, err := store.Load()
	require.NoError(t, err)
	require.Len(t, m.AbstractGoals, 1)
	assert.Equal(t, "inbox zero", m.AbstractGoals[0].Text)
	assert.False(t, m.UpdatedAt.IsZero())
}

func TestFileStoreMutateErrorDiscardsChanges(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "world_model.json"))
	_, err := store.LoadOrInit()
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = store.Mutate(func(m *Model) error {
		m.Patterns = append(m.Patterns, Pattern{ID: "pattern_1"})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	m, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, m.Patterns)
}

func TestMemoryStoreNeverAliases(t *testing.T) {
	store := NewMemoryStore(nil)

	m1, err := store.Load()
	require.NoError(t, err)
	m1.AbstractGoals = append(m1.AbstractGoals, Goal{ID: "goal_1"})

	m2, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, m2.AbstractGoals)
}

func TestUpsertCandidateReplacesByID(t *testing.T) {
	m := Default()
	m.UpsertCandidate(problem.Problem{ID: "prob_1", Name: "first"})
	m.UpsertCandidate(problem.Problem{ID: "prob_2", Name: "second"})
	m.UpsertCandidate(problem.Problem{ID: "prob_1", Name: "updated"})

	require.Len(t, m.ProblemCandidates, 2)
	assert.Equal(t, "updated", m.ProblemCandidates[0].Name)
}

func TestConfirmProblemPartitions(t *testing.T) {
	m := Default()
	m.UpsertCandidate(problem.Problem{ID: "prob_1", Domain: "email"})
	m.UpsertCandidate(problem.Problem{ID: "prob_2", Domain: "github"})

	confirmed := m.ProblemCandidates[0]
	confirmed.Status = problem.StatusConfirmed
	m.ConfirmProblem(confirmed)

	require.Len(t, m.ProblemCandidates, 1)
	assert.Equal(t, "prob_2", m.ProblemCandidates[0].ID)
	require.Len(t, m.ConfirmedProblems, 1)
	assert.Equal(t, "prob_1", m.ConfirmedProblems[0].ID)
	assert.True(t, m.HasConfirmedInDomain("email"))
	assert.False(t, m.HasConfirmedInDomain("github"))

	assert.Len(t, m.AllProblems(), 2)
}

func TestActiveSourceRefsSkipsInactive(t *testing.T) {
	m := Default()
	m.ConnectedSources = []ConnectedSource{
		{Name: "gmail", Domain: "email", Status: "active", Permissions: Permissions{Read: []string{"metadata"}, Write: []string{"apply_label"}}},
		{Name: "old_crm", Domain: "sales", Status: "revoked"},
	}

	refs := m.ActiveSourceRefs()
	require.Len(t, refs, 1)
	assert.Equal(t, "gmail", refs[0].Name)
	assert.Equal(t, []string{"apply_label"}, refs[0].Permissions["write"])

	src, ok := m.SourceByDomain("email")
	require.True(t, ok)
	assert.Equal(t, "gmail", src.Name)
	_, ok = m.SourceByDomain("sales")
	assert.False(t, ok)
}
