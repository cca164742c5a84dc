package source

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestSampleSourceEmailScopes(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "sample_emails.json", []Email{
		{ID: "email_1", Sender: "cfo@client.example", Subject: "Contract renewal", HiddenPriority: "high"},
	})

	src := NewSampleSource("gmail", "email", dir, Permissions{Read: []string{ScopeMetadataAndSubject}}, nil)

	full, err := src.Read(context.Background(), ScopeMetadataAndSubject, nil)
	require.NoError(t, err)
	emails := full.Data.([]Email)
	require.Len(t, emails, 1)
	assert.Equal(t, "Contract renewal", emails[0].Subject)
	assert.Equal(t, "high", emails[0].HiddenPriority)

	// The metadata scope strips the subject line and priority hint.
	meta, err := src.Read(context.Background(), ScopeMetadata, nil)
	require.NoError(t, err)
	emails = meta.Data.([]Email)
	assert.Empty(t, emails[0].Subject)
	assert.Empty(t, emails[0].HiddenPriority)
	assert.Equal(t, "email_1", emails[0].ID)

	// An unrecognized scope degrades to metadata rather than leaking.
	odd, err := src.Read(context.Background(), "full_body", nil)
	require.NoError(t, err)
	assert.Empty(t, odd.Data.([]Email)[0].Subject)
}

func TestSampleSourceMissingFixtureReadsEmpty(t *testing.T) {
	src := NewSampleSource("github", "github", t.TempDir(), Permissions{Read: []string{ScopePRMetadata}}, nil)

	result, err := src.Read(context.Background(), ScopePRMetadata, nil)
	require.NoError(t, err)
	assert.Zero(t, result.Count)
}

func TestSampleSourceReadWithoutGrant(t *testing.T) {
	src := NewSampleSource("gmail", "email", t.TempDir(), Permissions{}, nil)

	_, err := src.Read(context.Background(), ScopeMetadata, nil)
	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "read", perm.Op)
}

func TestSampleSourceWriteEnforcesGrants(t *testing.T) {
	src := NewSampleSource("gmail", "email", t.TempDir(), Permissions{
		Read:  []string{ScopeMetadata},
		Write: []string{"apply_label"},
	}, nil)

	result, err := src.Write(context.Background(), "apply_label", "email_1", map[string]any{"label": "important"})
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "important", result.Fields["applied_label"])

	_, err = src.Write(context.Background(), "delete_message", "email_1", nil)
	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "delete_message", perm.Action)
}

func TestRegistryByDomain(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&MemorySource{SourceName: "gmail", SourceDomain: "email", Perms: Permissions{Read: []string{ScopeMetadata}}})

	assert.NotNil(t, reg.ByDomain("email"))
	assert.Nil(t, reg.ByDomain("finance"))
}

func TestMemorySourceWriteRecords(t *testing.T) {
	src := &MemorySource{
		SourceName:   "slack",
		SourceDomain: "github",
		Perms:        Permissions{Read: []string{ScopePRMetadata}, Write: []string{"send_dm"}},
	}

	_, err := src.Write(context.Background(), "send_dm", "pr_101", map[string]any{"recipient": "me"})
	require.NoError(t, err)
	require.Len(t, src.Writes, 1)
	assert.Equal(t, "send_dm", src.Writes[0].Action)
}

func TestPullRequestAgeHours(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	pr := PullRequest{CreatedAt: now.Add(-72 * time.Hour)}
	assert.InDelta(t, 72, pr.AgeHours(now), 1e-9)
}
