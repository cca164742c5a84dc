package problem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	p := Problem{ID: "prob_1", Status: StatusCandidate}

	require.NoError(t, Promote(&p, now))
	assert.Equal(t, StatusProposed, p.Status)
	require.NotNil(t, p.ProposedAt)

	require.NoError(t, Confirm(&p, "alice", now.Add(time.Hour)))
	assert.Equal(t, StatusConfirmed, p.Status)
	assert.Equal(t, "alice", p.ConfirmedBy)
	require.NotNil(t, p.ConfirmedAt)

	require.NoError(t, Archive(&p, "resolved", now.Add(2*time.Hour)))
	assert.Equal(t, StatusArchived, p.Status)
	assert.Equal(t, "resolved", p.ArchiveReason)

	require.Len(t, p.TransitionHistory, 3)
	assert.Equal(t, StatusCandidate, p.TransitionHistory[0].From)
	assert.Equal(t, StatusArchived, p.TransitionHistory[2].To)
}

func TestIllegalTransitionLeavesProblemUntouched(t *testing.T) {
	p := Problem{ID: "prob_1", Status: StatusCandidate}

	err := Confirm(&p, "alice", time.Now())
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, StatusCandidate, illegal.From)
	assert.Equal(t, StatusConfirmed, illegal.To)

	assert.Equal(t, StatusCandidate, p.Status)
	assert.Empty(t, p.TransitionHistory)
	assert.Nil(t, p.ConfirmedAt)
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []Status{StatusRejected, StatusArchived} {
		for _, target := range []Status{StatusCandidate, StatusProposed, StatusConfirmed, StatusSnoozed} {
			assert.False(t, CanTransition(terminal, target), "%s -> %s", terminal, target)
		}
	}
}

func TestEmptyStatusReadsAsCandidate(t *testing.T) {
	p := Problem{ID: "prob_1"}
	require.NoError(t, Promote(&p, time.Now()))
	assert.Equal(t, StatusProposed, p.Status)
}

func TestRejectRecordsReason(t *testing.T) {
	p := Problem{Status: StatusProposed}
	require.NoError(t, Reject(&p, "not a real problem", time.Now()))
	assert.Equal(t, StatusRejected, p.Status)
	assert.Equal(t, "not a real problem", p.RejectionReason)
	require.NotNil(t, p.RejectedAt)
}

func TestSnoozeDays(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	p := Problem{Status: StatusProposed}
	require.NoError(t, Snooze(&p, 3, "busy week", now))
	require.NotNil(t, p.SnoozeUntil)
	assert.Equal(t, now.Add(3*24*time.Hour), *p.SnoozeUntil)

	// Negative selects the default horizon.
	p = Problem{Status: StatusProposed}
	require.NoError(t, Snooze(&p, -1, "", now))
	assert.Equal(t, now.Add(DefaultSnoozeDays*24*time.Hour), *p.SnoozeUntil)

	// Zero days parks the problem for the very next sweep.
	p = Problem{Status: StatusProposed}
	require.NoError(t, Snooze(&p, 0, "", now))
	assert.Equal(t, now, *p.SnoozeUntil)
}

func TestCheckSnoozedWakesExpired(t *testing.T) {
	now := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

	expired := &Problem{ID: "expired", Status: StatusProposed}
	require.NoError(t, Snooze(expired, 2, "", now.AddDate(0, 0, -3)))
	active := &Problem{ID: "active", Status: StatusProposed}
	require.NoError(t, Snooze(active, 7, "", now.AddDate(0, 0, -1)))
	unrelated := &Problem{ID: "unrelated", Status: StatusCandidate}

	woken := CheckSnoozed([]*Problem{expired, active, unrelated}, now)

	require.Len(t, woken, 1)
	assert.Equal(t, "expired", woken[0].ID)
	assert.Equal(t, StatusCandidate, expired.Status)
	assert.Equal(t, "snooze period expired", expired.TransitionHistory[len(expired.TransitionHistory)-1].Reason)
	assert.Equal(t, StatusSnoozed, active.Status)
	assert.Equal(t, StatusCandidate, unrelated.Status)
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusCandidate.Valid())
	assert.True(t, StatusArchived.Valid())
	assert.False(t, Status("pending").Valid())
}
