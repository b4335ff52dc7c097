package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/civicdesk-api/internal/models"
)

type mockSweeperRepo struct {
	candidates  map[string][]models.Issue
	cutoffs     map[string]time.Time
	escalateErr map[string]error
	raced       map[string]bool
	escalated   []string
	notes       []string
	recalcCount int
	recalcErr   error
}

func (m *mockSweeperRepo) EscalationCandidates(ctx context.Context, departmentID string, cutoff time.Time) ([]models.Issue, error) {
	if m.cutoffs == nil {
		m.cutoffs = make(map[string]time.Time)
	}
	m.cutoffs[departmentID] = cutoff
	return m.candidates[departmentID], nil
}

func (m *mockSweeperRepo) Escalate(ctx context.Context, issueID, note string, now time.Time) (bool, error) {
	if err := m.escalateErr[issueID]; err != nil {
		return false, err
	}
	if m.raced[issueID] {
		return false, nil
	}
	m.escalated = append(m.escalated, issueID)
	m.notes = append(m.notes, note)
	return true, nil
}

func (m *mockSweeperRepo) RecalcPriorities(ctx context.Context, now time.Time) (int, error) {
	if m.recalcErr != nil {
		return 0, m.recalcErr
	}
	return m.recalcCount, nil
}

type mockDeptList struct {
	departments []models.Department
}

func (m *mockDeptList) List(ctx context.Context) ([]models.Department, error) {
	return m.departments, nil
}

type mockAdminLister struct {
	ids []string
	err error
}

func (m *mockAdminLister) AdminIDs(ctx context.Context) ([]string, error) {
	return m.ids, m.err
}

func TestSweeperSweep(t *testing.T) {
	repo := &mockSweeperRepo{
		candidates: map[string][]models.Issue{
			"dept-1": {{ID: "issue-1", Title: "Burst pipe"}, {ID: "issue-2", Title: "Leaking hydrant"}},
		},
	}
	depts := &mockDeptList{departments: []models.Department{
		{ID: "dept-1", Name: "Water & Sanitation", SLAHours: 48},
		{ID: "dept-2", Name: "Electricity & Power", SLAHours: 72},
	}}
	admins := &mockAdminLister{ids: []string{"admin-1", "admin-2"}}
	notifier := &recordingNotifier{}
	svc := NewSweeperService(repo, depts, admins, notifier, nil, nil)

	count, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.ElementsMatch(t, []string{"issue-1", "issue-2"}, repo.escalated)
	for _, note := range repo.notes {
		assert.Equal(t, "Auto-escalated: SLA exceeded", note)
	}

	// Each escalation notifies every admin.
	require.Len(t, notifier.sent, 4)
	for _, n := range notifier.sent {
		assert.Equal(t, models.NotificationIssueEscalated, n.Type)
	}

	// The cutoff reflects the department's SLA window.
	cutoff, ok := repo.cutoffs["dept-1"]
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().UTC().Add(-48*time.Hour), cutoff, time.Minute)
}

func TestSweeperSkipsConcurrentlyResolvedIssues(t *testing.T) {
	repo := &mockSweeperRepo{
		candidates: map[string][]models.Issue{
			"dept-1": {{ID: "issue-1"}, {ID: "issue-2"}},
		},
		raced: map[string]bool{"issue-1": true},
	}
	depts := &mockDeptList{departments: []models.Department{{ID: "dept-1", Name: "Roads", SLAHours: 24}}}
	notifier := &recordingNotifier{}
	svc := NewSweeperService(repo, depts, &mockAdminLister{ids: []string{"admin-1"}}, notifier, nil, nil)

	count, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"issue-2"}, repo.escalated)
	assert.Len(t, notifier.sent, 1)
}

func TestSweeperSkipsDepartmentsWithoutSLA(t *testing.T) {
	repo := &mockSweeperRepo{
		candidates: map[string][]models.Issue{"dept-1": {{ID: "issue-1"}}},
	}
	depts := &mockDeptList{departments: []models.Department{{ID: "dept-1", Name: "Roads", SLAHours: 0}}}
	svc := NewSweeperService(repo, depts, nil, nil, nil, nil)

	count, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, repo.escalated)
}

func TestSweeperContinuesWithoutAdminList(t *testing.T) {
	repo := &mockSweeperRepo{
		candidates: map[string][]models.Issue{"dept-1": {{ID: "issue-1"}}},
	}
	depts := &mockDeptList{departments: []models.Department{{ID: "dept-1", Name: "Roads", SLAHours: 24}}}
	admins := &mockAdminLister{err: errors.New("db down")}
	notifier := &recordingNotifier{}
	svc := NewSweeperService(repo, depts, admins, notifier, nil, nil)

	count, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, notifier.sent)
}

func TestSweeperRecalculate(t *testing.T) {
	repo := &mockSweeperRepo{recalcCount: 17}
	svc := NewSweeperService(repo, &mockDeptList{}, nil, nil, nil, nil)

	count, err := svc.Recalculate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 17, count)
}
