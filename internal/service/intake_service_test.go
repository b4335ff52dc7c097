package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/civicdesk-api/internal/models"
	"github.com/civicdesk/civicdesk-api/internal/oracle"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

type mockIntakeRepo struct {
	candidates []models.IssueCandidate
	nearbyErr  error

	created      *models.Issue
	createdAward int

	mergedReport *models.IssueReport
	mergedAward  int
	mergedIssue  *models.Issue

	lastWindow float64
}

func (m *mockIntakeRepo) FindNearby(ctx context.Context, lat, lng, window float64, category models.IssueCategory) ([]models.IssueCandidate, error) {
	m.lastWindow = window
	if m.nearbyErr != nil {
		return nil, m.nearbyErr
	}
	return m.candidates, nil
}

func (m *mockIntakeRepo) CreateWithIntake(ctx context.Context, issue *models.Issue, award int) error {
	if issue.ID == "" {
		issue.ID = "generated"
	}
	m.created = issue
	m.createdAward = award
	return nil
}

func (m *mockIntakeRepo) MergeReport(ctx context.Context, report *models.IssueReport, award int, now time.Time) (*models.Issue, error) {
	m.mergedReport = report
	m.mergedAward = award
	return m.mergedIssue, nil
}

type mockDeptResolver struct {
	departments map[string]models.Department
	lastName    string
}

func (m *mockDeptResolver) GetByName(ctx context.Context, name string) (*models.Department, error) {
	m.lastName = name
	if d, ok := m.departments[name]; ok {
		return &d, nil
	}
	return nil, errors.New("department not found")
}

type mockOracle struct {
	verdict    *oracle.Judgement
	err        error
	calls      int
	candidates []models.IssueCandidate
}

func (m *mockOracle) Judge(ctx context.Context, title, description string, candidates []models.IssueCandidate) (*oracle.Judgement, error) {
	m.calls++
	m.candidates = candidates
	if m.err != nil {
		return nil, m.err
	}
	return m.verdict, nil
}

func validSubmit() SubmitRequest {
	return SubmitRequest{
		Title:       "Broken streetlight",
		Description: "Streetlight out on the corner of 5th and Main",
		Category:    string(models.CategoryElectricity),
		Severity:    4,
		Lat:         40.7128,
		Lng:         -74.0060,
	}
}

func TestIntakeSubmitCreatesNewIssue(t *testing.T) {
	repo := &mockIntakeRepo{}
	depts := &mockDeptResolver{departments: map[string]models.Department{
		DeptElectricity: {ID: "dept-1", Name: DeptElectricity, SLAHours: 48},
	}}
	svc := NewIntakeService(repo, depts, nil, 0.001, 10, nil, nil, nil)

	res, err := svc.Submit(context.Background(), "user-1", validSubmit())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Merged)

	require.NotNil(t, repo.created)
	assert.Equal(t, models.StatusOpen, repo.created.Status)
	assert.Equal(t, 1, repo.created.ReportCount)
	assert.Equal(t, 6, repo.created.PriorityScore) // 1*2 + 4
	assert.Equal(t, "Medium", PriorityLabel(repo.created.PriorityScore))
	require.NotNil(t, repo.created.DepartmentID)
	assert.Equal(t, "dept-1", *repo.created.DepartmentID)
	assert.Equal(t, 10, repo.createdAward)
}

func TestIntakeSubmitMergesDuplicate(t *testing.T) {
	repo := &mockIntakeRepo{
		candidates:  []models.IssueCandidate{{ID: "issue-9", Title: "Streetlight out"}},
		mergedIssue: &models.Issue{ID: "issue-9", ReportCount: 2, PriorityScore: 8},
	}
	depts := &mockDeptResolver{}
	dup := &mockOracle{verdict: &oracle.Judgement{IsDuplicate: true, MatchedID: "issue-9"}}
	svc := NewIntakeService(repo, depts, dup, 0.001, 10, nil, nil, nil)

	res, err := svc.Submit(context.Background(), "user-2", validSubmit())
	require.NoError(t, err)
	assert.True(t, res.Merged)
	assert.False(t, res.Created)
	assert.Equal(t, "issue-9", res.Issue.ID)
	assert.Equal(t, 2, res.Issue.ReportCount)

	require.NotNil(t, repo.mergedReport)
	assert.Equal(t, "issue-9", repo.mergedReport.IssueID)
	assert.Equal(t, "user-2", repo.mergedReport.ReporterID)
	assert.Equal(t, 10, repo.mergedAward)
	assert.Nil(t, repo.created)
	assert.Equal(t, 1, dup.calls)
	assert.Len(t, dup.candidates, 1)
}

func TestIntakeSubmitOracleFailureFailsOpen(t *testing.T) {
	repo := &mockIntakeRepo{
		candidates: []models.IssueCandidate{{ID: "issue-9"}},
	}
	depts := &mockDeptResolver{departments: map[string]models.Department{
		DeptElectricity: {ID: "dept-1"},
	}}
	dup := &mockOracle{err: errors.New("oracle timeout")}
	svc := NewIntakeService(repo, depts, dup, 0.001, 10, nil, nil, nil)

	res, err := svc.Submit(context.Background(), "user-1", validSubmit())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Nil(t, repo.mergedReport)
}

func TestIntakeSubmitDistinctVerdictCreates(t *testing.T) {
	repo := &mockIntakeRepo{
		candidates: []models.IssueCandidate{{ID: "issue-9"}},
	}
	depts := &mockDeptResolver{}
	dup := &mockOracle{verdict: &oracle.Judgement{IsDuplicate: false}}
	svc := NewIntakeService(repo, depts, dup, 0.001, 10, nil, nil, nil)

	res, err := svc.Submit(context.Background(), "user-1", validSubmit())
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestIntakeSubmitNearbyLookupFailureFailsOpen(t *testing.T) {
	repo := &mockIntakeRepo{nearbyErr: errors.New("db down")}
	depts := &mockDeptResolver{}
	dup := &mockOracle{}
	svc := NewIntakeService(repo, depts, dup, 0.001, 10, nil, nil, nil)

	res, err := svc.Submit(context.Background(), "user-1", validSubmit())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 0, dup.calls)
}

func TestIntakeSubmitNoCandidatesSkipsOracle(t *testing.T) {
	repo := &mockIntakeRepo{}
	depts := &mockDeptResolver{}
	dup := &mockOracle{}
	svc := NewIntakeService(repo, depts, dup, 0.005, 10, nil, nil, nil)

	res, err := svc.Submit(context.Background(), "user-1", validSubmit())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 0, dup.calls)
	assert.Equal(t, 0.005, repo.lastWindow)
}

func TestIntakeSubmitMissingDepartmentLeavesUnassigned(t *testing.T) {
	repo := &mockIntakeRepo{}
	depts := &mockDeptResolver{}
	svc := NewIntakeService(repo, depts, nil, 0.001, 10, nil, nil, nil)

	res, err := svc.Submit(context.Background(), "user-1", validSubmit())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Nil(t, repo.created.DepartmentID)
}

func TestIntakeSubmitValidation(t *testing.T) {
	repo := &mockIntakeRepo{}
	svc := NewIntakeService(repo, &mockDeptResolver{}, nil, 0.001, 10, nil, nil, nil)

	req := validSubmit()
	req.Severity = 0
	_, err := svc.Submit(context.Background(), "user-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))

	req = validSubmit()
	req.Category = "potholes"
	_, err = svc.Submit(context.Background(), "user-1", req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))
	assert.Nil(t, repo.created)
}

func TestDepartmentForCategory(t *testing.T) {
	assert.Equal(t, DeptWater, departmentForCategory(models.CategoryWater))
	assert.Equal(t, DeptWater, departmentForCategory(models.CategorySanitation))
	assert.Equal(t, DeptElectricity, departmentForCategory(models.CategoryElectricity))
	assert.Equal(t, DeptRoads, departmentForCategory(models.CategoryRoads))
	assert.Equal(t, DeptRoads, departmentForCategory(models.CategoryParks))
}
