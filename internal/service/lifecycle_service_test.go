package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/civicdesk-api/internal/models"
	"github.com/civicdesk/civicdesk-api/internal/repository"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

type mockLifecycleRepo struct {
	issues map[string]models.Issue

	acceptErr   error
	declineErr  error
	startErr    error
	progressErr error
	upvoteErr   error
	unvoteErr   error
	deleteErr   error
	updateErr   error

	accepted   *repository.AcceptParams
	declined   *repository.DeclineParams
	progressed *repository.ProgressParams
	started    []string
	deleted    []string
}

func (m *mockLifecycleRepo) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	if issue, ok := m.issues[id]; ok {
		return &issue, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLifecycleRepo) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error) {
	issues := make([]models.Issue, 0, len(m.issues))
	for _, issue := range m.issues {
		issues = append(issues, issue)
	}
	return issues, len(issues), nil
}

func (m *mockLifecycleRepo) Accept(ctx context.Context, p repository.AcceptParams) error {
	if m.acceptErr != nil {
		return m.acceptErr
	}
	m.accepted = &p
	if issue, ok := m.issues[p.IssueID]; ok {
		issue.Status = models.StatusAccepted
		m.issues[p.IssueID] = issue
	}
	return nil
}

func (m *mockLifecycleRepo) Decline(ctx context.Context, p repository.DeclineParams) error {
	if m.declineErr != nil {
		return m.declineErr
	}
	m.declined = &p
	if issue, ok := m.issues[p.IssueID]; ok {
		issue.Status = models.StatusDeclined
		m.issues[p.IssueID] = issue
	}
	return nil
}

func (m *mockLifecycleRepo) StartWork(ctx context.Context, issueID string, now time.Time) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.started = append(m.started, issueID)
	return nil
}

func (m *mockLifecycleRepo) UpdateProgress(ctx context.Context, p repository.ProgressParams) error {
	if m.progressErr != nil {
		return m.progressErr
	}
	m.progressed = &p
	return nil
}

func (m *mockLifecycleRepo) AddUpvote(ctx context.Context, issueID, userID string, now time.Time) (*models.Issue, error) {
	if m.upvoteErr != nil {
		return nil, m.upvoteErr
	}
	issue := m.issues[issueID]
	issue.UpvoteCount++
	m.issues[issueID] = issue
	return &issue, nil
}

func (m *mockLifecycleRepo) RemoveUpvote(ctx context.Context, issueID, userID string, now time.Time) (*models.Issue, error) {
	if m.unvoteErr != nil {
		return nil, m.unvoteErr
	}
	issue := m.issues[issueID]
	issue.UpvoteCount--
	m.issues[issueID] = issue
	return &issue, nil
}

func (m *mockLifecycleRepo) DeleteOwned(ctx context.Context, issueID, reporterID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, issueID)
	return nil
}

func (m *mockLifecycleRepo) UpdateOwned(ctx context.Context, issueID, reporterID, title, description string, now time.Time) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if issue, ok := m.issues[issueID]; ok {
		issue.Title = title
		issue.Description = description
		m.issues[issueID] = issue
	}
	return nil
}

type mockDetailsReader struct {
	details map[string]models.IssueWorkDetails
}

func (m *mockDetailsReader) GetByIssue(ctx context.Context, issueID string) (*models.IssueWorkDetails, error) {
	if d, ok := m.details[issueID]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

type mockLogReader struct {
	logs map[string][]models.StatusLog
}

func (m *mockLogReader) ListForIssue(ctx context.Context, issueID string) ([]models.StatusLog, error) {
	return m.logs[issueID], nil
}

type recordedNotification struct {
	UserID  string
	Message string
	Type    models.NotificationType
	IssueID string
}

type recordingNotifier struct {
	sent []recordedNotification
}

func (n *recordingNotifier) Notify(userID, message string, ntype models.NotificationType, issueID string) {
	n.sent = append(n.sent, recordedNotification{UserID: userID, Message: message, Type: ntype, IssueID: issueID})
}

func newLifecycleFixture(issues ...models.Issue) (*LifecycleService, *mockLifecycleRepo, *mockDetailsReader, *recordingNotifier) {
	repo := &mockLifecycleRepo{issues: make(map[string]models.Issue)}
	for _, issue := range issues {
		repo.issues[issue.ID] = issue
	}
	details := &mockDetailsReader{details: make(map[string]models.IssueWorkDetails)}
	logs := &mockLogReader{logs: make(map[string][]models.StatusLog)}
	notifier := &recordingNotifier{}
	svc := NewLifecycleService(repo, details, logs, notifier, nil, nil)
	return svc, repo, details, notifier
}

func openIssue(id, reporter string) models.Issue {
	deptID := "dept-1"
	return models.Issue{
		ID:           id,
		Title:        "Pothole on Main St",
		Status:       models.StatusOpen,
		ReporterID:   reporter,
		DepartmentID: &deptID,
		CreatedAt:    time.Now().UTC().Add(-time.Hour),
	}
}

func TestLifecycleAccept(t *testing.T) {
	svc, repo, _, notifier := newLifecycleFixture(openIssue("issue-1", "citizen-1"))

	detail, err := svc.Accept(context.Background(), "issue-1", "authority-1", nil, AcceptRequest{
		Budget:        5000,
		EstimatedDays: 14,
		WorkStartDate: "2026-09-15",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, detail.Issue.Status)

	require.NotNil(t, repo.accepted)
	assert.Equal(t, "authority-1", repo.accepted.AuthorityID)
	assert.Equal(t, 5000.0, repo.accepted.Budget)
	assert.Equal(t, 14, repo.accepted.EstimatedDays)
	assert.Equal(t, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), repo.accepted.WorkStartDate)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "citizen-1", notifier.sent[0].UserID)
	assert.Equal(t, models.NotificationIssueAccepted, notifier.sent[0].Type)
}

func TestLifecycleAcceptNotOpen(t *testing.T) {
	svc, repo, _, notifier := newLifecycleFixture(openIssue("issue-1", "citizen-1"))
	repo.acceptErr = sql.ErrNoRows

	_, err := svc.Accept(context.Background(), "issue-1", "authority-1", nil, AcceptRequest{
		Budget: 100, EstimatedDays: 3, WorkStartDate: "2026-09-15",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict.Code))
	assert.Empty(t, notifier.sent)
}

func TestLifecycleAcceptBadDate(t *testing.T) {
	svc, _, _, _ := newLifecycleFixture(openIssue("issue-1", "citizen-1"))

	_, err := svc.Accept(context.Background(), "issue-1", "authority-1", nil, AcceptRequest{
		Budget: 100, EstimatedDays: 3, WorkStartDate: "15/09/2026",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))
}

func TestLifecycleAcceptWrongDepartment(t *testing.T) {
	svc, _, _, _ := newLifecycleFixture(openIssue("issue-1", "citizen-1"))
	other := "dept-2"

	_, err := svc.Accept(context.Background(), "issue-1", "authority-1", &other, AcceptRequest{
		Budget: 100, EstimatedDays: 3, WorkStartDate: "2026-09-15",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden.Code))
}

func TestLifecycleDecline(t *testing.T) {
	svc, repo, _, notifier := newLifecycleFixture(openIssue("issue-1", "citizen-1"))

	detail, err := svc.Decline(context.Background(), "issue-1", "authority-1", nil, DeclineRequest{
		Category: string(models.DeclineOutsideJurisdiction),
		Reason:   "Private property",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, detail.Issue.Status)

	require.NotNil(t, repo.declined)
	assert.Equal(t, "citizen-1", repo.declined.ReporterID)
	assert.Equal(t, models.DeclineOutsideJurisdiction, repo.declined.Category)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, models.NotificationIssueDeclined, notifier.sent[0].Type)
}

func TestLifecycleDeclineUnknownCategory(t *testing.T) {
	svc, repo, _, _ := newLifecycleFixture(openIssue("issue-1", "citizen-1"))

	_, err := svc.Decline(context.Background(), "issue-1", "authority-1", nil, DeclineRequest{
		Category: "mood",
		Reason:   "nope",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))
	assert.Nil(t, repo.declined)
}

func TestLifecycleStartWorkNotAccepted(t *testing.T) {
	svc, repo, _, _ := newLifecycleFixture(openIssue("issue-1", "citizen-1"))
	repo.startErr = sql.ErrNoRows

	_, err := svc.StartWork(context.Background(), "issue-1", nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict.Code))
}

func TestLifecycleProgressCompletes(t *testing.T) {
	issue := openIssue("issue-1", "citizen-1")
	issue.Status = models.StatusWorkStarted
	svc, repo, details, _ := newLifecycleFixture(issue)
	details.details["issue-1"] = models.IssueWorkDetails{IssueID: "issue-1", ProgressPercentage: 60}

	_, err := svc.UpdateProgress(context.Background(), "issue-1", nil, ProgressRequest{Percentage: 100})
	require.NoError(t, err)
	require.NotNil(t, repo.progressed)
	assert.Equal(t, models.StatusCompleted, repo.progressed.NewStatus)
	assert.Equal(t, 100, repo.progressed.Percentage)
}

func TestLifecycleProgressStartsWorkImplicitly(t *testing.T) {
	issue := openIssue("issue-1", "citizen-1")
	issue.Status = models.StatusAccepted
	svc, repo, details, _ := newLifecycleFixture(issue)
	details.details["issue-1"] = models.IssueWorkDetails{IssueID: "issue-1", ProgressPercentage: 0}

	_, err := svc.UpdateProgress(context.Background(), "issue-1", nil, ProgressRequest{Percentage: 25})
	require.NoError(t, err)
	assert.Equal(t, models.StatusWorkStarted, repo.progressed.NewStatus)
}

func TestLifecycleProgressCannotDecrease(t *testing.T) {
	issue := openIssue("issue-1", "citizen-1")
	issue.Status = models.StatusWorkStarted
	svc, repo, details, _ := newLifecycleFixture(issue)
	details.details["issue-1"] = models.IssueWorkDetails{IssueID: "issue-1", ProgressPercentage: 60}

	_, err := svc.UpdateProgress(context.Background(), "issue-1", nil, ProgressRequest{Percentage: 40})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict.Code))
	assert.Nil(t, repo.progressed)
}

func TestLifecycleProgressRequiresInProgressState(t *testing.T) {
	svc, _, _, _ := newLifecycleFixture(openIssue("issue-1", "citizen-1"))

	_, err := svc.UpdateProgress(context.Background(), "issue-1", nil, ProgressRequest{Percentage: 10})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict.Code))
}

func TestLifecycleProgressExtensionValidation(t *testing.T) {
	issue := openIssue("issue-1", "citizen-1")
	issue.Status = models.StatusWorkStarted
	svc, _, details, _ := newLifecycleFixture(issue)
	details.details["issue-1"] = models.IssueWorkDetails{IssueID: "issue-1"}

	empty := ""
	_, err := svc.UpdateProgress(context.Background(), "issue-1", nil, ProgressRequest{Percentage: 10, ExtensionReason: &empty})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))

	reason := "Heavy rain delayed excavation"
	_, err = svc.UpdateProgress(context.Background(), "issue-1", nil, ProgressRequest{Percentage: 10, ExtensionReason: &reason})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))

	extended := time.Now().UTC().Add(7 * 24 * time.Hour)
	_, err = svc.UpdateProgress(context.Background(), "issue-1", nil, ProgressRequest{Percentage: 10, ExtensionReason: &reason, ExtendedDate: &extended})
	require.NoError(t, err)
}

func TestLifecycleUpvoteOwnIssue(t *testing.T) {
	svc, _, _, _ := newLifecycleFixture(openIssue("issue-1", "citizen-1"))

	_, err := svc.Upvote(context.Background(), "issue-1", "citizen-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden.Code))
}

func TestLifecycleUpvoteTwice(t *testing.T) {
	svc, repo, _, _ := newLifecycleFixture(openIssue("issue-1", "citizen-1"))
	repo.upvoteErr = sql.ErrNoRows

	_, err := svc.Upvote(context.Background(), "issue-1", "citizen-2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict.Code))
}

func TestLifecycleUpvote(t *testing.T) {
	svc, _, _, _ := newLifecycleFixture(openIssue("issue-1", "citizen-1"))

	issue, err := svc.Upvote(context.Background(), "issue-1", "citizen-2")
	require.NoError(t, err)
	assert.Equal(t, 1, issue.UpvoteCount)
}

func TestLifecycleDeleteNotReporter(t *testing.T) {
	svc, _, _, _ := newLifecycleFixture(openIssue("issue-1", "citizen-1"))

	err := svc.Delete(context.Background(), "issue-1", "citizen-2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden.Code))
}

func TestLifecycleDeleteNotOpen(t *testing.T) {
	svc, repo, _, _ := newLifecycleFixture(openIssue("issue-1", "citizen-1"))
	repo.deleteErr = sql.ErrNoRows

	err := svc.Delete(context.Background(), "issue-1", "citizen-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict.Code))
}

func TestLifecycleEdit(t *testing.T) {
	svc, _, _, _ := newLifecycleFixture(openIssue("issue-1", "citizen-1"))

	issue, err := svc.Edit(context.Background(), "issue-1", "citizen-1", EditRequest{
		Title:       "Deep pothole on Main St",
		Description: "Now a meter wide",
	})
	require.NoError(t, err)
	assert.Equal(t, "Deep pothole on Main St", issue.Title)
}

func TestLifecycleGetNotFound(t *testing.T) {
	svc, _, _, _ := newLifecycleFixture()

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound.Code))
}
