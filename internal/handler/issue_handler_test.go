package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/civicdesk-api/internal/middleware"
	"github.com/civicdesk/civicdesk-api/internal/models"
	"github.com/civicdesk/civicdesk-api/internal/repository"
	"github.com/civicdesk/civicdesk-api/internal/service"
)

type issueStoreStub struct {
	issues     map[string]models.Issue
	lastFilter models.IssueFilter
	created    *models.Issue
}

func (s *issueStoreStub) FindNearby(ctx context.Context, lat, lng, window float64, category models.IssueCategory) ([]models.IssueCandidate, error) {
	return nil, nil
}

func (s *issueStoreStub) CreateWithIntake(ctx context.Context, issue *models.Issue, award int) error {
	issue.ID = "issue-new"
	s.created = issue
	return nil
}

func (s *issueStoreStub) MergeReport(ctx context.Context, report *models.IssueReport, award int, now time.Time) (*models.Issue, error) {
	return &models.Issue{ID: report.IssueID}, nil
}

func (s *issueStoreStub) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	if issue, ok := s.issues[id]; ok {
		return &issue, nil
	}
	return nil, sql.ErrNoRows
}

func (s *issueStoreStub) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error) {
	s.lastFilter = filter
	return nil, 0, nil
}

func (s *issueStoreStub) Accept(ctx context.Context, p repository.AcceptParams) error   { return nil }
func (s *issueStoreStub) Decline(ctx context.Context, p repository.DeclineParams) error { return nil }
func (s *issueStoreStub) StartWork(ctx context.Context, issueID string, now time.Time) error {
	return nil
}
func (s *issueStoreStub) UpdateProgress(ctx context.Context, p repository.ProgressParams) error {
	return nil
}

func (s *issueStoreStub) AddUpvote(ctx context.Context, issueID, userID string, now time.Time) (*models.Issue, error) {
	issue := s.issues[issueID]
	issue.UpvoteCount++
	return &issue, nil
}

func (s *issueStoreStub) RemoveUpvote(ctx context.Context, issueID, userID string, now time.Time) (*models.Issue, error) {
	issue := s.issues[issueID]
	return &issue, nil
}

func (s *issueStoreStub) DeleteOwned(ctx context.Context, issueID, reporterID string) error {
	return nil
}

func (s *issueStoreStub) UpdateOwned(ctx context.Context, issueID, reporterID, title, description string, now time.Time) error {
	return nil
}

type detailsStoreStub struct{}

func (detailsStoreStub) GetByIssue(ctx context.Context, issueID string) (*models.IssueWorkDetails, error) {
	return nil, sql.ErrNoRows
}

type logStoreStub struct{}

func (logStoreStub) ListForIssue(ctx context.Context, issueID string) ([]models.StatusLog, error) {
	return nil, nil
}

type deptStoreStub struct{}

func (deptStoreStub) GetByName(ctx context.Context, name string) (*models.Department, error) {
	return &models.Department{ID: "dept-1", Name: name}, nil
}

func newIssueHandlerFixture(store *issueStoreStub) *IssueHandler {
	intake := service.NewIntakeService(store, deptStoreStub{}, nil, 0.001, 10, nil, nil, nil)
	lifecycle := service.NewLifecycleService(store, detailsStoreStub{}, logStoreStub{}, nil, nil, nil)
	return NewIssueHandler(intake, lifecycle)
}

func testContext(t *testing.T, method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, target, nil)
	}
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestIssueHandlerSubmitCreated(t *testing.T) {
	store := &issueStoreStub{issues: map[string]models.Issue{}}
	handler := newIssueHandlerFixture(store)

	payload, _ := json.Marshal(service.SubmitRequest{
		Title:       "Pothole",
		Description: "Deep pothole on Main St",
		Category:    string(models.CategoryRoads),
		Severity:    3,
		Lat:         40.7,
		Lng:         -74.0,
	})
	c, w := testContext(t, http.MethodPost, "/issues", payload, &models.JWTClaims{UserID: "user-1", Role: models.RoleCitizen})

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, store.created)
	assert.Equal(t, "user-1", store.created.ReporterID)
}

func TestIssueHandlerSubmitInvalidBody(t *testing.T) {
	handler := newIssueHandlerFixture(&issueStoreStub{})

	c, w := testContext(t, http.MethodPost, "/issues", []byte(`{"title":`), &models.JWTClaims{UserID: "user-1", Role: models.RoleCitizen})

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssueHandlerListScopesAuthorityToDepartment(t *testing.T) {
	store := &issueStoreStub{}
	handler := newIssueHandlerFixture(store)
	deptID := "dept-7"

	c, w := testContext(t, http.MethodGet, "/issues?department_id=dept-other", nil,
		&models.JWTClaims{UserID: "auth-1", Role: models.RoleAuthority, DepartmentID: &deptID})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dept-7", store.lastFilter.DepartmentID)
}

func TestIssueHandlerListAdminPicksQueryDepartment(t *testing.T) {
	store := &issueStoreStub{}
	handler := newIssueHandlerFixture(store)

	c, w := testContext(t, http.MethodGet, "/issues?department_id=dept-3", nil,
		&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dept-3", store.lastFilter.DepartmentID)
}

func TestIssueHandlerUpvoteOwnIssueForbidden(t *testing.T) {
	store := &issueStoreStub{issues: map[string]models.Issue{
		"issue-1": {ID: "issue-1", ReporterID: "user-1", Status: models.StatusOpen},
	}}
	handler := newIssueHandlerFixture(store)

	c, w := testContext(t, http.MethodPost, "/issues/issue-1/upvote", nil,
		&models.JWTClaims{UserID: "user-1", Role: models.RoleCitizen})
	c.Params = gin.Params{{Key: "id", Value: "issue-1"}}

	handler.Upvote(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestIssueHandlerGetNotFound(t *testing.T) {
	handler := newIssueHandlerFixture(&issueStoreStub{})

	c, w := testContext(t, http.MethodGet, "/issues/missing", nil,
		&models.JWTClaims{UserID: "user-1", Role: models.RoleCitizen})
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
