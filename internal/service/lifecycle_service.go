package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/civicdesk/civicdesk-api/internal/models"
	"github.com/civicdesk/civicdesk-api/internal/repository"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

type lifecycleIssueRepository interface {
	GetByID(ctx context.Context, id string) (*models.Issue, error)
	List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error)
	Accept(ctx context.Context, p repository.AcceptParams) error
	Decline(ctx context.Context, p repository.DeclineParams) error
	StartWork(ctx context.Context, issueID string, now time.Time) error
	UpdateProgress(ctx context.Context, p repository.ProgressParams) error
	AddUpvote(ctx context.Context, issueID, userID string, now time.Time) (*models.Issue, error)
	RemoveUpvote(ctx context.Context, issueID, userID string, now time.Time) (*models.Issue, error)
	DeleteOwned(ctx context.Context, issueID, reporterID string) error
	UpdateOwned(ctx context.Context, issueID, reporterID, title, description string, now time.Time) error
}

type workDetailsReader interface {
	GetByIssue(ctx context.Context, issueID string) (*models.IssueWorkDetails, error)
}

type statusLogReader interface {
	ListForIssue(ctx context.Context, issueID string) ([]models.StatusLog, error)
}

// userNotifier delivers fire-and-forget notifications. Failures never roll
// back the transition that produced them.
type userNotifier interface {
	Notify(userID, message string, ntype models.NotificationType, issueID string)
}

// LifecycleService drives authority and citizen actions on an issue
// through its status graph.
type LifecycleService struct {
	issueRepo   lifecycleIssueRepository
	detailsRepo workDetailsReader
	logRepo     statusLogReader
	notifier    userNotifier
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewLifecycleService constructs the lifecycle service.
func NewLifecycleService(issueRepo lifecycleIssueRepository, detailsRepo workDetailsReader, logRepo statusLogReader, notifier userNotifier, validate *validator.Validate, logger *zap.Logger) *LifecycleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		issueRepo:   issueRepo,
		detailsRepo: detailsRepo,
		logRepo:     logRepo,
		notifier:    notifier,
		validator:   validate,
		logger:      logger,
	}
}

// IssueDetail is the full view of one issue.
type IssueDetail struct {
	Issue         *models.Issue            `json:"issue"`
	PriorityLabel string                   `json:"priority_label"`
	WorkDetails   *models.IssueWorkDetails `json:"work_details,omitempty"`
	StatusLogs    []models.StatusLog       `json:"status_logs"`
}

// Get loads an issue with its work details and status trail.
func (s *LifecycleService) Get(ctx context.Context, issueID string) (*IssueDetail, error) {
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	detail := &IssueDetail{Issue: issue, PriorityLabel: PriorityLabel(issue.PriorityScore)}
	details, err := s.detailsRepo.GetByIssue(ctx, issueID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work details")
	}
	if err == nil {
		detail.WorkDetails = details
	}
	logs, err := s.logRepo.ListForIssue(ctx, issueID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status logs")
	}
	detail.StatusLogs = logs
	return detail, nil
}

// ListRequest carries issue listing filters. Role scoping is resolved by
// the handler before the filter reaches this service.
type ListRequest struct {
	Category     string `json:"category"`
	Status       string `json:"status"`
	DepartmentID string `json:"department_id"`
	ReporterID   string `json:"reporter_id"`
	Page         int    `json:"page"`
	PageSize     int    `json:"page_size"`
	SortBy       string `json:"sort_by"`
	SortOrder    string `json:"sort_order"`
}

// List returns issues matching the filter, priority-ordered by default.
func (s *LifecycleService) List(ctx context.Context, req ListRequest) ([]models.Issue, *models.Pagination, error) {
	if req.Category != "" && !models.IssueCategory(req.Category).Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 50
	}
	filter := models.IssueFilter{
		Category:     models.IssueCategory(req.Category),
		Status:       models.IssueStatus(req.Status),
		DepartmentID: req.DepartmentID,
		ReporterID:   req.ReporterID,
		Page:         page,
		PageSize:     size,
		SortBy:       req.SortBy,
		SortOrder:    req.SortOrder,
	}
	issues, total, err := s.issueRepo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list issues")
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return issues, pagination, nil
}

// AcceptRequest is an authority's acceptance payload.
type AcceptRequest struct {
	Budget        float64 `json:"budget" validate:"required,gt=0"`
	EstimatedDays int     `json:"estimated_days" validate:"required,gt=0"`
	WorkStartDate string  `json:"work_start_date" validate:"required"`
}

// Accept transitions an open issue to accepted and opens its work details.
func (s *LifecycleService) Accept(ctx context.Context, issueID, authorityID string, deptID *string, req AcceptRequest) (*IssueDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid accept payload")
	}
	startDate, err := time.Parse("2006-01-02", req.WorkStartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid work_start_date, expected YYYY-MM-DD")
	}
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if err := requireDepartment(issue, deptID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.issueRepo.Accept(ctx, repository.AcceptParams{
		IssueID:       issueID,
		AuthorityID:   authorityID,
		Budget:        req.Budget,
		EstimatedDays: req.EstimatedDays,
		WorkStartDate: startDate,
		Now:           now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "issue is not open")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept issue")
	}

	if s.notifier != nil {
		s.notifier.Notify(issue.ReporterID,
			fmt.Sprintf("Your issue %q was accepted for resolution", issue.Title),
			models.NotificationIssueAccepted, issueID)
	}
	s.logger.Info("issue accepted", zap.String("issue_id", issueID), zap.String("authority_id", authorityID))
	return s.Get(ctx, issueID)
}

// DeclineRequest is an authority's decline payload.
type DeclineRequest struct {
	Category string `json:"category" validate:"required"`
	Reason   string `json:"reason" validate:"required"`
}

// Decline transitions an open issue to declined and reverses the
// reporter's points awarded for it.
func (s *LifecycleService) Decline(ctx context.Context, issueID, authorityID string, deptID *string, req DeclineRequest) (*IssueDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decline payload")
	}
	category := models.DeclineCategory(req.Category)
	if !category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown decline category")
	}
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if err := requireDepartment(issue, deptID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.issueRepo.Decline(ctx, repository.DeclineParams{
		IssueID:     issueID,
		AuthorityID: authorityID,
		ReporterID:  issue.ReporterID,
		Category:    category,
		Reason:      req.Reason,
		Now:         now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "issue is not open")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decline issue")
	}

	if s.notifier != nil {
		s.notifier.Notify(issue.ReporterID,
			fmt.Sprintf("Your issue %q was declined: %s", issue.Title, req.Reason),
			models.NotificationIssueDeclined, issueID)
	}
	s.logger.Info("issue declined", zap.String("issue_id", issueID), zap.String("category", req.Category))
	return s.Get(ctx, issueID)
}

// StartWork transitions an accepted issue to work_started.
func (s *LifecycleService) StartWork(ctx context.Context, issueID string, deptID *string) (*IssueDetail, error) {
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if err := requireDepartment(issue, deptID); err != nil {
		return nil, err
	}
	if err := s.issueRepo.StartWork(ctx, issueID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "issue is not accepted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start work")
	}
	return s.Get(ctx, issueID)
}

// ProgressRequest is an authority's work progress payload.
type ProgressRequest struct {
	Percentage      int        `json:"percentage" validate:"min=0,max=100"`
	AmountUsed      *float64   `json:"amount_used" validate:"omitempty,gte=0"`
	ExtensionReason *string    `json:"extension_reason"`
	ExtendedDate    *time.Time `json:"extended_date"`
}

// UpdateProgress records work progress. Reaching 100% completes the issue;
// reporting progress on an accepted issue implicitly starts work. Progress
// may never decrease.
func (s *LifecycleService) UpdateProgress(ctx context.Context, issueID string, deptID *string, req ProgressRequest) (*IssueDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}
	if req.ExtensionReason != nil {
		if *req.ExtensionReason == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "extension reason must not be empty")
		}
		if req.ExtendedDate == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "extension requires a new target date")
		}
	}

	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if err := requireDepartment(issue, deptID); err != nil {
		return nil, err
	}
	if issue.Status != models.StatusAccepted && issue.Status != models.StatusWorkStarted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "issue is not in progress")
	}

	details, err := s.detailsRepo.GetByIssue(ctx, issueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "issue has no work details")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work details")
	}
	if req.Percentage < details.ProgressPercentage {
		return nil, appErrors.Clone(appErrors.ErrConflict, "progress cannot decrease")
	}

	var newStatus models.IssueStatus
	switch {
	case req.Percentage == 100:
		newStatus = models.StatusCompleted
	case issue.Status == models.StatusAccepted && req.Percentage > 0:
		newStatus = models.StatusWorkStarted
	}

	err = s.issueRepo.UpdateProgress(ctx, repository.ProgressParams{
		IssueID:         issueID,
		Percentage:      req.Percentage,
		AmountUsed:      req.AmountUsed,
		ExtensionReason: req.ExtensionReason,
		ExtendedDate:    req.ExtendedDate,
		NewStatus:       newStatus,
		Now:             time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "issue state changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update progress")
	}
	return s.Get(ctx, issueID)
}

// Upvote adds a citizen's vote to an issue. Reporters cannot vote for
// their own issues.
func (s *LifecycleService) Upvote(ctx context.Context, issueID, userID string) (*models.Issue, error) {
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.ReporterID == userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot upvote your own issue")
	}
	updated, err := s.issueRepo.AddUpvote(ctx, issueID, userID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "already upvoted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upvote")
	}
	return updated, nil
}

// RemoveUpvote withdraws a citizen's vote.
func (s *LifecycleService) RemoveUpvote(ctx context.Context, issueID, userID string) (*models.Issue, error) {
	if _, err := s.loadIssue(ctx, issueID); err != nil {
		return nil, err
	}
	updated, err := s.issueRepo.RemoveUpvote(ctx, issueID, userID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "not upvoted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove upvote")
	}
	return updated, nil
}

// Delete removes an issue while it is still open, reporter only.
func (s *LifecycleService) Delete(ctx context.Context, issueID, userID string) error {
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return err
	}
	if issue.ReporterID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the reporter may delete an issue")
	}
	if err := s.issueRepo.DeleteOwned(ctx, issueID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "issue is not open")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete issue")
	}
	return nil
}

// EditRequest updates an issue's citizen-owned fields.
type EditRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
}

// Edit updates title and description while the issue is still open,
// reporter only. No status change.
func (s *LifecycleService) Edit(ctx context.Context, issueID, userID string, req EditRequest) (*models.Issue, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid edit payload")
	}
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.ReporterID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the reporter may edit an issue")
	}
	if err := s.issueRepo.UpdateOwned(ctx, issueID, userID, req.Title, req.Description, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "issue is not open")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to edit issue")
	}
	return s.loadIssue(ctx, issueID)
}

func (s *LifecycleService) loadIssue(ctx context.Context, issueID string) (*models.Issue, error) {
	issue, err := s.issueRepo.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "issue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}
	return issue, nil
}

// requireDepartment gates authority actions to the issue's department.
// Admins carry no department and pass unconditionally.
func requireDepartment(issue *models.Issue, deptID *string) error {
	if deptID == nil {
		return nil
	}
	if issue.DepartmentID == nil || *issue.DepartmentID != *deptID {
		return appErrors.Clone(appErrors.ErrForbidden, "issue belongs to another department")
	}
	return nil
}
