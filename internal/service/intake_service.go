package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/civicdesk/civicdesk-api/internal/models"
	"github.com/civicdesk/civicdesk-api/internal/oracle"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

type intakeIssueRepository interface {
	FindNearby(ctx context.Context, lat, lng, window float64, category models.IssueCategory) ([]models.IssueCandidate, error)
	CreateWithIntake(ctx context.Context, issue *models.Issue, award int) error
	MergeReport(ctx context.Context, report *models.IssueReport, award int, now time.Time) (*models.Issue, error)
}

type departmentResolver interface {
	GetByName(ctx context.Context, name string) (*models.Department, error)
}

type duplicateOracle interface {
	Judge(ctx context.Context, title, description string, candidates []models.IssueCandidate) (*oracle.Judgement, error)
}

// Department names used by category routing.
const (
	DeptRoads       = "Roads & Infrastructure"
	DeptWater       = "Water & Sanitation"
	DeptElectricity = "Electricity & Power"
)

// departmentForCategory routes a submission to its handling department.
// Unknown or unmapped categories fall through to roads.
func departmentForCategory(category models.IssueCategory) string {
	switch category {
	case models.CategoryWater, models.CategorySanitation:
		return DeptWater
	case models.CategoryElectricity:
		return DeptElectricity
	default:
		return DeptRoads
	}
}

// IntakeService coordinates submission intake: geographic candidate lookup,
// oracle consultation, and the merge-or-create decision.
type IntakeService struct {
	issueRepo intakeIssueRepository
	deptRepo  departmentResolver
	oracle    duplicateOracle
	geoWindow float64
	award     int
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewIntakeService constructs the intake service. A nil oracle disables
// duplicate detection entirely (every submission creates a new issue).
func NewIntakeService(issueRepo intakeIssueRepository, deptRepo departmentResolver, dupOracle duplicateOracle, geoWindow float64, award int, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *IntakeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if geoWindow <= 0 {
		geoWindow = 0.001
	}
	if award <= 0 {
		award = 10
	}
	return &IntakeService{
		issueRepo: issueRepo,
		deptRepo:  deptRepo,
		oracle:    dupOracle,
		geoWindow: geoWindow,
		award:     award,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// SubmitRequest is a citizen's issue submission payload.
type SubmitRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"required"`
	Category    string  `json:"category" validate:"required"`
	Severity    int     `json:"severity" validate:"required,min=1,max=5"`
	Lat         float64 `json:"lat" validate:"min=-90,max=90"`
	Lng         float64 `json:"lng" validate:"min=-180,max=180"`
	ImageURL    *string `json:"image_url"`
}

// SubmitResult reports which intake branch was taken.
type SubmitResult struct {
	Created bool          `json:"created"`
	Merged  bool          `json:"merged"`
	Issue   *models.Issue `json:"issue"`
}

// Submit runs the intake pipeline for one citizen report.
func (s *IntakeService) Submit(ctx context.Context, reporterID string, req SubmitRequest) (*SubmitResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission")
	}
	category := models.IssueCategory(req.Category)
	if !category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
	}

	now := time.Now().UTC()

	if target := s.findDuplicate(ctx, req, category); target != "" {
		report := &models.IssueReport{
			IssueID:     target,
			ReporterID:  reporterID,
			Description: req.Description,
			ImageURL:    req.ImageURL,
		}
		issue, err := s.issueRepo.MergeReport(ctx, report, s.award, now)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to merge report")
		}
		s.metrics.RecordIntake("merged")
		s.logger.Info("submission merged into existing issue",
			zap.String("issue_id", issue.ID), zap.Int("report_count", issue.ReportCount))
		return &SubmitResult{Merged: true, Issue: issue}, nil
	}

	issue := &models.Issue{
		Title:         req.Title,
		Description:   req.Description,
		Category:      category,
		Severity:      req.Severity,
		Lat:           req.Lat,
		Lng:           req.Lng,
		Status:        models.StatusOpen,
		ReportCount:   1,
		UpvoteCount:   0,
		PriorityScore: PriorityScore(1, req.Severity, now, 0, now),
		ReporterID:    reporterID,
		ImageURL:      req.ImageURL,
		CreatedAt:     now,
	}

	deptName := departmentForCategory(category)
	dept, err := s.deptRepo.GetByName(ctx, deptName)
	if err != nil {
		// Routing is best effort: a missing department leaves the issue
		// unassigned rather than rejecting the citizen's report.
		s.logger.Warn("department lookup failed, issue left unassigned",
			zap.String("department", deptName), zap.Error(err))
	} else {
		issue.DepartmentID = &dept.ID
	}

	if err := s.issueRepo.CreateWithIntake(ctx, issue, s.award); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create issue")
	}
	s.metrics.RecordIntake("created")
	s.logger.Info("new issue created",
		zap.String("issue_id", issue.ID), zap.String("category", string(category)),
		zap.Int("priority_score", issue.PriorityScore))
	return &SubmitResult{Created: true, Issue: issue}, nil
}

// findDuplicate returns the id of a matched existing issue, or empty when
// the submission should create a new one. Oracle failures are fail-open.
func (s *IntakeService) findDuplicate(ctx context.Context, req SubmitRequest, category models.IssueCategory) string {
	if s.oracle == nil {
		return ""
	}
	candidates, err := s.issueRepo.FindNearby(ctx, req.Lat, req.Lng, s.geoWindow, category)
	if err != nil {
		s.logger.Warn("nearby candidate lookup failed, treating as no duplicate", zap.Error(err))
		return ""
	}
	if len(candidates) == 0 {
		return ""
	}
	start := time.Now()
	verdict, err := s.oracle.Judge(ctx, req.Title, req.Description, candidates)
	if err != nil {
		s.metrics.RecordOracleCall("error", time.Since(start))
		s.logger.Warn("duplicate oracle unavailable, treating as no duplicate", zap.Error(err))
		return ""
	}
	if !verdict.IsDuplicate || verdict.MatchedID == "" {
		s.metrics.RecordOracleCall("distinct", time.Since(start))
		return ""
	}
	s.metrics.RecordOracleCall("duplicate", time.Since(start))
	return verdict.MatchedID
}
