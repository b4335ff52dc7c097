package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

// escalationNote is written to the status log of every swept issue.
const escalationNote = "Auto-escalated: SLA exceeded"

type sweeperIssueRepository interface {
	EscalationCandidates(ctx context.Context, departmentID string, cutoff time.Time) ([]models.Issue, error)
	Escalate(ctx context.Context, issueID, note string, now time.Time) (bool, error)
	RecalcPriorities(ctx context.Context, now time.Time) (int, error)
}

type sweeperDepartmentRepository interface {
	List(ctx context.Context) ([]models.Department, error)
}

type adminLister interface {
	AdminIDs(ctx context.Context) ([]string, error)
}

// SweeperService escalates issues that breach their department SLA window
// and hosts the batch priority recalculation. It runs from tickers started
// by Run, and both passes can also be invoked directly by admin endpoints.
type SweeperService struct {
	issueRepo sweeperIssueRepository
	deptRepo  sweeperDepartmentRepository
	users     adminLister
	notifier  userNotifier
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewSweeperService constructs the sweeper.
func NewSweeperService(issueRepo sweeperIssueRepository, deptRepo sweeperDepartmentRepository, users adminLister, notifier userNotifier, metrics *MetricsService, logger *zap.Logger) *SweeperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweeperService{
		issueRepo: issueRepo,
		deptRepo:  deptRepo,
		users:     users,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
	}
}

// Sweep escalates every SLA-breaching issue across all departments and
// returns the number escalated. An issue that left a sweepable state since
// candidate selection is skipped: the authority's concurrent decision wins.
func (s *SweeperService) Sweep(ctx context.Context) (int, error) {
	departments, err := s.deptRepo.List(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}

	var adminIDs []string
	if s.users != nil {
		adminIDs, err = s.users.AdminIDs(ctx)
		if err != nil {
			s.logger.Warn("failed to list admins, sweep continues without notifications", zap.Error(err))
		}
	}

	now := time.Now().UTC()
	start := time.Now()
	escalated := 0
	for _, dept := range departments {
		if dept.SLAHours <= 0 {
			continue
		}
		cutoff := now.Add(-time.Duration(dept.SLAHours) * time.Hour)
		candidates, err := s.issueRepo.EscalationCandidates(ctx, dept.ID, cutoff)
		if err != nil {
			s.logger.Error("candidate selection failed",
				zap.String("department_id", dept.ID), zap.Error(err))
			continue
		}
		for _, issue := range candidates {
			done, err := s.issueRepo.Escalate(ctx, issue.ID, escalationNote, now)
			if err != nil {
				s.logger.Error("escalation failed",
					zap.String("issue_id", issue.ID), zap.Error(err))
				continue
			}
			if !done {
				continue
			}
			escalated++
			s.logger.Info("issue escalated",
				zap.String("issue_id", issue.ID),
				zap.String("department", dept.Name),
				zap.Int("sla_hours", dept.SLAHours))
			if s.notifier != nil {
				msg := fmt.Sprintf("Issue %q exceeded the %s SLA of %dh and was escalated", issue.Title, dept.Name, dept.SLAHours)
				for _, adminID := range adminIDs {
					s.notifier.Notify(adminID, msg, models.NotificationIssueEscalated, issue.ID)
				}
			}
		}
	}
	s.metrics.RecordEscalations(escalated)
	s.metrics.ObserveSweep(time.Since(start))
	return escalated, nil
}

// Recalculate rewrites the priority score of every non-terminal issue and
// returns the number touched.
func (s *SweeperService) Recalculate(ctx context.Context) (int, error) {
	count, err := s.issueRepo.RecalcPriorities(ctx, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recalculate priorities")
	}
	s.logger.Info("priority recalculation finished", zap.Int("issues", count))
	return count, nil
}

// Run drives the sweep and recalculation tickers until ctx is cancelled.
// Blocking; callers launch it in a goroutine.
func (s *SweeperService) Run(ctx context.Context, sweepEvery, recalcEvery time.Duration) {
	if sweepEvery <= 0 {
		sweepEvery = time.Hour
	}
	if recalcEvery <= 0 {
		recalcEvery = 6 * time.Hour
	}
	sweepTicker := time.NewTicker(sweepEvery)
	recalcTicker := time.NewTicker(recalcEvery)
	defer sweepTicker.Stop()
	defer recalcTicker.Stop()

	s.logger.Info("sweeper started",
		zap.Duration("sweep_interval", sweepEvery),
		zap.Duration("recalc_interval", recalcEvery))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-sweepTicker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", zap.Error(err))
			}
		case <-recalcTicker.C:
			if _, err := s.Recalculate(ctx); err != nil {
				s.logger.Error("priority recalculation failed", zap.Error(err))
			}
		}
	}
}
