package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
	"github.com/civicdesk/civicdesk-api/pkg/export"
)

type performanceSource interface {
	Performance(ctx context.Context) ([]models.DepartmentPerformance, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportService renders department performance reports for download.
type ExportService struct {
	source performanceSource
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(source performanceSource, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{source: source, csv: csv, pdf: pdf, logger: logger}
}

// ExportOutput carries rendered bytes plus response metadata.
type ExportOutput struct {
	Data        []byte
	ContentType string
	Filename    string
}

// DepartmentPerformance renders the performance report in the requested
// format.
func (s *ExportService) DepartmentPerformance(ctx context.Context, format ExportFormat) (*ExportOutput, error) {
	rows, err := s.source.Performance(ctx)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Department", "SLA Hours", "Open", "In Progress", "Escalated", "Completed", "Declined", "Avg Priority"},
		Rows:    make([]map[string]string, len(rows)),
	}
	for i, row := range rows {
		dataset.Rows[i] = map[string]string{
			"Department":   row.Name,
			"SLA Hours":    strconv.Itoa(row.SLAHours),
			"Open":         strconv.Itoa(row.OpenCount),
			"In Progress":  strconv.Itoa(row.InProgressCount),
			"Escalated":    strconv.Itoa(row.EscalatedCount),
			"Completed":    strconv.Itoa(row.CompletedCount),
			"Declined":     strconv.Itoa(row.DeclinedCount),
			"Avg Priority": fmt.Sprintf("%.1f", row.AvgPriority),
		}
	}

	switch format {
	case FormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportOutput{Data: data, ContentType: "text/csv", Filename: "department_performance.csv"}, nil
	case FormatPDF:
		data, err := s.pdf.Render(dataset, "Department Performance")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportOutput{Data: data, ContentType: "application/pdf", Filename: "department_performance.pdf"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
