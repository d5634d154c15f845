package repo

import (
	"context"
	"errors"

	"github.com/hamed0406/jenkinsprobe/internal/domain"
)

var ErrNotFound = errors.New("report not found")

// ReportStore keeps finished scan reports for the lifetime of the process.
type ReportStore interface {
	Save(ctx context.Context, r *domain.Report) error
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id domain.ScanID) (*domain.Report, error)
	// List returns summaries, newest first.
	List(ctx context.Context) ([]domain.ReportSummary, error)
}
