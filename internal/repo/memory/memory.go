package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hamed0406/jenkinsprobe/internal/domain"
	"github.com/hamed0406/jenkinsprobe/internal/repo"
)

var _ repo.ReportStore = (*Store)(nil)

const defaultMaxReports = 256

// Store holds reports in memory. Once full, the oldest report is evicted.
type Store struct {
	mu      sync.RWMutex
	max     int
	order   []domain.ScanID // insertion order, oldest first
	reports map[domain.ScanID]*domain.Report
}

func New(maxReports int) *Store {
	if maxReports < 1 {
		maxReports = defaultMaxReports
	}
	return &Store{
		max:     maxReports,
		reports: make(map[domain.ScanID]*domain.Report),
	}
}

// Save assigns an ID when r has none.
func (m *Store) Save(ctx context.Context, r *domain.Report) error {
	if r == nil {
		return fmt.Errorf("save report: nil report")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = domain.ScanID(uuid.NewString())
	}
	if _, exists := m.reports[r.ID]; !exists {
		m.order = append(m.order, r.ID)
	}
	cp := *r
	m.reports[r.ID] = &cp

	for len(m.order) > m.max {
		delete(m.reports, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.ScanID) (*domain.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Store) List(ctx context.Context) ([]domain.ReportSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ReportSummary, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}
