package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	"github.com/brightpath/agency-api/internal/repository"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
	"github.com/brightpath/agency-api/pkg/export"
)

type ledgerRepository interface {
	Stats(ctx context.Context, start, end time.Time) (*models.AdminStats, error)
	ParentRows(ctx context.Context, start, end time.Time) ([]repository.ParentLedgerRow, error)
	TutorRows(ctx context.Context, start, end time.Time) ([]repository.TutorLedgerRow, error)
}

// LedgerService builds the fiscal-year financial reports. The fiscal year
// start month is a stored setting with a configured default.
type LedgerService struct {
	repo       ledgerRepository
	settings   settingsReader
	startMonth time.Month
	logger     *zap.Logger
	clock      func() time.Time
}

// NewLedgerService constructs LedgerService. startMonth is the default fiscal
// year start used when no setting overrides it.
func NewLedgerService(repo ledgerRepository, settings settingsReader, startMonth time.Month, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if startMonth < time.January || startMonth > time.December {
		startMonth = time.October
	}
	return &LedgerService{
		repo:       repo,
		settings:   settings,
		startMonth: startMonth,
		logger:     logger,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock, for tests.
func (s *LedgerService) WithClock(clock func() time.Time) *LedgerService {
	s.clock = clock
	return s
}

// FiscalYearFor resolves the reporting window: the year beginning in
// startYear when given, otherwise the year containing today.
func (s *LedgerService) FiscalYearFor(ctx context.Context, startYear int) models.FiscalYear {
	month := s.startMonth
	if s.settings != nil {
		if v := s.settings.IntValue(ctx, models.SettingFiscalYearStartMonth, int(month)); v >= 1 && v <= 12 {
			month = time.Month(v)
		}
	}
	if startYear > 0 {
		return FiscalYearStarting(startYear, month)
	}
	return FiscalYearAt(s.clock(), month)
}

// AdminStats returns the fiscal-year financial summary.
func (s *LedgerService) AdminStats(ctx context.Context, startYear int) (*models.AdminStats, error) {
	fy := s.FiscalYearFor(ctx, startYear)
	stats, err := s.repo.Stats(ctx, fy.Start, fy.End)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to aggregate stats")
	}
	stats.FiscalYear = fy
	return stats, nil
}

// GroupedLedger returns all invoices of the fiscal year grouped by parent and
// by tutor, with per-group booked and paid totals.
func (s *LedgerService) GroupedLedger(ctx context.Context, startYear int) (*models.GroupedLedger, error) {
	fy := s.FiscalYearFor(ctx, startYear)

	parentRows, err := s.repo.ParentRows(ctx, fy.Start, fy.End)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load parent ledger")
	}
	tutorRows, err := s.repo.TutorRows(ctx, fy.Start, fy.End)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load tutor ledger")
	}

	ledger := &models.GroupedLedger{
		FiscalYear: fy,
		Parents:    []models.ParentLedgerGroup{},
		Tutors:     []models.TutorLedgerGroup{},
	}

	for _, row := range parentRows {
		n := len(ledger.Parents)
		if n == 0 || ledger.Parents[n-1].StudentID != row.StudentID {
			ledger.Parents = append(ledger.Parents, models.ParentLedgerGroup{
				StudentID:   row.StudentID,
				StudentName: row.StudentName,
			})
			n++
		}
		group := &ledger.Parents[n-1]
		group.Invoices = append(group.Invoices, row.LedgerInvoice)
		if row.Status != models.InvoiceStatusCancelled {
			group.Booked = group.Booked.Add(row.Amount)
		}
		if row.Status == models.InvoiceStatusPaid {
			group.Paid = group.Paid.Add(row.Amount)
		}
	}

	for _, row := range tutorRows {
		n := len(ledger.Tutors)
		if n == 0 || ledger.Tutors[n-1].TutorID != row.TutorID {
			ledger.Tutors = append(ledger.Tutors, models.TutorLedgerGroup{
				TutorID:   row.TutorID,
				TutorName: row.TutorName,
			})
			n++
		}
		group := &ledger.Tutors[n-1]
		group.Invoices = append(group.Invoices, row.LedgerInvoice)
		group.Booked = group.Booked.Add(row.Amount)
		if row.Status == models.InvoiceStatusPaid {
			group.Paid = group.Paid.Add(row.Amount)
		}
	}
	return ledger, nil
}

// ExportDataset flattens the grouped ledger into a table for CSV download.
func (s *LedgerService) ExportDataset(ctx context.Context, startYear int) (export.Dataset, string, error) {
	ledger, err := s.GroupedLedger(ctx, startYear)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Side", "Party", "Invoice", "Kind", "Amount", "Status", "Created", "Rejection Reason"}
	var rows []map[string]string
	appendRow := func(side, party string, inv models.LedgerInvoice) {
		reason := ""
		if inv.RejectionReason != nil {
			reason = *inv.RejectionReason
		}
		rows = append(rows, map[string]string{
			"Side":             side,
			"Party":            party,
			"Invoice":          inv.InvoiceNumber,
			"Kind":             string(inv.Kind),
			"Amount":           inv.Amount.StringFixed(2),
			"Status":           string(inv.Status),
			"Created":          inv.CreatedAt.Format("2006-01-02"),
			"Rejection Reason": reason,
		})
	}
	for _, group := range ledger.Parents {
		for _, inv := range group.Invoices {
			appendRow("revenue", group.StudentName, inv)
		}
	}
	for _, group := range ledger.Tutors {
		for _, inv := range group.Invoices {
			appendRow("expenditure", group.TutorName, inv)
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}, "Ledger " + ledger.FiscalYear.Label(), nil
}
