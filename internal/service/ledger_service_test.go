package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	"github.com/brightpath/agency-api/internal/repository"
)

type ledgerRepoStub struct {
	stats      *models.AdminStats
	parentRows []repository.ParentLedgerRow
	tutorRows  []repository.TutorLedgerRow
	start, end time.Time
}

func (s *ledgerRepoStub) Stats(ctx context.Context, start, end time.Time) (*models.AdminStats, error) {
	s.start, s.end = start, end
	return s.stats, nil
}

func (s *ledgerRepoStub) ParentRows(ctx context.Context, start, end time.Time) ([]repository.ParentLedgerRow, error) {
	return s.parentRows, nil
}

func (s *ledgerRepoStub) TutorRows(ctx context.Context, start, end time.Time) ([]repository.TutorLedgerRow, error) {
	return s.tutorRows, nil
}

func newLedgerService(repo *ledgerRepoStub, settings *settingsStub) *LedgerService {
	if settings == nil {
		settings = &settingsStub{values: map[string]int{}}
	}
	return NewLedgerService(repo, settings, time.October, zap.NewNop()).WithClock(testClock)
}

func TestFiscalYearForUsesClock(t *testing.T) {
	svc := newLedgerService(&ledgerRepoStub{}, nil)

	fy := svc.FiscalYearFor(context.Background(), 0)
	// January 2026 falls in the year that started October 2025.
	assert.Equal(t, time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC), fy.Start)
}

func TestFiscalYearForExplicitStartYear(t *testing.T) {
	svc := newLedgerService(&ledgerRepoStub{}, nil)

	fy := svc.FiscalYearFor(context.Background(), 2024)
	assert.Equal(t, time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC), fy.Start)
	assert.Equal(t, "FY2024/25", fy.Label())
}

func TestFiscalYearForSettingOverridesStartMonth(t *testing.T) {
	settings := &settingsStub{values: map[string]int{models.SettingFiscalYearStartMonth: int(time.April)}}
	svc := newLedgerService(&ledgerRepoStub{}, settings)

	fy := svc.FiscalYearFor(context.Background(), 0)
	assert.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), fy.Start)
}

func TestAdminStatsStampsFiscalYear(t *testing.T) {
	repo := &ledgerRepoStub{stats: &models.AdminStats{OutstandingInvoices: 3}}
	svc := newLedgerService(repo, nil)

	stats, err := svc.AdminStats(context.Background(), 2025)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.OutstandingInvoices)
	assert.Equal(t, time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC), stats.FiscalYear.Start)
	assert.Equal(t, stats.FiscalYear.Start, repo.start)
	assert.Equal(t, stats.FiscalYear.End, repo.end)
}

func parentRow(studentID, name, invoiceID string, amount int64, status models.InvoiceStatus) repository.ParentLedgerRow {
	return repository.ParentLedgerRow{
		StudentID:   studentID,
		StudentName: name,
		LedgerInvoice: models.LedgerInvoice{
			ID:     invoiceID,
			Amount: decimal.NewFromInt(amount),
			Status: status,
		},
	}
}

func TestGroupedLedgerParentTotals(t *testing.T) {
	repo := &ledgerRepoStub{
		parentRows: []repository.ParentLedgerRow{
			parentRow("student-1", "Alice Smith", "inv-1", 750, models.InvoiceStatusPaid),
			parentRow("student-1", "Alice Smith", "inv-2", 750, models.InvoiceStatusSent),
			parentRow("student-1", "Alice Smith", "inv-3", 100, models.InvoiceStatusCancelled),
			parentRow("student-2", "Bob Jones", "inv-4", 500, models.InvoiceStatusPaid),
		},
		tutorRows: []repository.TutorLedgerRow{
			{TutorID: "tutor-1", TutorName: "Jane Doe", LedgerInvoice: models.LedgerInvoice{
				ID: "ti-1", Amount: decimal.NewFromInt(300), Status: models.InvoiceStatusPaid,
			}},
			{TutorID: "tutor-1", TutorName: "Jane Doe", LedgerInvoice: models.LedgerInvoice{
				ID: "ti-2", Amount: decimal.NewFromInt(200), Status: models.InvoiceStatusApproved,
			}},
		},
	}
	svc := newLedgerService(repo, nil)

	ledger, err := svc.GroupedLedger(context.Background(), 2025)
	require.NoError(t, err)

	require.Len(t, ledger.Parents, 2)
	alice := ledger.Parents[0]
	assert.Equal(t, "Alice Smith", alice.StudentName)
	assert.Len(t, alice.Invoices, 3)
	// Cancelled invoices are listed but excluded from the booked total.
	assert.True(t, alice.Booked.Equal(decimal.NewFromInt(1500)))
	assert.True(t, alice.Paid.Equal(decimal.NewFromInt(750)))
	assert.True(t, ledger.Parents[1].Booked.Equal(decimal.NewFromInt(500)))

	require.Len(t, ledger.Tutors, 1)
	jane := ledger.Tutors[0]
	assert.True(t, jane.Booked.Equal(decimal.NewFromInt(500)))
	assert.True(t, jane.Paid.Equal(decimal.NewFromInt(300)))
}

func TestExportDatasetFlattensBothSides(t *testing.T) {
	repo := &ledgerRepoStub{
		parentRows: []repository.ParentLedgerRow{
			parentRow("student-1", "Alice Smith", "inv-1", 750, models.InvoiceStatusPaid),
		},
		tutorRows: []repository.TutorLedgerRow{
			{TutorID: "tutor-1", TutorName: "Jane Doe", LedgerInvoice: models.LedgerInvoice{
				ID: "ti-1", Amount: decimal.NewFromInt(300), Status: models.InvoiceStatusPaid,
			}},
		},
	}
	svc := newLedgerService(repo, nil)

	dataset, title, err := svc.ExportDataset(context.Background(), 2025)
	require.NoError(t, err)

	assert.Equal(t, "Ledger FY2025/26", title)
	require.Len(t, dataset.Rows, 2)
	assert.Equal(t, "revenue", dataset.Rows[0]["Side"])
	assert.Equal(t, "Alice Smith", dataset.Rows[0]["Party"])
	assert.Equal(t, "expenditure", dataset.Rows[1]["Side"])
	assert.Equal(t, "300.00", dataset.Rows[1]["Amount"])
}
