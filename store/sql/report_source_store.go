package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-exports/report"
)

// ReportSourceStore feeds the marketing report builder. Accounts stream
// through a SQL cursor because the collection is unbounded; the two
// auxiliary datasets load eagerly and are indexed by account number.
type ReportSourceStore struct {
	db *bun.DB
}

func NewReportSourceStore(db *bun.DB) (*ReportSourceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ReportSourceStore{db: db}, nil
}

func (s *ReportSourceStore) Accounts(ctx context.Context) (report.AccountCursor, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: report source store is not configured")
	}
	rows, err := s.db.NewSelect().
		Model((*accountRecord)(nil)).
		OrderExpr("a.id ASC").
		Rows(ctx)
	if err != nil {
		return nil, err
	}
	return &accountRows{db: s.db, rows: rows}, nil
}

func (s *ReportSourceStore) BankingByAccount(ctx context.Context) (map[string]report.BankingReport, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: report source store is not configured")
	}
	records := []*bankingReportRecord{}
	if err := s.db.NewSelect().Model(&records).Scan(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]report.BankingReport, len(records))
	for _, record := range records {
		out[record.AccountNumber] = record.toDomain()
	}
	return out, nil
}

func (s *ReportSourceStore) OpenFinanceByAccount(ctx context.Context) (map[string][]report.OpenFinanceEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: report source store is not configured")
	}
	records := []*openFinanceRecord{}
	if err := s.db.NewSelect().Model(&records).Scan(ctx); err != nil {
		return nil, err
	}
	out := make(map[string][]report.OpenFinanceEntry, len(records))
	for _, record := range records {
		out[record.AccountNumber] = append(out[record.AccountNumber], record.toDomain())
	}
	return out, nil
}

type accountRows struct {
	db   *bun.DB
	rows *sql.Rows
}

func (c *accountRows) Next(ctx context.Context) (report.Account, bool, error) {
	if c == nil || c.rows == nil {
		return report.Account{}, false, fmt.Errorf("sqlstore: account cursor is closed")
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return report.Account{}, false, err
		}
		return report.Account{}, false, nil
	}
	record := &accountRecord{}
	if err := c.db.ScanRow(ctx, c.rows, record); err != nil {
		return report.Account{}, false, err
	}
	return record.toDomain(), true, nil
}

func (c *accountRows) Close() error {
	if c == nil || c.rows == nil {
		return nil
	}
	return c.rows.Close()
}

var _ report.Source = (*ReportSourceStore)(nil)
