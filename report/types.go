// Package report builds export artifacts from the account datasets. The
// marketing report streams the primary account collection, joins the banking
// and open-finance datasets in memory, and serializes one CSV row per
// account before compressing the result.
package report

import (
	"context"
	"time"
)

// Account is one row of the primary collection. Nullable numeric and date
// columns are pointers so missing data stays distinguishable from zero.
type Account struct {
	AccountNumber string
	FullName      string
	Email         string
	Document      string
	BirthDateText string
	BirthDate     *time.Time
	ClientType    string
	Profession    string
	MaritalStatus string
	State         string
	City          string

	JoinedAt          *time.Time
	OfficeJoinedAt    *time.Time
	InvestorProfile   string
	FirstInvestmentAt *time.Time

	CheckingBalance      *float64
	TotalAssets          *float64
	FundsAssets          *float64
	FixedIncomeAssets    *float64
	VariableIncomeAssets *float64
	PensionAssets        *float64
	DerivativesAssets    *float64
	AnnualIncome         *float64
	DeclaredAssets       *float64

	Gender      string
	Suitability string
}

// BankingReport is the one-to-one auxiliary dataset, joined by account
// number. Values are passed through as-is; a missing report yields empty
// columns, never an error.
type BankingReport struct {
	AccountNumber string

	ConsentTerm    string
	Card           string
	BankingBalance string
	LoyaltyProgram string

	LifeInsurance        string
	CardAccountInsurance string
	LoanInsurance        string
	Portability          string

	PreApprovedStandardLimit string
	PreApprovedSecuredLimit  string
	ContractedStandardLimit  string
	ContractedSecuredLimit   string
}

// OpenFinanceEntry is the one-to-many auxiliary dataset; an account may hold
// positions at several external institutions.
type OpenFinanceEntry struct {
	AccountNumber string
	Institution   string
	Assets        *float64
}

// AccountCursor streams the primary collection. The collection is unbounded,
// so callers must consume it incrementally and never buffer it whole.
type AccountCursor interface {
	Next(ctx context.Context) (Account, bool, error)
	Close() error
}

// Source provides the three datasets the marketing report is built from.
// The auxiliary datasets are bounded and loaded eagerly; only the account
// collection streams.
type Source interface {
	Accounts(ctx context.Context) (AccountCursor, error)
	BankingByAccount(ctx context.Context) (map[string]BankingReport, error)
	OpenFinanceByAccount(ctx context.Context) (map[string][]OpenFinanceEntry, error)
}
