package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-exports/core"
)

var marketingColumns = []string{
	"nr_conta",
	"nome_completo",
	"email",
	"documento_cpf_cnpj",
	"dt_nascimento",
	"idade",
	"tipo_cliente",
	"profissao",
	"estado_civil",
	"estado",
	"cidade",
	"dt_vinculo",
	"dt_vinculo_escritorio",
	"perfil_investidor",
	"faixa_cliente",
	"score_cliente",
	"dt_primeiro_investimento",
	"pl_conta_corrente",
	"pl_total",
	"pl_fundos",
	"pl_renda_fixa",
	"pl_renda_variavel",
	"pl_previdencia",
	"pl_derivativos",
	"rendimento_anual",
	"pl_declarado",
	"genero",
	"suitability",
	"termo_consentimento",
	"cartao",
	"saldo_banking",
	"prog_relacionamento",
	"seguro_vida",
	"seguro_conta_cartao",
	"seguro_prestamista",
	"portabilidade",
	"value_open_finance",
	"limite_padrao_pre_aprovado",
	"limite_lastreado_pre_aprovado",
	"limite_padrao_contratado",
	"limite_lastreado_contratado",
	"pais_residencia",
	"ja_aportou",
	"percentual_fundos",
	"percentual_renda_fixa",
	"percentual_renda_variavel",
	"percentual_previdencia",
	"percentual_derivativos",
}

// MarketingBuilder produces the accounts marketing export: a zip archive
// wrapping a single CSV, one row per account, with the banking and
// open-finance datasets joined in.
type MarketingBuilder struct {
	source  Source
	workDir string
	logger  core.Logger
	now     func() time.Time
}

type MarketingOption func(*MarketingBuilder)

func WithMarketingLogger(logger core.Logger) MarketingOption {
	return func(b *MarketingBuilder) {
		b.logger = logger
	}
}

func WithMarketingClock(now func() time.Time) MarketingOption {
	return func(b *MarketingBuilder) {
		b.now = now
	}
}

func NewMarketingBuilder(source Source, workDir string, options ...MarketingOption) (*MarketingBuilder, error) {
	if source == nil {
		return nil, fmt.Errorf("report: marketing builder requires a source")
	}
	builder := &MarketingBuilder{
		source:  source,
		workDir: workDir,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(builder)
	}
	if builder.workDir == "" {
		builder.workDir = os.TempDir()
	}
	builder.logger = glog.Ensure(builder.logger)
	return builder, nil
}

func (b *MarketingBuilder) Type() core.ReportType {
	return core.ReportTypeAccountsMarketing
}

// Build writes the CSV to a working path derived from the request id, wraps
// it in a zip archive, removes the intermediate CSV, and returns the archive
// path. Concurrent builds never collide because each request owns its path.
func (b *MarketingBuilder) Build(ctx context.Context, req core.ExportRequest) (string, error) {
	csvPath := filepath.Join(b.workDir, fmt.Sprintf("accounts_marketing_%s.csv", req.ID))

	count, err := b.writeCSV(ctx, csvPath)
	if err != nil {
		_ = os.Remove(csvPath)
		return "", err
	}

	zipPath, err := compressFile(csvPath)
	if err != nil {
		_ = os.Remove(csvPath)
		return "", fmt.Errorf("report: compress artifact: %w", err)
	}
	if err := os.Remove(csvPath); err != nil {
		_ = os.Remove(zipPath)
		return "", fmt.Errorf("report: remove intermediate csv: %w", err)
	}

	b.logger.Info("marketing artifact built",
		"request_id", req.ID,
		"reference_date", req.ReferenceDate,
		"rows", count,
		"artifact", filepath.Base(zipPath),
	)
	return zipPath, nil
}

func (b *MarketingBuilder) writeCSV(ctx context.Context, path string) (int, error) {
	banking, err := b.source.BankingByAccount(ctx)
	if err != nil {
		return 0, fmt.Errorf("report: load banking dataset: %w", err)
	}
	openFinance, err := b.source.OpenFinanceByAccount(ctx)
	if err != nil {
		return 0, fmt.Errorf("report: load open finance dataset: %w", err)
	}
	cursor, err := b.source.Accounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("report: open accounts cursor: %w", err)
	}
	defer func() { _ = cursor.Close() }()

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("report: create csv: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	if err := writer.Write(marketingColumns); err != nil {
		return 0, fmt.Errorf("report: write csv header: %w", err)
	}

	now := b.now()
	count := 0
	for {
		account, ok, err := cursor.Next(ctx)
		if err != nil {
			return count, fmt.Errorf("report: stream accounts: %w", err)
		}
		if !ok {
			break
		}
		row := b.marketingRow(account, banking[account.AccountNumber], openFinance[account.AccountNumber], now)
		if err := writer.Write(row); err != nil {
			return count, fmt.Errorf("report: write csv row: %w", err)
		}
		count++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return count, fmt.Errorf("report: flush csv: %w", err)
	}
	if err := file.Close(); err != nil {
		return count, fmt.Errorf("report: close csv: %w", err)
	}
	return count, nil
}

func (b *MarketingBuilder) marketingRow(
	account Account,
	banking BankingReport,
	openFinance []OpenFinanceEntry,
	now time.Time,
) []string {
	tier, score := clientTier(account.TotalAssets)

	openFinanceTotal := 0.0
	for _, entry := range openFinance {
		if entry.Assets != nil {
			openFinanceTotal += *entry.Assets
		}
	}

	return []string{
		account.AccountNumber,
		account.FullName,
		account.Email,
		account.Document,
		account.BirthDateText,
		ageInYears(account.BirthDate, now),
		account.ClientType,
		account.Profession,
		account.MaritalStatus,
		account.State,
		account.City,
		formatDisplayDate(account.JoinedAt),
		formatDisplayDate(account.OfficeJoinedAt),
		account.InvestorProfile,
		tier,
		fmt.Sprintf("%d", score),
		formatDisplayDate(account.FirstInvestmentAt),
		formatNumber(account.CheckingBalance),
		formatNumber(account.TotalAssets),
		formatNumber(account.FundsAssets),
		formatNumber(account.FixedIncomeAssets),
		formatNumber(account.VariableIncomeAssets),
		formatNumber(account.PensionAssets),
		formatNumber(account.DerivativesAssets),
		formatNumber(account.AnnualIncome),
		formatNumber(account.DeclaredAssets),
		account.Gender,
		account.Suitability,
		banking.ConsentTerm,
		banking.Card,
		banking.BankingBalance,
		banking.LoyaltyProgram,
		banking.LifeInsurance,
		banking.CardAccountInsurance,
		banking.LoanInsurance,
		banking.Portability,
		formatFloat(openFinanceTotal),
		banking.PreApprovedStandardLimit,
		banking.PreApprovedSecuredLimit,
		banking.ContractedStandardLimit,
		banking.ContractedSecuredLimit,
		residencyCountry(account.State),
		hasInvested(account.FirstInvestmentAt),
		formatFloat(safePercent(account.FundsAssets, account.TotalAssets)),
		formatFloat(safePercent(account.FixedIncomeAssets, account.TotalAssets)),
		formatFloat(safePercent(account.VariableIncomeAssets, account.TotalAssets)),
		formatFloat(safePercent(account.PensionAssets, account.TotalAssets)),
		formatFloat(safePercent(account.DerivativesAssets, account.TotalAssets)),
	}
}

var _ core.ReportBuilder = (*MarketingBuilder)(nil)
