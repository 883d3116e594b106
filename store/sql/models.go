package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type exportRequestRecord struct {
	bun.BaseModel `bun:"table:export_requests,alias:er"`

	ID               string `bun:"id,pk"`
	SenderID         string `bun:"sender_id,notnull"`
	SenderName       string `bun:"sender_name"`
	SenderAPIKey     string `bun:"sender_api_key,notnull"`
	SenderWebhookURL string `bun:"sender_webhook_url,notnull"`

	ReportType    string `bun:"report_type,notnull"`
	Status        string `bun:"status,notnull"`
	ReferenceDate string `bun:"reference_date,notnull"`

	UploadURL     string `bun:"upload_url"`
	SignedURL     string `bun:"signed_url"`
	ErrorAPI      string `bun:"error_api"`
	InternalError string `bun:"internal_error"`
	Swept         bool   `bun:"swept,notnull,default:false"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type senderRecord struct {
	bun.BaseModel `bun:"table:webhook_senders,alias:ws"`

	ID            string    `bun:"id,pk"`
	Name          string    `bun:"name,notnull"`
	APIKey        string    `bun:"api_key,notnull,unique"`
	WebhookURL    string    `bun:"webhook_url,notnull,unique"`
	WebhookSecret string    `bun:"webhook_secret,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type accountRecord struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID            string     `bun:"id,pk"`
	AccountNumber string     `bun:"nr_conta,notnull"`
	FullName      string     `bun:"nome_completo"`
	Email         string     `bun:"email"`
	Document      string     `bun:"documento_cpf_cnpj"`
	BirthDateText string     `bun:"dt_nascimento"`
	BirthDate     *time.Time `bun:"dt_nascimento_date,nullzero"`
	ClientType    string     `bun:"tipo_cliente"`
	Profession    string     `bun:"profissao"`
	MaritalStatus string     `bun:"estado_civil"`
	State         string     `bun:"endereco_estado"`
	City          string     `bun:"endereco_cidade"`

	JoinedAt          *time.Time `bun:"dt_vinculo,nullzero"`
	OfficeJoinedAt    *time.Time `bun:"dt_vinculo_escritorio,nullzero"`
	InvestorProfile   string     `bun:"perfil_investidor"`
	FirstInvestmentAt *time.Time `bun:"dt_primeiro_investimento,nullzero"`

	CheckingBalance      *float64 `bun:"pl_conta_corrente,nullzero"`
	TotalAssets          *float64 `bun:"pl_total,nullzero"`
	FundsAssets          *float64 `bun:"pl_fundos,nullzero"`
	FixedIncomeAssets    *float64 `bun:"pl_renda_fixa,nullzero"`
	VariableIncomeAssets *float64 `bun:"pl_renda_variavel,nullzero"`
	PensionAssets        *float64 `bun:"pl_previdencia,nullzero"`
	DerivativesAssets    *float64 `bun:"pl_derivativos,nullzero"`
	AnnualIncome         *float64 `bun:"vl_rendimento_anual,nullzero"`
	DeclaredAssets       *float64 `bun:"vl_pl_declarado,nullzero"`

	Gender      string `bun:"genero"`
	Suitability string `bun:"suitability"`
}

type bankingReportRecord struct {
	bun.BaseModel `bun:"table:banking_reports,alias:br"`

	ID            string `bun:"id,pk"`
	AccountNumber string `bun:"nr_conta,notnull"`

	ConsentTerm    string `bun:"termo_consentimento"`
	Card           string `bun:"cartao"`
	BankingBalance string `bun:"saldo_banking"`
	LoyaltyProgram string `bun:"prog_relacionamento"`

	LifeInsurance        string `bun:"seguro_vida"`
	CardAccountInsurance string `bun:"seguro_conta_cartao"`
	LoanInsurance        string `bun:"seguro_prestamista"`
	Portability          string `bun:"portabilidade"`

	PreApprovedStandardLimit string `bun:"pap_clean_cartao"`
	PreApprovedSecuredLimit  string `bun:"pap_lastreado_cartao"`
	ContractedStandardLimit  string `bun:"c_clean_cartao"`
	ContractedSecuredLimit   string `bun:"c_lastreado_cartao"`
}

type openFinanceRecord struct {
	bun.BaseModel `bun:"table:open_finance,alias:of"`

	ID            string   `bun:"id,pk"`
	AccountNumber string   `bun:"nr_conta,notnull"`
	Institution   string   `bun:"instituicao"`
	Assets        *float64 `bun:"vl_pl,nullzero"`
}
