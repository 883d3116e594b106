package sqlstore

import (
	"time"

	"github.com/goliatone/go-exports/core"
	"github.com/goliatone/go-exports/report"
)

func newExportRequestRecord(in core.CreateExportRequestInput, id string, now time.Time) *exportRequestRecord {
	return &exportRequestRecord{
		ID:               id,
		SenderID:         in.Sender.ID,
		SenderName:       in.Sender.Name,
		SenderAPIKey:     in.Sender.APIKey,
		SenderWebhookURL: in.Sender.WebhookURL,
		ReportType:       string(in.Type),
		Status:           string(core.RequestStatusPending),
		ReferenceDate:    in.ReferenceDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (r *exportRequestRecord) toDomain() core.ExportRequest {
	if r == nil {
		return core.ExportRequest{}
	}
	return core.ExportRequest{
		ID: r.ID,
		Sender: core.SenderRef{
			ID:         r.SenderID,
			Name:       r.SenderName,
			APIKey:     r.SenderAPIKey,
			WebhookURL: r.SenderWebhookURL,
		},
		Type:          core.ReportType(r.ReportType),
		Status:        core.RequestStatus(r.Status),
		ReferenceDate: r.ReferenceDate,
		UploadURL:     r.UploadURL,
		SignedURL:     r.SignedURL,
		ErrorAPI:      r.ErrorAPI,
		InternalError: r.InternalError,
		Swept:         r.Swept,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r *senderRecord) toDomain() core.Sender {
	if r == nil {
		return core.Sender{}
	}
	return core.Sender{
		ID:            r.ID,
		Name:          r.Name,
		APIKey:        r.APIKey,
		WebhookURL:    r.WebhookURL,
		WebhookSecret: r.WebhookSecret,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r *accountRecord) toDomain() report.Account {
	if r == nil {
		return report.Account{}
	}
	return report.Account{
		AccountNumber:        r.AccountNumber,
		FullName:             r.FullName,
		Email:                r.Email,
		Document:             r.Document,
		BirthDateText:        r.BirthDateText,
		BirthDate:            r.BirthDate,
		ClientType:           r.ClientType,
		Profession:           r.Profession,
		MaritalStatus:        r.MaritalStatus,
		State:                r.State,
		City:                 r.City,
		JoinedAt:             r.JoinedAt,
		OfficeJoinedAt:       r.OfficeJoinedAt,
		InvestorProfile:      r.InvestorProfile,
		FirstInvestmentAt:    r.FirstInvestmentAt,
		CheckingBalance:      r.CheckingBalance,
		TotalAssets:          r.TotalAssets,
		FundsAssets:          r.FundsAssets,
		FixedIncomeAssets:    r.FixedIncomeAssets,
		VariableIncomeAssets: r.VariableIncomeAssets,
		PensionAssets:        r.PensionAssets,
		DerivativesAssets:    r.DerivativesAssets,
		AnnualIncome:         r.AnnualIncome,
		DeclaredAssets:       r.DeclaredAssets,
		Gender:               r.Gender,
		Suitability:          r.Suitability,
	}
}

func (r *bankingReportRecord) toDomain() report.BankingReport {
	if r == nil {
		return report.BankingReport{}
	}
	return report.BankingReport{
		AccountNumber:            r.AccountNumber,
		ConsentTerm:              r.ConsentTerm,
		Card:                     r.Card,
		BankingBalance:           r.BankingBalance,
		LoyaltyProgram:           r.LoyaltyProgram,
		LifeInsurance:            r.LifeInsurance,
		CardAccountInsurance:     r.CardAccountInsurance,
		LoanInsurance:            r.LoanInsurance,
		Portability:              r.Portability,
		PreApprovedStandardLimit: r.PreApprovedStandardLimit,
		PreApprovedSecuredLimit:  r.PreApprovedSecuredLimit,
		ContractedStandardLimit:  r.ContractedStandardLimit,
		ContractedSecuredLimit:   r.ContractedSecuredLimit,
	}
}

func (r *openFinanceRecord) toDomain() report.OpenFinanceEntry {
	if r == nil {
		return report.OpenFinanceEntry{}
	}
	return report.OpenFinanceEntry{
		AccountNumber: r.AccountNumber,
		Institution:   r.Institution,
		Assets:        r.Assets,
	}
}
