package chargemodule

import "github.com/wrls/billing/internal/domain/billing"

// Wire shapes of the charge module v2 WRLS API. The API reports the
// financial year by its starting calendar year; the engine keys
// everything by year ending, so responses add one on the way in.

type billRunResponse struct {
	BillRun billRunBody `json:"billRun"`
}

type billRunBody struct {
	ID              string        `json:"id"`
	BillRunNumber   int           `json:"billRunNumber"`
	Status          string        `json:"status"`
	NetTotal        int64         `json:"netTotal"`
	InvoiceValue    int64         `json:"invoiceValue"`
	CreditNoteValue int64         `json:"creditNoteValue"`
	Invoices        []invoiceBody `json:"invoices"`
}

func (b billRunBody) toSummary() *billing.BillRunSummary {
	summary := &billing.BillRunSummary{
		BillRunID:       b.ID,
		Status:          b.Status,
		NetTotal:        b.NetTotal,
		InvoiceValue:    b.InvoiceValue,
		CreditNoteValue: b.CreditNoteValue,
		Invoices:        make([]billing.LedgerInvoice, len(b.Invoices)),
	}
	for i, inv := range b.Invoices {
		summary.Invoices[i] = billing.LedgerInvoice{
			ID:                  inv.ID,
			CustomerReference:   inv.CustomerReference,
			FinancialYearEnding: inv.FinancialYear + 1,
			NetTotal:            inv.NetTotal,
			GrossTotal:          inv.GrossTotal,
			DeMinimis:           inv.DeminimisInvoice,
		}
	}
	return summary
}

type invoiceBody struct {
	ID                string        `json:"id"`
	CustomerReference string        `json:"customerReference"`
	FinancialYear     int           `json:"financialYear"`
	NetTotal          int64         `json:"netTotal"`
	GrossTotal        int64         `json:"grossTotal"`
	DeminimisInvoice  bool          `json:"deminimisInvoice"`
	Licences          []licenceBody `json:"licences"`
}

// flatten collects the transactions of every licence under the invoice,
// stamping each with its licence number and the invoice's de minimis
// flag.
func (inv invoiceBody) flatten() []billing.LedgerTransaction {
	var out []billing.LedgerTransaction
	for _, lic := range inv.Licences {
		for _, tx := range lic.Transactions {
			out = append(out, billing.LedgerTransaction{
				ID:            tx.ID,
				ClientID:      tx.ClientID,
				ChargeValue:   tx.ChargeValue,
				Credit:        tx.Credit,
				MinimumCharge: tx.MinimumCharge,
				DeMinimis:     inv.DeminimisInvoice,
				LicenceNumber: lic.LicenceNumber,
				CalculationFactors: billing.CalculationFactors{
					Source:     tx.Calculation.SourceFactor,
					Season:     tx.Calculation.SeasonFactor,
					Loss:       tx.Calculation.LossFactor,
					SUC:        tx.Calculation.SUCFactor,
					Abatement:  tx.Calculation.AbatementAdjustment,
					S127:       tx.Calculation.S127Agreement,
					EIUC:       tx.Calculation.EIUCFactor,
					EIUCSource: tx.Calculation.EIUCSourceFactor,
				},
			})
		}
	}
	return out
}

type invoiceResponse struct {
	Invoice invoiceBody `json:"invoice"`
}

type licenceBody struct {
	LicenceNumber string            `json:"licenceNumber"`
	Transactions  []transactionBody `json:"transactions"`
}

type transactionBody struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"clientId"`
	ChargeValue   int64           `json:"chargeValue"`
	Credit        bool            `json:"credit"`
	MinimumCharge bool            `json:"minimumCharge"`
	Calculation   calculationBody `json:"calculation"`
}

type calculationBody struct {
	SourceFactor        float64 `json:"sourceFactor"`
	SeasonFactor        float64 `json:"seasonFactor"`
	LossFactor          float64 `json:"lossFactor"`
	SUCFactor           float64 `json:"sucFactor"`
	AbatementAdjustment float64 `json:"abatementAdjustment"`
	S127Agreement       float64 `json:"s127Agreement"`
	EIUCFactor          float64 `json:"eiucFactor"`
	EIUCSourceFactor    float64 `json:"eiucSourceFactor"`
}

type transactionResponse struct {
	Transaction struct {
		ID       string `json:"id"`
		ClientID string `json:"clientId"`
	} `json:"transaction"`
}

type transactionRequest struct {
	ClientID             string   `json:"clientId"`
	LicenceNumber        string   `json:"licenceNumber"`
	Region               string   `json:"region"`
	CustomerReference    string   `json:"customerReference"`
	FinancialYear        int      `json:"financialYear"`
	PeriodStart          string   `json:"periodStart"`
	PeriodEnd            string   `json:"periodEnd"`
	Credit               bool     `json:"credit"`
	BillableDays         int      `json:"billableDays"`
	AuthorisedDays       int      `json:"authorisedDays"`
	Volume               string   `json:"volume"`
	Source               string   `json:"source"`
	Season               string   `json:"season"`
	Loss                 string   `json:"loss"`
	LineDescription      string   `json:"lineDescription"`
	CompensationCharge   bool     `json:"compensationCharge"`
	TwoPartTariff        bool     `json:"twoPartTariff"`
	NewLicence           bool     `json:"newLicence"`
	Section126Factor     *float64 `json:"section126Factor,omitempty"`
	Section127Agreement  bool     `json:"section127Agreement"`
	Section130Agreement  bool     `json:"section130Agreement"`
}

func transactionRequestBody(tx *billing.LedgerTransactionRequest) transactionRequest {
	return transactionRequest{
		ClientID:            tx.ClientID,
		LicenceNumber:       tx.LicenceNumber,
		Region:              tx.Region,
		CustomerReference:   tx.InvoiceAccountNumber,
		FinancialYear:       tx.FinancialYearEnding - 1,
		PeriodStart:         tx.PeriodStart,
		PeriodEnd:           tx.PeriodEnd,
		Credit:              tx.Credit,
		BillableDays:        tx.BillableDays,
		AuthorisedDays:      tx.AuthorisedDays,
		Volume:              tx.Volume,
		Source:              tx.Source,
		Season:              tx.Season,
		Loss:                tx.Loss,
		LineDescription:     tx.Description,
		CompensationCharge:  tx.CompensationCharge,
		TwoPartTariff:       tx.TwoPartTariff,
		NewLicence:          tx.NewLicence,
		Section126Factor:    tx.Section126Factor,
		Section127Agreement: tx.Section127Agreement,
		Section130Agreement: tx.Section130Agreement,
	}
}
