package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
)

// BatchModel is the persistence model for a billing batch.
type BatchModel struct {
	BaseModel
	RegionID        string `gorm:"type:varchar(36);not null;index"`
	RegionCode      string `gorm:"type:varchar(1);not null"`
	RegionName      string `gorm:"type:varchar(64)"`
	BatchType       string `gorm:"type:varchar(20);not null"`
	Season          string `gorm:"type:varchar(20);not null"`
	FromYearEnding  int    `gorm:"not null"`
	ToYearEnding    int    `gorm:"not null"`
	Status          string `gorm:"type:varchar(20);not null;index"`
	ErrorCode       string `gorm:"type:varchar(64)"`
	ExternalID      string `gorm:"type:varchar(64);index"`
	NetTotal        int64  `gorm:"not null;default:0"`
	InvoiceValue    int64  `gorm:"not null;default:0"`
	CreditNoteValue int64  `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "billing_batches"
}

// ToDomain converts the persistence model to a domain Batch
func (m *BatchModel) ToDomain() *billing.Batch {
	return &billing.Batch{
		BaseEntity: m.BaseModel.ToDomain(),
		Region: billing.Region{
			ID:   m.RegionID,
			Code: m.RegionCode,
			Name: m.RegionName,
		},
		Type:            billing.BatchType(m.BatchType),
		Season:          billing.Season(m.Season),
		StartYear:       valueobject.NewFinancialYear(m.FromYearEnding),
		EndYear:         valueobject.NewFinancialYear(m.ToYearEnding),
		Status:          billing.BatchStatus(m.Status),
		ErrorCode:       billing.BatchErrorCode(m.ErrorCode),
		ExternalID:      m.ExternalID,
		NetTotal:        m.NetTotal,
		InvoiceValue:    m.InvoiceValue,
		CreditNoteValue: m.CreditNoteValue,
	}
}

// BatchModelFromDomain creates a persistence model from a domain Batch
func BatchModelFromDomain(b *billing.Batch) *BatchModel {
	m := &BatchModel{
		RegionID:        b.Region.ID,
		RegionCode:      b.Region.Code,
		RegionName:      b.Region.Name,
		BatchType:       string(b.Type),
		Season:          string(b.Season),
		FromYearEnding:  b.StartYear.YearEnding(),
		ToYearEnding:    b.EndYear.YearEnding(),
		Status:          string(b.Status),
		ErrorCode:       string(b.ErrorCode),
		ExternalID:      b.ExternalID,
		NetTotal:        b.NetTotal,
		InvoiceValue:    b.InvoiceValue,
		CreditNoteValue: b.CreditNoteValue,
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m
}

// LicenceModel is the read model for abstraction licences. The licence
// registry owns these rows; the engine only reads them.
type LicenceModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key"`
	LicenceNumber     string     `gorm:"type:varchar(32);not null;uniqueIndex"`
	StartDate         time.Time  `gorm:"not null"`
	ExpiredDate       *time.Time ``
	RegionID          string     `gorm:"type:varchar(36);not null;index"`
	RegionCode        string     `gorm:"type:varchar(1);not null"`
	RegionName        string     `gorm:"type:varchar(64)"`
	IsWaterUndertaker bool       `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (LicenceModel) TableName() string {
	return "licences"
}

// ToDomain converts the persistence model to a domain Licence
func (m *LicenceModel) ToDomain() billing.Licence {
	return billing.Licence{
		ID:            m.ID,
		LicenceNumber: m.LicenceNumber,
		Validity:      rangeFromBounds(m.StartDate, m.ExpiredDate),
		Region: billing.Region{
			ID:   m.RegionID,
			Code: m.RegionCode,
			Name: m.RegionName,
		},
		IsWaterUndertaker: m.IsWaterUndertaker,
	}
}

// ChargeVersionModel is the read model for charge versions.
type ChargeVersionModel struct {
	ID                     uuid.UUID  `gorm:"type:uuid;primary_key"`
	LicenceID              uuid.UUID  `gorm:"type:uuid;not null;index"`
	StartDate              time.Time  `gorm:"not null"`
	EndDate                *time.Time ``
	IncludeInSupplementary bool       `gorm:"not null;default:false"`
	IsTwoPartTariff        bool       `gorm:"not null;default:false"`

	Licence  LicenceModel         `gorm:"foreignKey:LicenceID"`
	Elements []ChargeElementModel `gorm:"foreignKey:ChargeVersionID"`
}

// TableName returns the table name for GORM
func (ChargeVersionModel) TableName() string {
	return "charge_versions"
}

// ToDomain converts the persistence model to a domain ChargeVersion
func (m *ChargeVersionModel) ToDomain() *billing.ChargeVersion {
	cv := &billing.ChargeVersion{
		ID:                     m.ID,
		Licence:                m.Licence.ToDomain(),
		Validity:               rangeFromBounds(m.StartDate, m.EndDate),
		IncludeInSupplementary: m.IncludeInSupplementary,
		IsTwoPartTariff:        m.IsTwoPartTariff,
		Elements:               make([]billing.ChargeElement, len(m.Elements)),
	}
	for i := range m.Elements {
		cv.Elements[i] = m.Elements[i].ToDomain()
	}
	return cv
}

// ChargeElementModel is the read model for charge elements.
type ChargeElementModel struct {
	ID                    uuid.UUID        `gorm:"type:uuid;primary_key"`
	ChargeVersionID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	AbstractionStartDay   int              `gorm:"not null"`
	AbstractionStartMonth int              `gorm:"not null"`
	AbstractionEndDay     int              `gorm:"not null"`
	AbstractionEndMonth   int              `gorm:"not null"`
	AuthorisedQuantity    decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	BillableQuantity      *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Source                string           `gorm:"type:varchar(20);not null"`
	Season                string           `gorm:"type:varchar(20);not null"`
	Loss                  string           `gorm:"type:varchar(20);not null"`
	Description           string           `gorm:"type:text"`
	PurposeUse            string           `gorm:"type:varchar(128)"`
	TimeLimitedStart      *time.Time       ``
	TimeLimitedEnd        *time.Time       ``
}

// TableName returns the table name for GORM
func (ChargeElementModel) TableName() string {
	return "charge_elements"
}

// ToDomain converts the persistence model to a domain ChargeElement
func (m *ChargeElementModel) ToDomain() billing.ChargeElement {
	element := billing.ChargeElement{
		ID: m.ID,
		AbstractionPeriod: valueobject.MustAbstractionPeriod(
			m.AbstractionStartDay, time.Month(m.AbstractionStartMonth),
			m.AbstractionEndDay, time.Month(m.AbstractionEndMonth),
		),
		AuthorisedQuantity: m.AuthorisedQuantity,
		BillableQuantity:   m.BillableQuantity,
		Source:             billing.Source(m.Source),
		Season:             billing.ChargeSeason(m.Season),
		Loss:               billing.Loss(m.Loss),
		Description:        m.Description,
		PurposeUse:         m.PurposeUse,
	}
	if m.TimeLimitedStart != nil {
		limited := rangeFromBounds(*m.TimeLimitedStart, m.TimeLimitedEnd)
		element.TimeLimited = &limited
	}
	return element
}

// LicenceAgreementModel is the read model for charging agreements.
type LicenceAgreementModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key"`
	LicenceID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Code      string     `gorm:"type:varchar(8);not null"`
	StartDate time.Time  `gorm:"not null"`
	EndDate   *time.Time ``
}

// TableName returns the table name for GORM
func (LicenceAgreementModel) TableName() string {
	return "licence_agreements"
}

// ToDomain converts the persistence model to a domain Agreement
func (m *LicenceAgreementModel) ToDomain() billing.Agreement {
	return billing.Agreement{
		Code:     m.Code,
		Validity: rangeFromBounds(m.StartDate, m.EndDate),
	}
}

// ChargeVersionYearModel is the persistence model for one unit of work in
// a batch: a charge version billed for one financial year.
type ChargeVersionYearModel struct {
	BaseModel
	BatchID             uuid.UUID `gorm:"type:uuid;not null;index:idx_cvy_batch_status,priority:1"`
	ChargeVersionID     uuid.UUID `gorm:"type:uuid;not null;index"`
	FinancialYearEnding int       `gorm:"not null"`
	TransactionType     string    `gorm:"type:varchar(20);not null"`
	IsSummer            bool      `gorm:"not null;default:false"`
	Status              string    `gorm:"type:varchar(20);not null;index:idx_cvy_batch_status,priority:2"`
}

// TableName returns the table name for GORM
func (ChargeVersionYearModel) TableName() string {
	return "billing_batch_charge_version_years"
}

// ToDomain converts the persistence model to a domain ChargeVersionYear
func (m *ChargeVersionYearModel) ToDomain() *billing.ChargeVersionYear {
	return &billing.ChargeVersionYear{
		BaseEntity:      m.BaseModel.ToDomain(),
		BatchID:         m.BatchID,
		ChargeVersionID: m.ChargeVersionID,
		FinancialYear:   valueobject.NewFinancialYear(m.FinancialYearEnding),
		TransactionType: billing.TransactionType(m.TransactionType),
		IsSummer:        m.IsSummer,
		Status:          billing.ChargeVersionYearStatus(m.Status),
	}
}

// ChargeVersionYearModelFromDomain creates a persistence model from a
// domain ChargeVersionYear
func ChargeVersionYearModelFromDomain(y *billing.ChargeVersionYear) *ChargeVersionYearModel {
	m := &ChargeVersionYearModel{
		BatchID:             y.BatchID,
		ChargeVersionID:     y.ChargeVersionID,
		FinancialYearEnding: y.FinancialYear.YearEnding(),
		TransactionType:     string(y.TransactionType),
		IsSummer:            y.IsSummer,
		Status:              string(y.Status),
	}
	m.FromDomainBaseEntity(y.BaseEntity)
	return m
}

// InvoiceModel is the persistence model for a batch invoice.
type InvoiceModel struct {
	BaseModel
	BatchID              uuid.UUID `gorm:"type:uuid;not null;index:idx_invoice_batch_account,priority:1"`
	InvoiceAccountID     string    `gorm:"type:varchar(36)"`
	InvoiceAccountNumber string    `gorm:"type:varchar(16);not null;index:idx_invoice_batch_account,priority:2"`
	FinancialYearEnding  int       `gorm:"not null;index:idx_invoice_batch_account,priority:3"`
	AddressName          string    `gorm:"type:varchar(128)"`
	AddressLine1         string    `gorm:"type:varchar(128)"`
	AddressLine2         string    `gorm:"type:varchar(128)"`
	AddressLine3         string    `gorm:"type:varchar(128)"`
	AddressTown          string    `gorm:"type:varchar(64)"`
	AddressPostcode      string    `gorm:"type:varchar(16)"`
	NetTotal             int64     `gorm:"not null;default:0"`
	InvoiceValue         int64     `gorm:"not null;default:0"`
	CreditNoteValue      int64     `gorm:"not null;default:0"`
	IsDeMinimis          bool      `gorm:"not null;default:false"`

	InvoiceLicences []InvoiceLicenceModel `gorm:"foreignKey:InvoiceID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "billing_invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	invoice := &billing.Invoice{
		BaseEntity:           m.BaseModel.ToDomain(),
		BatchID:              m.BatchID,
		InvoiceAccountID:     m.InvoiceAccountID,
		InvoiceAccountNumber: m.InvoiceAccountNumber,
		FinancialYearEnding:  m.FinancialYearEnding,
		Address: billing.InvoiceAddress{
			Name:         m.AddressName,
			AddressLine1: m.AddressLine1,
			AddressLine2: m.AddressLine2,
			AddressLine3: m.AddressLine3,
			Town:         m.AddressTown,
			Postcode:     m.AddressPostcode,
		},
		NetTotal:        m.NetTotal,
		InvoiceValue:    m.InvoiceValue,
		CreditNoteValue: m.CreditNoteValue,
		IsDeMinimis:     m.IsDeMinimis,
	}
	for i := range m.InvoiceLicences {
		invoice.InvoiceLicences = append(invoice.InvoiceLicences, m.InvoiceLicences[i].ToDomain())
	}
	return invoice
}

// InvoiceModelFromDomain creates a persistence model from a domain
// Invoice. Invoice licences are persisted separately.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		BatchID:              inv.BatchID,
		InvoiceAccountID:     inv.InvoiceAccountID,
		InvoiceAccountNumber: inv.InvoiceAccountNumber,
		FinancialYearEnding:  inv.FinancialYearEnding,
		AddressName:          inv.Address.Name,
		AddressLine1:         inv.Address.AddressLine1,
		AddressLine2:         inv.Address.AddressLine2,
		AddressLine3:         inv.Address.AddressLine3,
		AddressTown:          inv.Address.Town,
		AddressPostcode:      inv.Address.Postcode,
		NetTotal:             inv.NetTotal,
		InvoiceValue:         inv.InvoiceValue,
		CreditNoteValue:      inv.CreditNoteValue,
		IsDeMinimis:          inv.IsDeMinimis,
	}
	m.FromDomainBaseEntity(inv.BaseEntity)
	return m
}

// InvoiceLicenceModel links an invoice to a licence.
type InvoiceLicenceModel struct {
	BaseModel
	InvoiceID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_invoice_licence,priority:1"`
	LicenceID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_invoice_licence,priority:2;index"`
	LicenceNumber string    `gorm:"type:varchar(32);not null"`

	Transactions []TransactionModel `gorm:"foreignKey:InvoiceLicenceID"`
}

// TableName returns the table name for GORM
func (InvoiceLicenceModel) TableName() string {
	return "billing_invoice_licences"
}

// ToDomain converts the persistence model to a domain InvoiceLicence
func (m *InvoiceLicenceModel) ToDomain() *billing.InvoiceLicence {
	il := &billing.InvoiceLicence{
		BaseEntity:    m.BaseModel.ToDomain(),
		InvoiceID:     m.InvoiceID,
		LicenceID:     m.LicenceID,
		LicenceNumber: m.LicenceNumber,
	}
	for i := range m.Transactions {
		il.Transactions = append(il.Transactions, m.Transactions[i].ToDomain())
	}
	return il
}

// InvoiceLicenceModelFromDomain creates a persistence model from a domain
// InvoiceLicence. Transactions are persisted separately.
func InvoiceLicenceModelFromDomain(il *billing.InvoiceLicence) *InvoiceLicenceModel {
	m := &InvoiceLicenceModel{
		InvoiceID:     il.InvoiceID,
		LicenceID:     il.LicenceID,
		LicenceNumber: il.LicenceNumber,
	}
	m.FromDomainBaseEntity(il.BaseEntity)
	return m
}

// TransactionModel is the persistence model for a billing transaction.
// The charge element attributes are snapshotted onto the row so the
// fingerprint of a historical transaction never shifts when the source
// charge version is edited later.
type TransactionModel struct {
	BaseModel
	InvoiceLicenceID             uuid.UUID  `gorm:"type:uuid;not null;index"`
	ChargePeriodStart            *time.Time ``
	ChargePeriodEnd              *time.Time ``
	IsCredit                     bool       `gorm:"not null;default:false"`
	Value                        int64      `gorm:"not null;default:0"`
	BillableDays                 int        `gorm:"not null;default:0"`
	AuthorisedDays               int        `gorm:"not null;default:0"`
	Volume                       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Description                  string     `gorm:"type:text"`
	IsCompensationCharge         bool       `gorm:"not null;default:false"`
	IsTwoPartTariffSupplementary bool       `gorm:"not null;default:false"`
	IsNewLicence                 bool       `gorm:"not null;default:false"`
	AgreementCodes               string     `gorm:"type:varchar(64)"`
	ChargeElementID              uuid.UUID  `gorm:"type:uuid;index"`
	AbstractionStartDay          int        `gorm:"not null;default:1"`
	AbstractionStartMonth        int        `gorm:"not null;default:1"`
	AbstractionEndDay            int        `gorm:"not null;default:31"`
	AbstractionEndMonth          int        `gorm:"not null;default:12"`
	Source                       string     `gorm:"type:varchar(20)"`
	Season                       string     `gorm:"type:varchar(20)"`
	Loss                         string     `gorm:"type:varchar(20)"`
	ElementDescription           string     `gorm:"type:text"`
	PurposeUse                   string     `gorm:"type:varchar(128)"`
	SourceTransactionID          *uuid.UUID `gorm:"type:uuid"`
	ChargeVersionYearID          *uuid.UUID `gorm:"type:uuid;index"`
	Status                       string     `gorm:"type:varchar(20);not null;index"`
	ExternalID                   string     `gorm:"type:varchar(64);index"`
	Factors                      []byte     `gorm:"type:jsonb"`
	IsDeMinimis                  bool       `gorm:"not null;default:false"`
	IsMinimumCharge              bool       `gorm:"not null;default:false"`
	TwoPartTariffReview          bool       `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (TransactionModel) TableName() string {
	return "billing_transactions"
}

// ToDomain converts the persistence model to a domain Transaction
func (m *TransactionModel) ToDomain() *billing.Transaction {
	tx := &billing.Transaction{
		BaseEntity:                   m.BaseModel.ToDomain(),
		IsCredit:                     m.IsCredit,
		Value:                        m.Value,
		BillableDays:                 m.BillableDays,
		AuthorisedDays:               m.AuthorisedDays,
		Volume:                       m.Volume,
		Description:                  m.Description,
		IsCompensationCharge:         m.IsCompensationCharge,
		IsTwoPartTariffSupplementary: m.IsTwoPartTariffSupplementary,
		IsNewLicence:                 m.IsNewLicence,
		ChargeElement: billing.ChargeElement{
			ID: m.ChargeElementID,
			AbstractionPeriod: valueobject.MustAbstractionPeriod(
				m.AbstractionStartDay, time.Month(m.AbstractionStartMonth),
				m.AbstractionEndDay, time.Month(m.AbstractionEndMonth),
			),
			Source:      billing.Source(m.Source),
			Season:      billing.ChargeSeason(m.Season),
			Loss:        billing.Loss(m.Loss),
			Description: m.ElementDescription,
			PurposeUse:  m.PurposeUse,
		},
		SourceTransactionID: m.SourceTransactionID,
		ChargeVersionYearID: m.ChargeVersionYearID,
		Status:              billing.TransactionStatus(m.Status),
		ExternalID:          m.ExternalID,
		IsDeMinimis:         m.IsDeMinimis,
		IsMinimumCharge:     m.IsMinimumCharge,
		TwoPartTariffReview: m.TwoPartTariffReview,
	}
	if m.ChargePeriodStart != nil {
		tx.ChargePeriod = rangeFromBounds(*m.ChargePeriodStart, m.ChargePeriodEnd)
	}
	if m.AgreementCodes != "" {
		for _, code := range strings.Split(m.AgreementCodes, ",") {
			tx.Agreements = append(tx.Agreements, billing.Agreement{Code: code})
		}
	}
	if len(m.Factors) > 0 {
		_ = json.Unmarshal(m.Factors, &tx.Factors)
	}
	return tx
}

// TransactionModelFromDomain creates a persistence model from a domain
// Transaction
func TransactionModelFromDomain(invoiceLicenceID uuid.UUID, tx *billing.Transaction) *TransactionModel {
	m := &TransactionModel{
		InvoiceLicenceID:             invoiceLicenceID,
		IsCredit:                     tx.IsCredit,
		Value:                        tx.Value,
		BillableDays:                 tx.BillableDays,
		AuthorisedDays:               tx.AuthorisedDays,
		Volume:                       tx.Volume,
		Description:                  tx.Description,
		IsCompensationCharge:         tx.IsCompensationCharge,
		IsTwoPartTariffSupplementary: tx.IsTwoPartTariffSupplementary,
		IsNewLicence:                 tx.IsNewLicence,
		AgreementCodes:               strings.Join(tx.AgreementCodes(), ","),
		ChargeElementID:              tx.ChargeElement.ID,
		AbstractionStartDay:          tx.ChargeElement.AbstractionPeriod.StartDay(),
		AbstractionStartMonth:        int(tx.ChargeElement.AbstractionPeriod.StartMonth()),
		AbstractionEndDay:            tx.ChargeElement.AbstractionPeriod.EndDay(),
		AbstractionEndMonth:          int(tx.ChargeElement.AbstractionPeriod.EndMonth()),
		Source:                       string(tx.ChargeElement.Source),
		Season:                       string(tx.ChargeElement.Season),
		Loss:                         string(tx.ChargeElement.Loss),
		ElementDescription:           tx.ChargeElement.Description,
		PurposeUse:                   tx.ChargeElement.PurposeUse,
		SourceTransactionID:          tx.SourceTransactionID,
		ChargeVersionYearID:          tx.ChargeVersionYearID,
		Status:                       string(tx.Status),
		ExternalID:                   tx.ExternalID,
		IsDeMinimis:                  tx.IsDeMinimis,
		IsMinimumCharge:              tx.IsMinimumCharge,
		TwoPartTariffReview:          tx.TwoPartTariffReview,
	}
	m.FromDomainBaseEntity(tx.BaseEntity)
	if !tx.ChargePeriod.Start().IsZero() {
		start := tx.ChargePeriod.Start()
		m.ChargePeriodStart = &start
		m.ChargePeriodEnd = tx.ChargePeriod.End()
	}
	if factors, err := json.Marshal(tx.Factors); err == nil {
		m.Factors = factors
	}
	return m
}

// BillingVolumeModel is the persistence model for two-part tariff volumes.
type BillingVolumeModel struct {
	BaseModel
	ChargeElementID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_volume_element_year,priority:1"`
	FinancialYearEnding int             `gorm:"not null;index:idx_volume_element_year,priority:2"`
	IsSummer            bool            `gorm:"not null;default:false"`
	CalculatedVolume    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Volume              decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	IsApproved          bool            `gorm:"not null;default:false"`
	ErroredOnMatching   bool            `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (BillingVolumeModel) TableName() string {
	return "billing_volumes"
}

// ToDomain converts the persistence model to a domain BillingVolume
func (m *BillingVolumeModel) ToDomain() *billing.BillingVolume {
	return &billing.BillingVolume{
		BaseEntity:        m.BaseModel.ToDomain(),
		ChargeElementID:   m.ChargeElementID,
		FinancialYear:     valueobject.NewFinancialYear(m.FinancialYearEnding),
		IsSummer:          m.IsSummer,
		CalculatedVolume:  m.CalculatedVolume,
		Volume:            m.Volume,
		IsApproved:        m.IsApproved,
		ErroredOnMatching: m.ErroredOnMatching,
	}
}

// BillingVolumeModelFromDomain creates a persistence model from a domain
// BillingVolume
func BillingVolumeModelFromDomain(v *billing.BillingVolume) *BillingVolumeModel {
	m := &BillingVolumeModel{
		ChargeElementID:     v.ChargeElementID,
		FinancialYearEnding: v.FinancialYear.YearEnding(),
		IsSummer:            v.IsSummer,
		CalculatedVolume:    v.CalculatedVolume,
		Volume:              v.Volume,
		IsApproved:          v.IsApproved,
		ErroredOnMatching:   v.ErroredOnMatching,
	}
	m.FromDomainBaseEntity(v.BaseEntity)
	return m
}

// rangeFromBounds builds a date range from persisted start/end columns.
func rangeFromBounds(start time.Time, end *time.Time) valueobject.DateRange {
	if end == nil {
		return valueobject.NewOpenDateRange(start)
	}
	return valueobject.MustDateRange(start, *end)
}
