package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ChargingFacts is the canonical record of everything that determines what
// a transaction bills. Two transactions with equal facts charge the same
// money for the same thing, regardless of status, identifiers or which
// batch created them.
type ChargingFacts struct {
	LicenceNumber        string
	Region               string
	InvoiceAccountNumber string
	ChargePeriodStart    string
	ChargePeriodEnd      string
	IsCredit             bool
	BillableDays         int
	AuthorisedDays       int
	Volume               string
	Source               string
	Season               string
	Loss                 string
	Description          string
	IsCompensationCharge bool
	IsTwoPartTariff      bool
	IsNewLicence         bool
	AbstractionPeriod    string
	AgreementCodes       []string
}

// FactsFor extracts the charging facts of a transaction billed under a
// licence to an invoice account.
func FactsFor(licence Licence, accountNumber string, t *Transaction) ChargingFacts {
	codes := t.AgreementCodes()
	sorted := make([]string, len(codes))
	copy(sorted, codes)
	sort.Strings(sorted)

	return ChargingFacts{
		LicenceNumber:        licence.LicenceNumber,
		Region:               licence.Region.Code,
		InvoiceAccountNumber: accountNumber,
		ChargePeriodStart:    t.ChargePeriod.Start().Format("2006-01-02"),
		ChargePeriodEnd:      formatEnd(t),
		IsCredit:             t.IsCredit,
		BillableDays:         t.BillableDays,
		AuthorisedDays:       t.AuthorisedDays,
		Volume:               t.Volume.String(),
		Source:               string(t.ChargeElement.Source),
		Season:               string(t.ChargeElement.Season),
		Loss:                 string(t.ChargeElement.Loss),
		Description:          t.Description,
		IsCompensationCharge: t.IsCompensationCharge,
		IsTwoPartTariff:      t.IsTwoPartTariffSupplementary,
		IsNewLicence:         t.IsNewLicence,
		AbstractionPeriod:    t.ChargeElement.AbstractionPeriod.String(),
		AgreementCodes:       sorted,
	}
}

func formatEnd(t *Transaction) string {
	end := t.ChargePeriod.End()
	if end == nil {
		return ""
	}
	return end.Format("2006-01-02")
}

// Fingerprint returns a stable hex digest of the facts. Field order is
// fixed and agreement codes are sorted, so the digest is insensitive to
// the order agreements were loaded in.
func (f ChargingFacts) Fingerprint() string {
	parts := []string{
		f.LicenceNumber,
		f.Region,
		f.InvoiceAccountNumber,
		f.ChargePeriodStart,
		f.ChargePeriodEnd,
		fmt.Sprintf("%t", f.IsCredit),
		fmt.Sprintf("%d", f.BillableDays),
		fmt.Sprintf("%d", f.AuthorisedDays),
		f.Volume,
		f.Source,
		f.Season,
		f.Loss,
		f.Description,
		fmt.Sprintf("%t", f.IsCompensationCharge),
		fmt.Sprintf("%t", f.IsTwoPartTariff),
		fmt.Sprintf("%t", f.IsNewLicence),
		f.AbstractionPeriod,
		strings.Join(f.AgreementCodes, ","),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
