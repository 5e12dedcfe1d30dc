// Package crm implements the HTTP client for the reference-data service
// that owns licence holders, invoice accounts and charging agreements.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	appbilling "github.com/wrls/billing/internal/application/billing"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

const (
	chargingHistoryPath = "/v2/licences/%s/charging-history"

	defaultTimeout = 30 * time.Second

	dateLayout = "2006-01-02"
)

// Client implements appbilling.ReferenceDataService against the CRM v2
// API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a CRM client. A zero timeout falls back to the
// default.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ChargingHistory loads who held and who paid for the licence across the
// period, plus the charging agreements in force.
func (c *Client) ChargingHistory(ctx context.Context, licenceNumber string, period valueobject.DateRange) (*appbilling.ChargingHistory, error) {
	query := url.Values{}
	query.Set("startDate", period.Start().Format(dateLayout))
	if end := period.End(); end != nil {
		query.Set("endDate", end.Format(dateLayout))
	}

	path := fmt.Sprintf(chargingHistoryPath, url.PathEscape(licenceNumber))
	endpoint := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("crm: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm: charging history for %s: %w", licenceNumber, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("crm: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("CRM request failed",
			zap.String("licence_number", licenceNumber),
			zap.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("crm: charging history for %s: HTTP %d", licenceNumber, resp.StatusCode)
	}

	var parsed chargingHistoryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("crm: parse charging history: %w", err)
	}
	return parsed.toDomain()
}

type chargingHistoryResponse struct {
	LicenceHolders  []holderBody    `json:"licenceHolders"`
	InvoiceAccounts []accountBody   `json:"invoiceAccounts"`
	Agreements      []agreementBody `json:"agreements"`
}

func (r chargingHistoryResponse) toDomain() (*appbilling.ChargingHistory, error) {
	history := &appbilling.ChargingHistory{}

	for _, h := range r.LicenceHolders {
		validity, err := parseValidity(h.StartDate, h.EndDate)
		if err != nil {
			return nil, fmt.Errorf("crm: licence holder %s: %w", h.CompanyID, err)
		}
		history.Holders = append(history.Holders, appbilling.Segment[appbilling.LicenceHolder]{
			Validity: validity,
			Value: appbilling.LicenceHolder{
				CompanyID:   h.CompanyID,
				CompanyName: h.CompanyName,
			},
		})
	}

	for _, a := range r.InvoiceAccounts {
		validity, err := parseValidity(a.StartDate, a.EndDate)
		if err != nil {
			return nil, fmt.Errorf("crm: invoice account %s: %w", a.AccountNumber, err)
		}
		history.Accounts = append(history.Accounts, appbilling.Segment[appbilling.InvoiceAccount]{
			Validity: validity,
			Value: appbilling.InvoiceAccount{
				AccountID:     a.AccountID,
				AccountNumber: a.AccountNumber,
				Address: billing.InvoiceAddress{
					Name:         a.Address.Name,
					AddressLine1: a.Address.AddressLine1,
					AddressLine2: a.Address.AddressLine2,
					AddressLine3: a.Address.AddressLine3,
					Town:         a.Address.Town,
					Postcode:     a.Address.Postcode,
				},
			},
		})
	}

	for _, a := range r.Agreements {
		validity, err := parseValidity(a.StartDate, a.EndDate)
		if err != nil {
			return nil, fmt.Errorf("crm: agreement %s: %w", a.Code, err)
		}
		history.Agreements = append(history.Agreements, billing.Agreement{
			Code:     a.Code,
			Validity: validity,
		})
	}

	return history, nil
}

type holderBody struct {
	CompanyID   string `json:"companyId"`
	CompanyName string `json:"companyName"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

type accountBody struct {
	AccountID     string      `json:"invoiceAccountId"`
	AccountNumber string      `json:"accountNumber"`
	StartDate     string      `json:"startDate"`
	EndDate       string      `json:"endDate"`
	Address       addressBody `json:"address"`
}

type addressBody struct {
	Name         string `json:"name"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	AddressLine3 string `json:"addressLine3"`
	Town         string `json:"town"`
	Postcode     string `json:"postcode"`
}

type agreementBody struct {
	Code      string `json:"code"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// parseValidity turns the wire dates into a range; an empty end date
// means the record is still in force.
func parseValidity(start, end string) (valueobject.DateRange, error) {
	startDate, err := time.Parse(dateLayout, start)
	if err != nil {
		return valueobject.DateRange{}, fmt.Errorf("bad start date %q: %w", start, err)
	}
	if end == "" {
		return valueobject.NewOpenDateRange(startDate), nil
	}
	endDate, err := time.Parse(dateLayout, end)
	if err != nil {
		return valueobject.DateRange{}, fmt.Errorf("bad end date %q: %w", end, err)
	}
	return valueobject.NewDateRange(startDate, endDate)
}

var _ appbilling.ReferenceDataService = (*Client)(nil)
