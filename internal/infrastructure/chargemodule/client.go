// Package chargemodule implements the HTTP client for the external
// charge module, the ledger that performs the authoritative monetary
// calculation for submitted charging facts.
package chargemodule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

const (
	billRunsPath            = "/v2/wrls/bill-runs"
	billRunPath             = "/v2/wrls/bill-runs/%s"
	billRunTransactionsPath = "/v2/wrls/bill-runs/%s/transactions"
	billRunApprovePath      = "/v2/wrls/bill-runs/%s/approve"
	billRunSendPath         = "/v2/wrls/bill-runs/%s/send"
	billRunInvoicePath      = "/v2/wrls/bill-runs/%s/invoices/%s"

	defaultTimeout = 30 * time.Second

	summaryStatusGenerating = "generating"
)

// Client implements billing.ChargeModuleGateway against the charge
// module's v2 WRLS API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a charge module client. A zero timeout falls back to
// the default.
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

func (c *Client) CreateBillRun(ctx context.Context, regionCode string) (string, error) {
	body := map[string]string{"region": regionCode}
	respBody, _, err := c.doRequest(ctx, http.MethodPost, billRunsPath, body, "create_bill_run")
	if err != nil {
		return "", err
	}

	var resp billRunResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("charge module: parse create bill run response: %w", err)
	}
	if resp.BillRun.ID == "" {
		return "", fmt.Errorf("charge module: create bill run response carries no id")
	}
	return resp.BillRun.ID, nil
}

func (c *Client) AddTransaction(ctx context.Context, billRunID string, tx *billing.LedgerTransactionRequest) (string, error) {
	path := fmt.Sprintf(billRunTransactionsPath, billRunID)
	respBody, status, err := c.doRequest(ctx, http.MethodPost, path, transactionRequestBody(tx), "add_transaction")
	// A conflict means the transaction was already submitted; the ledger
	// echoes the id it assigned the first time, so treat it as success.
	if err != nil && status != http.StatusConflict {
		return "", err
	}

	var resp transactionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("charge module: parse add transaction response: %w", err)
	}
	if resp.Transaction.ID == "" {
		return "", fmt.Errorf("charge module: add transaction response carries no id")
	}
	return resp.Transaction.ID, nil
}

func (c *Client) Approve(ctx context.Context, billRunID string) error {
	path := fmt.Sprintf(billRunApprovePath, billRunID)
	_, _, err := c.doRequest(ctx, http.MethodPatch, path, nil, "approve")
	return err
}

func (c *Client) Send(ctx context.Context, billRunID string) error {
	path := fmt.Sprintf(billRunSendPath, billRunID)
	_, _, err := c.doRequest(ctx, http.MethodPatch, path, nil, "send")
	return err
}

func (c *Client) GetSummary(ctx context.Context, billRunID string) (*billing.BillRunSummary, error) {
	path := fmt.Sprintf(billRunPath, billRunID)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, path, nil, "get_summary")
	if err != nil {
		return nil, err
	}

	var resp billRunResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("charge module: parse bill run summary: %w", err)
	}
	if resp.BillRun.Status == summaryStatusGenerating {
		return nil, billing.ErrSummaryGenerating
	}
	return resp.BillRun.toSummary(), nil
}

func (c *Client) GetInvoiceTransactions(ctx context.Context, billRunID, invoiceID string) ([]billing.LedgerTransaction, error) {
	path := fmt.Sprintf(billRunInvoicePath, billRunID, invoiceID)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, path, nil, "get_invoice_transactions")
	if err != nil {
		return nil, err
	}

	var resp invoiceResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("charge module: parse invoice transactions: %w", err)
	}
	return resp.Invoice.flatten(), nil
}

func (c *Client) DeleteBillRun(ctx context.Context, billRunID string) error {
	path := fmt.Sprintf(billRunPath, billRunID)
	_, _, err := c.doRequest(ctx, http.MethodDelete, path, nil, "delete_bill_run")
	return err
}

// doRequest performs one HTTP exchange and classifies the outcome: 4xx
// responses become ClientError, 5xx and transport failures (timeouts
// included) become ServerError. The raw body and status are returned so
// callers can special-case statuses like 409.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, operation string) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("charge module: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("charge module: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordLedgerCall(operation, metrics.ResultError)
		return nil, 0, &billing.ServerError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordLedgerCall(operation, metrics.ResultError)
		return nil, resp.StatusCode, &billing.ServerError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	switch {
	case resp.StatusCode >= 500:
		metrics.RecordLedgerCall(operation, metrics.ResultError)
		c.logger.Warn("Charge module unavailable",
			zap.String("operation", operation),
			zap.Int("status_code", resp.StatusCode))
		return respBody, resp.StatusCode, &billing.ServerError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	case resp.StatusCode >= 400:
		metrics.RecordLedgerCall(operation, metrics.ResultError)
		return respBody, resp.StatusCode, &billing.ClientError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	metrics.RecordLedgerCall(operation, metrics.ResultSuccess)
	return respBody, resp.StatusCode, nil
}

// errorMessage pulls the message out of an error response body, falling
// back to the raw body.
func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return string(body)
}

var _ billing.ChargeModuleGateway = (*Client)(nil)
