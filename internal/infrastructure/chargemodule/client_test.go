package chargemodule

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrls/billing/internal/domain/billing"
	"go.uber.org/zap"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 5*time.Second, zap.NewNop())
}

func TestClient_CreateBillRun(t *testing.T) {
	ctx := context.Background()

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/wrls/bill-runs", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "A", body["region"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"billRun": {"id": "cm-1", "billRunNumber": 10001}}`))
	})

	id, err := client.CreateBillRun(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "cm-1", id)
}

func TestClient_AddTransaction(t *testing.T) {
	ctx := context.Background()
	req := &billing.LedgerTransactionRequest{
		ClientID:             "tx-1",
		LicenceNumber:        "01/123/456",
		Region:               "A",
		InvoiceAccountNumber: "A10000000A",
		FinancialYearEnding:  2023,
		PeriodStart:          "2022-04-01",
		PeriodEnd:            "2023-03-31",
		BillableDays:         365,
		AuthorisedDays:       365,
		Volume:               "100",
	}

	t.Run("created response returns the ledger id", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v2/wrls/bill-runs/cm-1/transactions", r.URL.Path)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "tx-1", body["clientId"])
			assert.Equal(t, "A10000000A", body["customerReference"])
			assert.Equal(t, float64(2022), body["financialYear"])

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"transaction": {"id": "cm-tx-1", "clientId": "tx-1"}}`))
		})

		id, err := client.AddTransaction(ctx, "cm-1", req)
		require.NoError(t, err)
		assert.Equal(t, "cm-tx-1", id)
	})

	t.Run("conflict is success with the previously assigned id", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"transaction": {"id": "cm-tx-earlier", "clientId": "tx-1"}}`))
		})

		id, err := client.AddTransaction(ctx, "cm-1", req)
		require.NoError(t, err)
		assert.Equal(t, "cm-tx-earlier", id)
	})

	t.Run("unprocessable facts surface as a client error", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message": "loss is not valid"}`))
		})

		_, err := client.AddTransaction(ctx, "cm-1", req)
		var clientErr *billing.ClientError
		require.ErrorAs(t, err, &clientErr)
		assert.Equal(t, http.StatusUnprocessableEntity, clientErr.StatusCode)
		assert.Equal(t, "loss is not valid", clientErr.Message)
	})

	t.Run("ledger outage surfaces as a server error", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := client.AddTransaction(ctx, "cm-1", req)
		var serverErr *billing.ServerError
		require.ErrorAs(t, err, &serverErr)
		assert.Equal(t, http.StatusServiceUnavailable, serverErr.StatusCode)
	})

	t.Run("transport failure surfaces as a server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		client := NewClient(server.URL, time.Second, zap.NewNop())
		server.Close()

		_, err := client.AddTransaction(ctx, "cm-1", req)
		var serverErr *billing.ServerError
		require.ErrorAs(t, err, &serverErr)
	})
}

func TestClient_GetSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("generating summary defers", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/wrls/bill-runs/cm-1", r.URL.Path)
			_, _ = w.Write([]byte(`{"billRun": {"id": "cm-1", "status": "generating"}}`))
		})

		_, err := client.GetSummary(ctx, "cm-1")
		require.ErrorIs(t, err, billing.ErrSummaryGenerating)
	})

	t.Run("generated summary maps totals and invoices", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{
				"billRun": {
					"id": "cm-1",
					"status": "generated",
					"netTotal": 225660,
					"invoiceValue": 230000,
					"creditNoteValue": -4340,
					"invoices": [
						{
							"id": "cm-inv-1",
							"customerReference": "A10000000A",
							"financialYear": 2022,
							"netTotal": 225660,
							"grossTotal": 225660,
							"deminimisInvoice": false
						}
					]
				}
			}`))
		})

		summary, err := client.GetSummary(ctx, "cm-1")
		require.NoError(t, err)
		assert.Equal(t, int64(225660), summary.NetTotal)
		assert.Equal(t, int64(-4340), summary.CreditNoteValue)
		require.Len(t, summary.Invoices, 1)
		assert.Equal(t, "A10000000A", summary.Invoices[0].CustomerReference)
		assert.Equal(t, 2023, summary.Invoices[0].FinancialYearEnding)
	})
}

func TestClient_GetInvoiceTransactions(t *testing.T) {
	ctx := context.Background()

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/wrls/bill-runs/cm-1/invoices/cm-inv-1", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"invoice": {
				"id": "cm-inv-1",
				"deminimisInvoice": true,
				"licences": [
					{
						"licenceNumber": "01/123/456",
						"transactions": [
							{
								"id": "cm-tx-1",
								"clientId": "tx-1",
								"chargeValue": 12345,
								"credit": false,
								"minimumCharge": false,
								"calculation": {
									"sourceFactor": 1.0,
									"seasonFactor": 1.6,
									"lossFactor": 0.03,
									"sucFactor": 25.22
								}
							},
							{
								"id": "cm-tx-2",
								"chargeValue": 2180,
								"credit": false,
								"minimumCharge": true
							}
						]
					}
				]
			}
		}`))
	})

	transactions, err := client.GetInvoiceTransactions(ctx, "cm-1", "cm-inv-1")
	require.NoError(t, err)
	require.Len(t, transactions, 2)

	assert.Equal(t, "cm-tx-1", transactions[0].ID)
	assert.Equal(t, "tx-1", transactions[0].ClientID)
	assert.Equal(t, "01/123/456", transactions[0].LicenceNumber)
	assert.True(t, transactions[0].DeMinimis)
	assert.Equal(t, 1.6, transactions[0].CalculationFactors.Season)

	assert.True(t, transactions[1].MinimumCharge)
	assert.Empty(t, transactions[1].ClientID)
}

func TestClient_DeleteBillRun(t *testing.T) {
	ctx := context.Background()

	var gotMethod string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		assert.Equal(t, "/v2/wrls/bill-runs/cm-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.DeleteBillRun(ctx, "cm-1"))
	assert.Equal(t, http.MethodDelete, gotMethod)
}
