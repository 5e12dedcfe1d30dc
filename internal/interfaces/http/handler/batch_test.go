package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	appbilling "github.com/wrls/billing/internal/application/billing"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
)

// mockBatchService implements batchService for testing
type mockBatchService struct {
	mock.Mock
}

func (m *mockBatchService) Create(ctx context.Context, input appbilling.CreateBatchInput) (*billing.Batch, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Batch), args.Error(1)
}

func (m *mockBatchService) Get(ctx context.Context, id uuid.UUID) (*appbilling.BatchSummary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appbilling.BatchSummary), args.Error(1)
}

func (m *mockBatchService) Approve(ctx context.Context, id uuid.UUID) (*billing.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Batch), args.Error(1)
}

func (m *mockBatchService) Send(ctx context.Context, id uuid.UUID) (*billing.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Batch), args.Error(1)
}

func (m *mockBatchService) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newBatchRouter(service batchService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	api := engine.Group("/api/v1")
	NewBatchHandler(service, 6).RegisterRoutes(api)
	return engine
}

func testBatch(t *testing.T) *billing.Batch {
	t.Helper()
	batch, err := billing.NewBatch(
		billing.Region{ID: "region-1", Code: "A", Name: "Anglian"},
		billing.BatchTypeAnnual,
		billing.SeasonAllYear,
		valueobject.NewFinancialYear(2023),
		valueobject.NewFinancialYear(2023),
	)
	require.NoError(t, err)
	batch.ExternalID = "cm-bill-run-1"
	return batch
}

func TestBatchHandler_Create(t *testing.T) {
	t.Run("creates annual batch", func(t *testing.T) {
		service := new(mockBatchService)
		router := newBatchRouter(service)

		batch := testBatch(t)
		service.On("Create", mock.Anything, mock.MatchedBy(func(input appbilling.CreateBatchInput) bool {
			return input.Type == billing.BatchTypeAnnual &&
				input.StartYear == 2023 && input.EndYear == 2023 &&
				input.Season == billing.SeasonAllYear
		})).Return(batch, nil)

		body := `{"region_id":"region-1","region_code":"A","type":"annual","financial_year_ending":2023}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp struct {
			Success bool          `json:"success"`
			Data    BatchResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "processing", resp.Data.Status)
		assert.Equal(t, "cm-bill-run-1", resp.Data.BillRunID)
		service.AssertExpectations(t)
	})

	t.Run("supplementary batch spans the look-back years", func(t *testing.T) {
		service := new(mockBatchService)
		router := newBatchRouter(service)

		batch := testBatch(t)
		service.On("Create", mock.Anything, mock.MatchedBy(func(input appbilling.CreateBatchInput) bool {
			return input.Type == billing.BatchTypeSupplementary &&
				input.StartYear == 2018 && input.EndYear == 2023
		})).Return(batch, nil)

		body := `{"region_id":"region-1","region_code":"A","type":"supplementary","financial_year_ending":2023}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("rejects unknown batch type", func(t *testing.T) {
		service := new(mockBatchService)
		router := newBatchRouter(service)

		body := `{"region_id":"region-1","region_code":"A","type":"monthly","financial_year_ending":2023}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		service.AssertNotCalled(t, "Create")
	})

	t.Run("maps live-batch conflict to 409", func(t *testing.T) {
		service := new(mockBatchService)
		router := newBatchRouter(service)

		service.On("Create", mock.Anything, mock.Anything).Return(nil, shared.ErrAlreadyExists)

		body := `{"region_id":"region-1","region_code":"A","type":"annual","financial_year_ending":2023}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestBatchHandler_Get(t *testing.T) {
	t.Run("returns batch with counts", func(t *testing.T) {
		service := new(mockBatchService)
		router := newBatchRouter(service)

		batch := testBatch(t)
		service.On("Get", mock.Anything, batch.ID).Return(&appbilling.BatchSummary{
			Batch: batch,
			UnitCounts: map[billing.ChargeVersionYearStatus]int64{
				billing.ChargeVersionYearStatusReady: 4,
			},
			TxCounts: map[billing.TransactionStatus]int64{
				billing.TransactionStatusChargeCreated: 9,
			},
			InvoiceCount: 2,
		}, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+batch.ID.String(), nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data BatchSummaryResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Data.InvoiceCount)
		assert.Equal(t, int64(4), resp.Data.Units["ready"])
		assert.Equal(t, int64(9), resp.Data.Transactions["charge_created"])
	})

	t.Run("returns 404 for missing batch", func(t *testing.T) {
		service := new(mockBatchService)
		router := newBatchRouter(service)

		id := uuid.New()
		service.On("Get", mock.Anything, id).Return(nil, shared.ErrNotFound)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+id.String(), nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("rejects malformed ID", func(t *testing.T) {
		service := new(mockBatchService)
		router := newBatchRouter(service)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/not-a-uuid", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		service.AssertNotCalled(t, "Get")
	})
}

func TestBatchHandler_Approve(t *testing.T) {
	t.Run("approves ready batch", func(t *testing.T) {
		service := new(mockBatchService)
		router := newBatchRouter(service)

		batch := testBatch(t)
		require.NoError(t, batch.MarkReady())
		service.On("Approve", mock.Anything, batch.ID).Return(batch, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/"+batch.ID.String()+"/approve", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("maps invalid state to 422", func(t *testing.T) {
		service := new(mockBatchService)
		router := newBatchRouter(service)

		id := uuid.New()
		service.On("Approve", mock.Anything, id).Return(nil, shared.ErrInvalidState)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/"+id.String()+"/approve", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestBatchHandler_Delete(t *testing.T) {
	t.Run("deletes batch", func(t *testing.T) {
		service := new(mockBatchService)
		router := newBatchRouter(service)

		id := uuid.New()
		service.On("Delete", mock.Anything, id).Return(nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/batches/"+id.String(), nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		service.AssertExpectations(t)
	})
}
