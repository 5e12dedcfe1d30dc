package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbilling "github.com/wrls/billing/internal/application/billing"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/interfaces/http/middleware"
)

// batchService is the slice of the application service the handler needs.
type batchService interface {
	Create(ctx context.Context, input appbilling.CreateBatchInput) (*billing.Batch, error)
	Get(ctx context.Context, id uuid.UUID) (*appbilling.BatchSummary, error)
	Approve(ctx context.Context, id uuid.UUID) (*billing.Batch, error)
	Send(ctx context.Context, id uuid.UUID) (*billing.Batch, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// BatchHandler exposes the batch lifecycle over HTTP
type BatchHandler struct {
	BaseHandler
	service            batchService
	supplementaryYears int
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(service batchService, supplementaryYears int) *BatchHandler {
	return &BatchHandler{service: service, supplementaryYears: supplementaryYears}
}

// RegisterRoutes registers the batch routes
func (h *BatchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	batches := rg.Group("/batches")
	{
		batches.POST("", h.Create)
		batches.GET("/:id", h.Get)
		batches.POST("/:id/approve", h.Approve)
		batches.POST("/:id/send", h.Send)
		batches.DELETE("/:id", h.Delete)
	}
}

// CreateBatchRequest is the request body for starting a billing run
type CreateBatchRequest struct {
	RegionID            string `json:"region_id" binding:"required"`
	RegionCode          string `json:"region_code" binding:"required,len=1"`
	RegionName          string `json:"region_name"`
	Type                string `json:"type" binding:"required,oneof=annual supplementary two_part_tariff"`
	Season              string `json:"season" binding:"omitempty,oneof=summer winter_all_year all_year"`
	FinancialYearEnding int    `json:"financial_year_ending" binding:"required,min=2000,max=2100"`
}

// BatchResponse is the batch representation returned by the API
type BatchResponse struct {
	ID                  string `json:"id"`
	RegionID            string `json:"region_id"`
	RegionCode          string `json:"region_code"`
	Type                string `json:"type"`
	Season              string `json:"season"`
	FromYearEnding      int    `json:"from_financial_year_ending"`
	ToYearEnding        int    `json:"to_financial_year_ending"`
	Status              string `json:"status"`
	ErrorCode           string `json:"error_code,omitempty"`
	BillRunID           string `json:"bill_run_id,omitempty"`
	NetTotal            int64  `json:"net_total"`
	InvoiceValue        int64  `json:"invoice_value"`
	CreditNoteValue     int64  `json:"credit_note_value"`
}

// BatchSummaryResponse adds child-entity counts to the batch
type BatchSummaryResponse struct {
	BatchResponse
	InvoiceCount int              `json:"invoice_count"`
	Units        map[string]int64 `json:"charge_version_years"`
	Transactions map[string]int64 `json:"transactions"`
}

func toBatchResponse(b *billing.Batch) BatchResponse {
	return BatchResponse{
		ID:              b.ID.String(),
		RegionID:        b.Region.ID,
		RegionCode:      b.Region.Code,
		Type:            string(b.Type),
		Season:          string(b.Season),
		FromYearEnding:  b.StartYear.YearEnding(),
		ToYearEnding:    b.EndYear.YearEnding(),
		Status:          string(b.Status),
		ErrorCode:       string(b.ErrorCode),
		BillRunID:       b.ExternalID,
		NetTotal:        b.NetTotal,
		InvoiceValue:    b.InvoiceValue,
		CreditNoteValue: b.CreditNoteValue,
	}
}

// Create starts a billing run
// POST /api/v1/batches
func (h *BatchHandler) Create(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	season := billing.Season(req.Season)
	if season == "" {
		season = billing.SeasonAllYear
	}

	// Annual and two-part tariff runs bill a single year; supplementary
	// runs look back over the configured number of years.
	startYear := req.FinancialYearEnding
	if billing.BatchType(req.Type) == billing.BatchTypeSupplementary {
		startYear = req.FinancialYearEnding - (h.supplementaryYears - 1)
	}

	batch, err := h.service.Create(c.Request.Context(), appbilling.CreateBatchInput{
		Region: billing.Region{
			ID:   req.RegionID,
			Code: req.RegionCode,
			Name: req.RegionName,
		},
		Type:      billing.BatchType(req.Type),
		Season:    season,
		StartYear: startYear,
		EndYear:   req.FinancialYearEnding,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toBatchResponse(batch))
}

// Get returns a batch with its aggregate counts
// GET /api/v1/batches/:id
func (h *BatchHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	summary, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := BatchSummaryResponse{
		BatchResponse: toBatchResponse(summary.Batch),
		InvoiceCount:  summary.InvoiceCount,
		Units:         make(map[string]int64, len(summary.UnitCounts)),
		Transactions:  make(map[string]int64, len(summary.TxCounts)),
	}
	for status, n := range summary.UnitCounts {
		resp.Units[string(status)] = n
	}
	for status, n := range summary.TxCounts {
		resp.Transactions[string(status)] = n
	}

	h.Success(c, resp)
}

// Approve approves the ledger bill run of a ready batch
// POST /api/v1/batches/:id/approve
func (h *BatchHandler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	batch, err := h.service.Approve(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toBatchResponse(batch))
}

// Send sends the approved ledger bill run and finalises the batch
// POST /api/v1/batches/:id/send
func (h *BatchHandler) Send(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	batch, err := h.service.Send(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toBatchResponse(batch))
}

// Delete removes an unsent batch and its ledger bill run
// DELETE /api/v1/batches/:id
func (h *BatchHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
