package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"polyradar/internal/copytrade"
	"polyradar/internal/paper"
)

type OrderHandler struct {
	Store    *paper.Store
	Executor *paper.Executor
	Prices   copytrade.PriceSource
}

func (h *OrderHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/paper")
	g.POST("/orders", h.execute)
	g.GET("/orders", h.history)
	g.GET("/portfolio", h.portfolio)
}

type orderRequest struct {
	MarketID      string `json:"marketId"`
	MarketTitle   string `json:"marketTitle"`
	Side          string `json:"side"`
	Outcome       string `json:"outcome"`
	AmountUSD     string `json:"amountUsd"`
	Price         string `json:"price"`
	ExpectedPrice string `json:"expectedPrice"`
	Source        string `json:"source"`
	Notes         string `json:"notes"`
}

// @Summary Execute a simulated order on the active profile
// @Tags paper
// @Param request body orderRequest true "order"
// @Success 200 {object} apiResponse
// @Router /api/v1/paper/orders [post]
func (h *OrderHandler) execute(c *gin.Context) {
	if h.Executor == nil {
		Error(c, http.StatusInternalServerError, "executor unavailable", nil)
		return
	}
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	amount, ok := decimalField(req.AmountUSD)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid amountUsd", nil)
		return
	}
	price, ok := decimalField(req.Price)
	if !ok {
		// No caller-supplied price; resolve the current market price.
		if h.Prices == nil {
			Error(c, http.StatusBadRequest, "price is required", nil)
			return
		}
		outcome := paper.Outcome(strings.ToUpper(req.Outcome))
		resolved, err := h.Prices.CurrentPrice(c.Request.Context(), req.MarketID, outcome)
		if err != nil {
			Error(c, http.StatusBadGateway, "price lookup failed: "+err.Error(), nil)
			return
		}
		price = resolved
	}
	expected := decimal.Zero
	if v, ok := decimalField(req.ExpectedPrice); ok {
		expected = v
	}

	order, err := h.Executor.ExecuteOrder(c.Request.Context(), paper.OrderRequest{
		MarketID:       strings.TrimSpace(req.MarketID),
		MarketTitle:    strings.TrimSpace(req.MarketTitle),
		Side:           paper.Side(strings.ToUpper(req.Side)),
		Outcome:        paper.Outcome(strings.ToUpper(req.Outcome)),
		AmountUSD:      amount,
		ReferencePrice: price,
		ExpectedPrice:  expected,
		Source:         orderSource(req.Source),
		Notes:          req.Notes,
	})
	if err != nil {
		status := statusForEngineError(err)
		Error(c, status, err.Error(), map[string]any{"order": order})
		return
	}
	Ok(c, order, nil)
}

func orderSource(raw string) paper.OrderSource {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "signal":
		return paper.SourceSignal
	case "copy":
		return paper.SourceCopy
	default:
		return paper.SourceManual
	}
}

// statusForEngineError mirrors EngineError but returns the status so the
// rejected order can ride along in the meta.
func statusForEngineError(err error) int {
	switch {
	case errors.Is(err, paper.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, paper.ErrInsufficientFunds), errors.Is(err, paper.ErrInsufficientPosition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, paper.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, paper.ErrPersistence):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// @Summary Order history of the active profile, newest first
// @Tags paper
// @Success 200 {object} apiResponse
// @Router /api/v1/paper/orders [get]
func (h *OrderHandler) history(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	profile, err := h.Store.ActiveProfile(c.Request.Context())
	if err != nil {
		EngineError(c, err)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	// History is append-only chronological; serve it newest first.
	total := len(profile.History)
	items := make([]paper.Order, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(items) < limit; i-- {
		items = append(items, profile.History[i])
	}
	Ok(c, items, paginationMeta(limit, offset, int64(total)))
}

// @Summary Active profile valued at current prices
// @Tags paper
// @Success 200 {object} apiResponse
// @Router /api/v1/paper/portfolio [get]
func (h *OrderHandler) portfolio(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	profile, err := h.Store.ActiveProfile(c.Request.Context())
	if err != nil {
		EngineError(c, err)
		return
	}

	prices := map[string]decimal.Decimal{}
	if h.Prices != nil {
		for key, pos := range profile.Positions {
			price, err := h.Prices.CurrentPrice(c.Request.Context(), pos.MarketID, pos.Outcome)
			if err != nil || !price.IsPositive() {
				continue
			}
			prices[key] = price
		}
	}
	portfolio, err := h.Store.Portfolio(c.Request.Context(), prices)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, portfolio, nil)
}
