package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"polyradar/internal/paper"
	"polyradar/internal/repository"
	"polyradar/internal/risk"
)

// ReportHandler serves read-only analytics. Nothing here mutates ledger
// state.
type ReportHandler struct {
	Store *paper.Store
	Repo  repository.Repository
}

func (h *ReportHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/reports")
	g.GET("/stats", h.stats)
	g.GET("/wallets", h.wallets)
	g.GET("/wallets/:address", h.walletMetrics)
	g.GET("/correlation", h.correlation)
	g.GET("/portfolio-history", h.portfolioHistory)
}

// @Summary Aggregate trading stats of the active profile
// @Tags reports
// @Success 200 {object} apiResponse
// @Router /api/v1/reports/stats [get]
func (h *ReportHandler) stats(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	profile, err := h.Store.ActiveProfile(c.Request.Context())
	if err != nil {
		EngineError(c, err)
		return
	}

	records := make([]risk.TradeRecord, 0, len(profile.History))
	volume := decimal.Zero
	realized := decimal.Zero
	var buys, sells int
	for _, order := range profile.History {
		if order.Status != paper.StatusFilled {
			continue
		}
		volume = volume.Add(order.RequestedAmount)
		if order.Side == paper.SideBuy {
			buys++
			continue
		}
		sells++
		realized = realized.Add(order.RealizedPnL)
		records = append(records, risk.TradeRecord{
			Amount: order.RequestedAmount,
			PnL:    order.RealizedPnL,
		})
	}
	metrics := risk.WalletMetrics(records)

	Ok(c, gin.H{
		"profileId":     profile.ID,
		"cashBalance":   profile.CashBalance,
		"openPositions": len(profile.Positions),
		"totalOrders":   buys + sells,
		"buys":          buys,
		"sells":         sells,
		"volume":        volume,
		"realizedPnl":   realized,
		"metrics":       metrics,
	}, nil)
}

// @Summary Followed wallets with observed activity
// @Tags reports
// @Success 200 {object} apiResponse
// @Router /api/v1/reports/wallets [get]
func (h *ReportHandler) wallets(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	minTrades := intQuery(c, "min_trades", 1)
	addrs, err := h.Repo.ListWalletAddresses(c.Request.Context(), minTrades)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, addrs, nil)
}

// @Summary Risk metrics for one followed wallet
// @Tags reports
// @Param address path string true "wallet address"
// @Success 200 {object} apiResponse
// @Router /api/v1/reports/wallets/{address} [get]
func (h *ReportHandler) walletMetrics(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	address := strings.ToLower(strings.TrimSpace(c.Param("address")))
	if address == "" {
		Error(c, http.StatusBadRequest, "wallet address is required", nil)
		return
	}
	settled := true
	rows, err := h.Repo.ListWalletTrades(c.Request.Context(), repository.ListWalletTradesParams{
		Address: &address,
		Settled: &settled,
		Limit:   1000,
		Asc:     boolPtr(true),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	records := make([]risk.TradeRecord, 0, len(rows))
	for _, row := range rows {
		if row.RealizedPnL == nil {
			continue
		}
		records = append(records, risk.TradeRecord{Amount: row.AmountUSD, PnL: *row.RealizedPnL})
	}
	metrics := risk.WalletMetrics(records)
	Ok(c, gin.H{"address": address, "metrics": metrics}, nil)
}

// @Summary Pairwise return correlation across followed wallets
// @Tags reports
// @Success 200 {object} apiResponse
// @Router /api/v1/reports/correlation [get]
func (h *ReportHandler) correlation(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	minTrades := intQuery(c, "min_trades", risk.MinCorrelationSamples)
	threshold := floatQuery(c, "threshold", 0.7)

	addrs, err := h.Repo.ListWalletAddresses(c.Request.Context(), minTrades)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	settled := true
	returns := map[string][]float64{}
	for _, addr := range addrs {
		address := addr
		rows, err := h.Repo.ListWalletTrades(c.Request.Context(), repository.ListWalletTradesParams{
			Address: &address,
			Settled: &settled,
			Limit:   500,
			Asc:     boolPtr(true),
		})
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
		var series []float64
		for _, row := range rows {
			if row.RealizedPnL == nil || !row.AmountUSD.IsPositive() {
				continue
			}
			r, _ := row.RealizedPnL.Div(row.AmountUSD).Float64()
			series = append(series, r)
		}
		if len(series) >= risk.MinCorrelationSamples {
			returns[address] = series
		}
	}

	matrix := risk.CorrelationMatrix(returns)
	Ok(c, gin.H{
		"pairs":    matrix,
		"elevated": risk.HighCorrelationPairs(matrix, threshold),
	}, map[string]any{"wallets": len(returns), "threshold": threshold})
}

// @Summary Periodic equity snapshots of a profile
// @Tags reports
// @Success 200 {object} apiResponse
// @Router /api/v1/reports/portfolio-history [get]
func (h *ReportHandler) portfolioHistory(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListPortfolioSnapshotsParams{
		Limit:     intQuery(c, "limit", 200),
		Offset:    intQuery(c, "offset", 0),
		ProfileID: strQueryPtr(c, "profile_id"),
	}
	if v := strings.TrimSpace(c.Query("since")); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.Since = &t
		}
	}
	if v := strings.TrimSpace(c.Query("until")); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.Until = &t
		}
	}
	items, err := h.Repo.ListPortfolioSnapshots(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
