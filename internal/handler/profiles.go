package handler

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"polyradar/internal/paper"
)

type ProfileHandler struct {
	Store *paper.Store
}

func (h *ProfileHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/paper/profiles")
	g.GET("", h.list)
	g.POST("", h.create)
	g.POST("/:id/activate", h.activate)
	g.DELETE("/:id", h.remove)

	wallet := r.Group("/api/v1/paper/wallet")
	wallet.POST("/deposit", h.deposit)
	wallet.POST("/withdraw", h.withdraw)
}

// @Summary List profiles and the active pointer
// @Tags paper
// @Success 200 {object} apiResponse
// @Router /api/v1/paper/profiles [get]
func (h *ProfileHandler) list(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	ledger, err := h.Store.GetAllProfiles(c.Request.Context())
	if err != nil {
		EngineError(c, err)
		return
	}

	profiles := make([]*paper.Profile, 0, len(ledger.Profiles))
	for _, p := range ledger.Profiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})
	Ok(c, gin.H{
		"activeProfileId": ledger.ActiveProfileID,
		"profiles":        profiles,
	}, nil)
}

type createProfileRequest struct {
	Name           string                `json:"name"`
	InitialBalance string                `json:"initialBalance"`
	Settings       paper.ProfileSettings `json:"settings"`
}

// @Summary Create a profile
// @Tags paper
// @Param request body createProfileRequest true "profile"
// @Success 200 {object} apiResponse
// @Router /api/v1/paper/profiles [post]
func (h *ProfileHandler) create(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	balance := decimal.Zero
	if strings.TrimSpace(req.InitialBalance) != "" {
		parsed, ok := decimalField(req.InitialBalance)
		if !ok {
			Error(c, http.StatusBadRequest, "invalid initialBalance", nil)
			return
		}
		balance = parsed
	}
	profile, err := h.Store.CreateProfile(c.Request.Context(), req.Name, balance, req.Settings)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, profile, nil)
}

// @Summary Switch the active profile
// @Tags paper
// @Param id path string true "profile id"
// @Success 200 {object} apiResponse
// @Router /api/v1/paper/profiles/{id}/activate [post]
func (h *ProfileHandler) activate(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "profile id is required", nil)
		return
	}
	if err := h.Store.SetActiveProfile(c.Request.Context(), id); err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, gin.H{"activeProfileId": id}, nil)
}

// @Summary Delete a profile
// @Tags paper
// @Param id path string true "profile id"
// @Success 200 {object} apiResponse
// @Router /api/v1/paper/profiles/{id} [delete]
func (h *ProfileHandler) remove(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "profile id is required", nil)
		return
	}
	if err := h.Store.DeleteProfile(c.Request.Context(), id); err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, gin.H{"deleted": id}, nil)
}

type walletAmountRequest struct {
	Amount string `json:"amount"`
}

func (h *ProfileHandler) deposit(c *gin.Context) {
	h.adjustBalance(c, h.Store.Deposit)
}

func (h *ProfileHandler) withdraw(c *gin.Context) {
	h.adjustBalance(c, h.Store.Withdraw)
}

func (h *ProfileHandler) adjustBalance(c *gin.Context, op func(ctx context.Context, amount decimal.Decimal) error) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	var req walletAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	amount, ok := decimalField(req.Amount)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid amount", nil)
		return
	}
	if err := op(c.Request.Context(), amount); err != nil {
		EngineError(c, err)
		return
	}
	profile, err := h.Store.ActiveProfile(c.Request.Context())
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, gin.H{"cashBalance": profile.CashBalance}, nil)
}
