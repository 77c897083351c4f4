package handler

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"polyradar/internal/paper"
)

type CopyHandler struct {
	Store *paper.Store
}

func (h *CopyHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/paper/copy-settings")
	g.GET("", h.list)
	g.PUT("/:wallet", h.upsert)
	g.DELETE("/:wallet", h.remove)
}

// @Summary List copy settings on the active (or named) profile
// @Tags copy
// @Success 200 {object} apiResponse
// @Router /api/v1/paper/copy-settings [get]
func (h *CopyHandler) list(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	ledger, err := h.Store.GetAllProfiles(c.Request.Context())
	if err != nil {
		EngineError(c, err)
		return
	}
	profileID := strings.TrimSpace(c.Query("profile_id"))
	if profileID == "" {
		profileID = ledger.ActiveProfileID
	}
	profile, ok := ledger.Profiles[profileID]
	if !ok {
		Error(c, http.StatusNotFound, "profile not found", nil)
		return
	}

	settings := make([]paper.CopySetting, 0, len(profile.CopySettings))
	for _, s := range profile.CopySettings {
		settings = append(settings, s)
	}
	sort.Slice(settings, func(i, j int) bool {
		return settings[i].CreatedAt.Before(settings[j].CreatedAt)
	})
	Ok(c, settings, map[string]any{"profile_id": profileID})
}

// @Summary Create or patch a follow rule
// @Tags copy
// @Param wallet path string true "wallet address"
// @Param request body paper.CopySettingPatch true "patch"
// @Success 200 {object} apiResponse
// @Router /api/v1/paper/copy-settings/{wallet} [put]
func (h *CopyHandler) upsert(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	wallet := strings.TrimSpace(c.Param("wallet"))
	var patch paper.CopySettingPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	profileID := strings.TrimSpace(c.Query("profile_id"))
	setting, err := h.Store.UpsertCopySetting(c.Request.Context(), profileID, wallet, patch)
	if err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, setting, nil)
}

// @Summary Remove a follow rule
// @Tags copy
// @Param wallet path string true "wallet address"
// @Success 200 {object} apiResponse
// @Router /api/v1/paper/copy-settings/{wallet} [delete]
func (h *CopyHandler) remove(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	wallet := strings.TrimSpace(c.Param("wallet"))
	profileID := strings.TrimSpace(c.Query("profile_id"))
	if err := h.Store.RemoveCopySetting(c.Request.Context(), profileID, wallet); err != nil {
		EngineError(c, err)
		return
	}
	Ok(c, gin.H{"deleted": strings.ToLower(wallet)}, nil)
}
