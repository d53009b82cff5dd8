package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/farzanshibu/challenge-synergy-hub/store"
	"github.com/farzanshibu/challenge-synergy-hub/utils"
)

// OverlayController exposes overlay settings and asset management.
type OverlayController struct {
	stores *store.Manager
}

// NewOverlayController creates an OverlayController.
func NewOverlayController(stores *store.Manager) *OverlayController {
	return &OverlayController{stores: stores}
}

// GetSettings resolves and returns the settings row the overlay should
// display, creating defaults when nothing is stored yet. An optional
// ?challenge_id= pins the lookup to one challenge.
func (o *OverlayController) GetSettings(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var challengeID *uint
	if raw := strings.TrimSpace(ctx.Query("challenge_id")); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 {
			utils.Error(ctx, http.StatusBadRequest, 40030, "invalid challenge_id")
			return
		}
		id := uint(n)
		challengeID = &id
	}

	row, err := o.stores.Overlay(userID).FetchOne(ctx.Request.Context(), challengeID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load overlay settings")
		return
	}
	utils.Success(ctx, row)
}

// ListSettings returns every settings row the user owns.
func (o *OverlayController) ListSettings(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	rows, err := o.stores.Overlay(userID).FetchAllForUser(ctx.Request.Context())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to list overlay settings")
		return
	}
	utils.Success(ctx, gin.H{"items": rows})
}

// SaveSettings applies a partial update; fields omitted from the body are
// left alone.
func (o *OverlayController) SaveSettings(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req struct {
		ID              *uint    `json:"id"`
		ChallengeID     *uint    `json:"challenge_id"`
		PositionX       *float64 `json:"position_x"`
		PositionY       *float64 `json:"position_y"`
		Width           *float64 `json:"width"`
		Height          *float64 `json:"height"`
		ReactCode       *string  `json:"react_code"`
		ConfettiEnabled *bool    `json:"confetti_enabled"`
		SoundEnabled    *bool    `json:"sound_enabled"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid request payload")
		return
	}

	for _, v := range []*float64{req.PositionX, req.PositionY, req.Width, req.Height} {
		if v != nil && (*v < 0 || *v > 100) {
			utils.Error(ctx, http.StatusBadRequest, 40032, "layout values are percentages between 0 and 100")
			return
		}
	}

	patch := store.SettingsPatch{
		ID:              req.ID,
		ChallengeID:     req.ChallengeID,
		PositionX:       req.PositionX,
		PositionY:       req.PositionY,
		Width:           req.Width,
		Height:          req.Height,
		ConfettiEnabled: req.ConfettiEnabled,
		SoundEnabled:    req.SoundEnabled,
	}
	// react_code is stored opaque; it is never rendered server-side and
	// sanitizing would corrupt it.
	patch.ReactCode = req.ReactCode

	row, err := o.stores.Overlay(userID).Save(ctx.Request.Context(), patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40430, "overlay settings not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to save overlay settings")
		return
	}
	utils.Success(ctx, row)
}

// ResetSettings restores the default configuration for the given scope.
func (o *OverlayController) ResetSettings(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req struct {
		ChallengeID *uint `json:"challenge_id"`
	}
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40031, "invalid request payload")
			return
		}
	}

	row, err := o.stores.Overlay(userID).ResetToDefaults(ctx.Request.Context(), req.ChallengeID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to reset overlay settings")
		return
	}
	utils.Success(ctx, row)
}

// UploadAsset accepts a multipart file for one effect slot and returns its
// public URL. Re-uploading a slot overwrites the previous file.
func (o *OverlayController) UploadAsset(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	kind := ctx.Param("kind")
	slot := ctx.Param("slot")

	file, err := ctx.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "missing file")
		return
	}

	src, err := file.Open()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to read upload")
		return
	}
	defer src.Close()

	url, err := o.stores.Overlay(userID).UploadAsset(ctx.Request.Context(), kind, slot, file.Filename, src)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidAsset):
			utils.Error(ctx, http.StatusBadRequest, 40034, "unknown asset kind or slot")
		case errors.Is(err, store.ErrAssetTooLarge):
			utils.Error(ctx, http.StatusRequestEntityTooLarge, 41300, "file too large")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to store asset")
		}
		return
	}
	utils.Success(ctx, gin.H{"url": url})
}

// DeleteAsset removes a slot's file and clears the stored URL.
func (o *OverlayController) DeleteAsset(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	kind := ctx.Param("kind")
	slot := ctx.Param("slot")

	if err := o.stores.Overlay(userID).DeleteAsset(ctx.Request.Context(), kind, slot); err != nil {
		if errors.Is(err, store.ErrInvalidAsset) {
			utils.Error(ctx, http.StatusBadRequest, 40034, "unknown asset kind or slot")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50036, "failed to remove asset")
		return
	}
	utils.Success(ctx, gin.H{"removed": kind + "/" + slot})
}
