package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/farzanshibu/challenge-synergy-hub/middleware"
	"github.com/farzanshibu/challenge-synergy-hub/store"
	"github.com/farzanshibu/challenge-synergy-hub/utils"
)

// ChallengeController exposes the per-user challenge store over HTTP.
type ChallengeController struct {
	stores *store.Manager
}

// NewChallengeController creates a ChallengeController.
func NewChallengeController(stores *store.Manager) *ChallengeController {
	return &ChallengeController{stores: stores}
}

// List returns the user's challenges newest first, with the active selection.
func (c *ChallengeController) List(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	s := c.stores.Challenges(userID)
	challenges := s.FetchAll(ctx.Request.Context())

	var activeID *uint
	if active := s.Active(); active != nil {
		id := active.ID
		activeID = &id
	}

	utils.Success(ctx, gin.H{
		"items":     challenges,
		"active_id": activeID,
	})
}

type challengeRequest struct {
	Title    string `json:"title" binding:"required"`
	MaxValue int    `json:"maxValue" binding:"required"`
	EndDate  string `json:"endDate"`
}

// Create adds a challenge for the user.
func (c *ChallengeController) Create(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req challengeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title must not be empty")
		return
	}
	if req.MaxValue < 1 {
		utils.Error(ctx, http.StatusBadRequest, 40022, "maxValue must be at least 1")
		return
	}

	input := store.ChallengeInput{Title: title, MaxValue: req.MaxValue}
	if req.EndDate != "" {
		t, err := parseEndDate(req.EndDate)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40023, "invalid endDate")
			return
		}
		input.EndDate = &t
	}

	created, err := c.stores.Challenges(userID).Add(ctx.Request.Context(), input)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to create challenge")
		return
	}
	utils.Success(ctx, created)
}

// Update patches the fields present in the request body.
func (c *ChallengeController) Update(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	var req struct {
		Title        *string `json:"title"`
		MaxValue     *int    `json:"maxValue"`
		CurrentValue *int    `json:"currentValue"`
		EndDate      *string `json:"endDate"`
		IsActive     *bool   `json:"is_active"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	patch := store.ChallengePatch{
		MaxValue:     req.MaxValue,
		CurrentValue: req.CurrentValue,
		IsActive:     req.IsActive,
	}
	if req.Title != nil {
		title := utils.Sanitize(strings.TrimSpace(*req.Title))
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40021, "title must not be empty")
			return
		}
		patch.Title = &title
	}
	if req.MaxValue != nil && *req.MaxValue < 1 {
		utils.Error(ctx, http.StatusBadRequest, 40022, "maxValue must be at least 1")
		return
	}
	if req.EndDate != nil {
		if *req.EndDate == "" {
			patch.ClearEndDate = true
		} else {
			t, err := parseEndDate(*req.EndDate)
			if err != nil {
				utils.Error(ctx, http.StatusBadRequest, 40023, "invalid endDate")
				return
			}
			patch.EndDate = &t
		}
	}

	updated, err := c.stores.Challenges(userID).Update(ctx.Request.Context(), id, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "challenge not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to update challenge")
		return
	}
	utils.Success(ctx, updated)
}

// Delete removes a challenge.
func (c *ChallengeController) Delete(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	if err := c.stores.Challenges(userID).Delete(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "challenge not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to delete challenge")
		return
	}
	utils.Success(ctx, gin.H{"deleted": id})
}

// Increment raises the counter by one unless it is already at the target.
func (c *ChallengeController) Increment(ctx *gin.Context) {
	c.mutate(ctx, func(s *store.ChallengeStore, id uint) (store.Mutation, error) {
		return s.Increment(ctx.Request.Context(), id)
	})
}

// Decrement lowers the counter by one unless it is already at zero.
func (c *ChallengeController) Decrement(ctx *gin.Context) {
	c.mutate(ctx, func(s *store.ChallengeStore, id uint) (store.Mutation, error) {
		return s.Decrement(ctx.Request.Context(), id)
	})
}

// Reset sets the counter back to zero.
func (c *ChallengeController) Reset(ctx *gin.Context) {
	c.mutate(ctx, func(s *store.ChallengeStore, id uint) (store.Mutation, error) {
		ch, err := s.Reset(ctx.Request.Context(), id)
		if err != nil {
			return store.Mutation{}, err
		}
		return store.Mutation{Challenge: ch, Applied: true}, nil
	})
}

func (c *ChallengeController) mutate(ctx *gin.Context, op func(*store.ChallengeStore, uint) (store.Mutation, error)) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	m, err := op(c.stores.Challenges(userID), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "challenge not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to update counter")
		return
	}

	utils.Success(ctx, gin.H{
		"challenge": m.Challenge,
		"applied":   m.Applied,
		"notice":    m.Notice,
	})
}

// Activate makes the challenge the single active one for the user.
func (c *ChallengeController) Activate(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	activated, err := c.stores.Challenges(userID).ActivateExclusively(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "challenge not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to activate challenge")
		return
	}
	utils.Success(ctx, activated)
}

// parseEndDate accepts RFC 3339 timestamps and bare dates.
func parseEndDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func currentUserID(ctx *gin.Context) (uint, bool) {
	v, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		ctx.Abort()
		return 0, false
	}
	id, ok := v.(uint)
	if !ok || id == 0 {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		ctx.Abort()
		return 0, false
	}
	return id, true
}

func pathID(ctx *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(ctx.Param("id")), 10, 64)
	if err != nil || n == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid id")
		return 0, false
	}
	return uint(n), true
}
