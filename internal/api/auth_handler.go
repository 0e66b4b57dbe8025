package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"fitsync/settings-app/internal/domain"
	"fitsync/settings-app/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the profile store dependency.
type AuthHandler struct {
	store service.ProfileStore
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store service.ProfileStore) *AuthHandler {
	return &AuthHandler{store: store}
}

// --- Request/Response Structs ---

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ProfileResponse excludes sensitive info like the password hash.
type ProfileResponse struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	PhotoURL           string             `json:"photoUrl,omitempty"`
	AvailableEquipment []domain.Equipment `json:"availableEquipment"`
	CreatedAt          time.Time          `json:"createdAt"`
}

type LoginResponse struct {
	Token   string          `json:"token"`
	Profile ProfileResponse `json:"profile"`
}

func mapProfileToResponse(profile *domain.Profile) ProfileResponse {
	equipment := profile.AvailableEquipment
	if equipment == nil {
		equipment = []domain.Equipment{}
	}
	return ProfileResponse{
		ID:                 profile.ID.Hex(),
		Name:               profile.Name,
		Email:              profile.Email,
		PhotoURL:           profile.PhotoURL,
		AvailableEquipment: equipment,
		CreatedAt:          profile.CreatedAt,
	}
}

// --- Handler Methods ---

// Register creates a new account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	profile, err := h.store.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			abortWithError(c, http.StatusConflict, err.Error())
		} else if errors.Is(err, service.ErrHashingFailed) {
			abortWithError(c, http.StatusInternalServerError, "Could not process registration")
		} else {
			abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred during registration")
		}
		return
	}

	c.JSON(http.StatusCreated, mapProfileToResponse(profile))
}

// Login authenticates a user and returns a JWT plus the profile.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	token, profile, err := h.store.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAuthenticationFailed) {
			abortWithError(c, http.StatusUnauthorized, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred during login")
		}
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:   token,
		Profile: mapProfileToResponse(profile),
	})
}
