package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"fitsync/settings-app/internal/domain"
	"fitsync/settings-app/internal/repository"
	"fitsync/settings-app/internal/service"

	"github.com/gin-gonic/gin"
)

// SettingsHandler exposes the settings page workflow over HTTP.
type SettingsHandler struct {
	settingsService service.SettingsService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settingsService service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// --- Request/Response Structs ---

type StatsResponse struct {
	HeightCm   *float64      `json:"heightCm,omitempty"`
	WeightKg   *float64      `json:"weightKg,omitempty"`
	Age        *int          `json:"age,omitempty"`
	Gender     domain.Gender `json:"gender,omitempty"`
	BMI        *float64      `json:"bmi,omitempty"`
	RecordedAt time.Time     `json:"recordedAt"`
}

type LinkedPlanResponse struct {
	PlanID string `json:"planId"`
	Name   string `json:"name"`
}

type GoalResponse struct {
	ID           string               `json:"id"`
	Type         domain.GoalType      `json:"type"`
	Status       domain.GoalStatus    `json:"status"`
	MetricType   string               `json:"metricType,omitempty"`
	CurrentValue float64              `json:"currentValue"`
	TargetValue  float64              `json:"targetValue"`
	Frequency    string               `json:"frequency,omitempty"`
	StartDate    time.Time            `json:"startDate"`
	TargetDate   time.Time            `json:"targetDate"`
	LinkedPlans  []LinkedPlanResponse `json:"linkedPlans,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
}

type SnapshotResponse struct {
	Profile ProfileResponse   `json:"profile"`
	Stats   *StatsResponse    `json:"stats"`
	Goals   []GoalResponse    `json:"goals"`
	Form    service.FormState `json:"form"`
	State   string            `json:"state"`
}

type SubmitResponse struct {
	Message      string            `json:"message"`
	NoChanges    bool              `json:"noChanges"`
	SubmissionID string            `json:"submissionId,omitempty"`
	Snapshot     *SnapshotResponse `json:"snapshot,omitempty"`
}

type PhotoUploadURLRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

type ConfirmPhotoRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

func mapSnapshotToResponse(snapshot *repository.Snapshot, form service.FormState, state service.ControllerState) *SnapshotResponse {
	resp := &SnapshotResponse{
		Goals: []GoalResponse{},
		Form:  form,
		State: string(state),
	}
	if snapshot == nil {
		return resp
	}
	if snapshot.Profile != nil {
		resp.Profile = mapProfileToResponse(snapshot.Profile)
	}
	if snapshot.Stats != nil {
		resp.Stats = &StatsResponse{
			HeightCm:   snapshot.Stats.HeightCm,
			WeightKg:   snapshot.Stats.WeightKg,
			Age:        snapshot.Stats.Age,
			Gender:     snapshot.Stats.Gender,
			BMI:        snapshot.Stats.BMI,
			RecordedAt: snapshot.Stats.RecordedAt,
		}
	}
	for _, goal := range snapshot.Goals {
		goalResp := GoalResponse{
			ID:           goal.ID.Hex(),
			Type:         goal.Type,
			Status:       goal.Status,
			MetricType:   goal.MetricType,
			CurrentValue: goal.CurrentValue,
			TargetValue:  goal.TargetValue,
			Frequency:    goal.Frequency,
			StartDate:    goal.StartDate,
			TargetDate:   goal.TargetDate,
			CreatedAt:    goal.CreatedAt,
		}
		for _, plan := range goal.LinkedPlans {
			goalResp.LinkedPlans = append(goalResp.LinkedPlans, LinkedPlanResponse{
				PlanID: plan.PlanID.Hex(),
				Name:   plan.Name,
			})
		}
		resp.Goals = append(resp.Goals, goalResp)
	}
	return resp
}

// --- Handler Methods ---

// GetSettings loads the combined settings snapshot for the authenticated
// user and seeds the form.
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctrl := h.settingsService.Controller(userID)
	result, err := ctrl.Load(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			abortWithError(c, http.StatusNotFound, "Profile not found.")
		case errors.Is(err, service.ErrSubmitInFlight):
			abortWithError(c, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrStaleLoad):
			abortWithError(c, http.StatusConflict, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to load settings.")
		}
		return
	}

	c.JSON(http.StatusOK, mapSnapshotToResponse(result.Snapshot, result.Form, ctrl.State()))
}

// UpdateSettings submits the settings form. Unchanged forms produce a
// no-changes notice and no write.
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var form service.FormState
	if err := c.ShouldBindJSON(&form); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	ctrl := h.settingsService.Controller(userID)
	result, err := ctrl.Submit(c.Request.Context(), form)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmitInFlight):
			abortWithError(c, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrNotReady):
			abortWithError(c, http.StatusConflict, err.Error())
		default:
			// Write failures surface with the underlying message so the user
			// can see which sub-write failed; their edits stay in the form.
			abortWithError(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	if result.NoChanges {
		c.JSON(http.StatusOK, SubmitResponse{
			Message:   "No changes detected.",
			NoChanges: true,
		})
		return
	}

	var seeded service.FormState
	if result.Form != nil {
		seeded = *result.Form
	}
	c.JSON(http.StatusOK, SubmitResponse{
		Message:      "Settings updated.",
		SubmissionID: result.SubmissionID,
		Snapshot:     mapSnapshotToResponse(result.Snapshot, seeded, ctrl.State()),
	})
}

// RetrySettings re-runs a failed load.
func (h *SettingsHandler) RetrySettings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctrl := h.settingsService.Controller(userID)
	result, err := ctrl.Retry(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRetryNotAllowed):
			abortWithError(c, http.StatusConflict, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			abortWithError(c, http.StatusNotFound, "Profile not found.")
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to load settings.")
		}
		return
	}

	c.JSON(http.StatusOK, mapSnapshotToResponse(result.Snapshot, result.Form, ctrl.State()))
}

// RequestPhotoUploadURL returns a presigned URL for uploading a new profile
// photo.
func (h *SettingsHandler) RequestPhotoUploadURL(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req PhotoUploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	resp, err := h.settingsService.RequestPhotoUploadURL(c.Request.Context(), userID, req.ContentType)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPhotoType) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to generate upload URL.")
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ConfirmPhoto records an uploaded object as the profile photo.
func (h *SettingsHandler) ConfirmPhoto(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req ConfirmPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	if err := h.settingsService.ConfirmPhoto(c.Request.Context(), userID, req.ObjectKey); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "Profile not found.")
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to confirm photo.")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Photo updated."})
}

// GetPhotoURL returns a temporary URL for viewing the current photo.
func (h *SettingsHandler) GetPhotoURL(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	url, err := h.settingsService.PhotoDownloadURL(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoPhoto), errors.Is(err, repository.ErrNotFound):
			abortWithError(c, http.StatusNotFound, "No photo available.")
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to generate download URL.")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
