package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"fitsync/settings-app/internal/cache"
	"fitsync/settings-app/internal/logger"
	"fitsync/settings-app/internal/repository"
	"fitsync/settings-app/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrSubmitInFlight   = errors.New("a settings update is already in flight")
	ErrNotReady         = errors.New("settings have not been loaded")
	ErrStaleLoad        = errors.New("load superseded by a newer request")
	ErrRetryNotAllowed  = errors.New("retry is only available after a failed load")
	ErrNoPhoto          = errors.New("profile has no photo")
	ErrInvalidPhotoType = errors.New("invalid or missing image content type")
)

// ControllerState is the settings page lifecycle state.
type ControllerState string

const (
	StateIdle       ControllerState = "idle"
	StateLoading    ControllerState = "loading"
	StateReady      ControllerState = "ready"
	StateSubmitting ControllerState = "submitting"
	StateError      ControllerState = "error"
)

// ProfileRefresher is the slice of the profile store the controller calls
// after a successful write. The controller owns this side effect; the
// repository never touches global state.
type ProfileRefresher interface {
	RefreshProfile(ctx context.Context, userID primitive.ObjectID) error
}

// Cache keys for the views that depend on settings data.
func userProfileDataKey(userID primitive.ObjectID) string {
	return "userProfileData:" + userID.Hex()
}

func dashboardDataKey(userID primitive.ObjectID) string {
	return "dashboardData:" + userID.Hex()
}

func userGoalsKey(userID primitive.ObjectID) string {
	return "userGoals:" + userID.Hex()
}

// LoadResult carries the snapshot plus the form state seeded from it.
type LoadResult struct {
	Snapshot *repository.Snapshot `json:"snapshot"`
	Form     FormState            `json:"form"`
}

// SubmitResult reports what a submit did. NoChanges means no write was
// issued at all.
type SubmitResult struct {
	NoChanges    bool                 `json:"noChanges"`
	SubmissionID string               `json:"submissionId,omitempty"`
	Snapshot     *repository.Snapshot `json:"snapshot,omitempty"`
	Form         *FormState           `json:"form,omitempty"`
}

// SettingsController is the state machine behind one user's settings page:
// Idle -> Loading -> Ready/Error; Ready -Submit-> Submitting -> Ready;
// Error -Retry-> Loading. It owns the post-write side effects (cache
// invalidation, profile-store refresh) and guards against double submits.
type SettingsController struct {
	userID primitive.ObjectID
	repo   repository.SettingsRepository
	views  cache.ViewInvalidator
	store  ProfileRefresher
	log    *logger.Logger

	mu         sync.Mutex
	state      ControllerState
	generation uint64
	snapshot   *repository.Snapshot
}

// NewSettingsController creates a controller in the Idle state.
func NewSettingsController(
	userID primitive.ObjectID,
	repo repository.SettingsRepository,
	views cache.ViewInvalidator,
	store ProfileRefresher,
	log *logger.Logger,
) *SettingsController {
	return &SettingsController{
		userID: userID,
		repo:   repo,
		views:  views,
		store:  store,
		log:    log.With("controller", "settings", "userId", userID.Hex()),
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *SettingsController) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load fetches the snapshot and seeds the form. A load that finishes after a
// newer one started is discarded instead of applying stale state.
func (c *SettingsController) Load(ctx context.Context) (*LoadResult, error) {
	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	c.state = StateLoading
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	snapshot, err := c.repo.FetchSnapshot(ctx, c.userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return nil, ErrStaleLoad
	}
	if err != nil {
		c.state = StateError
		return nil, err
	}
	c.state = StateReady
	c.snapshot = snapshot
	return &LoadResult{Snapshot: snapshot, Form: SeedForm(snapshot)}, nil
}

// Retry re-enters Loading after a failed load. Only valid from Error.
func (c *SettingsController) Retry(ctx context.Context) (*LoadResult, error) {
	c.mu.Lock()
	if c.state != StateError {
		c.mu.Unlock()
		return nil, ErrRetryNotAllowed
	}
	c.mu.Unlock()
	return c.Load(ctx)
}

// Submit diffs the form against the loaded snapshot and applies the update.
// With no diff it reports NoChanges and issues no write. Exactly one write
// may be in flight: a concurrent Submit fails with ErrSubmitInFlight. On
// write failure the controller returns to Ready without touching the
// caller's form, so edits survive for resubmission.
func (c *SettingsController) Submit(ctx context.Context, form FormState) (*SubmitResult, error) {
	c.mu.Lock()
	switch c.state {
	case StateSubmitting:
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	case StateReady:
		// proceed
	default:
		c.mu.Unlock()
		return nil, ErrNotReady
	}

	profileDiff := DiffProfile(form, c.snapshot.Profile)
	statsDiff := DiffStats(form, c.snapshot.Stats)
	if profileDiff.IsEmpty() && statsDiff == nil {
		c.mu.Unlock()
		c.log.Info("submit with no changes, skipping write")
		return &SubmitResult{NoChanges: true}, nil
	}

	c.state = StateSubmitting
	previous := c.snapshot
	c.mu.Unlock()

	submissionID := uuid.NewString()
	c.log.Info("applying settings update",
		"submissionId", submissionID,
		"profileChanged", !profileDiff.IsEmpty(),
		"statsChanged", statsDiff != nil)

	err := c.repo.ApplyUpdate(ctx, repository.UpdateRequest{
		UserID:  c.userID,
		Profile: profileDiff,
		Stats:   statsDiff,
	})
	if err != nil {
		c.mu.Lock()
		c.state = StateReady
		c.mu.Unlock()
		return nil, err
	}

	c.finishUpdate(ctx)

	// Refresh the snapshot so the next diff runs against persisted state. A
	// failed refetch keeps the previous snapshot rather than failing a
	// submit that already succeeded.
	fresh, fetchErr := c.repo.FetchSnapshot(ctx, c.userID)
	if fetchErr != nil {
		c.log.Warn("snapshot refresh after update failed", "error", fetchErr)
		fresh = previous
	}

	c.mu.Lock()
	c.state = StateReady
	c.snapshot = fresh
	c.mu.Unlock()

	seeded := SeedForm(fresh)
	return &SubmitResult{
		SubmissionID: submissionID,
		Snapshot:     fresh,
		Form:         &seeded,
	}, nil
}

// finishUpdate runs the post-write side effects: invalidate the dependent
// cached views and refresh the global profile store, exactly once each.
// Neither failure can fail the submit; the write already happened.
func (c *SettingsController) finishUpdate(ctx context.Context) {
	keys := []string{
		userProfileDataKey(c.userID),
		dashboardDataKey(c.userID),
		userGoalsKey(c.userID),
	}
	if err := c.views.Invalidate(ctx, keys...); err != nil {
		c.log.Warn("cached view invalidation failed", "keys", keys, "error", err)
	}
	if err := c.store.RefreshProfile(ctx, c.userID); err != nil {
		c.log.Warn("profile store refresh failed", "error", err)
	}
}

// --- Service Interface ---

// PhotoUploadResponse returns the presigned URL and the key the client must
// report back on confirm.
type PhotoUploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// SettingsService hands out per-user controllers and owns the profile photo
// flow.
type SettingsService interface {
	Controller(userID primitive.ObjectID) *SettingsController

	RequestPhotoUploadURL(ctx context.Context, userID primitive.ObjectID, contentType string) (*PhotoUploadResponse, error)
	ConfirmPhoto(ctx context.Context, userID primitive.ObjectID, objectKey string) error
	PhotoDownloadURL(ctx context.Context, userID primitive.ObjectID) (string, error)
}

// settingsService implements the SettingsService interface.
type settingsService struct {
	repo     repository.SettingsRepository
	accounts repository.AccountRepository
	views    cache.ViewInvalidator
	store    ProfileRefresher
	files    storage.FileStorage
	log      *logger.Logger

	mu          sync.Mutex
	controllers map[primitive.ObjectID]*SettingsController
}

// NewSettingsService creates a new instance of settingsService.
func NewSettingsService(
	repo repository.SettingsRepository,
	accounts repository.AccountRepository,
	views cache.ViewInvalidator,
	store ProfileRefresher,
	files storage.FileStorage,
	log *logger.Logger,
) SettingsService {
	return &settingsService{
		repo:        repo,
		accounts:    accounts,
		views:       views,
		store:       store,
		files:       files,
		log:         log,
		controllers: make(map[primitive.ObjectID]*SettingsController),
	}
}

// Controller returns the user's settings controller, creating it on first
// use. One controller per user keeps the single-write-in-flight guard
// effective across rapid double submits.
func (s *settingsService) Controller(userID primitive.ObjectID) *SettingsController {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctrl, ok := s.controllers[userID]
	if !ok {
		ctrl = NewSettingsController(userID, s.repo, s.views, s.store, s.log)
		s.controllers[userID] = ctrl
	}
	return ctrl
}

// RequestPhotoUploadURL generates a presigned URL for uploading a new
// profile photo.
func (s *settingsService) RequestPhotoUploadURL(ctx context.Context, userID primitive.ObjectID, contentType string) (*PhotoUploadResponse, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID is required")
	}
	if contentType == "" || !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, ErrInvalidPhotoType
	}

	ext := photoExtension(contentType)
	objectKey := path.Join("avatars", userID.Hex(), uuid.NewString()+ext)

	uploadURL, err := s.files.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate upload URL: %w", err)
	}

	return &PhotoUploadResponse{UploadURL: uploadURL, ObjectKey: objectKey}, nil
}

// ConfirmPhoto records the uploaded object as the profile photo and runs the
// same dependent-view refresh a settings write does.
func (s *settingsService) ConfirmPhoto(ctx context.Context, userID primitive.ObjectID, objectKey string) error {
	if objectKey == "" {
		return errors.New("object key is required")
	}
	if err := s.repo.UpdatePhotoURL(ctx, userID, objectKey); err != nil {
		return err
	}

	if err := s.views.Invalidate(ctx, userProfileDataKey(userID)); err != nil {
		s.log.Warn("photo cache invalidation failed", "userId", userID.Hex(), "error", err)
	}
	if err := s.store.RefreshProfile(ctx, userID); err != nil {
		s.log.Warn("profile store refresh failed", "userId", userID.Hex(), "error", err)
	}
	return nil
}

// PhotoDownloadURL returns a temporary URL for viewing the current photo.
func (s *settingsService) PhotoDownloadURL(ctx context.Context, userID primitive.ObjectID) (string, error) {
	profile, err := s.accounts.GetProfileByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.PhotoURL == "" {
		return "", ErrNoPhoto
	}
	return s.files.GeneratePresignedDownloadURL(ctx, profile.PhotoURL, storage.DefaultPresignedURLExpiry)
}

func photoExtension(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
