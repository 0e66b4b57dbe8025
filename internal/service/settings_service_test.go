package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"fitsync/settings-app/internal/domain"
	"fitsync/settings-app/internal/logger"
	"fitsync/settings-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubSettingsRepo struct {
	mu           sync.Mutex
	snapshot     *repository.Snapshot
	fetchErr     error
	fetchCalls   int
	applyErr     error
	applyCalls   int
	lastUpdate   repository.UpdateRequest
	lastPhotoURL string
	applyStarted chan struct{}
	applyRelease chan struct{}
}

func (r *stubSettingsRepo) FetchSnapshot(_ context.Context, _ primitive.ObjectID) (*repository.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchCalls++
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return r.snapshot, nil
}

func (r *stubSettingsRepo) ApplyUpdate(_ context.Context, req repository.UpdateRequest) error {
	r.mu.Lock()
	r.applyCalls++
	r.lastUpdate = req
	err := r.applyErr
	release := r.applyRelease
	if r.applyStarted != nil {
		close(r.applyStarted)
		r.applyStarted = nil
	}
	r.mu.Unlock()

	if release != nil {
		<-release
	}
	return err
}

func (r *stubSettingsRepo) UpdatePhotoURL(_ context.Context, _ primitive.ObjectID, photoURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastPhotoURL = photoURL
	return nil
}

type stubInvalidator struct {
	mu    sync.Mutex
	calls int
	keys  [][]string
	err   error
}

func (i *stubInvalidator) Invalidate(_ context.Context, keys ...string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
	i.keys = append(i.keys, keys)
	return i.err
}

func (i *stubInvalidator) Close() error { return nil }

type stubRefresher struct {
	mu     sync.Mutex
	calls  int
	lastID primitive.ObjectID
	err    error
}

func (s *stubRefresher) RefreshProfile(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastID = userID
	return s.err
}

type stubFileStorage struct {
	uploadURL       string
	downloadURL     string
	uploadErr       error
	downloadErr     error
	lastObjectKey   string
	lastContentType string
}

func (s *stubFileStorage) GeneratePresignedUploadURL(_ context.Context, objectKey, contentType string, _ time.Duration) (string, error) {
	s.lastObjectKey = objectKey
	s.lastContentType = contentType
	return s.uploadURL, s.uploadErr
}

func (s *stubFileStorage) GeneratePresignedDownloadURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	s.lastObjectKey = objectKey
	return s.downloadURL, s.downloadErr
}

func (s *stubFileStorage) DeleteObject(_ context.Context, _ string) error { return nil }

func testSnapshot(userID primitive.ObjectID) *repository.Snapshot {
	return &repository.Snapshot{
		Profile: &domain.Profile{
			ID:                 userID,
			Name:               "Alice",
			AvailableEquipment: []domain.Equipment{domain.EquipmentDumbbells},
		},
		Stats: testStats(userID),
		Goals: []domain.Goal{},
	}
}

func newTestController(userID primitive.ObjectID, repo *stubSettingsRepo, views *stubInvalidator, store *stubRefresher) *SettingsController {
	return NewSettingsController(userID, repo, views, store, logger.NewNop())
}

func TestControllerLoadSeedsForm(t *testing.T) {
	userID := primitive.NewObjectID()
	repo := &stubSettingsRepo{snapshot: testSnapshot(userID)}
	ctrl := newTestController(userID, repo, &stubInvalidator{}, &stubRefresher{})

	result, err := ctrl.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if ctrl.State() != StateReady {
		t.Fatalf("expected Ready, got %s", ctrl.State())
	}
	if result.Form.Name != "Alice" || result.Form.HeightCm != "170" || result.Form.WeightKg != "70" {
		t.Fatalf("form not seeded from snapshot: %+v", result.Form)
	}
}

func TestControllerLoadFailureAndRetry(t *testing.T) {
	userID := primitive.NewObjectID()
	repo := &stubSettingsRepo{fetchErr: repository.ErrNotFound}
	ctrl := newTestController(userID, repo, &stubInvalidator{}, &stubRefresher{})

	if _, err := ctrl.Load(context.Background()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if ctrl.State() != StateError {
		t.Fatalf("expected Error state, got %s", ctrl.State())
	}

	// The fetch works again; a manual retry must recover.
	repo.mu.Lock()
	repo.fetchErr = nil
	repo.snapshot = testSnapshot(userID)
	repo.mu.Unlock()

	if _, err := ctrl.Retry(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if ctrl.State() != StateReady {
		t.Fatalf("expected Ready after retry, got %s", ctrl.State())
	}

	// Retry is only valid from the Error state.
	if _, err := ctrl.Retry(context.Background()); !errors.Is(err, ErrRetryNotAllowed) {
		t.Fatalf("expected ErrRetryNotAllowed, got %v", err)
	}
}

func TestControllerLoadWithoutStats(t *testing.T) {
	userID := primitive.NewObjectID()
	snapshot := testSnapshot(userID)
	snapshot.Stats = nil // secondary read degraded
	repo := &stubSettingsRepo{snapshot: snapshot}
	ctrl := newTestController(userID, repo, &stubInvalidator{}, &stubRefresher{})

	result, err := ctrl.Load(context.Background())
	if err != nil {
		t.Fatalf("load should succeed without stats: %v", err)
	}
	if result.Snapshot.Profile == nil || result.Snapshot.Goals == nil {
		t.Fatal("profile and goals should still be populated")
	}
	if result.Form.HeightCm != "" || result.Form.WeightKg != "" || result.Form.Age != "" || result.Form.Gender != "" {
		t.Fatalf("stats fields should seed empty, got %+v", result.Form)
	}
}

func TestSubmitBeforeLoad(t *testing.T) {
	userID := primitive.NewObjectID()
	ctrl := newTestController(userID, &stubSettingsRepo{}, &stubInvalidator{}, &stubRefresher{})

	if _, err := ctrl.Submit(context.Background(), FormState{}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestSubmitNoChanges(t *testing.T) {
	userID := primitive.NewObjectID()
	repo := &stubSettingsRepo{snapshot: testSnapshot(userID)}
	views := &stubInvalidator{}
	store := &stubRefresher{}
	ctrl := newTestController(userID, repo, views, store)

	loaded, err := ctrl.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	result, err := ctrl.Submit(context.Background(), loaded.Form)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.NoChanges {
		t.Fatal("expected a no-changes result")
	}
	if repo.applyCalls != 0 {
		t.Fatalf("no write should be issued, got %d apply calls", repo.applyCalls)
	}
	if views.calls != 0 || store.calls != 0 {
		t.Fatal("no side effects should run for a no-changes submit")
	}
	if ctrl.State() != StateReady {
		t.Fatalf("expected Ready, got %s", ctrl.State())
	}
}

func TestSubmitSuccessRunsSideEffectsOnce(t *testing.T) {
	userID := primitive.NewObjectID()
	repo := &stubSettingsRepo{snapshot: testSnapshot(userID)}
	views := &stubInvalidator{}
	store := &stubRefresher{}
	ctrl := newTestController(userID, repo, views, store)

	loaded, err := ctrl.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	form := loaded.Form
	form.Name = "Bob"

	result, err := ctrl.Submit(context.Background(), form)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.NoChanges {
		t.Fatal("a renamed profile is a change")
	}
	if result.SubmissionID == "" {
		t.Fatal("expected a submission ID")
	}

	if repo.applyCalls != 1 {
		t.Fatalf("expected exactly one write, got %d", repo.applyCalls)
	}
	if repo.lastUpdate.Profile.Name == nil || *repo.lastUpdate.Profile.Name != "Bob" {
		t.Fatalf("profile update should carry the new name: %+v", repo.lastUpdate.Profile)
	}
	if repo.lastUpdate.Stats != nil {
		t.Fatalf("stats did not change, update should omit them: %+v", repo.lastUpdate.Stats)
	}

	wantKeys := []string{
		"userProfileData:" + userID.Hex(),
		"dashboardData:" + userID.Hex(),
		"userGoals:" + userID.Hex(),
	}
	if views.calls != 1 || !reflect.DeepEqual(views.keys[0], wantKeys) {
		t.Fatalf("expected one invalidation of %v, got %v", wantKeys, views.keys)
	}
	if store.calls != 1 || store.lastID != userID {
		t.Fatalf("expected exactly one profile refresh for %s, got %d calls for %s",
			userID.Hex(), store.calls, store.lastID.Hex())
	}
	if repo.fetchCalls != 2 {
		t.Fatalf("expected a snapshot refresh after the write, got %d fetches", repo.fetchCalls)
	}
	if ctrl.State() != StateReady {
		t.Fatalf("expected Ready, got %s", ctrl.State())
	}
}

func TestSubmitAgeOnlyChange(t *testing.T) {
	userID := primitive.NewObjectID()
	repo := &stubSettingsRepo{snapshot: testSnapshot(userID)}
	ctrl := newTestController(userID, repo, &stubInvalidator{}, &stubRefresher{})

	loaded, err := ctrl.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	form := loaded.Form
	form.Age = "31"

	if _, err := ctrl.Submit(context.Background(), form); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if !repo.lastUpdate.Profile.IsEmpty() {
		t.Fatalf("profile did not change, update should be empty: %+v", repo.lastUpdate.Profile)
	}
	stats := repo.lastUpdate.Stats
	if stats == nil {
		t.Fatal("expected a stats update")
	}
	if stats.HeightCm == nil || *stats.HeightCm != 170 ||
		stats.WeightKg == nil || *stats.WeightKg != 70 ||
		stats.Age == nil || *stats.Age != 31 ||
		stats.Gender != domain.GenderFemale {
		t.Fatalf("stats update should carry all four fields from the form: %+v", stats)
	}
}

func TestSubmitWriteFailurePreservesReadyState(t *testing.T) {
	userID := primitive.NewObjectID()
	repo := &stubSettingsRepo{
		snapshot: testSnapshot(userID),
		applyErr: errors.New("stats insert failed: connection reset"),
	}
	views := &stubInvalidator{}
	store := &stubRefresher{}
	ctrl := newTestController(userID, repo, views, store)

	loaded, err := ctrl.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	form := loaded.Form
	form.Age = "31"

	_, err = ctrl.Submit(context.Background(), form)
	if err == nil || !strings.Contains(err.Error(), "stats insert failed") {
		t.Fatalf("expected the sub-write failure message, got %v", err)
	}
	if ctrl.State() != StateReady {
		t.Fatalf("a failed write should return to Ready, got %s", ctrl.State())
	}
	if views.calls != 0 || store.calls != 0 {
		t.Fatal("side effects must not run after a failed write")
	}

	// The user resubmits the same form once the backend recovers.
	repo.mu.Lock()
	repo.applyErr = nil
	repo.mu.Unlock()

	if _, err := ctrl.Submit(context.Background(), form); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if repo.applyCalls != 2 {
		t.Fatalf("expected two apply attempts, got %d", repo.applyCalls)
	}
}

func TestSubmitRejectsConcurrentSubmit(t *testing.T) {
	userID := primitive.NewObjectID()
	repo := &stubSettingsRepo{
		snapshot:     testSnapshot(userID),
		applyStarted: make(chan struct{}),
		applyRelease: make(chan struct{}),
	}
	ctrl := newTestController(userID, repo, &stubInvalidator{}, &stubRefresher{})

	loaded, err := ctrl.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	form := loaded.Form
	form.Age = "31"

	started := repo.applyStarted
	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Submit(context.Background(), form)
		done <- err
	}()

	<-started

	if _, err := ctrl.Submit(context.Background(), form); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("second submit should be rejected, got %v", err)
	}
	if _, err := ctrl.Load(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("load during submit should be rejected, got %v", err)
	}

	close(repo.applyRelease)
	if err := <-done; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if repo.applyCalls != 1 {
		t.Fatalf("only the first submit should write, got %d", repo.applyCalls)
	}
	if ctrl.State() != StateReady {
		t.Fatalf("expected Ready, got %s", ctrl.State())
	}
}

func TestServiceReusesControllerPerUser(t *testing.T) {
	userID := primitive.NewObjectID()
	svc := NewSettingsService(&stubSettingsRepo{}, nil, &stubInvalidator{}, &stubRefresher{}, &stubFileStorage{}, logger.NewNop())

	first := svc.Controller(userID)
	second := svc.Controller(userID)
	if first != second {
		t.Fatal("same user must get the same controller, or the in-flight guard is useless")
	}
	if other := svc.Controller(primitive.NewObjectID()); other == first {
		t.Fatal("different users must not share a controller")
	}
}

func TestRequestPhotoUploadURL(t *testing.T) {
	userID := primitive.NewObjectID()
	files := &stubFileStorage{uploadURL: "https://storage.example/presigned"}
	svc := NewSettingsService(&stubSettingsRepo{}, nil, &stubInvalidator{}, &stubRefresher{}, files, logger.NewNop())

	resp, err := svc.RequestPhotoUploadURL(context.Background(), userID, "image/png")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.UploadURL != "https://storage.example/presigned" {
		t.Fatalf("unexpected upload URL %q", resp.UploadURL)
	}
	if !strings.HasPrefix(resp.ObjectKey, "avatars/"+userID.Hex()+"/") || !strings.HasSuffix(resp.ObjectKey, ".png") {
		t.Fatalf("unexpected object key %q", resp.ObjectKey)
	}

	if _, err := svc.RequestPhotoUploadURL(context.Background(), userID, "video/mp4"); !errors.Is(err, ErrInvalidPhotoType) {
		t.Fatalf("expected ErrInvalidPhotoType, got %v", err)
	}
}

func TestConfirmPhoto(t *testing.T) {
	userID := primitive.NewObjectID()
	repo := &stubSettingsRepo{}
	views := &stubInvalidator{}
	store := &stubRefresher{}
	svc := NewSettingsService(repo, nil, views, store, &stubFileStorage{}, logger.NewNop())

	key := "avatars/" + userID.Hex() + "/photo.png"
	if err := svc.ConfirmPhoto(context.Background(), userID, key); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if repo.lastPhotoURL != key {
		t.Fatalf("photo URL not recorded, got %q", repo.lastPhotoURL)
	}
	if views.calls != 1 || store.calls != 1 {
		t.Fatalf("expected one invalidation and one refresh, got %d/%d", views.calls, store.calls)
	}
}
