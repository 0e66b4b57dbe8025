package repository

import (
	"context"

	"fitsync/settings-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Snapshot is the combined view the settings page is built from: the profile,
// the most recent stats record (nil when the user has none or the read
// degraded), and the user's goals with linked plan names resolved.
type Snapshot struct {
	Profile *domain.Profile
	Stats   *domain.PhysicalStatsRecord
	Goals   []domain.Goal
}

// ProfileUpdate is a partial patch of the profile document. Nil fields are
// left untouched.
type ProfileUpdate struct {
	Name               *string
	AvailableEquipment *[]domain.Equipment
}

// IsEmpty reports whether the patch would change nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.AvailableEquipment == nil
}

// StatsUpdate carries all four stats fields for a new append-only record.
// Stats writes are full records, never partial patches, so every field is
// present (nil meaning the user left it blank).
type StatsUpdate struct {
	HeightCm *float64
	WeightKg *float64
	Age      *int
	Gender   domain.Gender
}

// UpdateRequest describes one settings submit: the profile patch (possibly
// empty) and the stats record to append (possibly nil).
type UpdateRequest struct {
	UserID  primitive.ObjectID
	Profile ProfileUpdate
	Stats   *StatsUpdate
}

// SettingsRepository assembles and mutates the settings-page data. It is a
// pure data-access boundary: cache invalidation and profile-store refresh
// happen in the service layer, never here.
type SettingsRepository interface {
	// FetchSnapshot issues the profile, latest-stats and goals reads
	// concurrently. A profile read failure is fatal; stats or goals failures
	// degrade to nil/empty with a logged warning.
	FetchSnapshot(ctx context.Context, userID primitive.ObjectID) (*Snapshot, error)

	// ApplyUpdate runs the non-empty sub-writes concurrently as independent
	// operations. There is no transaction: if one side fails the other's
	// effect may still be visible. The returned error names the failing
	// sub-write.
	ApplyUpdate(ctx context.Context, req UpdateRequest) error

	// UpdatePhotoURL patches just the profile photo reference.
	UpdatePhotoURL(ctx context.Context, userID primitive.ObjectID, photoURL string) error
}

// AccountRepository covers the account-level profile operations used by the
// auth/profile store.
type AccountRepository interface {
	CreateProfile(ctx context.Context, profile *domain.Profile) (primitive.ObjectID, error)
	GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error)
	GetProfileByID(ctx context.Context, id primitive.ObjectID) (*domain.Profile, error)
}
