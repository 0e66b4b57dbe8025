package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitsync/settings-app/internal/domain"
	"fitsync/settings-app/internal/logger"
	"fitsync/settings-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

const (
	profileCollectionName     = "profiles"
	statsCollectionName       = "physical_stats"
	goalCollectionName        = "goals"
	workoutPlanCollectionName = "workout_plans"
)

// workoutPlanRef is the slice of a plan document needed to resolve goal links.
type workoutPlanRef struct {
	ID   primitive.ObjectID `bson:"_id"`
	Name string             `bson:"name"`
}

// mongoSettingsRepository implements repository.SettingsRepository over the
// profile, stats, goal and workout-plan collections.
type mongoSettingsRepository struct {
	profiles *mongo.Collection
	stats    *mongo.Collection
	goals    *mongo.Collection
	plans    *mongo.Collection
	log      *logger.Logger
}

// NewMongoSettingsRepository creates a new settings repository.
// It expects a connected *mongo.Database instance.
func NewMongoSettingsRepository(db *mongo.Database, log *logger.Logger) repository.SettingsRepository {
	return &mongoSettingsRepository{
		profiles: db.Collection(profileCollectionName),
		stats:    db.Collection(statsCollectionName),
		goals:    db.Collection(goalCollectionName),
		plans:    db.Collection(workoutPlanCollectionName),
		log:      log.With("repo", "SettingsRepository"),
	}
}

// FetchSnapshot assembles the profile, latest stats record and goals for one
// user. The three reads run concurrently. Only the profile read can fail the
// call; stats and goals degrade to nil/empty so the page still renders.
func (r *mongoSettingsRepository) FetchSnapshot(ctx context.Context, userID primitive.ObjectID) (*repository.Snapshot, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID is required")
	}

	snapshot := &repository.Snapshot{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profile, err := r.fetchProfile(gctx, userID)
		if err != nil {
			return err
		}
		snapshot.Profile = profile
		return nil
	})

	g.Go(func() error {
		stats, err := r.fetchLatestStats(gctx, userID)
		if err != nil {
			// Secondary read: absorb the failure and render without stats.
			r.log.Warn("latest stats read failed, continuing without stats",
				"userId", userID.Hex(), "error", err)
			return nil
		}
		snapshot.Stats = stats
		return nil
	})

	g.Go(func() error {
		goals, err := r.fetchGoals(gctx, userID)
		if err != nil {
			r.log.Warn("goals read failed, continuing with empty goal list",
				"userId", userID.Hex(), "error", err)
			snapshot.Goals = []domain.Goal{}
			return nil
		}
		snapshot.Goals = goals
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (r *mongoSettingsRepository) fetchProfile(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.profiles.FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	// The equipment field is stored as a JSON-encoded string. A malformed
	// value must never fail the fetch: substitute an empty list instead.
	list, err := domain.DecodeEquipment(profile.RawEquipment)
	if err != nil {
		r.log.Warn("malformed equipment field, substituting empty list",
			"userId", userID.Hex(), "raw", profile.RawEquipment, "error", err)
		list = []domain.Equipment{}
	}
	profile.AvailableEquipment = list

	return &profile, nil
}

func (r *mongoSettingsRepository) fetchLatestStats(ctx context.Context, userID primitive.ObjectID) (*domain.PhysicalStatsRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "recordedAt", Value: -1}})

	var record domain.PhysicalStatsRecord
	err := r.stats.FindOne(ctx, bson.M{"userId": userID}, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// No stats yet is a normal state, not an error.
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *mongoSettingsRepository) fetchGoals(ctx context.Context, userID primitive.ObjectID) ([]domain.Goal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.goals.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var goals []domain.Goal
	if err = cursor.All(ctx, &goals); err != nil {
		return nil, err
	}
	if goals == nil {
		goals = []domain.Goal{}
	}

	r.resolveLinkedPlans(ctx, goals)

	return goals, nil
}

// resolveLinkedPlans maps each goal's linked plan IDs to plan names with a
// single $in query. Resolution failures only cost the display names, so they
// are logged and swallowed.
func (r *mongoSettingsRepository) resolveLinkedPlans(ctx context.Context, goals []domain.Goal) {
	var planIDs []primitive.ObjectID
	for _, goal := range goals {
		planIDs = append(planIDs, goal.LinkedPlanIDs...)
	}
	if len(planIDs) == 0 {
		return
	}

	cursor, err := r.plans.Find(ctx, bson.M{"_id": bson.M{"$in": planIDs}})
	if err != nil {
		r.log.Warn("linked plan lookup failed", "error", err)
		return
	}
	defer cursor.Close(ctx)

	var refs []workoutPlanRef
	if err = cursor.All(ctx, &refs); err != nil {
		r.log.Warn("linked plan decode failed", "error", err)
		return
	}

	nameByID := make(map[primitive.ObjectID]string, len(refs))
	for _, ref := range refs {
		nameByID[ref.ID] = ref.Name
	}

	for i := range goals {
		for _, planID := range goals[i].LinkedPlanIDs {
			name, ok := nameByID[planID]
			if !ok {
				continue // plan was deleted; skip rather than show a blank name
			}
			goals[i].LinkedPlans = append(goals[i].LinkedPlans, domain.LinkedPlan{
				PlanID: planID,
				Name:   name,
			})
		}
	}
}

// ApplyUpdate runs the profile patch and the stats insert concurrently. The
// two sub-writes are independent operations, not a transaction: whichever
// side succeeded stays persisted even if the other fails.
func (r *mongoSettingsRepository) ApplyUpdate(ctx context.Context, req repository.UpdateRequest) error {
	if req.UserID == primitive.NilObjectID {
		return errors.New("user ID is required")
	}
	if req.Profile.IsEmpty() && req.Stats == nil {
		return nil
	}

	// Plain errgroup.Group on purpose: a failing sub-write must not cancel
	// its sibling.
	var g errgroup.Group

	if !req.Profile.IsEmpty() {
		g.Go(func() error {
			if err := r.updateProfile(ctx, req.UserID, req.Profile); err != nil {
				return fmt.Errorf("profile update failed: %w", err)
			}
			return nil
		})
	}

	if req.Stats != nil {
		g.Go(func() error {
			if err := r.insertStatsRecord(ctx, req.UserID, *req.Stats); err != nil {
				return fmt.Errorf("stats insert failed: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (r *mongoSettingsRepository) updateProfile(ctx context.Context, userID primitive.ObjectID, update repository.ProfileUpdate) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.AvailableEquipment != nil {
		// Re-encode the list back to its stored string form.
		encoded, err := domain.EncodeEquipment(*update.AvailableEquipment)
		if err != nil {
			return err
		}
		set["availableEquipment"] = encoded
	}

	result, err := r.profiles.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// insertStatsRecord appends a new stats record. Stats are a time series:
// writes never mutate an existing record.
func (r *mongoSettingsRepository) insertStatsRecord(ctx context.Context, userID primitive.ObjectID, update repository.StatsUpdate) error {
	record := domain.PhysicalStatsRecord{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		HeightCm:   update.HeightCm,
		WeightKg:   update.WeightKg,
		Age:        update.Age,
		Gender:     update.Gender,
		BMI:        domain.ComputeBMI(update.HeightCm, update.WeightKg),
		RecordedAt: time.Now().UTC(),
	}

	_, err := r.stats.InsertOne(ctx, record)
	return err
}

// UpdatePhotoURL patches just the photo reference on the profile document.
func (r *mongoSettingsRepository) UpdatePhotoURL(ctx context.Context, userID primitive.ObjectID, photoURL string) error {
	result, err := r.profiles.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"photoUrl": photoURL, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureSettingsIndexes creates the indexes the snapshot reads rely on.
// Call this once during application startup.
func EnsureSettingsIndexes(ctx context.Context, db *mongo.Database, log *logger.Logger) {
	statsIndexes := []mongo.IndexModel{
		{
			// Latest-by-recency read: userId filter, recordedAt desc sort.
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "recordedAt", Value: -1}},
		},
	}
	goalIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	}

	if _, err := db.Collection(statsCollectionName).Indexes().CreateMany(ctx, statsIndexes); err != nil {
		log.Warn("failed to create stats indexes", "error", err)
	}
	if _, err := db.Collection(goalCollectionName).Indexes().CreateMany(ctx, goalIndexes); err != nil {
		log.Warn("failed to create goal indexes", "error", err)
	}
}
