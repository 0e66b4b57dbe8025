package mongo

import (
	"context"
	"errors"
	"time"

	"fitsync/settings-app/internal/domain"
	"fitsync/settings-app/internal/logger"
	"fitsync/settings-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoAccountRepository implements repository.AccountRepository over the
// profiles collection.
type mongoAccountRepository struct {
	collection *mongo.Collection
	log        *logger.Logger
}

// NewMongoAccountRepository creates a new account repository.
func NewMongoAccountRepository(db *mongo.Database, log *logger.Logger) repository.AccountRepository {
	return &mongoAccountRepository{
		collection: db.Collection(profileCollectionName),
		log:        log.With("repo", "AccountRepository"),
	}
}

// CreateProfile inserts a new profile at account creation.
func (r *mongoAccountRepository) CreateProfile(ctx context.Context, profile *domain.Profile) (primitive.ObjectID, error) {
	if profile.Email == "" || profile.PasswordHash == "" {
		return primitive.NilObjectID, errors.New("profile email and password hash are required")
	}

	encoded, err := domain.EncodeEquipment(profile.AvailableEquipment)
	if err != nil {
		return primitive.NilObjectID, err
	}
	profile.RawEquipment = encoded

	profile.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, profile)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, errors.New("profile with this email already exists")
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetProfileByEmail retrieves a profile by email address.
func (r *mongoAccountRepository) GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	r.decodeEquipment(&profile)
	return &profile, nil
}

// GetProfileByID retrieves a profile by its ObjectID.
func (r *mongoAccountRepository) GetProfileByID(ctx context.Context, id primitive.ObjectID) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	r.decodeEquipment(&profile)
	return &profile, nil
}

func (r *mongoAccountRepository) decodeEquipment(profile *domain.Profile) {
	list, err := domain.DecodeEquipment(profile.RawEquipment)
	if err != nil {
		r.log.Warn("malformed equipment field, substituting empty list",
			"userId", profile.ID.Hex(), "error", err)
		list = []domain.Equipment{}
	}
	profile.AvailableEquipment = list
}

// EnsureProfileIndexes creates the unique email index for the profiles
// collection. Call this once during application startup.
func EnsureProfileIndexes(ctx context.Context, db *mongo.Database, log *logger.Logger) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := db.Collection(profileCollectionName).Indexes().CreateMany(ctx, indexes); err != nil {
		log.Warn("failed to create profile indexes", "error", err)
	}
}
