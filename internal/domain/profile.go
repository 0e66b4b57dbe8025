package domain

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Equipment is one item of training equipment a user has available.
type Equipment string

// Define constants for the supported equipment items
const (
	EquipmentDumbbells       Equipment = "Dumbbells"
	EquipmentBarbell         Equipment = "Barbell"
	EquipmentKettlebell      Equipment = "Kettlebell"
	EquipmentResistanceBands Equipment = "Resistance Bands"
	EquipmentPullUpBar       Equipment = "Pull-Up Bar"
	EquipmentBench           Equipment = "Bench"
)

// Profile represents a user's account and settings-page data.
type Profile struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	PhotoURL     string             `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`

	// AvailableEquipment is the decoded list the rest of the app works with.
	// The document stores it as a JSON-encoded string (RawEquipment); the
	// repository layer converts between the two on read/write.
	AvailableEquipment []Equipment `bson:"-" json:"availableEquipment"`
	RawEquipment       string      `bson:"availableEquipment,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// EncodeEquipment serializes an equipment list to its stored string form.
// A nil list encodes the same as an empty one.
func EncodeEquipment(list []Equipment) (string, error) {
	if list == nil {
		list = []Equipment{}
	}
	encoded, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// DecodeEquipment parses the stored string form back into a list.
// An empty stored value decodes to an empty list, not an error.
func DecodeEquipment(raw string) ([]Equipment, error) {
	if raw == "" {
		return []Equipment{}, nil
	}
	var list []Equipment
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []Equipment{}
	}
	return list, nil
}
