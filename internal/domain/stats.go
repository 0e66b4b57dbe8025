package domain

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Gender as reported by the user on the settings form. Empty means unspecified.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// PhysicalStatsRecord is one snapshot of a user's physical stats.
// Records are append-only: every stats change inserts a new record, and the
// most recent RecordedAt represents the user's current stats.
type PhysicalStatsRecord struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID   primitive.ObjectID `bson:"userId" json:"userId"`
	HeightCm *float64           `bson:"heightCm,omitempty" json:"heightCm,omitempty"`
	WeightKg *float64           `bson:"weightKg,omitempty" json:"weightKg,omitempty"`
	Age      *int               `bson:"age,omitempty" json:"age,omitempty"`
	Gender   Gender             `bson:"gender,omitempty" json:"gender,omitempty"`
	// BMI is derived from height/weight at write time and stored with the record.
	BMI        *float64  `bson:"bmi,omitempty" json:"bmi,omitempty"`
	RecordedAt time.Time `bson:"recordedAt" json:"recordedAt"`
}

// ComputeBMI derives body-mass index from height in cm and weight in kg,
// rounded to one decimal place. Returns nil if either value is missing or
// non-positive. Pure, safe to call repeatedly for live preview.
func ComputeBMI(heightCm, weightKg *float64) *float64 {
	if heightCm == nil || weightKg == nil {
		return nil
	}
	h, w := *heightCm, *weightKg
	if h <= 0 || w <= 0 {
		return nil
	}
	meters := h / 100
	bmi := w / (meters * meters)
	rounded := math.Round(bmi*10) / 10
	return &rounded
}
