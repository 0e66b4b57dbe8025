package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GoalType classifies what the user is working toward.
type GoalType string

const (
	GoalTypeWeightLoss GoalType = "weight_loss"
	GoalTypeMuscleGain GoalType = "muscle_gain"
	GoalTypeEndurance  GoalType = "endurance"
	GoalTypeHabit      GoalType = "habit"
)

// GoalStatus tracks a goal's lifecycle.
type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
	GoalStatusAbandoned GoalStatus = "abandoned"
)

// LinkedPlan is a reference from a goal to a workout plan, resolved to the
// plan's name for display.
type LinkedPlan struct {
	PlanID primitive.ObjectID `bson:"planId" json:"planId"`
	Name   string             `bson:"name" json:"name"`
}

// Goal is read-only in this service. Creation and editing happen in the
// goal-creation flow; the settings page only lists goals alongside the
// profile and stats.
type Goal struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID   `bson:"userId" json:"userId"`
	Type          GoalType             `bson:"type" json:"type"`
	Status        GoalStatus           `bson:"status" json:"status"`
	MetricType    string               `bson:"metricType,omitempty" json:"metricType,omitempty"`
	CurrentValue  float64              `bson:"currentValue,omitempty" json:"currentValue,omitempty"`
	TargetValue   float64              `bson:"targetValue,omitempty" json:"targetValue,omitempty"`
	Frequency     string               `bson:"frequency,omitempty" json:"frequency,omitempty"`
	StartDate     time.Time            `bson:"startDate,omitempty" json:"startDate,omitempty"`
	TargetDate    time.Time            `bson:"targetDate,omitempty" json:"targetDate,omitempty"`
	LinkedPlanIDs []primitive.ObjectID `bson:"linkedPlanIds,omitempty" json:"-"`
	LinkedPlans   []LinkedPlan         `bson:"-" json:"linkedPlans,omitempty"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
}
