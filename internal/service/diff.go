package service

import (
	"strconv"
	"strings"

	"fitsync/settings-app/internal/domain"
	"fitsync/settings-app/internal/repository"
)

// FormState mirrors the settings form: stats fields are raw strings because
// that is what the form holds, with "" meaning the user left the field blank.
type FormState struct {
	Name               string             `json:"name"`
	AvailableEquipment []domain.Equipment `json:"availableEquipment"`
	HeightCm           string             `json:"heightCm"`
	WeightKg           string             `json:"weightKg"`
	Age                string             `json:"age"`
	Gender             string             `json:"gender"`
}

// SeedForm builds the initial form state from a snapshot: equipment falls
// back to an empty list, stats fields to empty strings.
func SeedForm(snapshot *repository.Snapshot) FormState {
	form := FormState{
		AvailableEquipment: []domain.Equipment{},
	}
	if snapshot == nil {
		return form
	}
	if snapshot.Profile != nil {
		form.Name = snapshot.Profile.Name
		if snapshot.Profile.AvailableEquipment != nil {
			form.AvailableEquipment = snapshot.Profile.AvailableEquipment
		}
	}
	if snapshot.Stats != nil {
		form.HeightCm = formatDecimal(snapshot.Stats.HeightCm)
		form.WeightKg = formatDecimal(snapshot.Stats.WeightKg)
		form.Age = formatInt(snapshot.Stats.Age)
		form.Gender = string(snapshot.Stats.Gender)
	}
	return form
}

// DiffProfile computes the minimal profile patch: name only when it changed,
// equipment only when its canonical serialized form changed. The equipment
// comparison is order-sensitive on purpose; the list is small and
// user-controlled.
func DiffProfile(form FormState, original *domain.Profile) repository.ProfileUpdate {
	var update repository.ProfileUpdate
	if original == nil {
		return update
	}

	if form.Name != original.Name {
		name := form.Name
		update.Name = &name
	}

	formEncoded, _ := domain.EncodeEquipment(form.AvailableEquipment)
	originalEncoded, _ := domain.EncodeEquipment(original.AvailableEquipment)
	if formEncoded != originalEncoded {
		list := form.AvailableEquipment
		if list == nil {
			list = []domain.Equipment{}
		}
		update.AvailableEquipment = &list
	}

	return update
}

// DiffStats returns nil when none of height/weight/age/gender changed,
// treating a blank form value and an absent original value as equal. When
// anything changed it returns all four fields parsed from the current form,
// because stats writes are always full new records.
func DiffStats(form FormState, original *domain.PhysicalStatsRecord) *repository.StatsUpdate {
	height := parseDecimal(form.HeightCm)
	weight := parseDecimal(form.WeightKg)
	age := parseInt(form.Age)
	gender := domain.Gender(strings.TrimSpace(form.Gender))

	var (
		origHeight *float64
		origWeight *float64
		origAge    *int
		origGender domain.Gender
	)
	if original != nil {
		origHeight = original.HeightCm
		origWeight = original.WeightKg
		origAge = original.Age
		origGender = original.Gender
	}

	if decimalEqual(height, origHeight) &&
		decimalEqual(weight, origWeight) &&
		intEqual(age, origAge) &&
		gender == origGender {
		return nil
	}

	return &repository.StatsUpdate{
		HeightCm: height,
		WeightKg: weight,
		Age:      age,
		Gender:   gender,
	}
}

// parseDecimal maps "" and unparseable input to the no-value sentinel (nil).
func parseDecimal(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &value
}

func parseInt(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &value
}

func formatDecimal(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}

func formatInt(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}

func decimalEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func intEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
