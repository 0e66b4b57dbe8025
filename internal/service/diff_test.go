package service

import (
	"reflect"
	"testing"
	"time"

	"fitsync/settings-app/internal/domain"
	"fitsync/settings-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func testProfile() *domain.Profile {
	return &domain.Profile{
		ID:                 primitive.NewObjectID(),
		Name:               "Alice",
		AvailableEquipment: []domain.Equipment{domain.EquipmentDumbbells},
	}
}

func testStats(userID primitive.ObjectID) *domain.PhysicalStatsRecord {
	return &domain.PhysicalStatsRecord{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		HeightCm:   floatPtr(170),
		WeightKg:   floatPtr(70),
		Age:        intPtr(30),
		Gender:     domain.GenderFemale,
		BMI:        floatPtr(24.2),
		RecordedAt: time.Now().UTC(),
	}
}

func TestDiffProfileUnchanged(t *testing.T) {
	profile := testProfile()
	form := FormState{
		Name:               "Alice",
		AvailableEquipment: []domain.Equipment{domain.EquipmentDumbbells},
	}

	update := DiffProfile(form, profile)
	if !update.IsEmpty() {
		t.Fatalf("expected empty update, got %+v", update)
	}
}

func TestDiffProfileNameChanged(t *testing.T) {
	profile := testProfile()
	form := FormState{
		Name:               "Alicia",
		AvailableEquipment: []domain.Equipment{domain.EquipmentDumbbells},
	}

	update := DiffProfile(form, profile)
	if update.Name == nil || *update.Name != "Alicia" {
		t.Fatalf("expected name %q in update, got %+v", "Alicia", update)
	}
	if update.AvailableEquipment != nil {
		t.Fatalf("equipment did not change, update should omit it: %+v", update)
	}
}

func TestDiffProfileEquipmentOrderSensitive(t *testing.T) {
	profile := testProfile()
	profile.AvailableEquipment = []domain.Equipment{
		domain.EquipmentDumbbells,
		domain.EquipmentBarbell,
	}

	form := FormState{
		Name: "Alice",
		AvailableEquipment: []domain.Equipment{
			domain.EquipmentBarbell,
			domain.EquipmentDumbbells,
		},
	}

	update := DiffProfile(form, profile)
	if update.AvailableEquipment == nil {
		t.Fatal("reordered equipment should count as a change")
	}
	if !reflect.DeepEqual(*update.AvailableEquipment, form.AvailableEquipment) {
		t.Fatalf("update should carry the form's list, got %v", *update.AvailableEquipment)
	}
	if update.Name != nil {
		t.Fatalf("name did not change, update should omit it: %+v", update)
	}
}

func TestDiffProfileEquipmentMembershipChange(t *testing.T) {
	profile := testProfile()
	form := FormState{
		Name: "Alice",
		AvailableEquipment: []domain.Equipment{
			domain.EquipmentDumbbells,
			domain.EquipmentBench,
		},
	}

	update := DiffProfile(form, profile)
	if update.AvailableEquipment == nil {
		t.Fatal("added equipment should count as a change")
	}
}

func TestDiffStatsUnchanged(t *testing.T) {
	stats := testStats(primitive.NewObjectID())
	form := FormState{
		HeightCm: "170",
		WeightKg: "70",
		Age:      "30",
		Gender:   "female",
	}

	if update := DiffStats(form, stats); update != nil {
		t.Fatalf("expected nil update for unchanged stats, got %+v", update)
	}
}

func TestDiffStatsBlankEqualsAbsent(t *testing.T) {
	// No original record at all and an untouched blank form are the same.
	form := FormState{HeightCm: "", WeightKg: "", Age: "", Gender: ""}
	if update := DiffStats(form, nil); update != nil {
		t.Fatalf("blank form vs absent record should be no change, got %+v", update)
	}

	// A record whose fields were never filled behaves the same way.
	empty := &domain.PhysicalStatsRecord{}
	if update := DiffStats(form, empty); update != nil {
		t.Fatalf("blank form vs empty record should be no change, got %+v", update)
	}
}

func TestDiffStatsAgeOnlyChangeCarriesAllFields(t *testing.T) {
	stats := testStats(primitive.NewObjectID())
	form := FormState{
		HeightCm: "170",
		WeightKg: "70",
		Age:      "31",
		Gender:   "female",
	}

	update := DiffStats(form, stats)
	if update == nil {
		t.Fatal("expected a stats update when age changed")
	}
	want := &repository.StatsUpdate{
		HeightCm: floatPtr(170),
		WeightKg: floatPtr(70),
		Age:      intPtr(31),
		Gender:   domain.GenderFemale,
	}
	if !reflect.DeepEqual(update, want) {
		t.Fatalf("stats update should carry all four fields: want %+v, got %+v", want, update)
	}
}

func TestDiffStatsNonNumericTreatedAsBlank(t *testing.T) {
	stats := testStats(primitive.NewObjectID())
	form := FormState{
		HeightCm: "not a number",
		WeightKg: "70",
		Age:      "30",
		Gender:   "female",
	}

	update := DiffStats(form, stats)
	if update == nil {
		t.Fatal("clearing height should count as a change")
	}
	if update.HeightCm != nil {
		t.Fatalf("non-numeric height should map to no value, got %v", *update.HeightCm)
	}
}

func TestSeedFormFallbacks(t *testing.T) {
	snapshot := &repository.Snapshot{
		Profile: &domain.Profile{Name: "Alice"},
		Stats:   nil,
		Goals:   []domain.Goal{},
	}

	form := SeedForm(snapshot)
	if form.Name != "Alice" {
		t.Fatalf("expected name from profile, got %q", form.Name)
	}
	if form.AvailableEquipment == nil || len(form.AvailableEquipment) != 0 {
		t.Fatalf("equipment should fall back to an empty list, got %v", form.AvailableEquipment)
	}
	if form.HeightCm != "" || form.WeightKg != "" || form.Age != "" || form.Gender != "" {
		t.Fatalf("stats fields should fall back to empty strings, got %+v", form)
	}
}

func TestSeedFormFromStats(t *testing.T) {
	userID := primitive.NewObjectID()
	snapshot := &repository.Snapshot{
		Profile: testProfile(),
		Stats:   testStats(userID),
	}

	form := SeedForm(snapshot)
	if form.HeightCm != "170" || form.WeightKg != "70" || form.Age != "30" || form.Gender != "female" {
		t.Fatalf("form not seeded from stats: %+v", form)
	}

	// Seeding and immediately diffing must report no changes.
	if update := DiffStats(form, snapshot.Stats); update != nil {
		t.Fatalf("seeded form should diff clean, got %+v", update)
	}
	if update := DiffProfile(form, snapshot.Profile); !update.IsEmpty() {
		t.Fatalf("seeded form should diff clean, got %+v", update)
	}
}
