package domain

import (
	"reflect"
	"testing"
)

func TestEquipmentRoundTrip(t *testing.T) {
	lists := [][]Equipment{
		{},
		{EquipmentDumbbells},
		{EquipmentDumbbells, EquipmentBarbell, EquipmentKettlebell},
		{EquipmentBench, EquipmentPullUpBar, EquipmentResistanceBands},
		{
			EquipmentResistanceBands,
			EquipmentKettlebell,
			EquipmentDumbbells,
			EquipmentBench,
			EquipmentBarbell,
			EquipmentPullUpBar,
		},
	}

	for _, list := range lists {
		encoded, err := EncodeEquipment(list)
		if err != nil {
			t.Fatalf("encode %v: %v", list, err)
		}
		decoded, err := DecodeEquipment(encoded)
		if err != nil {
			t.Fatalf("decode %q: %v", encoded, err)
		}
		if !reflect.DeepEqual(decoded, list) {
			t.Fatalf("round trip changed list: want %v, got %v", list, decoded)
		}
	}
}

func TestEncodeEquipmentNil(t *testing.T) {
	encoded, err := EncodeEquipment(nil)
	if err != nil {
		t.Fatalf("encode nil: %v", err)
	}
	if encoded != "[]" {
		t.Fatalf("nil list should encode as empty list, got %q", encoded)
	}
}

func TestDecodeEquipmentEmpty(t *testing.T) {
	decoded, err := DecodeEquipment("")
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("empty stored value should decode to empty list, got %v", decoded)
	}
}

func TestDecodeEquipmentMalformed(t *testing.T) {
	if _, err := DecodeEquipment("{not json"); err == nil {
		t.Fatal("expected an error for malformed input")
	}
	if _, err := DecodeEquipment(`{"a":1}`); err == nil {
		t.Fatal("expected an error for a non-list value")
	}
}
