package packer

import (
	"encoding/json"
	"testing"
)

func TestNumberFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   Number
		def  float64
		want float64
	}{
		{in: "2.5", def: 0, want: 2.5},
		{in: " 7 ", def: 0, want: 7},
		{in: "", def: 1, want: 1},
		{in: "x", def: 1, want: 1},
		{in: "NaN", def: 0, want: 0},
		{in: "-3", def: 0, want: -3},
	}
	for _, tc := range tests {
		if got := tc.in.Float(tc.def); got != tc.want {
			t.Fatalf("Number(%q).Float(%v) = %v, want %v", tc.in, tc.def, got, tc.want)
		}
	}
}

func TestOrderLineDecodesMixedNumbers(t *testing.T) {
	t.Parallel()

	var line OrderLine
	payload := `{"storeId":"S1","armId":"A","productId":"P1","quantity":3,"totalWeight":"1.5","totalVolume":null}`
	if err := json.Unmarshal([]byte(payload), &line); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if line.Quantity.Float(1) != 3 || line.TotalWeight.Float(0) != 1.5 || line.TotalVolume.Float(0) != 0 {
		t.Fatalf("unexpected numbers: %+v", line)
	}
	if id, ok := line.Arm.ID(); !ok || id != "A" {
		t.Fatalf("expected arm A, got %v", line.Arm)
	}

	var noArm OrderLine
	if err := json.Unmarshal([]byte(`{"storeId":"S1","armId":null}`), &noArm); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := noArm.Arm.ID(); ok {
		t.Fatalf("expected no arm")
	}
}
