package pricing

import (
	"testing"

	"github.com/xraph/credits/types"
)

func money(cents int64) *types.Money {
	m := types.USD(cents)
	return &m
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		category string
		price    *types.Money
		want     int64
	}{
		{"general goods", "furniture", nil, CostGeneral},
		{"vehicle", "vehicles", nil, CostVehicle},
		{"cars alias", "cars", nil, CostVehicle},
		{"commercial", "fleet", nil, CostCommercial},
		{"unknown falls back to general", "definitely-not-a-category", nil, CostGeneral},
		{"empty category falls back", "", nil, CostGeneral},
		{"free category", "free", nil, 0},
		{"freebies category", "freebies", nil, 0},
		{"case and whitespace normalized", "  Vehicles ", nil, CostVehicle},
		{"zero price always free", "vehicles", money(0), 0},
		{"zero price in commercial", "fleet", money(0), 0},
		{"priced vehicle still charged", "vehicles", money(250000), CostVehicle},
		{"priced general still charged", "furniture", money(5000), CostGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.category, tt.price); got != tt.want {
				t.Errorf("Resolve(%q, %v) = %d, want %d", tt.category, tt.price, got, tt.want)
			}
		})
	}
}

func TestResolveNeverNegative(t *testing.T) {
	for cat := range categoryCosts {
		if got := Resolve(cat, nil); got < 0 {
			t.Errorf("category %q resolves to negative cost %d", cat, got)
		}
	}
}
