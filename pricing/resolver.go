// Package pricing maps a listing category and asking price to a credit
// cost. Resolve is a total function: malformed or unknown input degrades
// to the default cost instead of failing, so a bad category string can
// never block an otherwise-valid pricing decision.
package pricing

import (
	"strings"

	"github.com/xraph/credits/types"
)

// Credit costs per category tier. Vehicle listings cost more than general
// goods; commercial fleet listings sit above both.
const (
	CostGeneral    int64 = 1
	CostVehicle    int64 = 4
	CostCommercial int64 = 10
)

// FreeCategory is the reserved category that always resolves to zero.
const FreeCategory = "free"

// categoryCosts is the static category→cost table. Categories not listed
// here fall back to CostGeneral.
var categoryCosts = map[string]int64{
	"vehicles":            CostVehicle,
	"cars":                CostVehicle,
	"motorbikes":          CostVehicle,
	"boats":               CostVehicle,
	"caravans":            CostVehicle,
	"commercial-vehicles": CostCommercial,
	"fleet":               CostCommercial,
	FreeCategory:          0,
	"freebies":            0,
}

// Resolve returns the credit cost for publishing a listing, in order:
// a zero asking price is always free, even in paid categories; the
// reserved free category is free; otherwise the static table applies,
// with unknown categories falling back to the general-goods cost.
func Resolve(category string, itemPrice *types.Money) int64 {
	if itemPrice != nil && itemPrice.IsZero() {
		return 0
	}

	if cost, ok := categoryCosts[Normalize(category)]; ok {
		return cost
	}
	return CostGeneral
}

// Normalize canonicalizes a category string for table lookup.
func Normalize(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
