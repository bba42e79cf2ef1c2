package plan

import (
	"time"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/types"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDraft    Status = "draft"
)

// Plan is the template a subscription is minted from: price, duration,
// included credit grant, and posting terms. Plans are immutable once an
// active subscription references them: the grant reconciler snapshots
// IncludedCredits and UnlimitedPosting onto the subscription, so edits
// here only affect future subscriptions.
type Plan struct {
	types.Entity
	ID               id.PlanID         `json:"id"`
	Name             string            `json:"name"`
	Slug             string            `json:"slug"`
	Description      string            `json:"description"`
	Status           Status            `json:"status"`
	Price            types.Money       `json:"price"`
	DurationDays     int               `json:"duration_days"`
	IncludedCredits  int64             `json:"included_credits"`
	UnlimitedPosting bool              `json:"unlimited_posting"`
	CostPerPost      int64             `json:"cost_per_post"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// PeriodFrom computes the [start, end) window for a subscription minted
// from this plan at the given start instant.
func (p *Plan) PeriodFrom(start time.Time) (time.Time, time.Time) {
	return start, start.AddDate(0, 0, p.DurationDays)
}
