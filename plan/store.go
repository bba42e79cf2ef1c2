package plan

import (
	"context"

	"github.com/xraph/credits/id"
)

type Store interface {
	Create(ctx context.Context, p *Plan) error
	Get(ctx context.Context, planID id.PlanID) (*Plan, error)
	GetBySlug(ctx context.Context, slug string) (*Plan, error)
	List(ctx context.Context, opts ListOpts) ([]*Plan, error)
	Update(ctx context.Context, p *Plan) error
	Archive(ctx context.Context, planID id.PlanID) error
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
