package audit

import (
	"context"

	"github.com/xraph/credits/id"
)

// Store is the append-only audit trail backend.
type Store interface {
	Append(ctx context.Context, records []*Record) error
	List(ctx context.Context, accountID id.AccountID, opts ListOpts) ([]*Record, error)
}

type ListOpts struct {
	Action Action
	Limit  int
	Offset int
}
