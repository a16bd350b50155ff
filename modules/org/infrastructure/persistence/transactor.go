package persistence

import (
	"context"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/services"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/composables"
)

// PgTransactor runs service units of work in SERIALIZABLE transactions on
// the pool bound to ctx. Serialization failures surface as pg errors and are
// mapped to services.ErrTransactionConflict by the service layer.
type PgTransactor struct{}

func NewPgTransactor() PgTransactor {
	return PgTransactor{}
}

var _ services.Transactor = PgTransactor{}

func (PgTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return composables.InSerializableTx(ctx, fn)
}
