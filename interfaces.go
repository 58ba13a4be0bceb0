package litgo

import (
	"context"

	"github.com/NicholasJacob1990/litgo/internal/model"
	"github.com/NicholasJacob1990/litgo/internal/offers"
)

// Store is the persistence capability the engine needs: the offer store plus
// case and candidate lookup. *storage.DB satisfies it; tests may pass an
// in-memory implementation.
type Store interface {
	offers.Store

	GetCase(ctx context.Context, id string) (model.Case, error)
	ListCandidates(ctx context.Context, area string) ([]*model.Lawyer, error)
}
