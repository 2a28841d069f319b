package orchestratornode

import (
	"context"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

func SelectProduct(
	ctx context.Context,
	in *GraphState,
	catalog contractx.ProductCatalog,
) (*GraphState, error) {
	if in == nil {
		return nil, ErrNilState
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		product contractx.Product
		err     error
	)
	if in.ProductQuery != "" {
		product, err = catalog.Find(ctx, in.ProductQuery)
	} else {
		product, err = catalog.SelectProduct(ctx)
	}
	if err != nil {
		return nil, err
	}

	in.Product = product
	log.Ctx(ctx).Info().Str("product_id", product.ID).Str("source", string(product.Source)).Msg("product selected")
	return in, nil
}
