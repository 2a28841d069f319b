package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

var _ contractx.ProductCatalog = (*Catalog)(nil)

type Option func(*Catalog)

// WithRand injects the random source used for selection.
func WithRand(rng *rand.Rand) Option {
	return func(c *Catalog) {
		if rng != nil {
			c.rng = rng
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// Catalog picks products from a primary source, falling back to a secondary
// one only when the primary is unreadable or empty.
type Catalog struct {
	primary  Source
	fallback Source

	mu     sync.Mutex
	rng    *rand.Rand
	logger zerolog.Logger
}

func New(primary Source, fallback Source, opts ...Option) (*Catalog, error) {
	if primary == nil && fallback == nil {
		return nil, errors.New("at least one product source is required")
	}

	seed := uint64(time.Now().UnixNano())
	c := &Catalog{
		primary:  primary,
		fallback: fallback,
		rng:      rand.New(rand.NewPCG(seed, seed>>1)),
		logger:   log.Logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// SelectProduct returns a uniformly random product from the first source that
// has any.
func (c *Catalog) SelectProduct(ctx context.Context) (contractx.Product, error) {
	products, err := c.available(ctx)
	if err != nil {
		return contractx.Product{}, err
	}

	c.mu.Lock()
	idx := c.rng.IntN(len(products))
	c.mu.Unlock()

	return products[idx], nil
}

// Find returns the first product whose name or id contains query, searching
// both sources.
func (c *Catalog) Find(ctx context.Context, query string) (contractx.Product, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return contractx.Product{}, fmt.Errorf("%w: product query is empty", contractx.ErrValidation)
	}
	for _, src := range []Source{c.primary, c.fallback} {
		if src == nil {
			continue
		}
		products, err := src.Products(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Str("source", src.Name()).Msg("product source unreadable")
			continue
		}
		for _, p := range products {
			if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.ID), q) {
				return p, nil
			}
		}
	}
	return contractx.Product{}, fmt.Errorf("%w: no product matches %q", contractx.ErrNoProductsAvailable, query)
}

func (c *Catalog) available(ctx context.Context) ([]contractx.Product, error) {
	var errs []string
	for _, src := range []Source{c.primary, c.fallback} {
		if src == nil {
			continue
		}
		products, err := src.Products(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			c.logger.Warn().Err(err).Str("source", src.Name()).Msg("product source unreadable, trying next")
			errs = append(errs, src.Name()+": "+err.Error())
			continue
		}
		if len(products) == 0 {
			c.logger.Debug().Str("source", src.Name()).Msg("product source empty, trying next")
			errs = append(errs, src.Name()+": empty")
			continue
		}
		return products, nil
	}
	return nil, fmt.Errorf("%w: %w: %s", contractx.ErrNoProductsAvailable, contractx.ErrSourceUnavailable, strings.Join(errs, "; "))
}
