package dataset

import (
	"context"
	"log"
	"sync"

	"item-diversity/internal/catalog"
	"item-diversity/internal/purchases"
	"item-diversity/internal/storage"

	"golang.org/x/sync/errgroup"
)

const progressEvery = 1000

// Source streams collected match documents one at a time
type Source interface {
	Each(ctx context.Context, fn func(doc *storage.MatchDocument) error) error
}

// Aggregator folds a Source into Tables
type Aggregator struct {
	catalog *catalog.Catalog
	workers int
	offset  int
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithWorkers extracts matches on n goroutines. Results are folded in arrival
// order so the tables are identical to a sequential run.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithOrdinalOffset sets the ordinal of the first match, for batches that are
// merged later
func WithOrdinalOffset(n int) Option {
	return func(a *Aggregator) {
		a.offset = n
	}
}

// NewAggregator creates an aggregator for the given catalog
func NewAggregator(cat *catalog.Catalog, opts ...Option) *Aggregator {
	a := &Aggregator{catalog: cat, workers: 1}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate is shorthand for NewAggregator(cat, opts...).Run(ctx, src)
func Aggregate(ctx context.Context, src Source, cat *catalog.Catalog, opts ...Option) (*Tables, error) {
	return NewAggregator(cat, opts...).Run(ctx, src)
}

// Run streams every document of src through extraction
func (a *Aggregator) Run(ctx context.Context, src Source) (*Tables, error) {
	if a.workers <= 1 {
		return a.runSequential(ctx, src)
	}
	return a.runParallel(ctx, src)
}

func (a *Aggregator) runSequential(ctx context.Context, src Source) (*Tables, error) {
	tables := &Tables{}
	ordinal := a.offset

	err := src.Each(ctx, func(doc *storage.MatchDocument) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.fold(tables, purchases.Extract(doc, a.catalog, ordinal))
		ordinal++
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tables, nil
}

type job struct {
	doc     *storage.MatchDocument
	ordinal int
}

func (a *Aggregator) runParallel(ctx context.Context, src Source) (*Tables, error) {
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job, a.workers)
	results := make(chan *purchases.MatchFeatures, a.workers)

	// Producer: ordinals are assigned in arrival order
	g.Go(func() error {
		defer close(jobs)
		ordinal := a.offset
		return src.Each(gctx, func(doc *storage.MatchDocument) error {
			select {
			case jobs <- job{doc: doc, ordinal: ordinal}:
				ordinal++
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	var wg sync.WaitGroup
	for i := 0; i < a.workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				f := purchases.Extract(j.doc, a.catalog, j.ordinal)
				select {
				case results <- f:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Ordered fold
	tables := &Tables{}
	pending := make(map[int]*purchases.MatchFeatures)
	next := a.offset
	for f := range results {
		pending[f.Ordinal] = f
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			a.fold(tables, ready)
			next++
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

func (a *Aggregator) fold(tables *Tables, f *purchases.MatchFeatures) {
	if f.TimelineErr != nil {
		log.Printf("[Extract] Match %s: malformed timeline, using empty ledger: %v", f.MatchID, f.TimelineErr)
	}
	tables.Append(f)
	if tables.Matches%progressEvery == 0 {
		log.Printf("[Extract] Processed %d matches (%d item rows)", tables.Matches, len(tables.Items))
	}
}
