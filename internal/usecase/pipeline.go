// Package usecase orchestrates the ingestion pipeline: gather, rank,
// enrich, write. One Run is one full pass; runs are idempotent because
// identity flows through canonical URLs end to end.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// Ranker orders candidates best-first and removes in-batch duplicates.
type Ranker interface {
	Rank(candidates []domain.Candidate) []domain.Candidate
}

// Newsroom classifies and summarizes a candidate.
type Newsroom interface {
	Classify(ctx context.Context, item domain.Candidate) string
	Summarize(ctx context.Context, item domain.Candidate, category, bodyExcerpt string) (summary, content string)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source        ports.FeedSource
	Canonicalizer ports.Canonicalizer
	Ranker        Ranker
	Newsroom      Newsroom
	Enricher      ports.Enricher
	Store         ports.ArticleStore
	Selection     config.SelectionConfig
	Logger        *slog.Logger
}

// Pipeline implements the ingestion workflow.
type Pipeline struct {
	source        ports.FeedSource
	canonicalizer ports.Canonicalizer
	ranker        Ranker
	newsroom      Newsroom
	enricher      ports.Enricher
	store         ports.ArticleStore
	selection     config.SelectionConfig
	logger        *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:        deps.Source,
		canonicalizer: deps.Canonicalizer,
		ranker:        deps.Ranker,
		newsroom:      deps.Newsroom,
		enricher:      deps.Enricher,
		store:         deps.Store,
		selection:     deps.Selection,
		logger:        logger.With("component", "pipeline"),
	}
}

// Run executes one full pass. Per-item failures are logged and counted
// but never abort the batch; only stage-level failures (feed gathering,
// the existing-URL lookup, collection maintenance) surface as errors.
func (p *Pipeline) Run(ctx context.Context, trigger time.Time) error {
	started := time.Now()

	candidates, err := p.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("gather candidates: %w", err)
	}

	for i := range candidates {
		candidates[i].CanonicalURL = p.canonicalizer.Canonicalize(ctx, candidates[i].RawURL)
	}

	ranked := p.ranker.Rank(candidates)

	take := p.selection.TakeTop
	if take <= 0 || take > len(ranked) {
		take = len(ranked)
	}
	selected := ranked[:take]

	urls := make([]string, len(selected))
	for i, item := range selected {
		urls[i] = item.Key()
	}

	existing, err := p.store.ExistingByURL(ctx, urls)
	if err != nil {
		return fmt.Errorf("load existing articles: %w", err)
	}

	var processed, failed, refreshed atomic.Int64

	workers := p.selection.Workers
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, item := range selected {
		item := item
		g.Go(func() error {
			prior, known := existing[item.Key()]
			if err := p.processItem(gctx, item, prior, known); err != nil {
				p.logger.Error("item failed", "url", item.Key(), "error", err)
				failed.Add(1)
				return nil
			}
			if known {
				refreshed.Add(1)
			}
			processed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	removed, err := p.store.DedupeByURL(ctx)
	if err != nil {
		return fmt.Errorf("dedupe collection: %w", err)
	}

	pruned := 0
	if p.selection.Retention > 0 {
		pruned, err = p.store.PruneToNewest(ctx, p.selection.Retention)
		if err != nil {
			return fmt.Errorf("prune collection: %w", err)
		}
	}

	p.logger.Info("run complete",
		"trigger", trigger.Format(time.RFC3339),
		"candidates", len(candidates),
		"selected", len(selected),
		"processed", processed.Load(),
		"refreshed", refreshed.Load(),
		"failed", failed.Load(),
		"duplicatesRemoved", removed,
		"pruned", pruned,
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return nil
}

// processItem takes one selected candidate through classification,
// enrichment, summarization, and the write. Items already in the store
// skip page enrichment and reuse the stored image.
func (p *Pipeline) processItem(ctx context.Context, item domain.Candidate, prior domain.Article, known bool) error {
	category := p.newsroom.Classify(ctx, item)

	var enr domain.Enrichment
	if known {
		enr.ImageURL = prior.ImageURL
		enr.ImageAttribution = prior.ImageAttribution
		enr.BodyExcerpt = item.Description
	} else {
		enr = p.enricher.Enrich(ctx, item, category)
	}

	enriched := domain.EnrichedItem{
		Candidate:  item,
		Enrichment: enr,
		Category:   category,
	}
	enriched.Summary, enriched.Content = p.newsroom.Summarize(ctx, item, category, enr.BodyExcerpt)

	if err := p.store.UpsertByURL(ctx, enriched.ToArticle()); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}
