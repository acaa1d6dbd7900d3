// Package engine orchestrates the reconciliation pipeline for one import
// session: ingest → match → group → suggest.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/homevault/reconcile/internal/ingest"
	"github.com/homevault/reconcile/internal/match"
	"github.com/homevault/reconcile/internal/model"
	"github.com/homevault/reconcile/internal/recur"
	"github.com/homevault/reconcile/internal/rules"
	"github.com/homevault/reconcile/internal/session"
	"github.com/homevault/reconcile/internal/statement"
	"github.com/homevault/reconcile/internal/suggest"
)

// Store is the persistence surface the pipeline needs beyond what its
// components own.
type Store interface {
	ApplyPatternMatch(ctx context.Context, txID, ruleID string, confidence float64) error
}

// Result summarizes one processing pass over a session.
type Result struct {
	Suggestions []model.RecurringPaymentSuggestion
	Batch       *ingest.BatchResult
	Groups      int
}

// ProgressFunc is called once per processed transaction during matching.
type ProgressFunc func(done, total int)

// Pipeline runs a session's statement lines through the full engine.
// Processing for one session is a single sequential pass; sessions for
// different users may run concurrently, with the transaction hash constraint
// arbitrating duplicate inserts.
type Pipeline struct {
	store    Store
	sessions *session.Manager
	ingestor *ingest.Ingestor
	resolver *rules.Resolver
	matcher  *match.Matcher
	grouper  *recur.Grouper
	builder  *suggest.Builder
	progress ProgressFunc
}

// NewPipeline wires the engine components together.
func NewPipeline(store Store, sessions *session.Manager, ingestor *ingest.Ingestor, resolver *rules.Resolver, builder *suggest.Builder) *Pipeline {
	return &Pipeline{
		store:    store,
		sessions: sessions,
		ingestor: ingestor,
		resolver: resolver,
		matcher:  match.NewMatcher(),
		grouper:  recur.NewGrouper(),
		builder:  builder,
	}
}

// OnProgress registers a per-transaction progress callback.
func (p *Pipeline) OnProgress(fn ProgressFunc) {
	p.progress = fn
}

// Process drives a session from uploading through completion. Any stage
// error fails the session with its message; statistics keep their last-known
// values.
func (p *Pipeline) Process(ctx context.Context, userID, sessionID string, lines []statement.ParsedLine) (*Result, error) {
	if err := p.sessions.StartProcessing(ctx, sessionID); err != nil {
		return nil, err
	}

	result, err := p.run(ctx, userID, sessionID, lines)
	if err != nil {
		if failErr := p.sessions.Fail(ctx, sessionID, err.Error()); failErr != nil {
			slog.Error("Failed to mark session failed",
				"session", sessionID,
				"error", failErr)
		}
		return nil, err
	}

	if err := p.sessions.Complete(ctx, sessionID); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, userID, sessionID string, lines []statement.ParsedLine) (*Result, error) {
	if err := p.sessions.SetStage(ctx, sessionID, "ingesting transactions"); err != nil {
		return nil, err
	}

	batch, err := p.ingestor.IngestBatch(ctx, userID, sessionID, lines)
	if err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}

	if err := p.sessions.SetStage(ctx, sessionID, "matching patterns"); err != nil {
		return nil, err
	}

	ruleSet, err := p.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	matched, err := p.matchBatch(ctx, batch.Transactions, ruleSet)
	if err != nil {
		return nil, err
	}

	if err := p.sessions.SetStage(ctx, sessionID, "detecting recurring payments"); err != nil {
		return nil, err
	}

	groups := p.grouper.GroupTransactions(matched, ruleSet)

	if err := p.sessions.SetStage(ctx, sessionID, "building suggestions"); err != nil {
		return nil, err
	}

	suggestions := p.builder.Build(groups)
	attached, err := p.builder.Attach(ctx, sessionID, suggestions)
	if err != nil {
		return nil, err
	}

	stats := batch.Statistics
	stats.RecurringDetected = len(attached)
	if err := p.sessions.UpdateStatistics(ctx, sessionID, stats); err != nil {
		return nil, err
	}

	slog.Info("Processed session",
		"session", sessionID,
		"transactions", len(batch.Transactions),
		"groups", len(groups),
		"suggestions", len(attached))

	return &Result{
		Batch:       batch,
		Groups:      len(groups),
		Suggestions: attached,
	}, nil
}

// matchBatch classifies each transaction against the rule set, persisting
// winning matches. Unmatched transactions stay pending and unclassified.
func (p *Pipeline) matchBatch(ctx context.Context, txns []model.Transaction, ruleSet *model.RuleSet) ([]model.Transaction, error) {
	matched := make([]model.Transaction, 0, len(txns))
	for i, txn := range txns {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !txn.PatternMatched {
			if res := p.matcher.Match(txn.Description, ruleSet); res != nil {
				res.Apply(&txn)
				if err := p.store.ApplyPatternMatch(ctx, txn.ID, res.RuleID, res.Confidence); err != nil {
					return nil, err
				}
			}
		}
		matched = append(matched, txn)

		if p.progress != nil {
			p.progress(i+1, len(txns))
		}
	}
	return matched, nil
}
