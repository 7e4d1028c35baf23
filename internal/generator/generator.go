// Package generator drives a synthetic concurrent workload against a target
// database through internal/adapter, recording the resulting operations into
// a history.Builder. It is orchestration, not analysis: every interesting
// question about the resulting history is answered by the core packages.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/isochk/isochk/internal/adapter"
	"github.com/isochk/isochk/internal/anomaly"
	"github.com/isochk/isochk/internal/history"
	"github.com/isochk/isochk/internal/nemesis"
)

// Config parameterizes one generator run.
type Config struct {
	TxCount     int
	ObjectCount int
	Level       anomaly.Level
	Concurrency int // simulated client connections; defaults to min(TxCount, 8)
}

// Generator dispatches Config.TxCount transactions over Config.Concurrency
// simulated connections against Adapter, calling Nemesis.Inject once before
// dispatch and Nemesis.Heal once after, and returns the resulting History.
type Generator struct {
	Adapter adapter.Adapter
	Nemesis nemesis.Nemesis
	Log     *slog.Logger
}

// Run executes cfg and returns the recorded, frozen History.
func (g *Generator) Run(ctx context.Context, cfg Config) (*history.History, error) {
	log := g.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	nem := g.Nemesis
	if nem == nil {
		nem = nemesis.NoopNemesis{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	if concurrency > cfg.TxCount {
		concurrency = cfg.TxCount
	}
	if concurrency == 0 {
		return history.NewBuilder().Freeze()
	}

	builder := history.NewBuilder()
	objects := make([]history.ObjKey, cfg.ObjectCount)
	for i := range objects {
		objects[i] = history.ObjKey(fmt.Sprintf("obj-%d", i))
		if _, err := builder.AddInitialWrite(objects[i], history.Of(0)); err != nil {
			return nil, fmt.Errorf("generator: seed %s: %w", objects[i], err)
		}
	}

	if err := nem.Inject(ctx); err != nil {
		log.Warn("generator: nemesis inject failed", "error", err)
	}
	defer func() {
		if err := nem.Heal(ctx); err != nil {
			log.Warn("generator: nemesis heal failed", "error", err)
		}
	}()

	txIDs := make(chan history.TxID, cfg.TxCount)
	for i := 1; i <= cfg.TxCount; i++ {
		txIDs <- history.TxID(i)
	}
	close(txIDs)

	g2, gctx := errgroup.WithContext(ctx)
	for w := 0; w < concurrency; w++ {
		rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)))
		g2.Go(func() error {
			for id := range txIDs {
				if err := g.runOne(gctx, builder, id, cfg.Level, objects, rng); err != nil {
					return err
				}
				genMetrics.txCount.Add(gctx, 1)
			}
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return nil, fmt.Errorf("generator: run: %w", err)
	}

	return builder.Freeze()
}

func (g *Generator) runOne(ctx context.Context, builder *history.Builder, id history.TxID, level anomaly.Level, objects []history.ObjKey, rng *rand.Rand) error {
	ctx, span := StartTxSpan(ctx, fmt.Sprintf("tx-%d", id))
	defer span.End()

	if err := builder.BeginTx(id, history.Stamp{At: time.Now().UnixNano(), Valid: true}); err != nil {
		return err
	}

	session, err := g.Adapter.Begin(ctx, level)
	if err != nil {
		return fmt.Errorf("generator: begin tx %d: %w", id, err)
	}

	opCount := 2 + rng.Intn(3)
	for i := 0; i < opCount; i++ {
		obj := objects[rng.Intn(len(objects))]
		if rng.Intn(2) == 0 {
			res, err := session.Execute(ctx, history.OpRead, adapter.OpArgs{Obj: obj})
			if err != nil {
				_ = session.Rollback(ctx)
				_ = builder.SetOutcome(id, history.Aborted, history.Stamp{At: time.Now().UnixNano(), Valid: true})
				return nil
			}
			if _, err := builder.AddOp(id, history.Operation{Kind: history.OpRead, Obj: obj, Value: res.Value}); err != nil {
				return err
			}
		} else {
			v := history.Of(rng.Int63n(1000))
			if _, err := session.Execute(ctx, history.OpWrite, adapter.OpArgs{Obj: obj, Value: v}); err != nil {
				_ = session.Rollback(ctx)
				_ = builder.SetOutcome(id, history.Aborted, history.Stamp{At: time.Now().UnixNano(), Valid: true})
				return nil
			}
			if _, err := builder.AddOp(id, history.Operation{Kind: history.OpWrite, Obj: obj, Value: v}); err != nil {
				return err
			}
		}
	}

	outcome, err := session.Commit(ctx)
	if err != nil {
		outcome = history.Aborted
	}
	return builder.SetOutcome(id, outcome, history.Stamp{At: time.Now().UnixNano(), Valid: true})
}
