package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/alexandria/internal/eventstore"
	"github.com/dgallion1/alexandria/internal/parser"
	"github.com/dgallion1/alexandria/internal/publish"
)

// Worker processes a single import job.
type Worker struct {
	store     eventstore.Store
	log       *slog.Logger
	parseOpts parser.Options

	maxSectionTokens   int
	maxConcurrentStore int
}

func NewWorker(store eventstore.Store, log *slog.Logger, parseOpts parser.Options, maxSectionTokens, maxStore int) *Worker {
	if maxStore <= 0 {
		maxStore = 1
	}
	return &Worker{
		store:              store,
		log:                log,
		parseOpts:          parseOpts,
		maxSectionTokens:   maxSectionTokens,
		maxConcurrentStore: maxStore,
	}
}

// Process runs the full import pipeline for a job: parse, split into
// events, check for a duplicate, then store.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "pubkey", job.Pubkey, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.parseOpts)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	tree, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.releaseFileData()
	if job.Title != "" {
		tree.Title = job.Title
	}

	// Hash the parsed text so re-encoding the same document is a duplicate.
	hash := ContentHashHex([]byte(tree.Title + "\n" + tree.PlainText()))
	job.SetContentHash(hash)

	// Phase 2: Split
	job.SetStatus(StatusSplitting, "splitting")
	pub, err := publish.Split(tree, publish.Options{
		Pubkey:           job.Pubkey,
		CreatedAt:        job.CreatedAt,
		MaxSectionTokens: w.maxSectionTokens,
		ContentHash:      hash,
	})
	if err != nil {
		log.Warn("split failed", "error", err)
		job.AddError(fmt.Sprintf("split: %s", err))
		job.SetStatus(StatusFailed, "splitting")
		return
	}
	job.SetPublication(pub.Root, pub.Title, len(pub.Events), pub.Sections())
	log = log.With("root", pub.Root)
	log.Info("split document", "events", len(pub.Events), "sections", pub.Sections())

	// Phase 2.5: Dedup check
	if !job.Force {
		dup, err := w.isDuplicate(ctx, pub, hash)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if dup {
			log.Info("duplicate publication, skipping")
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 3: Store. Sections and sub-indexes go first with bounded
	// concurrency, the root last. Children that failed to store show up
	// as placeholders when the publication is read back.
	job.SetStatus(StatusStoring, "storing")
	body, root := pub.Events[:len(pub.Events)-1], pub.Events[len(pub.Events)-1]

	// A failed write is recorded on the job and does not cancel the rest.
	var (
		g         errgroup.Group
		hadErrors atomic.Bool
	)
	g.SetLimit(w.maxConcurrentStore)
	for _, ev := range body {
		g.Go(func() error {
			if err := w.store.Put(ctx, ev); err != nil {
				log.Error("store failed", "address", ev.Address(), "error", err)
				job.AddError(fmt.Sprintf("store %s: %s", ev.Address(), err))
				hadErrors.Store(true)
				return nil
			}
			job.IncrEventsStored()
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		job.AddError(fmt.Sprintf("cancelled: %s", ctx.Err()))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	if err := w.store.Put(ctx, root); err != nil {
		log.Error("root store failed", "error", err)
		job.AddError(fmt.Sprintf("store %s: %s", root.Address(), err))
		job.SetStatus(StatusFailed, "storing")
		return
	}
	job.IncrEventsStored()

	snap := job.Snapshot()
	log.Info("storage complete", "stored", snap.Progress.EventsStored, "total", len(pub.Events))

	if hadErrors.Load() {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

// isDuplicate reports whether the stored root at the same address was
// produced from content with the same hash.
func (w *Worker) isDuplicate(ctx context.Context, pub *publish.Publication, hash string) (bool, error) {
	existing, err := w.store.Get(ctx, pub.Root)
	if errors.Is(err, eventstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing.TagValue("x") == hash, nil
}
