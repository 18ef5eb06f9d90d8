package reconcile

import (
	"context"
	"errors"
	"sort"
	"time"

	"scenefetch/internal/logging"
	"scenefetch/internal/store"
	"scenefetch/internal/usgs"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultBackoffBase  = 2 * time.Second
	defaultBackoffMax   = 4 * time.Minute
)

// QueueService is the slice of the transport client the engine drives.
type QueueService interface {
	DownloadRetrieve(ctx context.Context, label string) (*usgs.DownloadQueue, error)
	DownloadRemove(ctx context.Context, downloadID int) error
}

// SceneStore is the slice of the metadata store the engine drives.
type SceneStore interface {
	QueryIncomplete(ctx context.Context) ([]store.SceneLink, error)
	MarkComplete(ctx context.Context, sceneID string) error
}

// TransferFunc fetches one ready download to local disk.
type TransferFunc func(ctx context.Context, dl ReadyDownload) error

// Summary tallies one reconciliation run.
type Summary struct {
	Completed int
	Failed    int
	Remaining int // scenes still incomplete in the store
}

// Engine reconciles the remote download queue against the local store:
// ready entries are transferred, marked complete and removed from the
// queue; preparing entries are polled until they become ready.
type Engine struct {
	Queue    QueueService
	Store    SceneStore
	Transfer TransferFunc
	Label    string

	PollInterval time.Duration
	BackoffBase  time.Duration
	BackoffMax   time.Duration
}

func (e *Engine) intervals() (poll, base, max time.Duration) {
	poll, base, max = e.PollInterval, e.BackoffBase, e.BackoffMax
	if poll <= 0 {
		poll = defaultPollInterval
	}
	if base <= 0 {
		base = defaultBackoffBase
	}
	if max < base {
		max = defaultBackoffMax
	}
	return poll, base, max
}

// Run polls the queue until nothing is left preparing and every ready entry
// was either transferred or failed terminally. Rate limiting backs off
// exponentially instead of failing; a protocol violation, auth expiry or
// cancellation ends the run with an error. The returned summary is valid
// in both cases.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	poll, base, max := e.intervals()
	backoff := base
	seen := make(map[string]struct{})
	var sum Summary

	for {
		queue, err := e.Queue.DownloadRetrieve(ctx, e.Label)
		if err != nil {
			if usgs.IsRateLimited(err) {
				logging.LogRateLimit(backoff)
				if werr := sleepCtx(ctx, backoff); werr != nil {
					return e.finish(ctx, sum), werr
				}
				backoff = doubled(backoff, max)
				continue
			}
			return e.finish(ctx, sum), err
		}
		backoff = base

		nextSeen, ready, preparing, err := Classify(queue.Entries(), seen)
		if err != nil {
			return e.finish(ctx, sum), err
		}
		seen = nextSeen
		logging.LogQueuePoll(len(ready), len(preparing), len(seen))

		completed, failed, err := e.RunTransferCycle(ctx, ready)
		sum.Completed += completed
		sum.Failed += failed
		if err != nil {
			return e.finish(ctx, sum), err
		}

		if len(preparing) == 0 {
			return e.finish(ctx, sum), nil
		}
		if err := sleepCtx(ctx, poll); err != nil {
			return e.finish(ctx, sum), err
		}
	}
}

// RunTransferCycle fetches every ready download sequentially, in download-id
// order. A transfer failure is counted and the cycle moves on; auth expiry
// or cancellation aborts it. Bookkeeping failures after a successful
// transfer (queue removal, completion flag) never undo the download.
func (e *Engine) RunTransferCycle(ctx context.Context, ready map[int]ReadyDownload) (completed, failed int, err error) {
	if len(ready) == 0 {
		return 0, 0, nil
	}

	links, err := e.Store.QueryIncomplete(ctx)
	if err != nil {
		return 0, 0, err
	}
	incomplete := make(map[string]struct{}, len(links))
	for _, l := range links {
		incomplete[l.SceneID] = struct{}{}
	}

	ids := make([]int, 0, len(ready))
	for id := range ready {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, downloadID := range ids {
		if err := ctx.Err(); err != nil {
			return completed, failed, err
		}
		dl := ready[downloadID]

		if _, pending := incomplete[dl.EntityID]; !pending {
			// Already fetched by an earlier run; just clear the queue entry.
			e.removeFromQueue(ctx, downloadID, dl.EntityID)
			continue
		}

		logging.LogTransferStart(dl.EntityID, dl.URL)
		if err := e.attemptTransfer(ctx, dl); err != nil {
			if usgs.IsAuthExpired(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return completed, failed, err
			}
			logging.LogTransferError(dl.EntityID, dl.URL, err)
			failed++
			continue
		}

		e.removeFromQueue(ctx, downloadID, dl.EntityID)
		if err := e.Store.MarkComplete(ctx, dl.EntityID); err != nil {
			logging.LogDBOperation("mark_complete", dl.EntityID, err)
			failed++
			continue
		}
		completed++
	}
	return completed, failed, nil
}

// attemptTransfer runs one transfer, waiting out rate limits with
// exponential backoff instead of failing the entry.
func (e *Engine) attemptTransfer(ctx context.Context, dl ReadyDownload) error {
	_, base, max := e.intervals()
	delay := base
	for {
		err := e.Transfer(ctx, dl)
		if err == nil || !usgs.IsRateLimited(err) {
			return err
		}
		logging.LogRateLimit(delay)
		if werr := sleepCtx(ctx, delay); werr != nil {
			return werr
		}
		delay = doubled(delay, max)
	}
}

func (e *Engine) removeFromQueue(ctx context.Context, downloadID int, entityID string) {
	if err := e.Queue.DownloadRemove(ctx, downloadID); err != nil && logging.Logger != nil {
		logging.Logger.Warn("queue entry removal failed",
			"event", "queue_remove_error",
			"download_id", downloadID,
			"entity_id", entityID,
			"error", err)
	}
}

// finish fills in the remaining-incomplete count and logs the summary. The
// store read runs uncancelled so an aborted run still reports correctly.
func (e *Engine) finish(ctx context.Context, sum Summary) Summary {
	if links, err := e.Store.QueryIncomplete(context.WithoutCancel(ctx)); err == nil {
		sum.Remaining = len(links)
	}
	logging.LogReconcileSummary(sum.Completed, sum.Failed, sum.Remaining)
	return sum
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func doubled(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}
