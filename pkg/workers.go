package readout

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

type laneResult struct {
	index  int
	record EventRecord
}

// Replay plays the trace events through config.NumWorkers lanes and writes
// the records to store in trace order. Lanes run concurrently; store is only
// touched from the calling goroutine. It returns the number of events written.
func Replay(ctx context.Context, store *RunStore, config Configuration, events []TraceEvent) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	numWorkers := max(config.NumWorkers, 1)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan int)
	results := make(chan laneResult, numWorkers)

	g.Go(func() error {
		defer close(jobs)
		for i := range events {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var lanes sync.WaitGroup
	for w := 1; w <= numWorkers; w++ {
		lane := NewLane(w, config)
		lanes.Add(1)
		g.Go(func() error {
			defer lanes.Done()
			for i := range jobs {
				record := ReplayEvent(lane, events[i])
				select {
				case results <- laneResult{index: i, record: record}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		lanes.Wait()
		close(results)
	}()

	// Records can come back out of order; hold them until their turn.
	pending := make(map[int]EventRecord)
	next := 0
	var writeErr error
	for result := range results {
		if writeErr != nil {
			continue
		}
		pending[result.index] = result.record
		for {
			record, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := store.RecordEvent(record); err != nil {
				writeErr = fmt.Errorf("error recording event %d: %w", record.EventID, err)
				logger.Error(writeErr.Error())
				cancel()
				break
			}
			next++
		}
	}

	if err := g.Wait(); err != nil && writeErr == nil {
		return next, err
	}
	return next, writeErr
}

// ReplayEvent feeds one event to lane the way the transport engine would,
// honouring StopAndKill by dropping later steps of a killed track.
func ReplayEvent(lane *Lane, event TraceEvent) EventRecord {
	lane.BeginEvent(event.EventID)
	killed := make(map[int]bool)
	for _, n := range event.Notifications {
		switch n.Kind {
		case KindTrack:
			lane.OnTrackCreated(n.Species, n.Creator)
		case KindStep:
			if killed[n.TrackID] {
				continue
			}
			if lane.OnStep(n.Step, n.Boundary) == StopAndKill {
				killed[n.TrackID] = true
			}
		}
	}
	return lane.EndEvent()
}
