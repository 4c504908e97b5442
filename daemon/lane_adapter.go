package daemon

import (
	"context"

	"github.com/atlas-daemon/atlasd/concurrency"
	"github.com/atlas-daemon/atlasd/router"
)

// laneAdapter satisfies router.Lane for a *concurrency.Lane, translating
// concurrency.State to router.LaneState so the router package never
// needs to import concurrency directly (see router.go's note on keeping
// that dependency edge one-directional).
type laneAdapter struct {
	lane *concurrency.Lane
}

func newLaneAdapter(lane *concurrency.Lane) *laneAdapter {
	return &laneAdapter{lane: lane}
}

func (a *laneAdapter) Acquire(ctx context.Context) error { return a.lane.Acquire(ctx) }
func (a *laneAdapter) Release()                          { a.lane.Release() }

func (a *laneAdapter) Snapshot() router.LaneState {
	s := a.lane.Snapshot()
	return router.LaneState{Name: s.Name, Current: s.Current, Min: s.Min, Max: s.Max, Target: s.Target}
}
