package router

import (
	"context"
	"encoding/json"
	"time"

	"github.com/atlas-daemon/atlasd/eventbus"
	"github.com/atlas-daemon/atlasd/protocol"
)

func (r *Router) registerStatusMethod() {
	r.methods["atlas.status"] = handleStatus
}

// StatusResult is atlas.status's result, enriched per SPEC_FULL.md
// supplement 4 with per-lane concurrency state and the names of the
// registered schedulers beyond spec.md §4.4's base pid/uptime/socket/
// connections/version shape. Schedulers lists names only; it carries no
// running/stopped flag.
type StatusResult struct {
	PID         int         `json:"pid"`
	UptimeSec   int64       `json:"uptimeSeconds"`
	Socket      string      `json:"socket"`
	Connections int         `json:"connections"`
	Version     string      `json:"version"`
	Lanes       []LaneState `json:"lanes"`
	Schedulers  []string    `json:"schedulers"`
}

func handleStatus(r *Router, _ context.Context, _ eventbus.SubscriberID, _ json.RawMessage) (interface{}, *protocol.RPCError) {
	result := StatusResult{
		PID:     r.status.PID,
		Socket:  r.status.SocketPath,
		Version: r.status.Version,
	}
	if r.status.StartedAt != nil {
		result.UptimeSec = time.Now().Unix() - r.status.StartedAt()
	}
	if r.status.ConnectionCount != nil {
		result.Connections = r.status.ConnectionCount()
	}
	for _, lane := range r.lanes {
		result.Lanes = append(result.Lanes, lane.Snapshot())
	}
	if r.schedulers != nil {
		result.Schedulers = r.schedulers.Names()
	}
	return result, nil
}
