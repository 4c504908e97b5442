package router

import (
	"context"
	"encoding/json"

	"github.com/atlas-daemon/atlasd/eventbus"
	"github.com/atlas-daemon/atlasd/protocol"
)

func (r *Router) registerSubscriptionMethods() {
	r.methods["atlas.subscribe"] = handleSubscribe
	r.methods["atlas.unsubscribe"] = handleUnsubscribe
}

// SubscribeParams is atlas.subscribe/atlas.unsubscribe's shared param
// shape (spec.md §4.3).
type SubscribeParams struct {
	Events []string `json:"events"`
}

// SubscribeResult confirms the patterns now in effect for the caller.
type SubscribeResult struct {
	Subscribed bool     `json:"subscribed"`
	Events     []string `json:"events"`
}

func handleSubscribe(r *Router, _ context.Context, connID eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params SubscribeParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if len(params.Events) == 0 {
		return nil, protocol.InvalidParams("events is required")
	}
	r.bus.Subscribe(connID, params.Events)
	return SubscribeResult{Subscribed: true, Events: params.Events}, nil
}

func handleUnsubscribe(r *Router, _ context.Context, connID eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params SubscribeParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if len(params.Events) == 0 {
		return nil, protocol.InvalidParams("events is required")
	}
	r.bus.Unsubscribe(connID, params.Events)
	return SubscribeResult{Subscribed: false, Events: params.Events}, nil
}
