package eventbus

import (
	"sort"
	"strings"
)

// catchAll is the cross-segment wildcard (spec.md §3, §9): the literal
// pattern "*" matches every event type. A pattern of the form
// "<namespace>.*" is the one-level namespace wildcard matchesNamespace
// implements below: "ingest.*" matches "ingest.started" but not
// "ingest.file.complete" — exactly one segment past the namespace
// prefix. Every other pattern is matched as an exact, literal string.
// This follows spec.md §9's resolved reading: the source's
// regex-escape-and-star substitution is cross-segment only for the
// bare "*"; "<namespace>.*" is a one-level wildcard, not a prefix glob.
const catchAll = "*"

// subscriptionMatches reports whether any pattern in patterns matches
// eventType, per spec.md §3's Subscription pattern invariant.
func subscriptionMatches(patterns map[string]struct{}, eventType string) bool {
	if _, ok := patterns[catchAll]; ok {
		return true
	}
	_, ok := patterns[eventType]
	if ok {
		return true
	}
	// Per-segment-literal prefix matching: "ingest.*" as a literal
	// pattern string subscribes to the "ingest" namespace by matching
	// "ingest.<anything-without-a-further-dot>", not cross-segment.
	for p := range patterns {
		if matchesNamespace(p, eventType) {
			return true
		}
	}
	return false
}

// matchesNamespace implements "ingest.*" matching "ingest.started" but
// not "ingest.file.complete" (spec.md §3's worked example): p must end
// in ".*", its prefix must match eventType's leading segment exactly,
// and eventType must have exactly one more segment after that prefix.
func matchesNamespace(pattern, eventType string) bool {
	if !strings.HasSuffix(pattern, ".*") {
		return false
	}
	prefix := pattern[:len(pattern)-2]
	rest, ok := strings.CutPrefix(eventType, prefix+".")
	if !ok {
		return false
	}
	return !strings.Contains(rest, ".")
}

func sortSubscriberIDs(ids []SubscriberID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
