package stream

import (
	"reflect"
)

// Excluded fields never appear in a state_update delta. user_image and
// attention_overlay are bulk blobs with their own channels, messages is
// the full conversation log, and last_update_time changes on every
// mutation.
var deltaExclusions = map[string]bool{
	"user_image":        true,
	"image":             true,
	"attention_overlay": true,
	"messages":          true,
	"last_update_time":  true,
}

// Delta returns the keys of next whose values differ from prev, minus
// the exclusion set. Keys that disappeared from next are not reported;
// the protocol only carries new values.
func Delta(prev, next map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range next {
		if deltaExclusions[k] {
			continue
		}
		if pv, ok := prev[k]; !ok || !reflect.DeepEqual(pv, v) {
			out[k] = v
		}
	}
	return out
}

// rawChanged reports whether a key changed between snapshots without
// applying the exclusion set. The overlay emitter needs to see excluded
// fields.
func rawChanged(prev, next map[string]any, key string) (any, bool) {
	v, ok := next[key]
	if !ok {
		return nil, false
	}
	if pv, had := prev[key]; had && reflect.DeepEqual(pv, v) {
		return nil, false
	}
	return v, true
}
