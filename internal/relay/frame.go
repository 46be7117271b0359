package relay

import "encoding/json"

// FrameKind tags a routed frame. The relay never looks inside Data; the
// session protocol rides opaquely on data frames.
type FrameKind string

const (
	// FrameOpen asks the relay to announce the sender to another identity.
	FrameOpen FrameKind = "open"
	// FrameOpened confirms an open to the requester.
	FrameOpened FrameKind = "opened"
	// FrameData carries one opaque message between identities.
	FrameData FrameKind = "data"
	// FrameClose tells a peer the flow from the sender is gone.
	FrameClose FrameKind = "close"
	// FrameError reports a routing failure back to the sender.
	FrameError FrameKind = "error"
)

// Frame is the wire unit between a peer and the relay. From is always filled
// in by the relay on delivery; clients cannot spoof it.
type Frame struct {
	Kind  FrameKind       `json:"kind"`
	From  string          `json:"from,omitempty"`
	To    string          `json:"to,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}
