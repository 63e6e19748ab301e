package domain

type PeerID string

type PeerType string

const PeerWebRTC PeerType = "webrtc"

type PeerStatus string

const (
	PeerDisconnected PeerStatus = "disconnected"
	PeerConnected    PeerStatus = "connected"
)

// Peer is a participant endpoint. Endpoint is the engine-side representation
// and never leaves the node.
type Peer struct {
	ID       PeerID         `json:"id"`
	Type     PeerType       `json:"type"`
	Status   PeerStatus     `json:"status"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Endpoint Endpoint       `json:"-" msgpack:"-"`
}
