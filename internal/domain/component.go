package domain

type ComponentID string

type ComponentType string

const (
	ComponentHLS  ComponentType = "hls"
	ComponentRTSP ComponentType = "rtsp"
)

// Component is a non-participant endpoint doing ingress or egress.
type Component struct {
	ID       ComponentID    `json:"id"`
	Type     ComponentType  `json:"type"`
	Metadata map[string]any `json:"metadata"`
	Endpoint Endpoint       `json:"-" msgpack:"-"`
}
