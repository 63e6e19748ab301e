package domain

import "errors"

var (
	ErrInvalidMaxPeers   = errors.New("max peers must be a non-negative integer")
	ErrInvalidVideoCodec = errors.New("video codec must be h264 or vp8")

	ErrRoomNotFound      = errors.New("room not found")
	ErrPeerNotFound      = errors.New("peer not found")
	ErrComponentNotFound = errors.New("component not found")

	ErrReachedPeersLimit      = errors.New("reached peers limit")
	ErrReachedComponentsLimit = errors.New("reached components limit")
	ErrIncompatibleCodec      = errors.New("incompatible video codec")

	ErrInvalidPeerType      = errors.New("invalid peer type")
	ErrInvalidComponentType = errors.New("invalid component type")
	ErrInvalidOptions       = errors.New("invalid options")

	ErrRoomStopped = errors.New("room stopped")
)

// codes are stable identifiers used when errors cross a node boundary.
var codes = map[string]error{
	"invalid_max_peers":        ErrInvalidMaxPeers,
	"invalid_video_codec":      ErrInvalidVideoCodec,
	"room_not_found":           ErrRoomNotFound,
	"peer_not_found":           ErrPeerNotFound,
	"component_not_found":      ErrComponentNotFound,
	"reached_peers_limit":      ErrReachedPeersLimit,
	"reached_components_limit": ErrReachedComponentsLimit,
	"incompatible_codec":       ErrIncompatibleCodec,
	"invalid_peer_type":        ErrInvalidPeerType,
	"invalid_component_type":   ErrInvalidComponentType,
	"invalid_options":          ErrInvalidOptions,
	"room_stopped":             ErrRoomStopped,
}

// ErrorCode returns the wire code for a known sentinel, or "" for anything else.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for code, sentinel := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// ErrorFromCode is the inverse of ErrorCode. Unknown codes yield nil.
func ErrorFromCode(code string) error {
	return codes[code]
}
