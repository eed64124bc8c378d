package push

import "github.com/okian/shotmatch/internal/domain/model"

// Message types.
const (
	TypeReady = "tm_ready"
	TypeShot  = "shot"
	TypePing  = "ping"
	TypePong  = "pong"
)

// ReadyMessage greets a new client with the reference index size.
type ReadyMessage struct {
	Type       string `json:"type"`
	TotalShots int    `json:"totalShots"`
}

// ShotMessage carries one enriched shot.
type ShotMessage struct {
	Type string              `json:"type"`
	Shot *model.EnrichedShot `json:"shot"`
}

// controlMessage is the shape of client-originated frames and pong replies.
type controlMessage struct {
	Type string `json:"type"`
}
