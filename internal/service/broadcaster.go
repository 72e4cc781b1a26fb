package service

import "github.com/kkogteva6/ReadingPlatform/internal/model"

// Live update message types
const (
	MsgProfileUpdated = "profile_updated"
)

// Broadcaster pushes messages to dashboards subscribed to a reader (avoids import cycle)
type Broadcaster interface {
	BroadcastToReader(readerID string, msgType string, payload interface{})
}

// ProfileUpdate is the payload of MsgProfileUpdated
type ProfileUpdate struct {
	ReaderID string              `json:"readerId"`
	Source   string              `json:"source"` // test or text
	Profile  *model.ReaderProfile `json:"profile"`
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastToReader(string, string, interface{}) {}
