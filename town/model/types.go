package model

// Rotation values a client may report for a player's facing direction.
const (
	RotationFront = "front"
	RotationBack  = "back"
	RotationLeft  = "left"
	RotationRight = "right"
)

const (
	// DefaultMaxOccupancy is the player capacity for newly created towns.
	DefaultMaxOccupancy = 50

	// TownIDLength is the length of the public hex town identifier.
	TownIDLength = 8
)

// PlayerLocation is a player's position and movement state in town space.
// ConversationLabel, when non-empty, names the conversation area the client
// asserts the player is inside; it takes precedence over the coordinates
// when resolving area membership.
type PlayerLocation struct {
	X                 float64 `json:"x"`
	Y                 float64 `json:"y"`
	Rotation          string  `json:"rotation"`
	Moving            bool    `json:"moving"`
	ConversationLabel string  `json:"conversationLabel,omitempty"`
}

// BoundingBox is an axis-aligned rectangle described by its center point
// and full width/height, matching the coordinates clients send.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point (x, y) falls inside the box.
// Containment is inclusive on the low edge and exclusive on the high edge,
// so a point on the shared boundary of two adjacent boxes belongs to
// exactly one of them.
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.X-b.Width/2 && x < b.X+b.Width/2 &&
		y >= b.Y-b.Height/2 && y < b.Y+b.Height/2
}

// ConversationArea is a labeled rectangular region of a town. Players whose
// location resolves into the box are occupants and share a group
// conversation. Labels are unique within a town.
type ConversationArea struct {
	Label       string      `json:"label"`
	Topic       string      `json:"topic"`
	Box         BoundingBox `json:"boundingBox"`
	OccupantIDs []string    `json:"occupantsByID"`
}

// HasOccupant reports whether the player ID is already in the occupant list.
func (c *ConversationArea) HasOccupant(playerID string) bool {
	for _, id := range c.OccupantIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// SongData describes a track a player is currently listening to. Progress
// is the playback offset in milliseconds. It is replaced wholesale on each
// update; there are no merge semantics.
type SongData struct {
	Title    string   `json:"title"`
	URIs     []string `json:"uris"`
	Progress int64    `json:"progress"`
}

// ChatMessage is a chat line relayed through a town. The server never
// stores chat; messages exist only in flight.
type ChatMessage struct {
	Author      string `json:"author"`
	SID         string `json:"sid"`
	Body        string `json:"body"`
	DateCreated int64  `json:"dateCreated"`
}
