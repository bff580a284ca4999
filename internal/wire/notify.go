package wire

import "time"

// Reply source tags beyond the plain command types.
const (
	// SourceGetAuctionByID tags a detail fetch that narrowed to a single
	// auction id, so clients can tell it apart from a listing refresh.
	SourceGetAuctionByID = "GetAuction(ID)"
)

// Reply is a targeted response to the session that issued a command.
type Reply struct {
	Status    string `json:"status"`
	Source    string `json:"source,omitempty"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	APIKey    string `json:"apiKey,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Success builds a success reply for the given originating command.
func Success(source, message string) Reply {
	return Reply{Status: "success", Source: source, Message: message, Timestamp: time.Now().Unix()}
}

// Failure builds an error reply for the given originating command.
func Failure(source, message string) Reply {
	return Reply{Status: "error", Source: source, Message: message, Timestamp: time.Now().Unix()}
}

// WithData attaches a payload to the reply.
func (r Reply) WithData(data any) Reply {
	r.Data = data
	return r
}

// WithToken attaches the credential artifact returned by the system of
// record; the relay never interprets it.
func (r Reply) WithToken(token string) Reply {
	r.APIKey = token
	return r
}

// BroadcastKind classifies a fan-out notification.
type BroadcastKind string

const (
	BroadcastInfo  BroadcastKind = "info"
	BroadcastError BroadcastKind = "error"
)

// Broadcast is a fire-and-forget notification delivered to every
// connected session.
type Broadcast struct {
	Type    BroadcastKind `json:"type"`
	Message string        `json:"message"`
}
