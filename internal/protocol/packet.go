// Package protocol defines the wire packet model carried over the game's
// UDP port — Request/Response/Update/UpdateReply/GetStatus/Status — and a
// hand-written binary codec for it. The codec favors an explicit byte
// layout over reflection-based encoding, the same trade a latency-sensitive
// datagram server makes for its own framing.
package protocol

// Packet is the tagged union of every datagram the protocol exchanges.
// Exactly one of the embedded pointers is non-nil.
type Packet struct {
	Request     *Request
	Response    *Response
	Update      *Update
	UpdateReply *UpdateReply
	GetStatus   *GetStatus
	Status      *Status
}

// Request carries a sequenced client action.
type Request struct {
	Sequence    uint64
	ResponseAck OptionalU64
	Cookie      Cookie
	Action      Action
}

// Response answers a Request.
type Response struct {
	Sequence   uint64
	RequestAck uint64
	Code       ResponseCode
}

// Update is server-pushed per-tick delivery: unacknowledged chats, room
// membership changes, and the latest universe diff, plus a ping the client
// should echo back in its next UpdateReply.
type Update struct {
	Chats          []ChatUpdate
	GameUpdates    []GameUpdate
	UniverseUpdate *UniverseUpdate
	Ping           uint64
}

// UpdateReply is the client's acknowledgment of an Update.
type UpdateReply struct {
	Cookie            Cookie
	LastChatSeq       uint64
	LastGameUpdateSeq uint64
	LastGen           uint64
	Pong              uint64
}

// GetStatus is the anonymous, cookie-free status probe.
type GetStatus struct {
	Ping uint64
}

// Status answers GetStatus.
type Status struct {
	Pong          uint64
	PlayerCount   uint32
	RoomCount     uint32
	ServerName    string
	ServerVersion string
}

// ChatUpdate is one chat message delivered inside an Update.
type ChatUpdate struct {
	SeqNum     uint64
	PlayerID   uint64
	PlayerName string
	Message    string
	Timestamp  int64
}

// GameUpdate is one room-membership or lifecycle notice delivered inside an
// Update (e.g. a player joining or leaving a room).
type GameUpdate struct {
	SeqNum  uint64
	Kind    GameUpdateKind
	RoomID  uint64
	PlayerID uint64
	Text    string
}

// GameUpdateKind tags a GameUpdate's meaning.
type GameUpdateKind uint8

const (
	GameUpdatePlayerJoined GameUpdateKind = iota
	GameUpdatePlayerLeft
	GameUpdateRoomCreated
)

// UniverseUpdate carries a generation diff, RLE-encoded, for the player's
// current room.
type UniverseUpdate struct {
	Gen0, Gen1 uint64
	RLEBody    string
}

// OptionalU64 is a uint64 that may be absent (Request.ResponseAck before the
// client has processed its first Response).
type OptionalU64 struct {
	Value   uint64
	Present bool
}

// Cookie is the 12-byte per-session opaque token.
type Cookie [12]byte

// Action is the tagged union of everything a Request can ask the server to
// do. Exactly one field is non-nil.
type Action struct {
	Connect   *ConnectAction
	KeepAlive *KeepAliveAction
	NewRoom   *NewRoomAction
	JoinRoom  *JoinRoomAction
	LeaveRoom *LeaveRoomAction
	Chat      *ChatAction
	Toggle    *ToggleAction
	SetCell   *SetCellAction
}

type ConnectAction struct {
	Name          string
	ClientVersion string
}

type KeepAliveAction struct {
	LatestResponseAck uint64
}

type NewRoomAction struct {
	Name string
}

type JoinRoomAction struct {
	RoomID uint64
}

type LeaveRoomAction struct{}

type ChatAction struct {
	Message string
}

type ToggleAction struct {
	Col, Row int32
}

type SetCellAction struct {
	Col, Row int32
	Char     byte
}

// ResponseCode is the tagged union of everything a Response can answer with.
type ResponseCode struct {
	LoggedIn     *LoggedInCode
	Unauthorized *ErrorCode
	BadRequest   *ErrorCode
	KeepAliveAck *struct{}
	Ok           *struct{}
}

type LoggedInCode struct {
	Cookie        Cookie
	ServerVersion string
}

type ErrorCode struct {
	Message string
}
