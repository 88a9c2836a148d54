package protocol

import (
	"encoding/binary"
	"fmt"
)

// Packet kind tags.
const (
	kindRequest uint8 = iota
	kindResponse
	kindUpdate
	kindUpdateReply
	kindGetStatus
	kindStatus
)

// Action kind tags.
const (
	actionConnect uint8 = iota
	actionKeepAlive
	actionNewRoom
	actionJoinRoom
	actionLeaveRoom
	actionChat
	actionToggle
	actionSetCell
)

// ResponseCode kind tags.
const (
	codeLoggedIn uint8 = iota
	codeUnauthorized
	codeBadRequest
	codeKeepAliveAck
	codeOk
)

type writer struct{ buf []byte }

func (w *writer) u8(v uint8)    { w.buf = append(w.buf, v) }
func (w *writer) u32(v uint32)  { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64)  { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }
func (w *writer) i32(v int32)   { w.u32(uint32(v)) }
func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) optU64(o OptionalU64) {
	w.boolean(o.Present)
	w.u64(o.Value)
}

type reader struct {
	buf []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{buf: b} }

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("protocol: truncated packet (need %d bytes at offset %d, have %d)", n, r.pos, len(r.buf))
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) boolean() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *reader) bytesN(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytesN(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) optU64() (OptionalU64, error) {
	present, err := r.boolean()
	if err != nil {
		return OptionalU64{}, err
	}
	v, err := r.u64()
	if err != nil {
		return OptionalU64{}, err
	}
	return OptionalU64{Value: v, Present: present}, nil
}

// Encode serializes a Packet into its binary wire form.
func Encode(p Packet) ([]byte, error) {
	w := &writer{}
	switch {
	case p.Request != nil:
		w.u8(kindRequest)
		encodeRequest(w, p.Request)
	case p.Response != nil:
		w.u8(kindResponse)
		encodeResponse(w, p.Response)
	case p.Update != nil:
		w.u8(kindUpdate)
		encodeUpdate(w, p.Update)
	case p.UpdateReply != nil:
		w.u8(kindUpdateReply)
		encodeUpdateReply(w, p.UpdateReply)
	case p.GetStatus != nil:
		w.u8(kindGetStatus)
		w.u64(p.GetStatus.Ping)
	case p.Status != nil:
		w.u8(kindStatus)
		encodeStatus(w, p.Status)
	default:
		return nil, fmt.Errorf("protocol: empty packet has no variant set")
	}
	return w.buf, nil
}

// Decode parses a binary wire packet.
func Decode(b []byte) (Packet, error) {
	r := newReader(b)
	kind, err := r.u8()
	if err != nil {
		return Packet{}, err
	}
	switch kind {
	case kindRequest:
		req, err := decodeRequest(r)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Request: req}, nil
	case kindResponse:
		resp, err := decodeResponse(r)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Response: resp}, nil
	case kindUpdate:
		upd, err := decodeUpdate(r)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Update: upd}, nil
	case kindUpdateReply:
		ur, err := decodeUpdateReply(r)
		if err != nil {
			return Packet{}, err
		}
		return Packet{UpdateReply: ur}, nil
	case kindGetStatus:
		ping, err := r.u64()
		if err != nil {
			return Packet{}, err
		}
		return Packet{GetStatus: &GetStatus{Ping: ping}}, nil
	case kindStatus:
		st, err := decodeStatus(r)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Status: st}, nil
	default:
		return Packet{}, fmt.Errorf("protocol: unknown packet kind %d", kind)
	}
}

func encodeRequest(w *writer, req *Request) {
	w.u64(req.Sequence)
	w.optU64(req.ResponseAck)
	w.bytes(req.Cookie[:])
	encodeAction(w, req.Action)
}

func decodeRequest(r *reader) (*Request, error) {
	seq, err := r.u64()
	if err != nil {
		return nil, err
	}
	ack, err := r.optU64()
	if err != nil {
		return nil, err
	}
	cookieBytes, err := r.bytesN(len(Cookie{}))
	if err != nil {
		return nil, err
	}
	var cookie Cookie
	copy(cookie[:], cookieBytes)
	action, err := decodeAction(r)
	if err != nil {
		return nil, err
	}
	return &Request{Sequence: seq, ResponseAck: ack, Cookie: cookie, Action: action}, nil
}

func encodeAction(w *writer, a Action) {
	switch {
	case a.Connect != nil:
		w.u8(actionConnect)
		w.str(a.Connect.Name)
		w.str(a.Connect.ClientVersion)
	case a.KeepAlive != nil:
		w.u8(actionKeepAlive)
		w.u64(a.KeepAlive.LatestResponseAck)
	case a.NewRoom != nil:
		w.u8(actionNewRoom)
		w.str(a.NewRoom.Name)
	case a.JoinRoom != nil:
		w.u8(actionJoinRoom)
		w.u64(a.JoinRoom.RoomID)
	case a.LeaveRoom != nil:
		w.u8(actionLeaveRoom)
	case a.Chat != nil:
		w.u8(actionChat)
		w.str(a.Chat.Message)
	case a.Toggle != nil:
		w.u8(actionToggle)
		w.i32(a.Toggle.Col)
		w.i32(a.Toggle.Row)
	case a.SetCell != nil:
		w.u8(actionSetCell)
		w.i32(a.SetCell.Col)
		w.i32(a.SetCell.Row)
		w.u8(a.SetCell.Char)
	}
}

func decodeAction(r *reader) (Action, error) {
	kind, err := r.u8()
	if err != nil {
		return Action{}, err
	}
	switch kind {
	case actionConnect:
		name, err := r.str()
		if err != nil {
			return Action{}, err
		}
		ver, err := r.str()
		if err != nil {
			return Action{}, err
		}
		return Action{Connect: &ConnectAction{Name: name, ClientVersion: ver}}, nil
	case actionKeepAlive:
		ack, err := r.u64()
		if err != nil {
			return Action{}, err
		}
		return Action{KeepAlive: &KeepAliveAction{LatestResponseAck: ack}}, nil
	case actionNewRoom:
		name, err := r.str()
		if err != nil {
			return Action{}, err
		}
		return Action{NewRoom: &NewRoomAction{Name: name}}, nil
	case actionJoinRoom:
		id, err := r.u64()
		if err != nil {
			return Action{}, err
		}
		return Action{JoinRoom: &JoinRoomAction{RoomID: id}}, nil
	case actionLeaveRoom:
		return Action{LeaveRoom: &LeaveRoomAction{}}, nil
	case actionChat:
		msg, err := r.str()
		if err != nil {
			return Action{}, err
		}
		return Action{Chat: &ChatAction{Message: msg}}, nil
	case actionToggle:
		col, err := r.i32()
		if err != nil {
			return Action{}, err
		}
		row, err := r.i32()
		if err != nil {
			return Action{}, err
		}
		return Action{Toggle: &ToggleAction{Col: col, Row: row}}, nil
	case actionSetCell:
		col, err := r.i32()
		if err != nil {
			return Action{}, err
		}
		row, err := r.i32()
		if err != nil {
			return Action{}, err
		}
		ch, err := r.u8()
		if err != nil {
			return Action{}, err
		}
		return Action{SetCell: &SetCellAction{Col: col, Row: row, Char: ch}}, nil
	default:
		return Action{}, fmt.Errorf("protocol: unknown action kind %d", kind)
	}
}

func encodeResponse(w *writer, resp *Response) {
	w.u64(resp.Sequence)
	w.u64(resp.RequestAck)
	encodeResponseCode(w, resp.Code)
}

func decodeResponse(r *reader) (*Response, error) {
	seq, err := r.u64()
	if err != nil {
		return nil, err
	}
	ack, err := r.u64()
	if err != nil {
		return nil, err
	}
	code, err := decodeResponseCode(r)
	if err != nil {
		return nil, err
	}
	return &Response{Sequence: seq, RequestAck: ack, Code: code}, nil
}

func encodeResponseCode(w *writer, c ResponseCode) {
	switch {
	case c.LoggedIn != nil:
		w.u8(codeLoggedIn)
		w.bytes(c.LoggedIn.Cookie[:])
		w.str(c.LoggedIn.ServerVersion)
	case c.Unauthorized != nil:
		w.u8(codeUnauthorized)
		w.str(c.Unauthorized.Message)
	case c.BadRequest != nil:
		w.u8(codeBadRequest)
		w.str(c.BadRequest.Message)
	case c.KeepAliveAck != nil:
		w.u8(codeKeepAliveAck)
	case c.Ok != nil:
		w.u8(codeOk)
	}
}

func decodeResponseCode(r *reader) (ResponseCode, error) {
	kind, err := r.u8()
	if err != nil {
		return ResponseCode{}, err
	}
	switch kind {
	case codeLoggedIn:
		cookieBytes, err := r.bytesN(len(Cookie{}))
		if err != nil {
			return ResponseCode{}, err
		}
		var cookie Cookie
		copy(cookie[:], cookieBytes)
		ver, err := r.str()
		if err != nil {
			return ResponseCode{}, err
		}
		return ResponseCode{LoggedIn: &LoggedInCode{Cookie: cookie, ServerVersion: ver}}, nil
	case codeUnauthorized:
		msg, err := r.str()
		if err != nil {
			return ResponseCode{}, err
		}
		return ResponseCode{Unauthorized: &ErrorCode{Message: msg}}, nil
	case codeBadRequest:
		msg, err := r.str()
		if err != nil {
			return ResponseCode{}, err
		}
		return ResponseCode{BadRequest: &ErrorCode{Message: msg}}, nil
	case codeKeepAliveAck:
		return ResponseCode{KeepAliveAck: &struct{}{}}, nil
	case codeOk:
		return ResponseCode{Ok: &struct{}{}}, nil
	default:
		return ResponseCode{}, fmt.Errorf("protocol: unknown response code kind %d", kind)
	}
}

func encodeUpdate(w *writer, u *Update) {
	w.u32(uint32(len(u.Chats)))
	for _, c := range u.Chats {
		w.u64(c.SeqNum)
		w.u64(c.PlayerID)
		w.str(c.PlayerName)
		w.str(c.Message)
		w.u64(uint64(c.Timestamp))
	}
	w.u32(uint32(len(u.GameUpdates)))
	for _, g := range u.GameUpdates {
		w.u64(g.SeqNum)
		w.u8(uint8(g.Kind))
		w.u64(g.RoomID)
		w.u64(g.PlayerID)
		w.str(g.Text)
	}
	w.boolean(u.UniverseUpdate != nil)
	if u.UniverseUpdate != nil {
		w.u64(u.UniverseUpdate.Gen0)
		w.u64(u.UniverseUpdate.Gen1)
		w.str(u.UniverseUpdate.RLEBody)
	}
	w.u64(u.Ping)
}

func decodeUpdate(r *reader) (*Update, error) {
	numChats, err := r.u32()
	if err != nil {
		return nil, err
	}
	chats := make([]ChatUpdate, 0, numChats)
	for i := uint32(0); i < numChats; i++ {
		seq, err := r.u64()
		if err != nil {
			return nil, err
		}
		pid, err := r.u64()
		if err != nil {
			return nil, err
		}
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		msg, err := r.str()
		if err != nil {
			return nil, err
		}
		ts, err := r.u64()
		if err != nil {
			return nil, err
		}
		chats = append(chats, ChatUpdate{SeqNum: seq, PlayerID: pid, PlayerName: name, Message: msg, Timestamp: int64(ts)})
	}

	numGame, err := r.u32()
	if err != nil {
		return nil, err
	}
	gameUpdates := make([]GameUpdate, 0, numGame)
	for i := uint32(0); i < numGame; i++ {
		seq, err := r.u64()
		if err != nil {
			return nil, err
		}
		kind, err := r.u8()
		if err != nil {
			return nil, err
		}
		roomID, err := r.u64()
		if err != nil {
			return nil, err
		}
		playerID, err := r.u64()
		if err != nil {
			return nil, err
		}
		text, err := r.str()
		if err != nil {
			return nil, err
		}
		gameUpdates = append(gameUpdates, GameUpdate{SeqNum: seq, Kind: GameUpdateKind(kind), RoomID: roomID, PlayerID: playerID, Text: text})
	}

	hasUniverse, err := r.boolean()
	if err != nil {
		return nil, err
	}
	var uu *UniverseUpdate
	if hasUniverse {
		gen0, err := r.u64()
		if err != nil {
			return nil, err
		}
		gen1, err := r.u64()
		if err != nil {
			return nil, err
		}
		body, err := r.str()
		if err != nil {
			return nil, err
		}
		uu = &UniverseUpdate{Gen0: gen0, Gen1: gen1, RLEBody: body}
	}

	ping, err := r.u64()
	if err != nil {
		return nil, err
	}
	return &Update{Chats: chats, GameUpdates: gameUpdates, UniverseUpdate: uu, Ping: ping}, nil
}

func encodeUpdateReply(w *writer, ur *UpdateReply) {
	w.bytes(ur.Cookie[:])
	w.u64(ur.LastChatSeq)
	w.u64(ur.LastGameUpdateSeq)
	w.u64(ur.LastGen)
	w.u64(ur.Pong)
}

func decodeUpdateReply(r *reader) (*UpdateReply, error) {
	cookieBytes, err := r.bytesN(len(Cookie{}))
	if err != nil {
		return nil, err
	}
	var cookie Cookie
	copy(cookie[:], cookieBytes)
	lastChat, err := r.u64()
	if err != nil {
		return nil, err
	}
	lastGame, err := r.u64()
	if err != nil {
		return nil, err
	}
	lastGen, err := r.u64()
	if err != nil {
		return nil, err
	}
	pong, err := r.u64()
	if err != nil {
		return nil, err
	}
	return &UpdateReply{Cookie: cookie, LastChatSeq: lastChat, LastGameUpdateSeq: lastGame, LastGen: lastGen, Pong: pong}, nil
}

func encodeStatus(w *writer, s *Status) {
	w.u64(s.Pong)
	w.u32(s.PlayerCount)
	w.u32(s.RoomCount)
	w.str(s.ServerName)
	w.str(s.ServerVersion)
}

func decodeStatus(r *reader) (*Status, error) {
	pong, err := r.u64()
	if err != nil {
		return nil, err
	}
	playerCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	roomCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	name, err := r.str()
	if err != nil {
		return nil, err
	}
	ver, err := r.str()
	if err != nil {
		return nil, err
	}
	return &Status{Pong: pong, PlayerCount: playerCount, RoomCount: roomCount, ServerName: name, ServerVersion: ver}, nil
}
