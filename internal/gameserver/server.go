// Package gameserver implements the authoritative room/player coordination
// layer on top of the universe engine and the reliability layer: packet
// dispatch, room lifecycle, chat, and the periodic tick/network/heartbeat
// maintenance the event loop drives.
package gameserver

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifenet/server/internal/cell"
	"github.com/lifenet/server/internal/config"
	"github.com/lifenet/server/internal/eventbus"
	"github.com/lifenet/server/internal/metrics"
	"github.com/lifenet/server/internal/netmgr"
	"github.com/lifenet/server/internal/protocol"
	"github.com/lifenet/server/internal/ratelimit"
	"github.com/lifenet/server/internal/rle"
)

// ServerState owns every player and room. It is single-threaded: the event
// loop is the only caller, so no field here needs a lock.
type ServerState struct {
	logger zerolog.Logger
	cfg    *config.Config
	bus    *eventbus.Bus
	ids    *idGenerator
	limiter *ratelimit.PerPlayer

	playersByCookie map[protocol.Cookie]*Player
	playersByID     map[uint64]*Player
	rooms           map[uint64]*Room
}

// New constructs an empty ServerState.
func New(cfg *config.Config, logger zerolog.Logger, bus *eventbus.Bus, now time.Time) *ServerState {
	return &ServerState{
		logger:          logger,
		cfg:             cfg,
		bus:             bus,
		ids:             newIDGenerator(now),
		limiter:         ratelimit.NewPerPlayer(ratelimit.DefaultLimits()),
		playersByCookie: make(map[protocol.Cookie]*Player),
		playersByID:     make(map[uint64]*Player),
		rooms:           make(map[uint64]*Room),
	}
}

func (s *ServerState) PlayerCount() int { return len(s.playersByID) }
func (s *ServerState) RoomCount() int   { return len(s.rooms) }

// DecodePacket is the single entry point for an inbound datagram, called
// with the address it arrived from and the decoded Packet. It returns the
// Packet to send back immediately (nil if nothing should be sent now — the
// request was buffered, dropped as a duplicate, or was a no-response
// action like KeepAlive) and an error for a packet that should never have
// been sent by a client at all.
func (s *ServerState) DecodePacket(addr net.Addr, pkt protocol.Packet, now time.Time) (*protocol.Packet, error) {
	if pkt.GetStatus != nil {
		status := s.buildStatus(pkt.GetStatus.Ping)
		return &protocol.Packet{Status: &status}, nil
	}
	if pkt.UpdateReply != nil {
		return nil, s.HandleUpdateReply(*pkt.UpdateReply)
	}
	if pkt.Request == nil {
		return nil, &ProtocolError{Reason: "server-originated packet type received from client"}
	}
	req := pkt.Request

	if req.Action.Connect != nil {
		return s.handleConnect(addr, req, now)
	}

	player, ok := s.playersByCookie[req.Cookie]
	if !ok {
		return nil, &ProtocolError{Reason: "unknown cookie"}
	}
	player.LastReceived = now
	player.Addr = addr

	if req.Action.KeepAlive != nil {
		player.Net.ClearTransmissionQueueOnAck(req.Action.KeepAlive.LatestResponseAck)
		return nil, nil
	}

	if req.ResponseAck.Present {
		player.Net.ClearTransmissionQueueOnAck(req.ResponseAck.Value)
	}

	switch {
	case player.CanProcessPacket(req.Sequence):
		resp := s.processAction(player, *req, now)
		player.MarkProcessed(req.Sequence)
		return &protocol.Packet{Response: &resp}, nil
	case player.AlreadyProcessed(req.Sequence):
		metrics.RecordRequestDropped("already_processed")
		return nil, nil
	default:
		if dup := player.Net.BufferItem(req.Sequence, *req); dup {
			metrics.RecordRequestDropped("duplicate_buffered")
		}
		return nil, nil
	}
}

// HandleUpdateReply applies the client's acknowledgment of a prior Update:
// cookie validation, and forward-only advancement of the chat/game-update/
// generation watermarks.
func (s *ServerState) HandleUpdateReply(reply protocol.UpdateReply) error {
	player, ok := s.playersByCookie[reply.Cookie]
	if !ok {
		return &ProtocolError{Reason: "unknown cookie"}
	}
	if reply.LastChatSeq > player.ChatMsgSeqNum {
		player.ChatMsgSeqNum = reply.LastChatSeq
	}
	if reply.LastGameUpdateSeq > player.GameUpdateSeqNum {
		player.GameUpdateSeqNum = reply.LastGameUpdateSeq
	}
	if reply.LastGen > player.LastGen {
		player.LastGen = reply.LastGen
	}
	player.LastPong = reply.Pong
	return nil
}

func (s *ServerState) buildStatus(ping uint64) protocol.Status {
	return protocol.Status{
		Pong:          ping,
		PlayerCount:   uint32(s.PlayerCount()),
		RoomCount:     uint32(s.RoomCount()),
		ServerName:    s.cfg.ServerName,
		ServerVersion: s.cfg.ServerVersion,
	}
}

func (s *ServerState) handleConnect(addr net.Addr, req *protocol.Request, now time.Time) (*protocol.Packet, error) {
	action := req.Action.Connect
	if !versionAtMost(action.ClientVersion, s.cfg.ServerVersion) {
		resp := protocol.Response{
			Sequence:   0,
			RequestAck: 0,
			Code: protocol.ResponseCode{Unauthorized: &protocol.ErrorCode{
				Message: fmt.Sprintf("client version %s is newer than server version %s", action.ClientVersion, s.cfg.ServerVersion),
			}},
		}
		return &protocol.Packet{Response: &resp}, nil
	}

	for _, p := range s.playersByID {
		if p.Name == action.Name {
			resp := protocol.Response{
				Sequence:   0,
				RequestAck: 0,
				Code:       protocol.ResponseCode{Unauthorized: &protocol.ErrorCode{Message: "name already in use"}},
			}
			return &protocol.Packet{Response: &resp}, nil
		}
	}

	id, err := s.ids.next(now)
	if err != nil {
		return nil, err
	}
	cookie, err := NewCookie()
	if err != nil {
		return nil, err
	}

	player := &Player{
		ID:            id,
		Name:          action.Name,
		Cookie:        cookie,
		ClientVersion: action.ClientVersion,
		Addr:          addr,
		LastReceived:  now,
		Net:           netmgr.New(s.logger.With().Uint64("player_id", id).Logger()),
	}
	s.playersByID[id] = player
	s.playersByCookie[cookie] = player

	metrics.RecordPlayerConnected(s.PlayerCount())

	resp := protocol.Response{
		Sequence:   0,
		RequestAck: 0,
		Code: protocol.ResponseCode{LoggedIn: &protocol.LoggedInCode{
			Cookie:        cookie,
			ServerVersion: s.cfg.ServerVersion,
		}},
	}
	return &protocol.Packet{Response: &resp}, nil
}

// versionAtMost reports whether client <= server under dotted-integer
// semver comparison (missing trailing components compare as 0).
func versionAtMost(client, server string) bool {
	c := parseVersion(client)
	sv := parseVersion(server)
	for i := 0; i < len(c) || i < len(sv); i++ {
		var cv, svv int
		if i < len(c) {
			cv = c[i]
		}
		if i < len(sv) {
			svv = sv[i]
		}
		if cv != svv {
			return cv < svv
		}
	}
	return true
}

func parseVersion(v string) []int {
	parts := strings.Split(v, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, _ := strconv.Atoi(p)
		out[i] = n
	}
	return out
}

func (s *ServerState) processAction(player *Player, req protocol.Request, now time.Time) protocol.Response {
	if !s.limiter.Allow(player.ID) {
		metrics.RecordRateLimited()
		return s.badRequest(player, req, "rate limit exceeded")
	}

	a := req.Action
	switch {
	case a.NewRoom != nil:
		return s.doNewRoom(player, req, a.NewRoom, now)
	case a.JoinRoom != nil:
		return s.doJoinRoom(player, req, a.JoinRoom)
	case a.LeaveRoom != nil:
		return s.doLeaveRoom(player, req, now)
	case a.Chat != nil:
		return s.doChat(player, req, a.Chat, now)
	case a.Toggle != nil:
		return s.doToggle(player, req, a.Toggle)
	case a.SetCell != nil:
		return s.doSetCell(player, req, a.SetCell)
	default:
		return s.badRequest(player, req, "no recognized action")
	}
}

func (s *ServerState) ok(player *Player, req protocol.Request) protocol.Response {
	action := "set_cell"
	switch a := req.Action; {
	case a.NewRoom != nil:
		action = "new_room"
	case a.JoinRoom != nil:
		action = "join_room"
	case a.LeaveRoom != nil:
		action = "leave_room"
	case a.Chat != nil:
		action = "chat"
	case a.Toggle != nil:
		action = "toggle"
	}
	metrics.RecordRequestProcessed(action)
	return protocol.Response{
		Sequence:   player.NextResponseSeq(),
		RequestAck: req.Sequence,
		Code:       protocol.ResponseCode{Ok: &struct{}{}},
	}
}

func (s *ServerState) badRequest(player *Player, req protocol.Request, msg string) protocol.Response {
	return protocol.Response{
		Sequence:   player.NextResponseSeq(),
		RequestAck: req.Sequence,
		Code:       protocol.ResponseCode{BadRequest: &protocol.ErrorCode{Message: msg}},
	}
}

func (s *ServerState) doNewRoom(player *Player, req protocol.Request, action *protocol.NewRoomAction, now time.Time) protocol.Response {
	if player.InRoom() {
		return s.badRequest(player, req, "already in a room")
	}
	if len(action.Name) > s.cfg.MaxRoomNameLen {
		return s.badRequest(player, req, "room name too long")
	}
	for _, r := range s.rooms {
		if r.Name == action.Name {
			return s.badRequest(player, req, "room name already in use")
		}
	}

	id, err := s.ids.next(now)
	if err != nil {
		return s.badRequest(player, req, "failed to allocate room id")
	}
	room, err := newRoom(id, action.Name, s.cfg.UniverseWidth, s.cfg.UniverseHeight, s.cfg.HistoryDepth, s.cfg.FogRadius, s.cfg.RoomMaxPlayers, s.cfg.MaxChatMessages, s.cfg.MaxChatMessages)
	if err != nil {
		return s.badRequest(player, req, "failed to create universe: "+err.Error())
	}
	slot, _ := room.JoinSlot(player.ID)
	s.rooms[id] = room
	player.RoomID = &id
	player.RoomSlot = slot

	metrics.SetRoomsActive(s.RoomCount())
	if s.bus != nil {
		s.bus.Publish(eventbus.GlobalSubject, []byte(fmt.Sprintf("room %q created", action.Name)))
	}
	room.AppendGameUpdate(protocol.GameUpdateRoomCreated, player.ID, fmt.Sprintf("Room %q created.", action.Name), now)

	return s.ok(player, req)
}

func (s *ServerState) doJoinRoom(player *Player, req protocol.Request, action *protocol.JoinRoomAction) protocol.Response {
	if player.InRoom() {
		return s.badRequest(player, req, "already in a room")
	}
	room, ok := s.rooms[action.RoomID]
	if !ok {
		return s.badRequest(player, req, "no such room")
	}
	slot, ok := room.JoinSlot(player.ID)
	if !ok {
		return s.badRequest(player, req, "room is full")
	}
	player.RoomID = &room.ID
	player.RoomSlot = slot

	if s.bus != nil {
		s.bus.PublishRoomJoined(room.ID, player.Name)
	}
	return s.ok(player, req)
}

func (s *ServerState) doLeaveRoom(player *Player, req protocol.Request, now time.Time) protocol.Response {
	if !player.InRoom() {
		return s.badRequest(player, req, "not in a room")
	}
	s.removePlayerFromRoom(player, now)
	return s.ok(player, req)
}

// removePlayerFromRoom handles both an explicit LeaveRoom action and an
// implicit departure on timeout/disconnect, broadcasting the synthesized
// "Player X has left." chat line to whoever remains.
func (s *ServerState) removePlayerFromRoom(player *Player, now time.Time) {
	room, ok := s.rooms[*player.RoomID]
	if !ok {
		player.RoomID = nil
		return
	}
	room.LeaveSlot(player.RoomSlot)
	room.AppendChat(ServerSentinelPlayerID, "", fmt.Sprintf("Player %s has left.", player.Name), now)
	if s.bus != nil {
		s.bus.PublishRoomLeft(room.ID, player.Name)
	}
	player.RoomID = nil

	if room.Empty() {
		delete(s.rooms, room.ID)
		metrics.SetRoomsActive(s.RoomCount())
	}
}

func (s *ServerState) doChat(player *Player, req protocol.Request, action *protocol.ChatAction, now time.Time) protocol.Response {
	if !player.InRoom() {
		return s.badRequest(player, req, "not in a room")
	}
	if len(action.Message) > s.cfg.MaxChatMessageLen {
		return s.badRequest(player, req, "chat message too long")
	}
	room := s.rooms[*player.RoomID]
	room.AppendChat(player.ID, player.Name, action.Message, now)
	metrics.RecordChatMessage()
	return s.ok(player, req)
}

func (s *ServerState) doToggle(player *Player, req protocol.Request, action *protocol.ToggleAction) protocol.Response {
	if !player.InRoom() {
		return s.badRequest(player, req, "not in a room")
	}
	room := s.rooms[*player.RoomID]
	if _, err := room.Universe.Toggle(int(action.Col), int(action.Row), player.RoomSlot); err != nil {
		return s.badRequest(player, req, err.Error())
	}
	return s.ok(player, req)
}

// Outbound pairs a packet with the address it should be sent to, the unit
// the UDP send loop works in for the results of Tick/NetworkMaintenance/
// Heartbeat (each of which can produce packets for many players at once,
// unlike DecodePacket's single immediate reply).
type Outbound struct {
	Addr   net.Addr
	Packet protocol.Packet
}

// Tick runs the per-generation maintenance pass: expiring stale chat/event
// history, building each in-room player's next Update from whatever it
// hasn't acked yet, and evicting players who have gone silent too long.
func (s *ServerState) Tick(now time.Time) []Outbound {
	for _, room := range s.rooms {
		room.Chat.ExpireOlderThan(s.cfg.MaxAgeChatMessages, now)
		room.GameUpdates.ExpireOlderThan(s.cfg.MaxAgeChatMessages, now)
	}

	var out []Outbound
	for _, player := range s.playersByID {
		if player.TimedOut(now, s.cfg.PlayerTimeout) {
			continue
		}
		if !player.InRoom() {
			continue
		}
		room := s.rooms[*player.RoomID]
		update := s.buildUpdate(player, room, now)
		resp := protocol.Response{
			Sequence:   player.NextResponseSeq(),
			RequestAck: 0,
			Code:       protocol.ResponseCode{Ok: &struct{}{}},
		}
		player.Net.AppendTx(resp, now)
		out = append(out, Outbound{Addr: player.Addr, Packet: protocol.Packet{Update: &update}})
	}

	s.evictTimedOutPlayers(now)
	return out
}

func (s *ServerState) buildUpdate(player *Player, room *Room, now time.Time) protocol.Update {
	update := protocol.Update{Ping: uint64(now.Unix())}

	chatSkip := room.Chat.SkipCountForAck(player.ChatMsgSeqNum)
	for _, m := range room.Chat.Since(chatSkip) {
		update.Chats = append(update.Chats, protocol.ChatUpdate{
			SeqNum:     m.SeqNum,
			PlayerID:   m.PlayerID,
			PlayerName: m.PlayerName,
			Message:    m.Message,
			Timestamp:  m.Timestamp.Unix(),
		})
	}

	updateSkip := room.GameUpdates.SkipCountForAck(player.GameUpdateSeqNum)
	for _, e := range room.GameUpdates.Since(updateSkip) {
		update.GameUpdates = append(update.GameUpdates, e.Update)
	}

	latest := room.Universe.LatestGen()
	if player.LastGen != latest {
		vis := cell.PlayerVisibility(player.RoomSlot)
		if diff, err := room.Universe.Diff(player.LastGen, latest, vis); err == nil {
			body := rle.Encode(diff.Pattern)
			metrics.RecordUniverseDiffBytes(len(body))
			update.UniverseUpdate = &protocol.UniverseUpdate{
				Gen0:    diff.Gen0,
				Gen1:    diff.Gen1,
				RLEBody: body,
			}
		}
	}

	return update
}

// evictTimedOutPlayers removes every player that has gone silent past its
// timeout, tearing down room membership and the reliability-layer state
// for each.
func (s *ServerState) evictTimedOutPlayers(now time.Time) {
	for id, player := range s.playersByID {
		if !player.TimedOut(now, s.cfg.PlayerTimeout) {
			continue
		}
		if player.InRoom() {
			s.removePlayerFromRoom(player, now)
		}
		s.limiter.Forget(id)
		delete(s.playersByCookie, player.Cookie)
		delete(s.playersByID, id)
		metrics.RecordPlayerDisconnected(s.PlayerCount())
	}
}

// NetworkMaintenance drains each player's buffered-but-now-contiguous
// requests and collects retransmits for anything still unacknowledged past
// its backoff threshold.
func (s *ServerState) NetworkMaintenance(now time.Time) []Outbound {
	var out []Outbound
	for _, player := range s.playersByID {
		next := uint64(0)
		if player.RequestAck != nil {
			next = *player.RequestAck + 1
		}
		for _, req := range player.Net.DrainContiguous(next) {
			resp := s.processAction(player, req, now)
			player.MarkProcessed(req.Sequence)
			player.Net.AppendTx(resp, now)
			out = append(out, Outbound{Addr: player.Addr, Packet: protocol.Packet{Response: &resp}})
		}

		indices := player.Net.GetRetransmitIndices(now)
		if len(indices) == 0 {
			continue
		}
		var ack *uint64
		if player.RequestAck != nil {
			ack = player.RequestAck
		}
		for _, dg := range player.Net.RetransmitExpiredTxPackets(player.Addr, ack, indices, now) {
			metrics.RecordRetransmit()
			out = append(out, Outbound{Addr: dg.Addr, Packet: dg.Packet})
		}
	}
	return out
}

// Heartbeat sends a KeepAliveAck to every connected player, independent of
// whatever else is in flight for it.
func (s *ServerState) Heartbeat(now time.Time) []Outbound {
	out := make([]Outbound, 0, len(s.playersByID))
	for _, player := range s.playersByID {
		resp := protocol.Response{
			Sequence:   player.NextResponseSeq(),
			RequestAck: 0,
			Code:       protocol.ResponseCode{KeepAliveAck: &struct{}{}},
		}
		out = append(out, Outbound{Addr: player.Addr, Packet: protocol.Packet{Response: &resp}})
	}
	return out
}

func (s *ServerState) doSetCell(player *Player, req protocol.Request, action *protocol.SetCellAction) protocol.Response {
	if !player.InRoom() {
		return s.badRequest(player, req, "not in a room")
	}
	state, err := cell.FromChar(action.Char)
	if err != nil {
		return s.badRequest(player, req, err.Error())
	}
	if state.Kind == cell.Alive {
		state = cell.AliveOwned(player.RoomSlot)
	}
	room := s.rooms[*player.RoomID]
	room.Universe.Set(int(action.Col), int(action.Row), state, player.RoomSlot)
	return s.ok(player, req)
}
