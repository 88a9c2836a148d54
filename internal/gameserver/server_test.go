package gameserver

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifenet/server/internal/config"
	"github.com/lifenet/server/internal/protocol"
)

func testConfig() *config.Config {
	return &config.Config{
		UniverseWidth:      64,
		UniverseHeight:     16,
		HistoryDepth:       4,
		FogRadius:          2,
		RoomMaxPlayers:     4,
		MaxRoomNameLen:     32,
		MaxChatMessages:    8,
		MaxChatMessageLen:  64,
		MaxAgeChatMessages: time.Minute,
		PlayerTimeout:      30 * time.Second,
		ServerName:         "lifenet-test",
		ServerVersion:      "1.0.0",
	}
}

func newTestServer(now time.Time) *ServerState {
	return New(testConfig(), zerolog.Nop(), nil, now)
}

func testAddr(port int) net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

func connectPlayer(t *testing.T, s *ServerState, name string, now time.Time) (protocol.Cookie, net.Addr) {
	t.Helper()
	addr := testAddr(len(name))
	pkt := protocol.Packet{Request: &protocol.Request{
		Action: protocol.Action{Connect: &protocol.ConnectAction{Name: name, ClientVersion: "1.0.0"}},
	}}
	reply, err := s.DecodePacket(addr, pkt, now)
	if err != nil {
		t.Fatalf("connect for %q: %v", name, err)
	}
	if reply == nil || reply.Response == nil || reply.Response.Code.LoggedIn == nil {
		t.Fatalf("connect for %q did not return a LoggedIn response: %+v", name, reply)
	}
	return reply.Response.Code.LoggedIn.Cookie, addr
}

func TestHandleConnectAssignsCookieAndLogsIn(t *testing.T) {
	now := time.Now()
	s := newTestServer(now)

	cookie, _ := connectPlayer(t, s, "alice", now)
	if cookie == (protocol.Cookie{}) {
		t.Error("expected a non-zero cookie")
	}
	if s.PlayerCount() != 1 {
		t.Errorf("PlayerCount = %d, want 1", s.PlayerCount())
	}
}

func TestHandleConnectRejectsDuplicateName(t *testing.T) {
	now := time.Now()
	s := newTestServer(now)
	connectPlayer(t, s, "alice", now)

	pkt := protocol.Packet{Request: &protocol.Request{
		Action: protocol.Action{Connect: &protocol.ConnectAction{Name: "alice", ClientVersion: "1.0.0"}},
	}}
	reply, err := s.DecodePacket(testAddr(99), pkt, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply == nil || reply.Response == nil || reply.Response.Code.Unauthorized == nil {
		t.Fatalf("expected Unauthorized for duplicate name, got %+v", reply)
	}
	if s.PlayerCount() != 1 {
		t.Errorf("PlayerCount = %d, want 1 (rejected connect must not register a player)", s.PlayerCount())
	}
}

func TestHandleConnectRejectsNewerClientVersion(t *testing.T) {
	now := time.Now()
	s := newTestServer(now)

	pkt := protocol.Packet{Request: &protocol.Request{
		Action: protocol.Action{Connect: &protocol.ConnectAction{Name: "bob", ClientVersion: "9.9.9"}},
	}}
	reply, err := s.DecodePacket(testAddr(1), pkt, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply == nil || reply.Response == nil || reply.Response.Code.Unauthorized == nil {
		t.Fatalf("expected Unauthorized for a client newer than the server, got %+v", reply)
	}
}

func TestDecodePacketRejectsServerOriginatedPacket(t *testing.T) {
	now := time.Now()
	s := newTestServer(now)

	pkt := protocol.Packet{Update: &protocol.Update{}}
	_, err := s.DecodePacket(testAddr(1), pkt, now)
	if err == nil {
		t.Fatal("expected an error for a server-originated packet type sent by a client")
	}
}

func TestDecodePacketUnknownCookieIsRejected(t *testing.T) {
	now := time.Now()
	s := newTestServer(now)

	pkt := protocol.Packet{Request: &protocol.Request{
		Sequence: 0,
		Cookie:   protocol.Cookie{1, 2, 3},
		Action:   protocol.Action{NewRoom: &protocol.NewRoomAction{Name: "r1"}},
	}}
	_, err := s.DecodePacket(testAddr(1), pkt, now)
	if err == nil {
		t.Fatal("expected an error for an unknown cookie")
	}
}

func TestDecodePacketBuffersOutOfOrderRequest(t *testing.T) {
	now := time.Now()
	s := newTestServer(now)
	cookie, addr := connectPlayer(t, s, "alice", now)

	outOfOrder := protocol.Packet{Request: &protocol.Request{
		Sequence: 1, // the next expected sequence is 0
		Cookie:   cookie,
		Action:   protocol.Action{NewRoom: &protocol.NewRoomAction{Name: "r1"}},
	}}
	reply, err := s.DecodePacket(addr, outOfOrder, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != nil {
		t.Fatalf("an out-of-order request should not produce an immediate reply, got %+v", reply)
	}

	player := s.playersByCookie[cookie]
	if player.Net.RxLen() != 1 {
		t.Errorf("RxLen = %d, want 1 (request should have been buffered)", player.Net.RxLen())
	}
}

func TestDecodePacketDropsAlreadyProcessed(t *testing.T) {
	now := time.Now()
	s := newTestServer(now)
	cookie, addr := connectPlayer(t, s, "alice", now)

	first := protocol.Packet{Request: &protocol.Request{
		Sequence: 0,
		Cookie:   cookie,
		Action:   protocol.Action{NewRoom: &protocol.NewRoomAction{Name: "r1"}},
	}}
	if _, err := s.DecodePacket(addr, first, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	replay, err := s.DecodePacket(addr, first, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replay != nil {
		t.Fatalf("a replayed already-processed request should get no reply, got %+v", replay)
	}
}

func TestRoomCreateJoinLeaveFlow(t *testing.T) {
	now := time.Now()
	s := newTestServer(now)
	aliceCookie, aliceAddr := connectPlayer(t, s, "alice", now)
	bobCookie, bobAddr := connectPlayer(t, s, "bob", now)

	newRoomPkt := protocol.Packet{Request: &protocol.Request{
		Sequence: 0,
		Cookie:   aliceCookie,
		Action:   protocol.Action{NewRoom: &protocol.NewRoomAction{Name: "arena"}},
	}}
	reply, err := s.DecodePacket(aliceAddr, newRoomPkt, now)
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	if reply.Response.Code.Ok == nil {
		t.Fatalf("expected Ok for NewRoom, got %+v", reply.Response.Code)
	}
	if s.RoomCount() != 1 {
		t.Fatalf("RoomCount = %d, want 1", s.RoomCount())
	}

	var roomID uint64
	for id := range s.rooms {
		roomID = id
	}

	joinPkt := protocol.Packet{Request: &protocol.Request{
		Sequence: 0,
		Cookie:   bobCookie,
		Action:   protocol.Action{JoinRoom: &protocol.JoinRoomAction{RoomID: roomID}},
	}}
	reply, err = s.DecodePacket(bobAddr, joinPkt, now)
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if reply.Response.Code.Ok == nil {
		t.Fatalf("expected Ok for JoinRoom, got %+v", reply.Response.Code)
	}

	room := s.rooms[roomID]
	if len(room.PlayerIDs()) != 2 {
		t.Fatalf("room has %d players, want 2", len(room.PlayerIDs()))
	}

	leavePkt := protocol.Packet{Request: &protocol.Request{
		Sequence: 1,
		Cookie:   bobCookie,
		Action:   protocol.Action{LeaveRoom: &protocol.LeaveRoomAction{}},
	}}
	reply, err = s.DecodePacket(bobAddr, leavePkt, now)
	if err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	if reply.Response.Code.Ok == nil {
		t.Fatalf("expected Ok for LeaveRoom, got %+v", reply.Response.Code)
	}

	if len(room.PlayerIDs()) != 1 {
		t.Fatalf("room has %d players after leave, want 1", len(room.PlayerIDs()))
	}

	last, ok := room.Chat.Newest()
	if !ok {
		t.Fatal("expected a synthesized departure chat line")
	}
	if last.PlayerID != ServerSentinelPlayerID {
		t.Errorf("departure chat PlayerID = %d, want the server sentinel", last.PlayerID)
	}
	if last.Message != "Player bob has left." {
		t.Errorf("departure chat message = %q, want %q", last.Message, "Player bob has left.")
	}
}

func TestDoChatRequiresRoomMembership(t *testing.T) {
	now := time.Now()
	s := newTestServer(now)
	cookie, addr := connectPlayer(t, s, "alice", now)

	chatPkt := protocol.Packet{Request: &protocol.Request{
		Sequence: 0,
		Cookie:   cookie,
		Action:   protocol.Action{Chat: &protocol.ChatAction{Message: "hi"}},
	}}
	reply, err := s.DecodePacket(addr, chatPkt, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Response.Code.BadRequest == nil {
		t.Fatalf("expected BadRequest for chat outside a room, got %+v", reply.Response.Code)
	}
}

func TestDecodePacketRoutesUpdateReplyAndAdvancesWatermarks(t *testing.T) {
	now := time.Now()
	s := newTestServer(now)
	cookie, addr := connectPlayer(t, s, "alice", now)
	player := s.playersByCookie[cookie]

	reply := protocol.Packet{UpdateReply: &protocol.UpdateReply{
		Cookie:            cookie,
		LastChatSeq:       3,
		LastGameUpdateSeq: 2,
		LastGen:           5,
		Pong:              42,
	}}
	resp, err := s.DecodePacket(addr, reply, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Fatalf("UpdateReply should produce no response, got %+v", resp)
	}

	if player.ChatMsgSeqNum != 3 {
		t.Errorf("ChatMsgSeqNum = %d, want 3", player.ChatMsgSeqNum)
	}
	if player.GameUpdateSeqNum != 2 {
		t.Errorf("GameUpdateSeqNum = %d, want 2", player.GameUpdateSeqNum)
	}
	if player.LastGen != 5 {
		t.Errorf("LastGen = %d, want 5", player.LastGen)
	}
	if player.LastPong != 42 {
		t.Errorf("LastPong = %d, want 42", player.LastPong)
	}

	// A watermark must never move backward.
	stale := protocol.Packet{UpdateReply: &protocol.UpdateReply{
		Cookie:      cookie,
		LastChatSeq: 1,
	}}
	if _, err := s.DecodePacket(addr, stale, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if player.ChatMsgSeqNum != 3 {
		t.Errorf("ChatMsgSeqNum regressed to %d after a stale ack, want 3", player.ChatMsgSeqNum)
	}
}

func TestDecodePacketRejectsUpdateReplyWithUnknownCookie(t *testing.T) {
	now := time.Now()
	s := newTestServer(now)

	reply := protocol.Packet{UpdateReply: &protocol.UpdateReply{Cookie: protocol.Cookie{9, 9, 9}}}
	_, err := s.DecodePacket(testAddr(1), reply, now)
	if err == nil {
		t.Fatal("expected an error for an UpdateReply with an unknown cookie")
	}
}

func TestHeartbeatSendsKeepAliveAckToEveryPlayer(t *testing.T) {
	now := time.Now()
	s := newTestServer(now)
	connectPlayer(t, s, "alice", now)
	connectPlayer(t, s, "bob", now)

	out := s.Heartbeat(now)
	if len(out) != 2 {
		t.Fatalf("Heartbeat produced %d packets, want 2", len(out))
	}
	for _, o := range out {
		if o.Packet.Response == nil || o.Packet.Response.Code.KeepAliveAck == nil {
			t.Errorf("expected a KeepAliveAck response, got %+v", o.Packet)
		}
	}
}
