package protocol

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cookie := Cookie{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	matrix := []struct {
		name string
		pkt  Packet
	}{
		{"connect request", Packet{Request: &Request{
			Sequence:    0,
			ResponseAck: OptionalU64{},
			Cookie:      cookie,
			Action:      Action{Connect: &ConnectAction{Name: "alice", ClientVersion: "1.0.0"}},
		}}},
		{"keepalive request", Packet{Request: &Request{
			Sequence:    7,
			ResponseAck: OptionalU64{Value: 3, Present: true},
			Cookie:      cookie,
			Action:      Action{KeepAlive: &KeepAliveAction{LatestResponseAck: 6}},
		}}},
		{"toggle request", Packet{Request: &Request{
			Sequence: 12,
			Cookie:   cookie,
			Action:   Action{Toggle: &ToggleAction{Col: -5, Row: 42}},
		}}},
		{"logged-in response", Packet{Response: &Response{
			Sequence:   0,
			RequestAck: 0,
			Code:       ResponseCode{LoggedIn: &LoggedInCode{Cookie: cookie, ServerVersion: "1.0.0"}},
		}}},
		{"bad request response", Packet{Response: &Response{
			Sequence:   1,
			RequestAck: 1,
			Code:       ResponseCode{BadRequest: &ErrorCode{Message: "room name too long"}},
		}}},
		{"update with universe diff", Packet{Update: &Update{
			Chats: []ChatUpdate{{SeqNum: 1, PlayerID: 9, PlayerName: "bob", Message: "hi", Timestamp: 1000}},
			GameUpdates: []GameUpdate{{SeqNum: 2, Kind: GameUpdatePlayerLeft, RoomID: 5, PlayerID: 9, Text: "Player bob has left."}},
			UniverseUpdate: &UniverseUpdate{Gen0: 4, Gen1: 5, RLEBody: "3o$2bo$b2o!"},
			Ping:           77,
		}}},
		{"update with no diff", Packet{Update: &Update{Ping: 1}}},
		{"update reply", Packet{UpdateReply: &UpdateReply{
			Cookie: cookie, LastChatSeq: 4, LastGameUpdateSeq: 2, LastGen: 10, Pong: 77,
		}}},
		{"get status", Packet{GetStatus: &GetStatus{Ping: 42}}},
		{"status", Packet{Status: &Status{Pong: 42, PlayerCount: 3, RoomCount: 1, ServerName: "lifenet", ServerVersion: "1.0.0"}}},
	}

	for _, tt := range matrix {
		encoded, err := Encode(tt.pkt)
		if err != nil {
			t.Errorf("%s: Encode: %v", tt.name, err)
			continue
		}
		decoded, err := Decode(encoded)
		if err != nil {
			t.Errorf("%s: Decode: %v", tt.name, err)
			continue
		}
		reencoded, err := Encode(decoded)
		if err != nil {
			t.Errorf("%s: re-Encode: %v", tt.name, err)
			continue
		}
		if string(reencoded) != string(encoded) {
			t.Errorf("%s: round trip mismatch: got %x, want %x", tt.name, reencoded, encoded)
		}
	}
}

func TestDecodeTruncatedPacketErrors(t *testing.T) {
	pkt := Packet{GetStatus: &GetStatus{Ping: 1}}
	encoded, err := Encode(pkt)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(encoded[:len(encoded)-1]); err == nil {
		t.Error("expected an error decoding a truncated packet")
	}
}

func TestEncodeEmptyPacketErrors(t *testing.T) {
	if _, err := Encode(Packet{}); err == nil {
		t.Error("expected an error encoding a packet with no variant set")
	}
}
