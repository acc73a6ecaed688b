package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/pollroom/internal/models"
	"github.com/mcdev12/pollroom/internal/room"
)

func newTestGateway(t *testing.T, durationSec int) (*Service, *clockwork.FakeClock, *httptest.Server) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	service := NewService(Config{
		ConnectionConfig: DefaultConnectionConfig(),
		PollDurationSec:  durationSec,
	}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	go service.Start(ctx)

	mux := http.NewServeMux()
	service.RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return service, clock, server
}

type testClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func dialWS(t *testing.T, server *httptest.Server) *testClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", url, err)
	}
	t.Cleanup(func() { ws.Close() })

	return &testClient{t: t, ws: ws}
}

func (c *testClient) send(msgType MessageType, payload any) {
	c.t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		c.t.Fatalf("failed to marshal payload: %v", err)
	}
	if err := c.ws.WriteJSON(ClientMessage{Type: msgType, Data: data}); err != nil {
		c.t.Fatalf("failed to write message: %v", err)
	}
}

func (c *testClient) readEvent() *RoomEvent {
	c.t.Helper()

	c.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event RoomEvent
	if err := c.ws.ReadJSON(&event); err != nil {
		c.t.Fatalf("failed to read event: %v", err)
	}
	return &event
}

// readUntil skips events until one of the wanted type arrives.
func (c *testClient) readUntil(eventType EventType) *RoomEvent {
	c.t.Helper()

	for i := 0; i < 20; i++ {
		event := c.readEvent()
		if event.Type == eventType {
			return event
		}
	}
	c.t.Fatalf("never received %s event", eventType)
	return nil
}

func decodeAck(t *testing.T, event *RoomEvent) AckPayload {
	t.Helper()

	var ack AckPayload
	if err := json.Unmarshal(event.Data, &ack); err != nil {
		t.Fatalf("failed to decode ack: %v", err)
	}
	return ack
}

func decodeSnapshot(t *testing.T, event *RoomEvent) models.RoomSnapshot {
	t.Helper()

	var snap models.RoomSnapshot
	if err := json.Unmarshal(event.Data, &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	return snap
}

func TestCreateJoinVoteScenario(t *testing.T) {
	service, _, server := newTestGateway(t, room.DefaultPollDuration)

	// Alice creates a room with the default poll.
	alice := dialWS(t, server)
	alice.send(MessageTypeCreateRoom, CreateRoomPayload{Username: "alice"})

	ack := decodeAck(t, alice.readUntil(EventTypeCreateRoomAck))
	if !ack.Success {
		t.Fatalf("create_room failed: %s", ack.Error)
	}
	code := ack.RoomCode
	if len(code) != room.CodeLength {
		t.Fatalf("room code = %q, want %d chars", code, room.CodeLength)
	}
	if ack.Room == nil {
		t.Fatal("create_room ack carries no snapshot")
	}
	if got := ack.Room.Options; len(got) != 2 || got[0] != "Cats" || got[1] != "Dogs" {
		t.Errorf("options = %v, want [Cats Dogs]", got)
	}
	if got := ack.Room.Votes; got[0] != 0 || got[1] != 0 {
		t.Errorf("votes = %v, want [0 0]", got)
	}
	if !ack.Room.IsActive || ack.Room.TimeRemaining != room.DefaultPollDuration {
		t.Errorf("snapshot = active=%v remaining=%d", ack.Room.IsActive, ack.Room.TimeRemaining)
	}

	// The ack is followed by a room_update to the (so far lone) creator.
	snap := decodeSnapshot(t, alice.readUntil(EventTypeRoomUpdate))
	if len(snap.Members) != 1 {
		t.Fatalf("room_update members = %d, want 1", len(snap.Members))
	}

	// Bob joins; both connections see 2 members, votes unchanged.
	bob := dialWS(t, server)
	bob.send(MessageTypeJoinRoom, JoinRoomPayload{Username: "bob", RoomCode: code})

	ack = decodeAck(t, bob.readUntil(EventTypeJoinRoomAck))
	if !ack.Success {
		t.Fatalf("join_room failed: %s", ack.Error)
	}
	if len(ack.Room.Members) != 2 {
		t.Fatalf("join ack members = %d, want 2", len(ack.Room.Members))
	}

	for _, c := range []*testClient{alice, bob} {
		snap := decodeSnapshot(t, c.readUntil(EventTypeRoomUpdate))
		if len(snap.Members) != 2 {
			t.Errorf("room_update members = %d, want 2", len(snap.Members))
		}
		if snap.Votes[0] != 0 || snap.Votes[1] != 0 {
			t.Errorf("room_update votes = %v, want [0 0]", snap.Votes)
		}
	}

	// Alice votes Cats.
	alice.send(MessageTypeSubmitVote, SubmitVotePayload{Option: "Cats"})
	ack = decodeAck(t, alice.readUntil(EventTypeSubmitVoteAck))
	if !ack.Success || ack.Room.Votes[0] != 1 {
		t.Fatalf("vote ack = %+v", ack)
	}
	for _, c := range []*testClient{alice, bob} {
		snap := decodeSnapshot(t, c.readUntil(EventTypeRoomUpdate))
		if snap.Votes[0] != 1 || snap.Votes[1] != 0 {
			t.Errorf("room_update votes = %v, want [1 0]", snap.Votes)
		}
	}

	// Bob votes Cats too.
	bob.send(MessageTypeSubmitVote, SubmitVotePayload{Option: "Cats"})
	ack = decodeAck(t, bob.readUntil(EventTypeSubmitVoteAck))
	if !ack.Success || ack.Room.Votes[0] != 2 {
		t.Fatalf("vote ack = %+v", ack)
	}

	// A second vote from Alice is rejected and changes nothing.
	alice.send(MessageTypeSubmitVote, SubmitVotePayload{Option: "Dogs"})
	ack = decodeAck(t, alice.readUntil(EventTypeSubmitVoteAck))
	if ack.Success || ack.Error != "You have already voted" {
		t.Fatalf("double vote ack = %+v", ack)
	}

	r, err := service.Store().GetRoom(code)
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if snap := r.Snapshot(); snap.Votes[0] != 2 || snap.Votes[1] != 0 {
		t.Errorf("votes after rejected double vote = %v, want [2 0]", snap.Votes)
	}

	// Bob disconnects. Alice is told, the room survives, votes persist.
	bob.ws.Close()
	snap = decodeSnapshot(t, alice.readUntil(EventTypeRoomUpdate))
	if len(snap.Members) != 1 || snap.Members[0].Username != "alice" {
		t.Fatalf("room_update after disconnect members = %+v", snap.Members)
	}
	if snap.Votes[0] != 2 {
		t.Errorf("votes after disconnect = %v, want [2 0]", snap.Votes)
	}

	// Last member out deletes the room.
	alice.ws.Close()
	waitForCondition(t, func() bool { return service.Store().Len() == 0 })
}

func TestJoinUnknownRoom(t *testing.T) {
	_, _, server := newTestGateway(t, room.DefaultPollDuration)

	client := dialWS(t, server)
	client.send(MessageTypeJoinRoom, JoinRoomPayload{Username: "bob", RoomCode: "NOSUCH"})

	ack := decodeAck(t, client.readUntil(EventTypeJoinRoomAck))
	if ack.Success || ack.Error != "Room not found" {
		t.Errorf("ack = %+v, want Room not found", ack)
	}
}

func TestVoteWithoutJoin(t *testing.T) {
	_, _, server := newTestGateway(t, room.DefaultPollDuration)

	client := dialWS(t, server)
	client.send(MessageTypeSubmitVote, SubmitVotePayload{Option: "Cats"})

	ack := decodeAck(t, client.readUntil(EventTypeSubmitVoteAck))
	if ack.Success || ack.Error != "Room not found" {
		t.Errorf("ack = %+v, want Room not found", ack)
	}
}

func TestVoteInvalidOption(t *testing.T) {
	_, _, server := newTestGateway(t, room.DefaultPollDuration)

	client := dialWS(t, server)
	client.send(MessageTypeCreateRoom, CreateRoomPayload{Username: "alice"})
	ack := decodeAck(t, client.readUntil(EventTypeCreateRoomAck))
	if !ack.Success {
		t.Fatalf("create_room failed: %s", ack.Error)
	}

	client.send(MessageTypeSubmitVote, SubmitVotePayload{Option: "Birds"})
	ack = decodeAck(t, client.readUntil(EventTypeSubmitVoteAck))
	if ack.Success || ack.Error != "Invalid option" {
		t.Errorf("ack = %+v, want Invalid option", ack)
	}
}

func TestCountdownOverWebSocket(t *testing.T) {
	_, clock, server := newTestGateway(t, 2)

	client := dialWS(t, server)
	client.send(MessageTypeCreateRoom, CreateRoomPayload{Username: "alice"})
	ack := decodeAck(t, client.readUntil(EventTypeCreateRoomAck))
	if !ack.Success {
		t.Fatalf("create_room failed: %s", ack.Error)
	}

	// First tick.
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	event := client.readUntil(EventTypeTimeUpdate)
	var tick room.TimeUpdatePayload
	if err := json.Unmarshal(event.Data, &tick); err != nil {
		t.Fatalf("failed to decode time_update: %v", err)
	}
	if tick.TimeRemaining != 1 {
		t.Errorf("time remaining = %d, want 1", tick.TimeRemaining)
	}

	// Final tick ends the poll.
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	snap := decodeSnapshot(t, client.readUntil(EventTypePollEnded))
	if snap.IsActive || snap.TimeRemaining != 0 {
		t.Errorf("poll_ended snapshot = active=%v remaining=%d", snap.IsActive, snap.TimeRemaining)
	}

	// Votes after the end are rejected with the poll-over error.
	client.send(MessageTypeSubmitVote, SubmitVotePayload{Option: "Cats"})
	ack = decodeAck(t, client.readUntil(EventTypeSubmitVoteAck))
	if ack.Success || ack.Error != "Voting has ended for this room" {
		t.Errorf("ack = %+v, want voting ended error", ack)
	}
}

func TestRoomExistsEndpoint(t *testing.T) {
	_, _, server := newTestGateway(t, room.DefaultPollDuration)

	client := dialWS(t, server)
	client.send(MessageTypeCreateRoom, CreateRoomPayload{Username: "alice"})
	ack := decodeAck(t, client.readUntil(EventTypeCreateRoomAck))
	if !ack.Success {
		t.Fatalf("create_room failed: %s", ack.Error)
	}

	checkExists := func(code string, want bool) {
		t.Helper()
		resp, err := http.Get(server.URL + "/api/rooms/" + code)
		if err != nil {
			t.Fatalf("GET /api/rooms/%s error = %v", code, err)
		}
		defer resp.Body.Close()

		var body RoomExistsResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body.Exists != want {
			t.Errorf("exists(%s) = %v, want %v", code, body.Exists, want)
		}
	}

	checkExists(ack.RoomCode, true)
	checkExists("NOSUCH", false)
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
