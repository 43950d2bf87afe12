package server

import (
	"testing"
	"time"

	"github.com/chatwire/chatwire/internal/protocol"
)

// startRegistry runs a registry loop for the duration of the test.
func startRegistry(t *testing.T) *Registry {
	t.Helper()

	g := NewRegistry()
	go g.Run()
	t.Cleanup(func() {
		if err := g.Shutdown(2 * time.Second); err != nil {
			t.Errorf("Registry shutdown returned error: %v", err)
		}
	})
	return g
}

// TestRegistryJoinCreatesRoomOnce verifies that the first join creates the
// room and a second join reuses it instead of creating a duplicate.
func TestRegistryJoinCreatesRoomOnce(t *testing.T) {
	g := startRegistry(t)
	ada := newFakeMember("ada")
	bob := newFakeMember("bob")

	g.Join(ada, "lobby")
	g.Join(bob, "lobby")

	// Ada sees exactly one join announcement for bob; a duplicate room
	// would have swallowed one of the members instead.
	note, ok := ada.next(t).(protocol.Notification)
	if !ok || note.Content != "bob joined the room." {
		t.Fatalf("Expected join notification, got %#v", note)
	}

	g.Chat(ada, "lobby", "hello")
	want := protocol.UserMessage{UserName: "ada", Room: "lobby", Content: "hello"}
	for _, m := range []*fakeMember{ada, bob} {
		if got := m.next(t); got != protocol.Response(want) {
			t.Errorf("Member %s received %#v, want %#v", m.name, got, want)
		}
	}
}

// TestRegistryChatUnknownRoom verifies the routing error for a chat to a
// room that was never joined, and that nobody else hears about it.
func TestRegistryChatUnknownRoom(t *testing.T) {
	g := startRegistry(t)
	ada := newFakeMember("ada")

	g.Chat(ada, "lobby", "anyone here?")

	res, ok := ada.next(t).(protocol.ProtocolError)
	if !ok || res.Resource != "chat" || res.Reason != "Room does not exist." {
		t.Errorf("Chat reply = %#v, want chat/Room does not exist.", res)
	}
}

// TestRegistryNonJoinOpsNeverCreateRooms verifies that disconnect and image
// operations for absent rooms answer with routing errors instead of creating
// the room implicitly.
func TestRegistryNonJoinOpsNeverCreateRooms(t *testing.T) {
	g := startRegistry(t)
	ada := newFakeMember("ada")
	lobby := "lobby"

	g.Disconnect(ada, &lobby)
	if res, ok := ada.next(t).(protocol.ProtocolError); !ok || res.Resource != "disconnect" || res.Reason != "Room does not exist." {
		t.Errorf("Disconnect reply = %#v, want disconnect routing error", res)
	}

	g.ImageInit(ada, "x", "lobby", 3)
	if res, ok := ada.next(t).(protocol.ProtocolError); !ok || res.Resource != "image-init" || res.Reason != "Room does not exist." {
		t.Errorf("ImageInit reply = %#v, want image-init routing error", res)
	}

	g.ImagePart(ada, "x", 0, "lobby", "chunk")
	if res, ok := ada.next(t).(protocol.ProtocolError); !ok || res.Resource != "image" || res.Reason != "Room does not exist." {
		t.Errorf("ImagePart reply = %#v, want image routing error", res)
	}

	// Had any of those created the room, this join would find members in
	// an inconsistent state; instead it founds a fresh room.
	g.Join(ada, "lobby")
	g.Chat(ada, "lobby", "fresh")
	if got, ok := ada.next(t).(protocol.UserMessage); !ok || got.Content != "fresh" {
		t.Errorf("Chat after join = %#v, want the fresh user message", got)
	}
}

// TestRegistryReapsTerminatedRoom verifies the full room lifecycle: the
// sole member leaves, the room terminates, and a later chat to the same name
// reports that the room does not exist.
func TestRegistryReapsTerminatedRoom(t *testing.T) {
	g := startRegistry(t)
	ada := newFakeMember("ada")
	lobby := "lobby"

	g.Join(ada, "lobby")
	g.Disconnect(ada, &lobby)
	if res, ok := ada.next(t).(protocol.ProtocolOk); !ok || res.Resource != "disconnect" {
		t.Fatalf("Disconnect reply = %#v, want disconnect ok", res)
	}

	// The termination signal and the next chat race through different
	// channels, so poll until the mapping is gone.
	deadline := time.Now().Add(2 * time.Second)
	for {
		g.Chat(ada, "lobby", "still there?")
		res, ok := ada.next(t).(protocol.ProtocolError)
		if !ok {
			t.Fatalf("Chat reply was not an error frame: %#v", res)
		}
		if res.Reason == "Room does not exist." {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Room was never reaped; last reply %#v", res)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestRegistryFanOutDisconnect verifies that a disconnect without a room
// leaves every joined room and does not disturb rooms the client never
// joined.
func TestRegistryFanOutDisconnect(t *testing.T) {
	g := startRegistry(t)
	ada := newFakeMember("ada")
	bob := newFakeMember("bob")

	g.Join(ada, "alpha")
	g.Join(ada, "beta")
	g.Join(bob, "beta")
	g.Join(bob, "gamma")
	ada.next(t) // bob joined beta

	g.Disconnect(ada, nil)

	// Ada left alpha and beta: two acknowledgements, in some order.
	for i := 0; i < 2; i++ {
		if res, ok := ada.next(t).(protocol.ProtocolOk); !ok || res.Resource != "disconnect" {
			t.Fatalf("Fan-out reply %d = %#v, want disconnect ok", i, res)
		}
	}
	ada.expectNone(t, 50*time.Millisecond)

	// Bob saw ada leave beta and nothing about gamma, where ada never was.
	if note, ok := bob.next(t).(protocol.Notification); !ok || note.Room != "beta" || note.Content != "ada left the room." {
		t.Errorf("Bob's notification = %#v, want ada left beta", note)
	}
	bob.expectNone(t, 50*time.Millisecond)

	// Gamma is untouched: bob can still chat there.
	g.Chat(bob, "gamma", "quiet in here")
	if got, ok := bob.next(t).(protocol.UserMessage); !ok || got.Room != "gamma" {
		t.Errorf("Chat in gamma = %#v, want user message", got)
	}
}

// TestRegistryTerminationSignalForUnknownRoom verifies the no-op: a stale
// signal for a name that is no longer mapped must not disturb the registry.
func TestRegistryTerminationSignalForUnknownRoom(t *testing.T) {
	g := startRegistry(t)
	ada := newFakeMember("ada")

	g.terminated <- "ghost"

	// The registry keeps routing normally afterwards.
	g.Join(ada, "lobby")
	g.Chat(ada, "lobby", "hello")
	if got, ok := ada.next(t).(protocol.UserMessage); !ok || got.Content != "hello" {
		t.Errorf("Chat after stale signal = %#v, want user message", got)
	}
}
