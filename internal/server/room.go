// Package server implements the per-room broadcast unit: membership, chat
// fan-out, and multi-part image relay, all owned by a single goroutine.
package server

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/chatwire/chatwire/internal/protocol"
)

// ErrRoomBusy is returned when a room's mailbox is full and a request cannot
// be accepted without blocking the caller.
var ErrRoomBusy = errors.New("room mailbox is full")

// roomRequest is the closed set of messages a room processes. Each variant
// is handled to completion before the next is taken, so room state needs no
// locking.
type roomRequest interface {
	roomRequest()
}

type joinRoom struct {
	member Member
}

type chatRoom struct {
	member  Member
	content string
}

// leaveRoom removes a member. notifyAlways forces the ok reply even when the
// member was not in the room; the leave-all fan-out leaves it unset so a
// client is only acknowledged by rooms it actually left.
type leaveRoom struct {
	member       Member
	notifyAlways bool
}

type initImage struct {
	member Member
	id     string
	parts  int
}

type imageChunk struct {
	member Member
	id     string
	part   int
	data   string
}

// confirmShutdown is the second phase of the room termination handshake: the
// registry asks whether the room is still idle before unregistering it.
type confirmShutdown struct {
	reply chan bool
}

func (joinRoom) roomRequest()        {}
func (chatRoom) roomRequest()        {}
func (leaveRoom) roomRequest()       {}
func (initImage) roomRequest()       {}
func (imageChunk) roomRequest()      {}
func (confirmShutdown) roomRequest() {}

// imageTransfer tracks one in-progress multi-part upload. The buffer exists
// only to know when the transfer is complete; chunks are relayed to members
// as they arrive.
type imageTransfer struct {
	totalParts int
	received   map[int][]byte
	sender     Member
	updated    time.Time
}

// roomOptions sizes a room's mailbox and its stale-transfer eviction.
type roomOptions struct {
	mailboxSize   int
	transferTTL   time.Duration
	sweepInterval time.Duration
}

// Room is a single named chat room. Its members and pending transfers are
// mutated only by the room's own run loop; everyone else interacts with it
// by enqueueing requests.
type Room struct {
	name    string
	inbox   chan roomRequest
	members map[Member]struct{}
	pending map[string]*imageTransfer

	// terminated carries this room's name to the registry when the room
	// goes idle. The registry confirms before the room actually exits.
	terminated chan<- string

	transferTTL   time.Duration
	sweepInterval time.Duration
}

// newRoom creates a room with its founding member already joined. A room is
// never created empty.
func newRoom(name string, founder Member, opts roomOptions, terminated chan<- string) *Room {
	r := &Room{
		name:          name,
		inbox:         make(chan roomRequest, opts.mailboxSize),
		members:       map[Member]struct{}{founder: {}},
		pending:       make(map[string]*imageTransfer),
		terminated:    terminated,
		transferTTL:   opts.transferTTL,
		sweepInterval: opts.sweepInterval,
	}
	return r
}

// enqueue hands a request to the room without blocking. A full mailbox
// yields ErrRoomBusy so a slow room can never stall the registry.
func (r *Room) enqueue(req roomRequest) error {
	select {
	case r.inbox <- req:
		return nil
	default:
		return ErrRoomBusy
	}
}

// run processes the room's mailbox until the room terminates or the server
// shuts down. The sweep ticker evicts stale image transfers and retries the
// idle signal in case an earlier one was dropped.
func (r *Room) run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-r.inbox:
			if r.handle(req) {
				return
			}
		case <-ticker.C:
			r.sweepTransfers()
			r.signalIfIdle()
		}
	}
}

// handle processes one request to completion. It reports true when the room
// has confirmed its own shutdown and the run loop should exit.
func (r *Room) handle(req roomRequest) bool {
	switch req := req.(type) {
	case joinRoom:
		r.handleJoin(req.member)
	case chatRoom:
		r.handleChat(req.member, req.content)
	case leaveRoom:
		r.handleLeave(req.member, req.notifyAlways)
	case initImage:
		r.handleImageInit(req.member, req.id, req.parts)
	case imageChunk:
		r.handleImagePart(req.member, req.id, req.part, req.data)
	case confirmShutdown:
		if r.idle() {
			req.reply <- true
			return true
		}
		req.reply <- false
	default:
		log.Printf("Room %q received unhandled request type %T", r.name, req)
	}
	return false
}

// handleJoin adds a member. Joining twice is a no-op. The other members get
// a notification so clients can render presence.
func (r *Room) handleJoin(m Member) {
	if _, exists := r.members[m]; exists {
		return
	}
	r.members[m] = struct{}{}
	r.broadcastExcept(m, protocol.Notification{
		Room:    r.name,
		Content: m.DisplayName() + " joined the room.",
	})
}

// handleChat fans a chat line out to every member, the sender included.
func (r *Room) handleChat(m Member, content string) {
	if _, exists := r.members[m]; !exists {
		m.Deliver(protocol.ProtocolError{Resource: "chat", Reason: "not a member"})
		return
	}
	r.broadcast(protocol.UserMessage{
		UserName: m.DisplayName(),
		Room:     r.name,
		Content:  content,
	})
}

func (r *Room) handleLeave(m Member, notifyAlways bool) {
	_, wasMember := r.members[m]
	if wasMember {
		delete(r.members, m)
	}
	if wasMember || notifyAlways {
		m.Deliver(protocol.ProtocolOk{Resource: "disconnect", Content: "Room exited successfully."})
	}
	if wasMember {
		r.broadcast(protocol.Notification{
			Room:    r.name,
			Content: m.DisplayName() + " left the room.",
		})
		r.signalIfIdle()
	}
}

// handleImageInit opens (or resets) a pending transfer and tells every
// member to prepare buffers. Re-initializing an id discards any chunks
// already received for it: last writer wins.
func (r *Room) handleImageInit(m Member, id string, parts int) {
	if _, exists := r.members[m]; !exists {
		m.Deliver(protocol.ProtocolError{Resource: "image-init", Reason: "not a member"})
		return
	}
	if parts < 1 {
		m.Deliver(protocol.ProtocolError{Resource: "image-init", Reason: "parts must be at least 1"})
		return
	}
	r.pending[id] = &imageTransfer{
		totalParts: parts,
		received:   make(map[int][]byte),
		sender:     m,
		updated:    time.Now(),
	}
	r.broadcast(protocol.ImageSubmissionInit{
		UserName: m.DisplayName(),
		ID:       id,
		Room:     r.name,
		Parts:    parts,
	})
}

// handleImagePart relays one chunk to every member immediately. The room
// never waits for a complete transfer before relaying; the buffer only
// tracks which parts have arrived so the entry can be retired.
func (r *Room) handleImagePart(m Member, id string, part int, data string) {
	if _, exists := r.members[m]; !exists {
		m.Deliver(protocol.ProtocolError{Resource: "image", Reason: "not a member"})
		return
	}
	transfer, exists := r.pending[id]
	if !exists {
		m.Deliver(protocol.ProtocolError{Resource: "image", Reason: "unknown transfer id"})
		return
	}
	if part < 0 || part >= transfer.totalParts {
		m.Deliver(protocol.ProtocolError{Resource: "image", Reason: "part index out of range"})
		return
	}

	// Duplicate part indices overwrite: last write wins.
	transfer.received[part] = []byte(data)
	transfer.updated = time.Now()

	r.broadcast(protocol.ImageSubmission{
		Name: m.DisplayName(),
		ID:   id,
		Part: part,
		Room: r.name,
		Data: data,
	})

	if len(transfer.received) == transfer.totalParts {
		delete(r.pending, id)
	}
}

// sweepTransfers evicts pending transfers that have not seen a chunk within
// the TTL, so an abandoned upload cannot pin its buffer forever.
func (r *Room) sweepTransfers() {
	if r.transferTTL <= 0 {
		return
	}
	for id, transfer := range r.pending {
		if time.Since(transfer.updated) <= r.transferTTL {
			continue
		}
		delete(r.pending, id)
		log.Printf("Room %q evicted stale image transfer %q", r.name, id)
		transfer.sender.Deliver(protocol.ProtocolError{
			Resource: "image",
			Reason:   "transfer timed out",
		})
	}
}

func (r *Room) idle() bool {
	return len(r.members) == 0 && len(r.pending) == 0
}

// signalIfIdle tells the registry this room is ready to terminate. The send
// never blocks; a dropped signal is retried on the next sweep tick, and a
// duplicate is harmless because the registry confirms before removing.
func (r *Room) signalIfIdle() {
	if !r.idle() {
		return
	}
	select {
	case r.terminated <- r.name:
	default:
	}
}

func (r *Room) broadcast(res protocol.Response) {
	for m := range r.members {
		m.Deliver(res)
	}
}

func (r *Room) broadcastExcept(skip Member, res protocol.Response) {
	for m := range r.members {
		if m == skip {
			continue
		}
		m.Deliver(res)
	}
}
