// Package server implements the registry, the top-level router that owns the
// room-name to room mapping: it creates rooms on demand, forwards
// room-scoped requests, and unregisters rooms when they terminate.
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/chatwire/chatwire/internal/protocol"
)

func roomMissingError(resource string) protocol.ProtocolError {
	return protocol.ProtocolError{Resource: resource, Reason: "Room does not exist."}
}

func roomBusyError(resource string) protocol.ProtocolError {
	return protocol.ProtocolError{Resource: resource, Reason: "room is busy, try again"}
}

// registryRequest is the closed set of messages the registry processes. The
// registry handles one request to completion before taking the next, so the
// room mapping needs no locking.
type registryRequest interface {
	registryRequest()
}

type routeJoin struct {
	member Member
	room   string
}

type routeChat struct {
	member  Member
	room    string
	content string
}

// routeDisconnect with a nil room fans a leave out to every registered room.
type routeDisconnect struct {
	member Member
	room   *string
}

type routeImageInit struct {
	member Member
	id     string
	room   string
	parts  int
}

type routeImagePart struct {
	member Member
	id     string
	part   int
	room   string
	data   string
}

func (routeJoin) registryRequest()       {}
func (routeChat) registryRequest()       {}
func (routeDisconnect) registryRequest() {}
func (routeImageInit) registryRequest()  {}
func (routeImagePart) registryRequest()  {}

// Registry routes room-scoped client requests to per-room goroutines. A name
// is present in rooms exactly while its room is alive; absence is proof that
// no members exist under that name.
type Registry struct {
	requests   chan registryRequest
	terminated chan string
	rooms      map[string]*Room

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRegistry creates a registry ready to Run.
func NewRegistry() *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		requests:   make(chan registryRequest, 256),
		terminated: make(chan string, 64),
		rooms:      make(map[string]*Room),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Join routes a join request, creating the room if it does not exist.
func (g *Registry) Join(m Member, room string) {
	g.submit(routeJoin{member: m, room: room})
}

// Chat routes a chat line to an existing room.
func (g *Registry) Chat(m Member, room, content string) {
	g.submit(routeChat{member: m, room: room, content: content})
}

// Disconnect routes a leave. A nil room means leave every joined room.
func (g *Registry) Disconnect(m Member, room *string) {
	g.submit(routeDisconnect{member: m, room: room})
}

// ImageInit routes the announcement of a multi-part upload.
func (g *Registry) ImageInit(m Member, id, room string, parts int) {
	g.submit(routeImageInit{member: m, id: id, room: room, parts: parts})
}

// ImagePart routes one chunk of an announced upload.
func (g *Registry) ImagePart(m Member, id string, part int, room, data string) {
	g.submit(routeImagePart{member: m, id: id, part: part, room: room, data: data})
}

// submit enqueues a request on the registry mailbox. The send applies
// backpressure to the calling read pump rather than dropping requests, but
// gives up once the registry has shut down.
func (g *Registry) submit(req registryRequest) {
	select {
	case g.requests <- req:
	case <-g.ctx.Done():
	}
}

// Run is the registry's event loop. It should be called in its own
// goroutine; it returns when Shutdown cancels the registry context.
func (g *Registry) Run() {
	defer close(g.done)

	for {
		select {
		case <-g.ctx.Done():
			return
		case req := <-g.requests:
			g.dispatch(req)
		case name := <-g.terminated:
			g.reapRoom(name)
		}
	}
}

func (g *Registry) dispatch(req registryRequest) {
	switch req := req.(type) {
	case routeJoin:
		g.routeJoin(req.member, req.room)
	case routeChat:
		g.forward(req.member, req.room, "chat", chatRoom{member: req.member, content: req.content})
	case routeDisconnect:
		g.routeDisconnect(req.member, req.room)
	case routeImageInit:
		g.forward(req.member, req.room, "image-init", initImage{member: req.member, id: req.id, parts: req.parts})
	case routeImagePart:
		g.forward(req.member, req.room, "image", imageChunk{member: req.member, id: req.id, part: req.part, data: req.data})
	default:
		// A request type this switch does not know about means the routing
		// layer and the request set are out of sync. Loud, never silent.
		log.Printf("Registry received unhandled request type %T", req)
	}
}

// routeJoin is the only path that may create a room. A new room starts with
// the joiner as founding member and is fully registered before the registry
// takes its next request.
func (g *Registry) routeJoin(m Member, name string) {
	if room, exists := g.rooms[name]; exists {
		g.deliverOrBusy(m, "room", room, joinRoom{member: m})
		return
	}

	cfg := currentConfig()
	room := newRoom(name, m, roomOptions{
		mailboxSize:   cfg.RoomMailboxSize,
		transferTTL:   cfg.ImageTransferTTL,
		sweepInterval: cfg.ImageSweepInterval,
	}, g.terminated)
	g.rooms[name] = room

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		room.run(g.ctx)
	}()
	log.Printf("Registry created room %q. Total rooms: %d", name, len(g.rooms))
}

// forward sends a request to an existing room, or reports "Room does not
// exist." to the requester. Only joins may create rooms implicitly.
func (g *Registry) forward(m Member, name, resource string, req roomRequest) {
	room, exists := g.rooms[name]
	if !exists {
		m.Deliver(roomMissingError(resource))
		return
	}
	g.deliverOrBusy(m, resource, room, req)
}

func (g *Registry) routeDisconnect(m Member, name *string) {
	if name == nil {
		// Leave every registered room. Rooms where the member is absent
		// treat the leave as a no-op.
		for _, room := range g.rooms {
			if err := room.enqueue(leaveRoom{member: m}); err != nil {
				log.Printf("Registry dropped leave for busy room %q", room.name)
			}
		}
		return
	}

	room, exists := g.rooms[*name]
	if !exists {
		m.Deliver(roomMissingError("disconnect"))
		return
	}
	g.deliverOrBusy(m, "disconnect", room, leaveRoom{member: m, notifyAlways: true})
}

func (g *Registry) deliverOrBusy(m Member, resource string, room *Room, req roomRequest) {
	if err := room.enqueue(req); err != nil {
		m.Deliver(roomBusyError(resource))
	}
}

// reapRoom handles a room's idle signal. The signal races with requests the
// registry already forwarded, so the room is asked to confirm: a room that
// picked up members since signaling stays registered. A signal for a name
// that is no longer mapped is a no-op.
func (g *Registry) reapRoom(name string) {
	room, exists := g.rooms[name]
	if !exists {
		return
	}

	reply := make(chan bool, 1)
	if err := room.enqueue(confirmShutdown{reply: reply}); err != nil {
		// The mailbox is full, so the room has traffic and is clearly not
		// idle anymore. It will signal again if it empties out.
		return
	}
	select {
	case confirmed := <-reply:
		if confirmed {
			delete(g.rooms, name)
			log.Printf("Registry removed room %q. Total rooms: %d", name, len(g.rooms))
		}
	case <-g.ctx.Done():
		// Shutting down; the room exits via context cancellation instead
		// of answering.
	}
}

// Shutdown stops the registry loop, cancels every room, and waits for the
// room goroutines to finish or the timeout to expire.
func (g *Registry) Shutdown(timeout time.Duration) error {
	log.Println("Initiating registry shutdown...")

	g.cancel()
	<-g.done

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Registry shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Registry shutdown timeout reached, some rooms may still be running")
		return context.DeadlineExceeded
	}
}
