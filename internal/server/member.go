// Package server defines the Member endpoint abstraction that rooms hold for
// each participant.
package server

import "github.com/chatwire/chatwire/internal/protocol"

// Member is the outbound endpoint of one client connection as seen by rooms
// and the registry. The transport layer owns the concrete connection; rooms
// only ever reference it through this interface.
//
// Deliver must never block: implementations queue the response and drop it if
// the connection cannot keep up.
type Member interface {
	Deliver(res protocol.Response)
	DisplayName() string
}
