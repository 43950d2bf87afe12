// Package protocol defines the tagged wire messages exchanged between chat
// clients and the server, together with the decode/encode contract that
// translates JSON frames to typed messages and back.
//
// Every frame is a JSON object carrying a string "resource" field that
// selects the variant's schema. Server-authored frames additionally carry a
// "code" field of "ok" or "error". The request and response sets are closed:
// both interfaces have an unexported marker method so no type outside this
// package can satisfy them.
package protocol

// Resource tags for client requests. The same tag namespace is reused for
// server responses where the table in the protocol documentation overlaps
// (identity, image-init, image, ping).
const (
	ResourceRegistration = "registration"
	ResourceLogin        = "login"
	ResourceLogout       = "logout"
	ResourceRoom         = "room"
	ResourceChat         = "chat-message"
	ResourceIdentity     = "identity"
	ResourceDisconnect   = "disconnect"
	ResourceImageInit    = "image-init"
	ResourceImage        = "image"
	ResourcePing         = "ping"
)

// Resource tags that only appear on server responses.
const (
	ResourceUserMessage  = "user-message"
	ResourceNotification = "notification"
)

// Response codes appended to every server frame.
const (
	CodeOk    = "ok"
	CodeError = "error"
)

// Request is a decoded client-to-server message. Decoded requests are
// immutable values: they are forwarded and matched on, never mutated.
type Request interface {
	requestResource() string
}

// Response is a server-to-client message accepted by Encode.
type Response interface {
	responseResource() string
	responseCode() string
}

// Registration asks the server to create an account.
type Registration struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Login authenticates against an existing account.
type Login struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Logout revokes the presented session tokens.
type Logout struct {
	Tokens []string `json:"tokens"`
}

// Join adds the sending connection to the named room, creating the room if
// it does not exist yet.
type Join struct {
	Room string `json:"room"`
}

// Chat broadcasts a text message to the members of a room.
type Chat struct {
	Room    string `json:"room"`
	Content string `json:"content"`
}

// Identity resolves session tokens to the account they belong to.
type Identity struct {
	Tokens        []string `json:"tokens"`
	WithAllTokens bool     `json:"withAllTokens,omitempty"`
}

// Disconnect leaves the named room, or every joined room when Room is nil.
type Disconnect struct {
	Tokens []string `json:"tokens"`
	Room   *string  `json:"room,omitempty"`
}

// ImageInit announces a multi-part image upload of Parts chunks.
type ImageInit struct {
	ID    string `json:"id"`
	Room  string `json:"room"`
	Parts int    `json:"parts"`
}

// ImagePart carries one base64-encoded chunk of an announced upload.
type ImagePart struct {
	ID   string `json:"id"`
	Part int    `json:"part"`
	Room string `json:"room"`
	Data string `json:"data"`
}

// Ping is a keepalive probe. It travels in both directions and carries no
// payload beyond the resource tag.
type Ping struct{}

func (Registration) requestResource() string { return ResourceRegistration }
func (Login) requestResource() string        { return ResourceLogin }
func (Logout) requestResource() string       { return ResourceLogout }
func (Join) requestResource() string         { return ResourceRoom }
func (Chat) requestResource() string         { return ResourceChat }
func (Identity) requestResource() string     { return ResourceIdentity }
func (Disconnect) requestResource() string   { return ResourceDisconnect }
func (ImageInit) requestResource() string    { return ResourceImageInit }
func (ImagePart) requestResource() string    { return ResourceImage }
func (Ping) requestResource() string         { return ResourcePing }

// UserMessage is a chat line delivered to every member of a room.
type UserMessage struct {
	UserName string `json:"userName"`
	Room     string `json:"room"`
	Content  string `json:"content"`
}

// Notification is a server-authored room event, such as a member joining.
type Notification struct {
	Room    string `json:"room"`
	Content string `json:"content"`
}

// ProtocolError reports a failed operation back to the connection that
// requested it. Resource names the operation that failed; the frame is
// distinguished from a success reply by its "error" code.
type ProtocolError struct {
	Resource string `json:"resource"`
	Reason   string `json:"reason"`
}

// ProtocolOk acknowledges a completed operation.
type ProtocolOk struct {
	Resource string `json:"resource"`
	Content  string `json:"content"`
}

// UserIdentity answers an identity (or registration/login) request.
type UserIdentity struct {
	Name   string   `json:"name"`
	Tokens []string `json:"tokens,omitempty"`
}

// ImageSubmissionInit tells room members to prepare buffers for an upload.
type ImageSubmissionInit struct {
	UserName string `json:"userName"`
	ID       string `json:"id"`
	Room     string `json:"room"`
	Parts    int    `json:"parts"`
}

// ImageSubmission relays one chunk of an upload to room members.
type ImageSubmission struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Part int    `json:"part"`
	Room string `json:"room"`
	Data string `json:"data"`
}

func (UserMessage) responseResource() string         { return ResourceUserMessage }
func (Notification) responseResource() string        { return ResourceNotification }
func (e ProtocolError) responseResource() string     { return e.Resource }
func (o ProtocolOk) responseResource() string        { return o.Resource }
func (UserIdentity) responseResource() string        { return ResourceIdentity }
func (ImageSubmissionInit) responseResource() string { return ResourceImageInit }
func (ImageSubmission) responseResource() string     { return ResourceImage }
func (Ping) responseResource() string                { return ResourcePing }

func (UserMessage) responseCode() string         { return CodeOk }
func (Notification) responseCode() string        { return CodeOk }
func (ProtocolError) responseCode() string       { return CodeError }
func (ProtocolOk) responseCode() string          { return CodeOk }
func (UserIdentity) responseCode() string        { return CodeOk }
func (ImageSubmissionInit) responseCode() string { return CodeOk }
func (ImageSubmission) responseCode() string     { return CodeOk }
func (Ping) responseCode() string                { return CodeOk }
