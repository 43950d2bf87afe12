// Package protocol frame decoding. Decoding is two-phase: the resource tag
// selects the variant, then the variant's field schema is validated in full
// before a typed request is built.
package protocol

import "encoding/json"

// Decode translates one inbound JSON frame into a typed request.
//
// Phase one reads the resource tag; a frame with a missing or unrecognized
// tag fails with *UnknownResourceError. Phase two checks every field of the
// selected schema and collects all violations into a single *SchemaError.
// Decode never panics on malformed input.
func Decode(data []byte) (Request, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &SchemaError{Violations: []Violation{
			{Message: "frame is not a JSON object"},
		}}
	}

	tag, ok := raw["resource"]
	if !ok {
		return nil, &UnknownResourceError{}
	}
	var resource string
	if err := json.Unmarshal(tag, &resource); err != nil {
		return nil, &UnknownResourceError{}
	}

	f := &frameFields{resource: resource, raw: raw}
	switch resource {
	case ResourceRegistration:
		req := Registration{Name: f.str("name"), Password: f.str("password")}
		return f.finish(req)
	case ResourceLogin:
		req := Login{Name: f.str("name"), Password: f.str("password")}
		return f.finish(req)
	case ResourceLogout:
		req := Logout{Tokens: f.strList("tokens")}
		return f.finish(req)
	case ResourceRoom:
		req := Join{Room: f.str("room")}
		return f.finish(req)
	case ResourceChat:
		req := Chat{Room: f.str("room"), Content: f.str("content")}
		return f.finish(req)
	case ResourceIdentity:
		req := Identity{Tokens: f.strList("tokens"), WithAllTokens: f.optBool("withAllTokens")}
		return f.finish(req)
	case ResourceDisconnect:
		req := Disconnect{Tokens: f.strList("tokens"), Room: f.optStr("room")}
		return f.finish(req)
	case ResourceImageInit:
		req := ImageInit{ID: f.str("id"), Room: f.str("room"), Parts: f.integer("parts")}
		return f.finish(req)
	case ResourceImage:
		req := ImagePart{ID: f.str("id"), Part: f.integer("part"), Room: f.str("room"), Data: f.str("data")}
		return f.finish(req)
	case ResourcePing:
		return f.finish(Ping{})
	default:
		return nil, &UnknownResourceError{Resource: resource}
	}
}

// frameFields extracts typed fields from a raw frame while accumulating
// violations, so a single pass reports every bad field.
type frameFields struct {
	resource   string
	raw        map[string]json.RawMessage
	violations []Violation
}

func (f *frameFields) finish(req Request) (Request, error) {
	if len(f.violations) > 0 {
		return nil, &SchemaError{Resource: f.resource, Violations: f.violations}
	}
	return req, nil
}

func (f *frameFields) fail(path, message string) {
	f.violations = append(f.violations, Violation{Path: path, Message: message})
}

func (f *frameFields) str(name string) string {
	raw, ok := f.raw[name]
	if !ok {
		f.fail(name, "required field is missing")
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		f.fail(name, "must be a string")
		return ""
	}
	return v
}

func (f *frameFields) optStr(name string) *string {
	raw, ok := f.raw[name]
	if !ok {
		return nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		f.fail(name, "must be a string")
		return nil
	}
	return &v
}

func (f *frameFields) strList(name string) []string {
	raw, ok := f.raw[name]
	if !ok {
		f.fail(name, "required field is missing")
		return nil
	}
	var v []string
	if err := json.Unmarshal(raw, &v); err != nil {
		f.fail(name, "must be a list of strings")
		return nil
	}
	return v
}

func (f *frameFields) integer(name string) int {
	raw, ok := f.raw[name]
	if !ok {
		f.fail(name, "required field is missing")
		return 0
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		f.fail(name, "must be an integer")
		return 0
	}
	return v
}

func (f *frameFields) optBool(name string) bool {
	raw, ok := f.raw[name]
	if !ok {
		return false
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		f.fail(name, "must be a boolean")
		return false
	}
	return v
}
