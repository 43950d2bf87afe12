// Package protocol frame encoding. Encoding enriches each response with its
// resource tag and result code after the payload fields are marshaled.
package protocol

import "encoding/json"

// Encode translates a server response into one outbound JSON frame.
//
// The payload fields are marshaled first, then the "resource" and "code"
// fields are set unconditionally. The enrichment is idempotent: a payload
// that already carries either field (the error and ok variants do) keeps the
// same value, and no payload field is removed.
func Encode(res Response) ([]byte, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}

	var frame map[string]any
	if err := json.Unmarshal(payload, &frame); err != nil {
		return nil, err
	}
	frame["resource"] = res.responseResource()
	frame["code"] = res.responseCode()

	return json.Marshal(frame)
}
