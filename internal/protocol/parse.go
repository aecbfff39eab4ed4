package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMissingType is returned for a JSON object without a type tag.
var ErrMissingType = errors.New("frame has no type")

// Inbound is a decoded frame from the backend. Only the fields relevant to
// Type are populated.
type Inbound struct {
	Type string

	// auth
	AuthFailed bool

	// friend_tab_update / friend_active_tab_update
	FriendID string
	Tabs     []Tab
	Tab      *Tab

	// NEW_MESSAGE; decoded by the message store.
	Message json.RawMessage

	Raw json.RawMessage
}

type friendBody struct {
	FriendID string          `json:"friendId"`
	Tabs     json.RawMessage `json:"tabs"`
	Tab      json.RawMessage `json:"tab"`
}

type rawFrame struct {
	Type    string          `json:"type"`
	Success json.RawMessage `json:"success"`
	friendBody
	Data    *friendBody     `json:"data"`
	Payload json.RawMessage `json:"payload"`
	Msg     json.RawMessage `json:"message"`
}

// Parse decodes one inbound text frame.
//
// The backend is loose about shapes: auth success may be a bool or a string,
// friend updates may nest their body under "data", and chat messages arrive
// under "payload" or "message".
func Parse(data []byte) (Inbound, error) {
	var rf rawFrame
	if err := json.Unmarshal(data, &rf); err != nil {
		return Inbound{}, fmt.Errorf("decode frame: %w", err)
	}
	if rf.Type == "" {
		return Inbound{}, ErrMissingType
	}

	in := Inbound{Type: rf.Type, Raw: json.RawMessage(data)}
	switch rf.Type {
	case TypeAuth:
		ok, err := parseFlag(rf.Success)
		if err != nil {
			return Inbound{}, fmt.Errorf("auth success: %w", err)
		}
		in.AuthFailed = !ok

	case TypeFriendTabUpdate, TypeFriendActiveTabUpdate:
		body := rf.friendBody
		if rf.Data != nil {
			body = mergeBody(body, *rf.Data)
		}
		in.FriendID = body.FriendID
		if in.FriendID == "" {
			return Inbound{}, fmt.Errorf("%s: missing friendId", rf.Type)
		}
		if rf.Type == TypeFriendTabUpdate {
			if isNull(body.Tabs) {
				in.Tabs = []Tab{}
			} else if err := json.Unmarshal(body.Tabs, &in.Tabs); err != nil {
				return Inbound{}, fmt.Errorf("%s tabs: %w", rf.Type, err)
			}
		} else {
			if isNull(body.Tab) {
				return Inbound{}, fmt.Errorf("%s: missing tab", rf.Type)
			}
			var t Tab
			if err := json.Unmarshal(body.Tab, &t); err != nil {
				return Inbound{}, fmt.Errorf("%s tab: %w", rf.Type, err)
			}
			in.Tab = &t
		}

	case TypeNewMessage:
		switch {
		case !isNull(rf.Payload):
			in.Message = rf.Payload
		case !isNull(rf.Msg):
			in.Message = rf.Msg
		default:
			return Inbound{}, fmt.Errorf("%s: missing message", rf.Type)
		}
	}
	return in, nil
}

// parseFlag reads a JSON bool or a "true"/"false" string. Absent means true:
// only an explicit failure rejects the session.
func parseFlag(raw json.RawMessage) (bool, error) {
	if isNull(raw) {
		return true, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, err
	}
	return strconv.ParseBool(s)
}

func mergeBody(top, nested friendBody) friendBody {
	if top.FriendID == "" {
		top.FriendID = nested.FriendID
	}
	if isNull(top.Tabs) {
		top.Tabs = nested.Tabs
	}
	if isNull(top.Tab) {
		top.Tab = nested.Tab
	}
	return top
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
