package browserhost

import (
	"encoding/json"
	"fmt"

	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/notify"
	"github.com/matheus3301/tabsync/internal/presence"
)

// inbound is a frame sent by the extension.
type inbound struct {
	Type        string         `json:"type"`
	Tab         *presence.Tab  `json:"tab"`
	Tabs        []presence.Tab `json:"tabs"`
	TabID       *int           `json:"tabId"`
	WindowID    int            `json:"windowId"`
	ActiveTabID int            `json:"activeTabId"`
	Status      string         `json:"status"`
}

type outbound struct {
	Type         string               `json:"type"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

var frameKinds = map[string]string{
	"snapshot":       bus.KindTabSnapshot,
	"tab.created":    bus.KindTabCreated,
	"tab.updated":    bus.KindTabUpdated,
	"tab.removed":    bus.KindTabRemoved,
	"tab.activated":  bus.KindTabActivated,
	"window.focused": bus.KindWindowFocused,
}

// HandleFrame applies one extension frame to the tracker and announces it
// on the bus. Unknown types and frames missing required fields are errors.
func (s *Server) HandleFrame(data []byte) error {
	ev, err := decodeFrame(data)
	if err != nil {
		return err
	}
	s.tracker.Apply(ev)
	s.bus.Publish(bus.Event{Kind: ev.Kind, Payload: ev})
	return nil
}

func decodeFrame(data []byte) (presence.TabEvent, error) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return presence.TabEvent{}, fmt.Errorf("decode frame: %w", err)
	}
	kind, ok := frameKinds[in.Type]
	if !ok {
		return presence.TabEvent{}, fmt.Errorf("unknown frame type %q", in.Type)
	}

	ev := presence.TabEvent{Kind: kind, WindowID: in.WindowID, Status: in.Status}
	switch kind {
	case bus.KindTabSnapshot:
		ev.Tabs = in.Tabs
		ev.TabID = in.ActiveTabID
	case bus.KindTabCreated, bus.KindTabUpdated:
		if in.Tab == nil {
			return presence.TabEvent{}, fmt.Errorf("%s: missing tab", in.Type)
		}
		ev.Tab = *in.Tab
		if ev.Status == "" {
			ev.Status = in.Tab.Status
		}
	case bus.KindTabRemoved, bus.KindTabActivated:
		if in.TabID == nil {
			return presence.TabEvent{}, fmt.Errorf("%s: missing tabId", in.Type)
		}
		ev.TabID = *in.TabID
	}
	return ev, nil
}
