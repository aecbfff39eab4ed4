package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds. Subscribers filter by prefix, e.g. "presence." or "chat.".
const (
	KindConnStateChanged = "conn.state_changed"

	KindTabSnapshot   = "tab.snapshot"
	KindTabCreated    = "tab.created"
	KindTabUpdated    = "tab.updated"
	KindTabRemoved    = "tab.removed"
	KindTabActivated  = "tab.activated"
	KindWindowFocused = "tab.window_focused"

	KindFriendTabUpdate       = "presence.friend_tab_update"
	KindFriendActiveTabUpdate = "presence.friend_active_tab_update"

	KindNewMessage           = "chat.new_message"
	KindConversationsChanged = "chat.conversations_changed"
	KindMessagesChanged      = "chat.messages_changed"

	KindNotification = "notify.message"
)
