// Package protocol defines the JSON frames exchanged with the realtime backend.
package protocol

// Frame type tags.
const (
	TypeAuth                  = "auth"
	TypePing                  = "ping"
	TypeAllTabsUpdate         = "all_tabs_update"
	TypeActiveTabUpdate       = "active_tab_update"
	TypeFriendTabUpdate       = "friend_tab_update"
	TypeFriendActiveTabUpdate = "friend_active_tab_update"
	TypeNewMessage            = "NEW_MESSAGE"
)

// Tab is one browser tab as it travels on the wire.
type Tab struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ActiveTab is the focused tab, tagged with its owner.
type ActiveTab struct {
	ID     int    `json:"id"`
	UserID string `json:"userId"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// Auth authenticates the connection right after it opens.
type Auth struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Ping is the heartbeat frame.
type Ping struct {
	Type string `json:"type"`
}

// AllTabsUpdate carries the full local tab inventory.
type AllTabsUpdate struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Tabs   []Tab  `json:"tabs"`
}

// ActiveTabUpdate carries the focused tab.
type ActiveTabUpdate struct {
	Type   string    `json:"type"`
	UserID string    `json:"userId"`
	Tab    ActiveTab `json:"tab"`
}

// NewAuth builds an auth frame.
func NewAuth(token string) Auth {
	return Auth{Type: TypeAuth, Token: token}
}

// NewPing builds a heartbeat frame.
func NewPing() Ping {
	return Ping{Type: TypePing}
}

// NewAllTabsUpdate builds an all-tabs frame. A nil slice is sent as [].
func NewAllTabsUpdate(userID string, tabs []Tab) AllTabsUpdate {
	if tabs == nil {
		tabs = []Tab{}
	}
	return AllTabsUpdate{Type: TypeAllTabsUpdate, UserID: userID, Tabs: tabs}
}

// NewActiveTabUpdate builds an active-tab frame.
func NewActiveTabUpdate(userID string, tab Tab) ActiveTabUpdate {
	return ActiveTabUpdate{
		Type:   TypeActiveTabUpdate,
		UserID: userID,
		Tab:    ActiveTab{ID: tab.ID, UserID: userID, Title: tab.Title, URL: tab.URL},
	}
}
