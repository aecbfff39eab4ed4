package store

// TabRef is a friend's tab as persisted in the presence cache.
type TabRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// FriendPresence is the cached presence of one friend.
type FriendPresence struct {
	FriendID    string   `json:"friendId"`
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName,omitempty"`
	Online      bool     `json:"online"`
	LastSeen    string   `json:"lastSeen,omitempty"`
	ActiveTab   *TabRef  `json:"activeTab,omitempty"`
	Tabs        []TabRef `json:"tabs"`
	UpdatedAt   int64    `json:"updatedAt"`
}
