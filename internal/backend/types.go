package backend

// ConversationType distinguishes one-to-one from group conversations.
type ConversationType string

const (
	Direct ConversationType = "DIRECT"
	Group  ConversationType = "GROUP"
)

// MembershipStatus is the current user's standing in a conversation.
type MembershipStatus string

const (
	Accepted MembershipStatus = "ACCEPTED"
	Pending  MembershipStatus = "PENDING"
)

// DeliveryStatus is a message's local delivery state.
type DeliveryStatus string

const (
	Sending   DeliveryStatus = "sending"
	Sent      DeliveryStatus = "sent"
	Delivered DeliveryStatus = "delivered"
	Seen      DeliveryStatus = "seen"
)

// User is the public profile of a user.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// Name returns the display name, falling back to the username.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// ReadReceipt records that a group member read a message.
type ReadReceipt struct {
	UserID string `json:"userId,omitempty"`
	User   *User  `json:"user,omitempty"`
	ReadAt string `json:"readAt"`
}

// Reader returns the id of the member who read the message.
func (r ReadReceipt) Reader() string {
	if r.User != nil && r.User.ID != "" {
		return r.User.ID
	}
	return r.UserID
}

// Message is a chat message.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	Content        string         `json:"content"`
	CreatedAt      string         `json:"createdAt"`
	SeenAt         string         `json:"seenAt,omitempty"`
	DeliveredAt    string         `json:"deliveredAt,omitempty"`
	Status         DeliveryStatus `json:"status,omitempty"`
	ReadBy         []ReadReceipt  `json:"readBy,omitempty"`
	Sender         User           `json:"sender"`
}

// Participant is a conversation member.
type Participant struct {
	Status MembershipStatus `json:"status"`
	User   User             `json:"user"`
}

// ConversationInfo is the shared part of a conversation.
type ConversationInfo struct {
	ID           string           `json:"id"`
	Type         ConversationType `json:"type"`
	Name         string           `json:"name,omitempty"`
	LastMessage  *Message         `json:"lastMessage,omitempty"`
	Participants []Participant    `json:"participants"`
}

// Conversation is the current user's membership in a conversation.
type Conversation struct {
	ID           string           `json:"id"`
	Conversation ConversationInfo `json:"conversation"`
	Status       MembershipStatus `json:"status"`
	UnreadCount  int              `json:"unreadCount"`
}

// Title names the conversation from selfID's side: a group by its name,
// a direct conversation by the other participant.
func (c Conversation) Title(selfID string) string {
	info := c.Conversation
	if info.Type == Group && info.Name != "" {
		return info.Name
	}
	for _, p := range info.Participants {
		if p.User.ID != selfID {
			return p.User.Name()
		}
	}
	if info.Name != "" {
		return info.Name
	}
	return info.ID
}

// FriendTab is a tab reported in the friends-with-status listing.
type FriendTab struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Friend is a friend with their presence.
type Friend struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	DisplayName string      `json:"displayName,omitempty"`
	IsOnline    bool        `json:"isOnline"`
	LastSeen    string      `json:"lastSeen,omitempty"`
	ActiveTab   *FriendTab  `json:"activeTab,omitempty"`
	AllTabs     []FriendTab `json:"allTabs,omitempty"`
}

// RequestBox selects one of the friend-request listings.
type RequestBox string

const (
	Received RequestBox = "pending"
	Outgoing RequestBox = "sent"
	Ignored  RequestBox = "ignored"
)

// FriendRequest is a pending, sent or ignored friendship request.
type FriendRequest struct {
	ID        string `json:"id"`
	Sender    User   `json:"sender"`
	Receiver  User   `json:"receiver"`
	Status    string `json:"status,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// LoginResult is the user record returned by a successful login.
type LoginResult struct {
	ID          string `json:"id"`
	Token       string `json:"token"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// SignupRequest registers a new account.
type SignupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// MessageQuery pages through a conversation's messages.
type MessageQuery struct {
	Limit      int
	Cursor     string
	MarkAsSeen bool
}

// SendRequest sends a message to an existing conversation or, with only
// ReceiverID set, starts a new one.
type SendRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	ReceiverID     string `json:"receiverId,omitempty"`
	Content        string `json:"content"`
}

// SendResult is the server acknowledgement of a sent message.
type SendResult struct {
	Message           *Message
	ConversationID    string
	IsNewConversation bool
}
