package domain

import "time"

// Category groups boards on the forum index
type Category struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name     string `gorm:"column:name;type:varchar(100)" json:"name"`
	OrderNum int    `gorm:"column:order_num;default:0" json:"order_num"`
}

func (Category) TableName() string { return "forum_categories" }

// Board is a forum section. Counters and last-message fields are denormalized
// and kept in step with topics/messages inside the same transaction.
type Board struct {
	ID              uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CategoryID      uint64     `gorm:"column:category_id;index" json:"category_id"`
	Name            string     `gorm:"column:name;type:varchar(100)" json:"name"`
	Description     string     `gorm:"column:description;type:text" json:"description,omitempty"`
	OrderNum        int        `gorm:"column:order_num;default:0" json:"order_num"`
	TopicCount      int64      `gorm:"column:topic_count;default:0" json:"topic_count"`
	MessageCount    int64      `gorm:"column:message_count;default:0" json:"message_count"`
	LastMessageID   *uint64    `gorm:"column:last_message_id" json:"last_message_id,omitempty"`
	LastMessageTime *time.Time `gorm:"column:last_message_time" json:"last_message_time,omitempty"`
	LastPosterName  string     `gorm:"column:last_poster_name;type:varchar(100)" json:"last_poster_name,omitempty"`
}

func (Board) TableName() string { return "forum_boards" }

// Topic is a thread inside a board, rooted at its first message
type Topic struct {
	ID              uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	BoardID         uint64    `gorm:"column:board_id;index:idx_topic_board_activity,priority:1" json:"board_id"`
	Subject         string    `gorm:"column:subject;type:varchar(255)" json:"subject"`
	AuthorID        uint64    `gorm:"column:author_id;index" json:"author_id"`
	AuthorName      string    `gorm:"column:author_name;type:varchar(100)" json:"author_name"`
	ReplyCount      int64     `gorm:"column:reply_count;default:0" json:"reply_count"`
	ViewCount       int64     `gorm:"column:view_count;default:0" json:"view_count"`
	Locked          bool      `gorm:"column:locked;default:false" json:"locked"`
	FirstMessageID  uint64    `gorm:"column:first_message_id" json:"first_message_id"`
	LastMessageID   uint64    `gorm:"column:last_message_id" json:"last_message_id"`
	LastMessageTime time.Time `gorm:"column:last_message_time;index:idx_topic_board_activity,priority:2" json:"last_message_time"`
	LastPosterName  string    `gorm:"column:last_poster_name;type:varchar(100)" json:"last_poster_name"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Topic) TableName() string { return "forum_topics" }

// Message is one post in a topic. BoardID is denormalized for direct lookup.
type Message struct {
	ID             uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TopicID        uint64     `gorm:"column:topic_id;index:idx_message_topic_time,priority:1" json:"topic_id"`
	BoardID        uint64     `gorm:"column:board_id;index" json:"board_id"`
	AuthorID       uint64     `gorm:"column:author_id;index" json:"author_id"`
	AuthorName     string     `gorm:"column:author_name;type:varchar(100)" json:"author_name"`
	Subject        string     `gorm:"column:subject;type:varchar(255)" json:"subject"`
	Body           string     `gorm:"column:body;type:mediumtext" json:"body"`
	PostedTime     time.Time  `gorm:"column:posted_time;index:idx_message_topic_time,priority:2" json:"posted_time"`
	IsFirstMessage bool       `gorm:"column:is_first_message;default:false" json:"is_first_message"`
	ModifiedTime   *time.Time `gorm:"column:modified_time" json:"modified_time,omitempty"`
	ModifiedBy     string     `gorm:"column:modified_by;type:varchar(100)" json:"modified_by,omitempty"`
}

func (Message) TableName() string { return "forum_messages" }

// Actor is the identity resolved for the current request. ID 0 is a guest.
type Actor struct {
	ID   uint64
	Name string
	// GuestKey identifies a guest for poll uniqueness (session cookie or IP)
	GuestKey string
}

// IsGuest reports whether the actor is unauthenticated
func (a Actor) IsGuest() bool { return a.ID == 0 }

// CreateTopicRequest creates a topic with its first message and optional poll
type CreateTopicRequest struct {
	BoardID uint64             `json:"board_id" binding:"required"`
	Subject string             `json:"subject" binding:"required"`
	Body    string             `json:"body" binding:"required"`
	Poll    *CreatePollRequest `json:"poll,omitempty"`
}

// CreatePostRequest appends a reply
type CreatePostRequest struct {
	TopicID uint64 `json:"topic_id" binding:"required"`
	Subject string `json:"subject"`
	Body    string `json:"body" binding:"required"`
}

// UpdatePostRequest edits a message
type UpdatePostRequest struct {
	Subject *string `json:"subject"`
	Body    string  `json:"body" binding:"required"`
}

// LockTopicRequest toggles the topic lock
type LockTopicRequest struct {
	Locked bool `json:"locked"`
}

// MoveTopicRequest moves a topic to another board
type MoveTopicRequest struct {
	BoardID uint64 `json:"board_id" binding:"required"`
}

// CategoryView is a category with its boards for the forum index
type CategoryView struct {
	Category
	Boards []Board `json:"boards"`
}

// BoardPage is a board plus one page of topics
type BoardPage struct {
	Board  *Board  `json:"board"`
	Topics []Topic `json:"topics"`
	Total  int64   `json:"-"`
}

// TopicPage is a topic plus one page of messages
type TopicPage struct {
	Topic    *Topic    `json:"topic"`
	PollID   *uint64   `json:"poll_id,omitempty"`
	Messages []Message `json:"messages"`
	Total    int64     `json:"-"`
}

// MessagePosition locates a message within its topic's pagination
type MessagePosition struct {
	MessageID uint64 `json:"message_id"`
	TopicID   uint64 `json:"topic_id"`
	Rank      int64  `json:"rank"`
	Page      int64  `json:"page"`
}
