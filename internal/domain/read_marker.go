package domain

import "time"

// GlobalScope is the topic id used for a user's global read marker
const GlobalScope uint64 = 0

// ReadMarker is a per-user watermark. TopicID 0 is the global marker.
type ReadMarker struct {
	UserID   uint64    `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	TopicID  uint64    `gorm:"column:topic_id;primaryKey;autoIncrement:false" json:"topic_id"`
	MarkedAt time.Time `gorm:"column:marked_at" json:"marked_at"`
}

func (ReadMarker) TableName() string { return "forum_read_markers" }

// UnreadCount is the unread summary for a user
type UnreadCount struct {
	Topics int64 `json:"topics"`
}
