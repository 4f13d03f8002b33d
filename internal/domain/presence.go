package domain

import (
	"time"

	"gorm.io/datatypes"
)

// OnlineEntry is one session's latest activity. MemberID 0 is a guest.
type OnlineEntry struct {
	SessionID  string         `gorm:"column:session_id;primaryKey;type:varchar(64)" json:"-"`
	MemberID   uint64         `gorm:"column:member_id;index" json:"member_id"`
	MemberName string         `gorm:"column:member_name;type:varchar(100)" json:"member_name,omitempty"`
	Action     datatypes.JSON `gorm:"column:action" json:"action,omitempty"`
	LastSeen   time.Time      `gorm:"column:last_seen;index" json:"last_seen"`
}

func (OnlineEntry) TableName() string { return "forum_online" }

// IsGuest reports whether the entry belongs to an unauthenticated session
func (e OnlineEntry) IsGuest() bool { return e.MemberID == 0 }

// OnlineAction is the serialized "current action" payload
type OnlineAction struct {
	Route   string `json:"route"`
	BoardID uint64 `json:"board_id,omitempty"`
	TopicID uint64 `json:"topic_id,omitempty"`
}

// OnlineStats summarizes the presence window
type OnlineStats struct {
	Members int `json:"members"`
	Guests  int `json:"guests"`
	Total   int `json:"total"`
}
