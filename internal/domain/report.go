package domain

import "time"

// Report status values. The only transition is open → closed.
const (
	ReportStatusOpen   = "open"
	ReportStatusClosed = "closed"
)

// Report is a member's complaint about a message
type Report struct {
	ID         uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MessageID  uint64     `gorm:"column:message_id;index:idx_report_message_reporter,priority:1" json:"message_id"`
	TopicID    uint64     `gorm:"column:topic_id;index" json:"topic_id"`
	ReporterID uint64     `gorm:"column:reporter_id;index:idx_report_message_reporter,priority:2" json:"reporter_id"`
	Comment    string     `gorm:"column:comment;type:text" json:"comment"`
	Status     string     `gorm:"column:status;type:varchar(10);index;default:'open'" json:"status"`
	ClosedBy   *uint64    `gorm:"column:closed_by" json:"closed_by,omitempty"`
	CloseTime  *time.Time `gorm:"column:close_time" json:"close_time,omitempty"`
	CreatedAt  time.Time  `gorm:"column:created_at;index" json:"created_at"`
}

func (Report) TableName() string { return "forum_reports" }

// IsOpen reports whether the report is still open
func (r *Report) IsOpen() bool { return r.Status == ReportStatusOpen }

// ReportRequest files a report
type ReportRequest struct {
	Comment string `json:"comment" binding:"required"`
}

// ReportCount is the moderator badge count
type ReportCount struct {
	Open   int64 `json:"open"`
	Closed int64 `json:"closed"`
}
