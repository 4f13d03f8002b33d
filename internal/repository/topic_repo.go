package repository

import (
	"errors"

	"github.com/damoang/angple-forum/internal/domain"
	"gorm.io/gorm"
)

// TopicRepository handles topic data operations
type TopicRepository struct {
	db *gorm.DB
}

// NewTopicRepository creates a new TopicRepository
func NewTopicRepository(db *gorm.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// WithTx returns a new TopicRepository with the given transaction
func (r *TopicRepository) WithTx(tx *gorm.DB) *TopicRepository {
	return &TopicRepository{db: tx}
}

// Create creates a topic
func (r *TopicRepository) Create(topic *domain.Topic) error {
	return r.db.Create(topic).Error
}

// FindByID retrieves a topic by ID
func (r *TopicRepository) FindByID(id uint64) (*domain.Topic, error) {
	var topic domain.Topic
	if err := r.db.Where("id = ?", id).First(&topic).Error; err != nil {
		return nil, err
	}
	return &topic, nil
}

// ListByBoard retrieves a page of topics, most recently active first
func (r *TopicRepository) ListByBoard(boardID uint64, offset, limit int) ([]domain.Topic, int64, error) {
	var topics []domain.Topic
	var total int64

	query := r.db.Model(&domain.Topic{}).Where("board_id = ?", boardID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("last_message_time DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&topics).Error; err != nil {
		return nil, 0, err
	}
	return topics, total, nil
}

// ListAfter retrieves up to limit topics with id > afterID, in id order
func (r *TopicRepository) ListAfter(afterID uint64, limit int) ([]domain.Topic, error) {
	var topics []domain.Topic
	err := r.db.Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&topics).Error
	return topics, err
}

// IDsByBoard returns every topic id and last-message time in a board
func (r *TopicRepository) IDsByBoard(boardID uint64) ([]domain.Topic, error) {
	var topics []domain.Topic
	err := r.db.Select("id", "last_message_time").
		Where("board_id = ?", boardID).
		Find(&topics).Error
	return topics, err
}

// SetMessages records the first and last message of a new topic
func (r *TopicRepository) SetMessages(id uint64, first *domain.Message) error {
	return r.db.Model(&domain.Topic{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"first_message_id":  first.ID,
			"last_message_id":   first.ID,
			"last_message_time": first.PostedTime,
			"last_poster_name":  first.AuthorName,
		}).Error
}

// AddReplies applies a server-side delta to reply_count
func (r *TopicRepository) AddReplies(id uint64, delta int64) error {
	return r.db.Model(&domain.Topic{}).
		Where("id = ?", id).
		Update("reply_count", gorm.Expr("reply_count + ?", delta)).Error
}

// IncrementViews bumps view_count by one. It reports false when the topic
// does not exist.
func (r *TopicRepository) IncrementViews(id uint64) (bool, error) {
	result := r.db.Model(&domain.Topic{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	return result.RowsAffected > 0, result.Error
}

// RepointIfNewer moves the last-message pointer to msg unless the topic
// already points at a later message
func (r *TopicRepository) RepointIfNewer(id uint64, msg *domain.Message) error {
	return r.db.Model(&domain.Topic{}).
		Where("id = ?", id).
		Where("(last_message_time < ? OR (last_message_time = ? AND last_message_id < ?))",
			msg.PostedTime, msg.PostedTime, msg.ID).
		Updates(map[string]interface{}{
			"last_message_id":   msg.ID,
			"last_message_time": msg.PostedTime,
			"last_poster_name":  msg.AuthorName,
		}).Error
}

// RecomputeLastMessage points the topic at its latest remaining message
func (r *TopicRepository) RecomputeLastMessage(id uint64) error {
	var msg domain.Message
	err := r.db.Where("topic_id = ?", id).
		Order("posted_time DESC, id DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.UpdateFields(id, map[string]interface{}{
		"last_message_id":   msg.ID,
		"last_message_time": msg.PostedTime,
		"last_poster_name":  msg.AuthorName,
	})
}

// UpdateFields writes only the given columns
func (r *TopicRepository) UpdateFields(id uint64, fields map[string]interface{}) error {
	return r.db.Model(&domain.Topic{}).Where("id = ?", id).Updates(fields).Error
}

// SetLocked sets the lock flag
func (r *TopicRepository) SetLocked(id uint64, locked bool) error {
	return r.db.Model(&domain.Topic{}).Where("id = ?", id).Update("locked", locked).Error
}

// SetBoard reassigns the topic's board
func (r *TopicRepository) SetBoard(id, boardID uint64) error {
	return r.db.Model(&domain.Topic{}).Where("id = ?", id).Update("board_id", boardID).Error
}

// Delete removes a topic row
func (r *TopicRepository) Delete(id uint64) error {
	return r.db.Where("id = ?", id).Delete(&domain.Topic{}).Error
}

// unreadScope selects topics whose last message is newer than both the
// user's topic marker and global marker. A missing marker never hides a topic.
func (r *TopicRepository) unreadScope(userID uint64, boardID *uint64) *gorm.DB {
	query := r.db.Table("forum_topics AS t").
		Joins("LEFT JOIN forum_read_markers tm ON tm.user_id = ? AND tm.topic_id = t.id", userID).
		Joins("LEFT JOIN forum_read_markers gm ON gm.user_id = ? AND gm.topic_id = ?", userID, domain.GlobalScope).
		Where("(tm.marked_at IS NULL OR t.last_message_time > tm.marked_at)").
		Where("(gm.marked_at IS NULL OR t.last_message_time > gm.marked_at)")
	if boardID != nil {
		query = query.Where("t.board_id = ?", *boardID)
	}
	return query
}

// ListUnread retrieves a page of unread topics, most recently active first
func (r *TopicRepository) ListUnread(userID uint64, boardID *uint64, offset, limit int) ([]domain.Topic, int64, error) {
	var topics []domain.Topic
	var total int64

	if err := r.unreadScope(userID, boardID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.unreadScope(userID, boardID).
		Select("t.*").
		Order("t.last_message_time DESC, t.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&topics).Error; err != nil {
		return nil, 0, err
	}
	return topics, total, nil
}

// CountUnread counts the user's unread topics
func (r *TopicRepository) CountUnread(userID uint64) (int64, error) {
	var total int64
	err := r.unreadScope(userID, nil).Count(&total).Error
	return total, err
}
