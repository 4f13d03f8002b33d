package repository

import (
	"github.com/damoang/angple-forum/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository handles message data operations
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// WithTx returns a new MessageRepository with the given transaction
func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{db: tx}
}

// Create creates a message
func (r *MessageRepository) Create(msg *domain.Message) error {
	return r.db.Create(msg).Error
}

// FindByID retrieves a message by ID
func (r *MessageRepository) FindByID(id uint64) (*domain.Message, error) {
	var msg domain.Message
	if err := r.db.Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindByIDForUpdate retrieves a message and locks its row for the rest of the transaction
func (r *MessageRepository) FindByIDForUpdate(id uint64) (*domain.Message, error) {
	var msg domain.Message
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByTopic retrieves a page of messages in posting order
func (r *MessageRepository) ListByTopic(topicID uint64, offset, limit int) ([]domain.Message, int64, error) {
	var messages []domain.Message
	var total int64

	query := r.db.Model(&domain.Message{}).Where("topic_id = ?", topicID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("posted_time ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// Rank returns the 1-based position of msg among its topic's messages,
// ordered by posted time then id
func (r *MessageRepository) Rank(msg *domain.Message) (int64, error) {
	var rank int64
	err := r.db.Model(&domain.Message{}).
		Where("topic_id = ?", msg.TopicID).
		Where("(posted_time < ? OR (posted_time = ? AND id <= ?))", msg.PostedTime, msg.PostedTime, msg.ID).
		Count(&rank).Error
	return rank, err
}

// UpdateFields writes only the given columns
func (r *MessageRepository) UpdateFields(id uint64, fields map[string]interface{}) error {
	return r.db.Model(&domain.Message{}).Where("id = ?", id).Updates(fields).Error
}

// Delete removes a message row
func (r *MessageRepository) Delete(id uint64) error {
	return r.db.Where("id = ?", id).Delete(&domain.Message{}).Error
}

// DeleteByTopic removes every message of a topic and returns how many were removed
func (r *MessageRepository) DeleteByTopic(topicID uint64) (int64, error) {
	result := r.db.Where("topic_id = ?", topicID).Delete(&domain.Message{})
	return result.RowsAffected, result.Error
}

// MoveTopic rewrites the denormalized board_id of a topic's messages
func (r *MessageRepository) MoveTopic(topicID, boardID uint64) (int64, error) {
	result := r.db.Model(&domain.Message{}).
		Where("topic_id = ?", topicID).
		Update("board_id", boardID)
	return result.RowsAffected, result.Error
}

// CountByTopic counts a topic's messages
func (r *MessageRepository) CountByTopic(topicID uint64) (int64, error) {
	var n int64
	err := r.db.Model(&domain.Message{}).Where("topic_id = ?", topicID).Count(&n).Error
	return n, err
}

// CountByBoard counts a board's messages
func (r *MessageRepository) CountByBoard(boardID uint64) (int64, error) {
	var n int64
	err := r.db.Model(&domain.Message{}).Where("board_id = ?", boardID).Count(&n).Error
	return n, err
}

// LatestInTopic returns the topic's latest message, or nil when it has none
func (r *MessageRepository) LatestInTopic(topicID uint64) (*domain.Message, error) {
	return r.latest("topic_id = ?", topicID)
}

// LatestInBoard returns the board's latest message, or nil when it has none
func (r *MessageRepository) LatestInBoard(boardID uint64) (*domain.Message, error) {
	return r.latest("board_id = ?", boardID)
}

func (r *MessageRepository) latest(cond string, id uint64) (*domain.Message, error) {
	var messages []domain.Message
	if err := r.db.Where(cond, id).
		Order("posted_time DESC, id DESC").
		Limit(1).
		Find(&messages).Error; err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return &messages[0], nil
}
