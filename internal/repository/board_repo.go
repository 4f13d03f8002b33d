package repository

import (
	"errors"

	"github.com/damoang/angple-forum/internal/domain"
	"gorm.io/gorm"
)

// BoardRepository handles board and category data operations
type BoardRepository struct {
	db *gorm.DB
}

// NewBoardRepository creates a new BoardRepository
func NewBoardRepository(db *gorm.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

// WithTx returns a new BoardRepository with the given transaction
func (r *BoardRepository) WithTx(tx *gorm.DB) *BoardRepository {
	return &BoardRepository{db: tx}
}

// FindByID retrieves a board by ID
func (r *BoardRepository) FindByID(id uint64) (*domain.Board, error) {
	var board domain.Board
	if err := r.db.Where("id = ?", id).First(&board).Error; err != nil {
		return nil, err
	}
	return &board, nil
}

// FindAll retrieves every board in display order
func (r *BoardRepository) FindAll() ([]domain.Board, error) {
	var boards []domain.Board
	err := r.db.Order("category_id ASC, order_num ASC, id ASC").Find(&boards).Error
	return boards, err
}

// FindCategories retrieves every category in display order
func (r *BoardRepository) FindCategories() ([]domain.Category, error) {
	var categories []domain.Category
	err := r.db.Order("order_num ASC, id ASC").Find(&categories).Error
	return categories, err
}

// CreateCategory creates a category
func (r *BoardRepository) CreateCategory(category *domain.Category) error {
	return r.db.Create(category).Error
}

// Create creates a board
func (r *BoardRepository) Create(board *domain.Board) error {
	return r.db.Create(board).Error
}

// AddCounters applies server-side deltas to topic_count and message_count
func (r *BoardRepository) AddCounters(id uint64, topics, messages int64) error {
	return r.db.Model(&domain.Board{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"topic_count":   gorm.Expr("topic_count + ?", topics),
			"message_count": gorm.Expr("message_count + ?", messages),
		}).Error
}

// RepointIfNewer moves the last-message pointer to msg unless the board
// already points at a later message
func (r *BoardRepository) RepointIfNewer(id uint64, msg *domain.Message) error {
	return r.db.Model(&domain.Board{}).
		Where("id = ?", id).
		Where("(last_message_time IS NULL OR last_message_time < ? OR (last_message_time = ? AND last_message_id < ?))",
			msg.PostedTime, msg.PostedTime, msg.ID).
		Updates(map[string]interface{}{
			"last_message_id":   msg.ID,
			"last_message_time": msg.PostedTime,
			"last_poster_name":  msg.AuthorName,
		}).Error
}

// SetLastMessage points the board at msg, or clears the pointer when msg is nil
func (r *BoardRepository) SetLastMessage(id uint64, msg *domain.Message) error {
	fields := map[string]interface{}{
		"last_message_id":   nil,
		"last_message_time": nil,
		"last_poster_name":  "",
	}
	if msg != nil {
		fields["last_message_id"] = msg.ID
		fields["last_message_time"] = msg.PostedTime
		fields["last_poster_name"] = msg.AuthorName
	}
	return r.db.Model(&domain.Board{}).Where("id = ?", id).Updates(fields).Error
}

// RecomputeLastMessage points the board at its latest remaining message
func (r *BoardRepository) RecomputeLastMessage(id uint64) error {
	var msg domain.Message
	err := r.db.Where("board_id = ?", id).
		Order("posted_time DESC, id DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.SetLastMessage(id, nil)
	}
	if err != nil {
		return err
	}
	return r.SetLastMessage(id, &msg)
}

// UpdateFields writes only the given columns
func (r *BoardRepository) UpdateFields(id uint64, fields map[string]interface{}) error {
	return r.db.Model(&domain.Board{}).Where("id = ?", id).Updates(fields).Error
}

// CountTopics counts the topics currently in a board
func (r *BoardRepository) CountTopics(id uint64) (int64, error) {
	var n int64
	err := r.db.Model(&domain.Topic{}).Where("board_id = ?", id).Count(&n).Error
	return n, err
}
