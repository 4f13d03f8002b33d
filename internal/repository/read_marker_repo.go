package repository

import (
	"errors"
	"time"

	"github.com/damoang/angple-forum/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReadMarkerRepository handles read marker data operations
type ReadMarkerRepository struct {
	db *gorm.DB
}

// NewReadMarkerRepository creates a new ReadMarkerRepository
func NewReadMarkerRepository(db *gorm.DB) *ReadMarkerRepository {
	return &ReadMarkerRepository{db: db}
}

// WithTx returns a new ReadMarkerRepository with the given transaction
func (r *ReadMarkerRepository) WithTx(tx *gorm.DB) *ReadMarkerRepository {
	return &ReadMarkerRepository{db: tx}
}

// Upsert stamps one marker
func (r *ReadMarkerRepository) Upsert(userID, topicID uint64, at time.Time) error {
	return r.UpsertMany([]domain.ReadMarker{{UserID: userID, TopicID: topicID, MarkedAt: at}})
}

// UpsertMany stamps several markers in one statement
func (r *ReadMarkerRepository) UpsertMany(markers []domain.ReadMarker) error {
	if len(markers) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "topic_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"marked_at"}),
	}).Create(&markers).Error
}

// Find returns the marker for a scope, or nil when none exists
func (r *ReadMarkerRepository) Find(userID, topicID uint64) (*domain.ReadMarker, error) {
	var marker domain.ReadMarker
	err := r.db.Where("user_id = ? AND topic_id = ?", userID, topicID).First(&marker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &marker, nil
}

// DeleteByTopic removes every user's marker for a topic
func (r *ReadMarkerRepository) DeleteByTopic(topicID uint64) error {
	if topicID == domain.GlobalScope {
		return nil
	}
	return r.db.Where("topic_id = ?", topicID).Delete(&domain.ReadMarker{}).Error
}
