package presence

import (
	"context"
	"time"

	"github.com/damoang/angple-forum/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps presence in the forum_online table
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Upsert replaces the session's row
func (s *GormStore) Upsert(ctx context.Context, entry domain.OnlineEntry) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"member_id", "member_name", "action", "last_seen"}),
	}).Create(&entry).Error
}

// Since returns rows seen at or after cutoff, newest first
func (s *GormStore) Since(ctx context.Context, cutoff time.Time) ([]domain.OnlineEntry, error) {
	var entries []domain.OnlineEntry
	err := s.db.WithContext(ctx).
		Where("last_seen >= ?", cutoff).
		Order("last_seen DESC, session_id ASC").
		Find(&entries).Error
	return entries, err
}

// Sweep deletes rows seen before cutoff
func (s *GormStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	result := s.db.WithContext(ctx).Where("last_seen < ?", cutoff).Delete(&domain.OnlineEntry{})
	return int(result.RowsAffected), result.Error
}
