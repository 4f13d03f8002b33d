package repository

import (
	"time"

	"github.com/damoang/angple-forum/internal/domain"
	"gorm.io/gorm"
)

// ReportRepository handles report data operations
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// WithTx returns a new ReportRepository with the given transaction
func (r *ReportRepository) WithTx(tx *gorm.DB) *ReportRepository {
	return &ReportRepository{db: tx}
}

// Create creates a report
func (r *ReportRepository) Create(report *domain.Report) error {
	return r.db.Create(report).Error
}

// List retrieves paginated reports with optional status filter, newest first
func (r *ReportRepository) List(status string, page, limit int) ([]domain.Report, int64, error) {
	var reports []domain.Report
	var total int64

	query := r.db.Model(&domain.Report{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&reports).Error; err != nil {
		return nil, 0, err
	}

	return reports, total, nil
}

// GetByID retrieves a single report by ID
func (r *ReportRepository) GetByID(id uint64) (*domain.Report, error) {
	var report domain.Report
	if err := r.db.Where("id = ?", id).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// CountByStatus counts reports per status
func (r *ReportRepository) CountByStatus() (*domain.ReportCount, error) {
	var rows []struct {
		Status string
		Cnt    int64
	}
	if err := r.db.Model(&domain.Report{}).
		Select("status, COUNT(*) AS cnt").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	count := &domain.ReportCount{}
	for _, row := range rows {
		switch row.Status {
		case domain.ReportStatusOpen:
			count.Open = row.Cnt
		case domain.ReportStatusClosed:
			count.Closed = row.Cnt
		}
	}
	return count, nil
}

// HasOpen reports whether the reporter already has an open report on the message
func (r *ReportRepository) HasOpen(messageID, reporterID uint64) (bool, error) {
	var n int64
	err := r.db.Model(&domain.Report{}).
		Where("message_id = ? AND reporter_id = ? AND status = ?", messageID, reporterID, domain.ReportStatusOpen).
		Count(&n).Error
	return n > 0, err
}

// Close moves an open report to closed. It reports false when the report was
// not open, so callers can tell a real transition from a repeat.
func (r *ReportRepository) Close(id, closedBy uint64, at time.Time) (bool, error) {
	result := r.db.Model(&domain.Report{}).
		Where("id = ? AND status = ?", id, domain.ReportStatusOpen).
		Updates(map[string]interface{}{
			"status":     domain.ReportStatusClosed,
			"closed_by":  closedBy,
			"close_time": at,
		})
	return result.RowsAffected > 0, result.Error
}

// DeleteByTopic removes every report filed against a topic's messages
func (r *ReportRepository) DeleteByTopic(topicID uint64) error {
	return r.db.Where("topic_id = ?", topicID).Delete(&domain.Report{}).Error
}
