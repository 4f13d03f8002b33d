package service

import (
	"context"
	"fmt"
	"time"

	"github.com/damoang/angple-forum/internal/common"
	"github.com/damoang/angple-forum/internal/domain"
	"github.com/damoang/angple-forum/internal/notify"
	"github.com/damoang/angple-forum/internal/permission"
	"github.com/damoang/angple-forum/internal/repository"
)

// ModerationService handles the message report ledger
type ModerationService struct {
	store    *repository.Store
	perm     permission.Checker
	notifier notify.Sink
	input    *sanitizer
	now      func() time.Time
	maxLimit int
}

// NewModerationService creates a new ModerationService
func NewModerationService(store *repository.Store, perm permission.Checker, maxLimit int) *ModerationService {
	if maxLimit <= 0 {
		maxLimit = DefaultOptions().MaxPageSize
	}
	return &ModerationService{
		store:    store,
		perm:     perm,
		input:    newSanitizer(),
		now:      func() time.Time { return time.Now().UTC() },
		maxLimit: maxLimit,
	}
}

// SetNotifier sets the moderation outcome sink (optional dependency)
func (s *ModerationService) SetNotifier(n notify.Sink) {
	s.notifier = n
}

// SetClock overrides the time source
func (s *ModerationService) SetClock(now func() time.Time) {
	s.now = now
}

// ReportMessage files an open report. A reporter may hold only one open
// report per message; once it is closed they may report again.
func (s *ModerationService) ReportMessage(ctx context.Context, actor domain.Actor, messageID uint64, comment string) (*domain.Report, error) {
	if actor.IsGuest() {
		return nil, common.ErrLoginRequired
	}
	comment, err := s.input.comment(comment)
	if err != nil {
		return nil, err
	}

	var report *domain.Report
	err = s.store.Transact(ctx, func(tx *repository.Store) error {
		// the message row lock serializes duplicate checks for the same message
		msg, err := tx.Messages.FindByIDForUpdate(messageID)
		if err != nil {
			return notFound(err, common.ErrMessageNotFound)
		}
		open, err := tx.Reports.HasOpen(msg.ID, actor.ID)
		if err != nil {
			return err
		}
		if open {
			return common.ErrDuplicateReport
		}

		report = &domain.Report{
			MessageID:  msg.ID,
			TopicID:    msg.TopicID,
			ReporterID: actor.ID,
			Comment:    comment,
			Status:     domain.ReportStatusOpen,
			CreatedAt:  s.now(),
		}
		return tx.Reports.Create(report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// GetReports lists reports newest first, optionally filtered by status (moderator only)
func (s *ModerationService) GetReports(ctx context.Context, actor domain.Actor, status string, page, limit int) ([]domain.Report, int64, error) {
	if err := requireModerator(ctx, s.perm, actor); err != nil {
		return nil, 0, err
	}
	if err := validStatus(status); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultUnreadLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return s.store.WithContext(ctx).Reports.List(status, page, limit)
}

// GetReportByID returns one report (moderator only)
func (s *ModerationService) GetReportByID(ctx context.Context, actor domain.Actor, id uint64) (*domain.Report, error) {
	if err := requireModerator(ctx, s.perm, actor); err != nil {
		return nil, err
	}
	report, err := s.store.WithContext(ctx).Reports.GetByID(id)
	if err != nil {
		return nil, notFound(err, common.ErrReportNotFound)
	}
	return report, nil
}

// GetReportsCount counts open and closed reports (moderator only)
func (s *ModerationService) GetReportsCount(ctx context.Context, actor domain.Actor) (*domain.ReportCount, error) {
	if err := requireModerator(ctx, s.perm, actor); err != nil {
		return nil, err
	}
	return s.store.WithContext(ctx).Reports.CountByStatus()
}

// CloseReport moves a report from open to closed (moderator only). Closing an
// already closed report is a Conflict and notifies nobody.
func (s *ModerationService) CloseReport(ctx context.Context, actor domain.Actor, id uint64) (*domain.Report, error) {
	if err := requireModerator(ctx, s.perm, actor); err != nil {
		return nil, err
	}

	now := s.now()
	var report *domain.Report
	err := s.store.Transact(ctx, func(tx *repository.Store) error {
		var err error
		report, err = tx.Reports.GetByID(id)
		if err != nil {
			return notFound(err, common.ErrReportNotFound)
		}
		closed, err := tx.Reports.Close(id, actor.ID, now)
		if err != nil {
			return err
		}
		if !closed {
			return common.ErrReportAlreadyClosed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Status = domain.ReportStatusClosed
	report.ClosedBy = &actor.ID
	report.CloseTime = &now

	notify.Send(ctx, s.notifier, notify.Event{
		Type:     notify.EventReportClosed,
		UserID:   report.ReporterID,
		TopicID:  report.TopicID,
		ReportID: report.ID,
		Message:  fmt.Sprintf("Your report #%d was reviewed and closed", report.ID),
	})
	return report, nil
}

func validStatus(status string) error {
	switch status {
	case "", domain.ReportStatusOpen, domain.ReportStatusClosed:
		return nil
	}
	return common.ErrInvalidStatus
}
