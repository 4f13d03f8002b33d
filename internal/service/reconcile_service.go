package service

import (
	"context"
	"errors"
	"time"

	"github.com/damoang/angple-forum/internal/domain"
	"github.com/damoang/angple-forum/internal/metrics"
	"github.com/damoang/angple-forum/internal/repository"
	pkglogger "github.com/damoang/angple-forum/pkg/logger"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const reconcileBatch = 500

// ReconcileReport summarizes one reconciliation run
type ReconcileReport struct {
	TopicsScanned int       `json:"topics_scanned"`
	TopicsFixed   int       `json:"topics_fixed"`
	BoardsScanned int       `json:"boards_scanned"`
	BoardsFixed   int       `json:"boards_fixed"`
	ChoicesFixed  int       `json:"choices_fixed"`
	Errors        int       `json:"errors"`
	StartedAt     time.Time `json:"started_at"`
	Elapsed       string    `json:"elapsed"`
}

// ReconcileService recomputes denormalized counters and pointers from source rows
type ReconcileService struct {
	store *repository.Store
	log   zerolog.Logger
}

// NewReconcileService creates a new ReconcileService
func NewReconcileService(store *repository.Store) *ReconcileService {
	return &ReconcileService{
		store: store,
		log:   pkglogger.WithComponent("reconcile"),
	}
}

// FixMessagePointers is a full recompute-and-compare over topics, boards and
// poll choices. Each row is recomputed in its own short transaction and only
// differing columns are written, so it is safe to repeat and to run next to
// live writers; a row that changes mid-run is caught by the next run.
func (s *ReconcileService) FixMessagePointers(ctx context.Context) (*ReconcileReport, error) {
	start := time.Now()
	report := &ReconcileReport{StartedAt: start.UTC()}

	var after uint64
	for {
		topics, err := s.store.WithContext(ctx).Topics.ListAfter(after, reconcileBatch)
		if err != nil {
			return report, err
		}
		if len(topics) == 0 {
			break
		}
		for _, t := range topics {
			report.TopicsScanned++
			fixed, err := s.fixTopic(ctx, t.ID)
			if err != nil {
				report.Errors++
				s.log.Error().Err(err).Uint64("topic_id", t.ID).Msg("topic reconcile failed")
				continue
			}
			if fixed {
				report.TopicsFixed++
			}
		}
		after = topics[len(topics)-1].ID
	}

	boards, err := s.store.WithContext(ctx).Boards.FindAll()
	if err != nil {
		return report, err
	}
	for _, b := range boards {
		report.BoardsScanned++
		fixed, err := s.fixBoard(ctx, b.ID)
		if err != nil {
			report.Errors++
			s.log.Error().Err(err).Uint64("board_id", b.ID).Msg("board reconcile failed")
			continue
		}
		if fixed {
			report.BoardsFixed++
		}
	}

	drift, err := s.store.WithContext(ctx).Polls.DriftedChoices()
	if err != nil {
		return report, err
	}
	for _, d := range drift {
		ok, err := s.store.WithContext(ctx).Polls.SetChoiceCount(d.ID, d.VoteCount, d.Actual)
		if err != nil {
			report.Errors++
			s.log.Error().Err(err).Uint64("choice_id", d.ID).Msg("choice reconcile failed")
			continue
		}
		if ok {
			report.ChoicesFixed++
		}
	}

	metrics.ReconcileFixes.WithLabelValues("topic").Add(float64(report.TopicsFixed))
	metrics.ReconcileFixes.WithLabelValues("board").Add(float64(report.BoardsFixed))
	metrics.ReconcileFixes.WithLabelValues("poll_choice").Add(float64(report.ChoicesFixed))

	report.Elapsed = time.Since(start).String()
	s.log.Info().
		Int("topics_scanned", report.TopicsScanned).
		Int("topics_fixed", report.TopicsFixed).
		Int("boards_fixed", report.BoardsFixed).
		Int("choices_fixed", report.ChoicesFixed).
		Int("errors", report.Errors).
		Msg("pointer reconciliation finished")
	return report, nil
}

// Run is the scheduler entry point
func (s *ReconcileService) Run(ctx context.Context) error {
	_, err := s.FixMessagePointers(ctx)
	return err
}

func (s *ReconcileService) fixTopic(ctx context.Context, topicID uint64) (bool, error) {
	fixed := false
	err := s.store.Transact(ctx, func(tx *repository.Store) error {
		fixed = false
		topic, err := tx.Topics.FindByID(topicID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// deleted since the batch was listed
			return nil
		}
		if err != nil {
			return err
		}
		count, err := tx.Messages.CountByTopic(topic.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			s.log.Warn().Uint64("topic_id", topic.ID).Msg("topic has no messages")
			return nil
		}
		latest, err := tx.Messages.LatestInTopic(topic.ID)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{}
		if topic.ReplyCount != count-1 {
			fields["reply_count"] = count - 1
		}
		if topic.LastMessageID != latest.ID {
			fields["last_message_id"] = latest.ID
		}
		if !topic.LastMessageTime.Equal(latest.PostedTime) {
			fields["last_message_time"] = latest.PostedTime
		}
		if topic.LastPosterName != latest.AuthorName {
			fields["last_poster_name"] = latest.AuthorName
		}
		if len(fields) == 0 {
			return nil
		}
		fixed = true
		return tx.Topics.UpdateFields(topic.ID, fields)
	})
	return fixed, err
}

func (s *ReconcileService) fixBoard(ctx context.Context, boardID uint64) (bool, error) {
	fixed := false
	err := s.store.Transact(ctx, func(tx *repository.Store) error {
		fixed = false
		board, err := tx.Boards.FindByID(boardID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		topics, err := tx.Boards.CountTopics(board.ID)
		if err != nil {
			return err
		}
		messages, err := tx.Messages.CountByBoard(board.ID)
		if err != nil {
			return err
		}
		latest, err := tx.Messages.LatestInBoard(board.ID)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{}
		if board.TopicCount != topics {
			fields["topic_count"] = topics
		}
		if board.MessageCount != messages {
			fields["message_count"] = messages
		}
		for k, v := range boardPointerDiff(board, latest) {
			fields[k] = v
		}
		if len(fields) == 0 {
			return nil
		}
		fixed = true
		return tx.Boards.UpdateFields(board.ID, fields)
	})
	return fixed, err
}

// boardPointerDiff returns the last-message columns that disagree with latest
func boardPointerDiff(board *domain.Board, latest *domain.Message) map[string]interface{} {
	diff := map[string]interface{}{}
	if latest == nil {
		if board.LastMessageID != nil || board.LastMessageTime != nil || board.LastPosterName != "" {
			diff["last_message_id"] = nil
			diff["last_message_time"] = nil
			diff["last_poster_name"] = ""
		}
		return diff
	}
	if board.LastMessageID == nil || *board.LastMessageID != latest.ID {
		diff["last_message_id"] = latest.ID
	}
	if board.LastMessageTime == nil || !board.LastMessageTime.Equal(latest.PostedTime) {
		diff["last_message_time"] = latest.PostedTime
	}
	if board.LastPosterName != latest.AuthorName {
		diff["last_poster_name"] = latest.AuthorName
	}
	return diff
}
