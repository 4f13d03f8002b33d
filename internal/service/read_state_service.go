package service

import (
	"context"
	"time"

	"github.com/damoang/angple-forum/internal/common"
	"github.com/damoang/angple-forum/internal/domain"
	"github.com/damoang/angple-forum/internal/repository"
)

// DefaultUnreadLimit is the page size of the unread list
const DefaultUnreadLimit = 20

// ReadStateService tracks per-user read markers. A topic is unread while its
// last message is newer than both the user's topic marker and global marker.
type ReadStateService struct {
	store    *repository.Store
	now      func() time.Time
	maxLimit int
}

// NewReadStateService creates a new ReadStateService
func NewReadStateService(store *repository.Store, maxLimit int) *ReadStateService {
	if maxLimit <= 0 {
		maxLimit = DefaultOptions().MaxPageSize
	}
	return &ReadStateService{
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		maxLimit: maxLimit,
	}
}

// SetClock overrides the time source
func (s *ReadStateService) SetClock(now func() time.Time) {
	s.now = now
}

// MarkTopicAsRead stamps the topic's current last-message time, so a reply
// landing between the read and the stamp still shows as unread
func (s *ReadStateService) MarkTopicAsRead(ctx context.Context, userID, topicID uint64) error {
	if userID == 0 {
		return common.ErrLoginRequired
	}
	store := s.store.WithContext(ctx)
	topic, err := store.Topics.FindByID(topicID)
	if err != nil {
		return notFound(err, common.ErrTopicNotFound)
	}
	return store.Markers.Upsert(userID, topic.ID, topic.LastMessageTime)
}

// MarkAllAsRead moves the global marker to now. Topic markers are kept.
func (s *ReadStateService) MarkAllAsRead(ctx context.Context, userID uint64) error {
	if userID == 0 {
		return common.ErrLoginRequired
	}
	return s.store.WithContext(ctx).Markers.Upsert(userID, domain.GlobalScope, s.now())
}

// MarkBoardAsRead stamps a topic marker for every topic in the board
func (s *ReadStateService) MarkBoardAsRead(ctx context.Context, userID, boardID uint64) error {
	if userID == 0 {
		return common.ErrLoginRequired
	}
	return s.store.Transact(ctx, func(tx *repository.Store) error {
		if _, err := tx.Boards.FindByID(boardID); err != nil {
			return notFound(err, common.ErrBoardNotFound)
		}
		topics, err := tx.Topics.IDsByBoard(boardID)
		if err != nil {
			return err
		}
		markers := make([]domain.ReadMarker, len(topics))
		for i, t := range topics {
			markers[i] = domain.ReadMarker{UserID: userID, TopicID: t.ID, MarkedAt: t.LastMessageTime}
		}
		return tx.Markers.UpsertMany(markers)
	})
}

// GetUnreadTopics returns unread topics, optionally limited to one board
func (s *ReadStateService) GetUnreadTopics(ctx context.Context, userID uint64, boardID *uint64, limit, offset int) ([]domain.Topic, int64, error) {
	if userID == 0 {
		return nil, 0, common.ErrLoginRequired
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.WithContext(ctx).Topics.ListUnread(userID, boardID, offset, s.UnreadLimit(limit))
}

// UnreadLimit is the page size GetUnreadTopics actually uses for limit
func (s *ReadStateService) UnreadLimit(limit int) int {
	if limit < 1 {
		return DefaultUnreadLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

// GetUnreadCount counts the user's unread topics
func (s *ReadStateService) GetUnreadCount(ctx context.Context, userID uint64) (*domain.UnreadCount, error) {
	if userID == 0 {
		return nil, common.ErrLoginRequired
	}
	n, err := s.store.WithContext(ctx).Topics.CountUnread(userID)
	if err != nil {
		return nil, err
	}
	return &domain.UnreadCount{Topics: n}, nil
}
