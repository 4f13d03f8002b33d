package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damoang/angple-forum/internal/common"
	"github.com/damoang/angple-forum/internal/domain"
	"github.com/damoang/angple-forum/internal/metrics"
	"github.com/damoang/angple-forum/internal/notify"
	"github.com/damoang/angple-forum/internal/permission"
	"github.com/damoang/angple-forum/internal/repository"
	pkgcache "github.com/damoang/angple-forum/pkg/cache"
	pkglogger "github.com/damoang/angple-forum/pkg/logger"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Options holds the forum's paging and poll limits
type Options struct {
	TopicsPerPage   int
	MessagesPerPage int
	MaxPageSize     int
	MaxPollChoices  int
}

// DefaultOptions returns the defaults used when config leaves a value unset
func DefaultOptions() Options {
	return Options{
		TopicsPerPage:   20,
		MessagesPerPage: 15,
		MaxPageSize:     100,
		MaxPollChoices:  20,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TopicsPerPage <= 0 {
		o.TopicsPerPage = d.TopicsPerPage
	}
	if o.MessagesPerPage <= 0 {
		o.MessagesPerPage = d.MessagesPerPage
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = d.MaxPageSize
	}
	if o.MaxPollChoices < 2 {
		o.MaxPollChoices = d.MaxPollChoices
	}
	return o
}

// pageBounds normalizes page/limit and returns the offset
func (o Options) pageBounds(page, limit, def int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > o.MaxPageSize {
		limit = o.MaxPageSize
	}
	return page, limit, (page - 1) * limit
}

// ForumService handles boards, topics and messages
type ForumService struct {
	store    *repository.Store
	perm     permission.Checker
	notifier notify.Sink
	cache    pkgcache.Service
	group    singleflight.Group
	input    *sanitizer
	opts     Options
	now      func() time.Time
}

// NewForumService creates a new ForumService
func NewForumService(store *repository.Store, perm permission.Checker, opts Options) *ForumService {
	return &ForumService{
		store: store,
		perm:  perm,
		input: newSanitizer(),
		opts:  opts.withDefaults(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier sets the moderation outcome sink (optional dependency)
func (s *ForumService) SetNotifier(n notify.Sink) {
	s.notifier = n
}

// SetCache sets the Redis cache for the category listing (optional dependency)
func (s *ForumService) SetCache(c pkgcache.Service) {
	s.cache = c
}

// SetClock overrides the time source
func (s *ForumService) SetClock(now func() time.Time) {
	s.now = now
}

// Options returns the effective options
func (s *ForumService) Options() Options {
	return s.opts
}

// ListCategories returns every category with its boards and counters
func (s *ForumService) ListCategories(ctx context.Context) ([]domain.CategoryView, error) {
	return pkgcache.Remember(ctx, s.cache, &s.group, pkgcache.KeyCategories, pkgcache.TTLCategories, s.loadCategories)
}

func (s *ForumService) loadCategories(ctx context.Context) ([]domain.CategoryView, error) {
	store := s.store.WithContext(ctx)
	categories, err := store.Boards.FindCategories()
	if err != nil {
		return nil, err
	}
	boards, err := store.Boards.FindAll()
	if err != nil {
		return nil, err
	}

	byCategory := make(map[uint64][]domain.Board, len(categories))
	for _, b := range boards {
		byCategory[b.CategoryID] = append(byCategory[b.CategoryID], b)
	}

	views := make([]domain.CategoryView, 0, len(categories))
	for _, c := range categories {
		list := byCategory[c.ID]
		if list == nil {
			list = []domain.Board{}
		}
		views = append(views, domain.CategoryView{Category: c, Boards: list})
	}
	return views, nil
}

func (s *ForumService) invalidateCategories(ctx context.Context) {
	pkgcache.Forget(ctx, s.cache, pkgcache.KeyCategories)
}

// GetBoardWithTopics returns a board and one page of its topics, most recently active first
func (s *ForumService) GetBoardWithTopics(ctx context.Context, boardID uint64, page, limit int) (*domain.BoardPage, error) {
	store := s.store.WithContext(ctx)
	board, err := store.Boards.FindByID(boardID)
	if err != nil {
		return nil, notFound(err, common.ErrBoardNotFound)
	}

	_, limit, offset := s.opts.pageBounds(page, limit, s.opts.TopicsPerPage)
	topics, total, err := store.Topics.ListByBoard(boardID, offset, limit)
	if err != nil {
		return nil, err
	}
	return &domain.BoardPage{Board: board, Topics: topics, Total: total}, nil
}

// GetTopicWithPosts returns a topic, its poll id and one page of messages in posting order
func (s *ForumService) GetTopicWithPosts(ctx context.Context, topicID uint64, page, limit int) (*domain.TopicPage, error) {
	store := s.store.WithContext(ctx)
	topic, err := store.Topics.FindByID(topicID)
	if err != nil {
		return nil, notFound(err, common.ErrTopicNotFound)
	}

	pollID, err := store.Polls.FindIDByTopic(topicID)
	if err != nil {
		return nil, err
	}

	_, limit, offset := s.opts.pageBounds(page, limit, s.opts.MessagesPerPage)
	messages, total, err := store.Messages.ListByTopic(topicID, offset, limit)
	if err != nil {
		return nil, err
	}
	return &domain.TopicPage{Topic: topic, PollID: pollID, Messages: messages, Total: total}, nil
}

// GetMessagePage returns the page a message falls on: ceil(rank / pageSize)
func (s *ForumService) GetMessagePage(ctx context.Context, messageID uint64, pageSize int) (*domain.MessagePosition, error) {
	store := s.store.WithContext(ctx)
	msg, err := store.Messages.FindByID(messageID)
	if err != nil {
		return nil, notFound(err, common.ErrMessageNotFound)
	}

	_, pageSize, _ = s.opts.pageBounds(1, pageSize, s.opts.MessagesPerPage)
	rank, err := store.Messages.Rank(msg)
	if err != nil {
		return nil, err
	}
	return &domain.MessagePosition{
		MessageID: msg.ID,
		TopicID:   msg.TopicID,
		Rank:      rank,
		Page:      (rank + int64(pageSize) - 1) / int64(pageSize),
	}, nil
}

// IncrementTopicViews bumps the view counter. Views are not deduplicated.
func (s *ForumService) IncrementTopicViews(ctx context.Context, topicID uint64) error {
	ok, err := s.store.WithContext(ctx).Topics.IncrementViews(topicID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrTopicNotFound
	}
	return nil
}

// CreateTopic creates a topic with its first message and optional poll in one transaction
func (s *ForumService) CreateTopic(ctx context.Context, actor domain.Actor, req *domain.CreateTopicRequest) (*domain.Topic, error) {
	if actor.IsGuest() {
		return nil, common.ErrLoginRequired
	}
	subject, err := s.input.subject(req.Subject, true)
	if err != nil {
		return nil, err
	}
	body, err := s.input.messageBody(req.Body)
	if err != nil {
		return nil, err
	}
	var poll *domain.Poll
	var choices []domain.PollChoice
	if req.Poll != nil {
		poll, choices, err = buildPoll(s.input, req.Poll, s.opts.MaxPollChoices, s.now())
		if err != nil {
			return nil, err
		}
	}

	if _, err := s.store.WithContext(ctx).Boards.FindByID(req.BoardID); err != nil {
		return nil, notFound(err, common.ErrBoardNotFound)
	}
	if err := s.requirePost(ctx, actor.ID, req.BoardID); err != nil {
		return nil, err
	}

	now := s.now()
	var topic *domain.Topic
	err = s.store.Transact(ctx, func(tx *repository.Store) error {
		if _, err := tx.Boards.FindByID(req.BoardID); err != nil {
			return notFound(err, common.ErrBoardNotFound)
		}

		topic = &domain.Topic{
			BoardID:         req.BoardID,
			Subject:         subject,
			AuthorID:        actor.ID,
			AuthorName:      actor.Name,
			LastMessageTime: now,
			LastPosterName:  actor.Name,
			CreatedAt:       now,
		}
		if err := tx.Topics.Create(topic); err != nil {
			return err
		}

		msg := &domain.Message{
			TopicID:        topic.ID,
			BoardID:        req.BoardID,
			AuthorID:       actor.ID,
			AuthorName:     actor.Name,
			Subject:        subject,
			Body:           body,
			PostedTime:     now,
			IsFirstMessage: true,
		}
		if err := tx.Messages.Create(msg); err != nil {
			return err
		}
		if err := tx.Topics.SetMessages(topic.ID, msg); err != nil {
			return err
		}
		topic.FirstMessageID = msg.ID
		topic.LastMessageID = msg.ID

		if err := tx.Boards.AddCounters(req.BoardID, 1, 1); err != nil {
			return err
		}
		if err := tx.Boards.RepointIfNewer(req.BoardID, msg); err != nil {
			return err
		}

		if poll != nil {
			poll.TopicID = topic.ID
			if err := tx.Polls.Create(poll, choices); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.MessagesCreated.WithLabelValues("topic").Inc()
	s.invalidateCategories(ctx)
	return topic, nil
}

// CreatePost appends a reply. Locked topics accept replies from moderators only.
func (s *ForumService) CreatePost(ctx context.Context, actor domain.Actor, req *domain.CreatePostRequest) (*domain.Message, error) {
	if actor.IsGuest() {
		return nil, common.ErrLoginRequired
	}
	body, err := s.input.messageBody(req.Body)
	if err != nil {
		return nil, err
	}
	subject, err := s.input.subject(req.Subject, false)
	if err != nil {
		return nil, err
	}

	topic, err := s.store.WithContext(ctx).Topics.FindByID(req.TopicID)
	if err != nil {
		return nil, notFound(err, common.ErrTopicNotFound)
	}
	if err := s.requirePost(ctx, actor.ID, topic.BoardID); err != nil {
		return nil, err
	}
	isMod := isModerator(ctx, s.perm, actor.ID)

	now := s.now()
	var msg *domain.Message
	err = s.store.Transact(ctx, func(tx *repository.Store) error {
		// re-read inside the transaction: the topic may have been locked or moved
		topic, err := tx.Topics.FindByID(req.TopicID)
		if err != nil {
			return notFound(err, common.ErrTopicNotFound)
		}
		if topic.Locked && !isMod {
			return common.ErrTopicLocked
		}

		if subject == "" {
			subject = truncateRunes("Re: "+topic.Subject, MaxSubjectRunes)
		}
		msg = &domain.Message{
			TopicID:    topic.ID,
			BoardID:    topic.BoardID,
			AuthorID:   actor.ID,
			AuthorName: actor.Name,
			Subject:    subject,
			Body:       body,
			PostedTime: now,
		}
		if err := tx.Messages.Create(msg); err != nil {
			return err
		}
		if err := tx.Topics.AddReplies(topic.ID, 1); err != nil {
			return err
		}
		if err := tx.Topics.RepointIfNewer(topic.ID, msg); err != nil {
			return err
		}
		if err := tx.Boards.AddCounters(topic.BoardID, 0, 1); err != nil {
			return err
		}
		return tx.Boards.RepointIfNewer(topic.BoardID, msg)
	})
	if err != nil {
		return nil, err
	}

	metrics.MessagesCreated.WithLabelValues("reply").Inc()
	s.invalidateCategories(ctx)
	return msg, nil
}

// UpdatePost edits a message. Editing the first message's subject renames the topic.
func (s *ForumService) UpdatePost(ctx context.Context, actor domain.Actor, messageID uint64, req *domain.UpdatePostRequest) (*domain.Message, error) {
	msg, topic, isMod, err := s.authorizeMessage(ctx, actor, messageID)
	if err != nil {
		return nil, err
	}
	if topic.Locked && !isMod {
		return nil, common.ErrTopicLocked
	}

	body, err := s.input.messageBody(req.Body)
	if err != nil {
		return nil, err
	}
	subject := msg.Subject
	if req.Subject != nil {
		if subject, err = s.input.subject(*req.Subject, msg.IsFirstMessage); err != nil {
			return nil, err
		}
	}

	now := s.now()
	err = s.store.Transact(ctx, func(tx *repository.Store) error {
		if err := tx.Messages.UpdateFields(msg.ID, map[string]interface{}{
			"subject":       subject,
			"body":          body,
			"modified_time": now,
			"modified_by":   actor.Name,
		}); err != nil {
			return err
		}
		if msg.IsFirstMessage && subject != topic.Subject {
			return tx.Topics.UpdateFields(topic.ID, map[string]interface{}{"subject": subject})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	msg.Subject = subject
	msg.Body = body
	msg.ModifiedTime = &now
	msg.ModifiedBy = actor.Name
	return msg, nil
}

// DeletePost removes a reply, decrementing counters and recomputing pointers
// that referenced it. The first message can only go with its topic.
func (s *ForumService) DeletePost(ctx context.Context, actor domain.Actor, messageID uint64) error {
	msg, _, _, err := s.authorizeMessage(ctx, actor, messageID)
	if err != nil {
		return err
	}
	if msg.IsFirstMessage {
		return common.ErrFirstMessageDelete
	}

	err = s.store.Transact(ctx, func(tx *repository.Store) error {
		// lock the row so two concurrent deletes cannot both decrement
		msg, err := tx.Messages.FindByIDForUpdate(messageID)
		if err != nil {
			return notFound(err, common.ErrMessageNotFound)
		}
		topic, err := tx.Topics.FindByID(msg.TopicID)
		if err != nil {
			return notFound(err, common.ErrTopicNotFound)
		}
		board, err := tx.Boards.FindByID(msg.BoardID)
		if err != nil {
			return notFound(err, common.ErrBoardNotFound)
		}

		if err := tx.Messages.Delete(msg.ID); err != nil {
			return err
		}
		if err := tx.Topics.AddReplies(topic.ID, -1); err != nil {
			return err
		}
		if err := tx.Boards.AddCounters(board.ID, 0, -1); err != nil {
			return err
		}
		if topic.LastMessageID == msg.ID {
			if err := tx.Topics.RecomputeLastMessage(topic.ID); err != nil {
				return err
			}
		}
		if board.LastMessageID != nil && *board.LastMessageID == msg.ID {
			return tx.Boards.RecomputeLastMessage(board.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateCategories(ctx)
	return nil
}

// DeleteTopic removes a topic with its messages, poll, read markers and reports (moderator only)
func (s *ForumService) DeleteTopic(ctx context.Context, actor domain.Actor, topicID uint64) error {
	if err := s.requireModerator(ctx, actor); err != nil {
		return err
	}

	err := s.store.Transact(ctx, func(tx *repository.Store) error {
		topic, err := tx.Topics.FindByID(topicID)
		if err != nil {
			return notFound(err, common.ErrTopicNotFound)
		}

		removed, err := tx.Messages.DeleteByTopic(topic.ID)
		if err != nil {
			return err
		}
		if err := tx.Polls.DeleteByTopic(topic.ID); err != nil {
			return err
		}
		if err := tx.Markers.DeleteByTopic(topic.ID); err != nil {
			return err
		}
		if err := tx.Reports.DeleteByTopic(topic.ID); err != nil {
			return err
		}
		if err := tx.Topics.Delete(topic.ID); err != nil {
			return err
		}
		if err := tx.Boards.AddCounters(topic.BoardID, -1, -removed); err != nil {
			return err
		}
		return tx.Boards.RecomputeLastMessage(topic.BoardID)
	})
	if err != nil {
		return err
	}

	s.invalidateCategories(ctx)
	return nil
}

// LockTopic sets or clears the topic lock (moderator only). Locking does not touch existing messages.
func (s *ForumService) LockTopic(ctx context.Context, actor domain.Actor, topicID uint64, locked bool) (*domain.Topic, error) {
	if err := s.requireModerator(ctx, actor); err != nil {
		return nil, err
	}

	store := s.store.WithContext(ctx)
	topic, err := store.Topics.FindByID(topicID)
	if err != nil {
		return nil, notFound(err, common.ErrTopicNotFound)
	}
	if err := store.Topics.SetLocked(topicID, locked); err != nil {
		return nil, err
	}
	topic.Locked = locked

	state := "unlocked"
	if locked {
		state = "locked"
	}
	s.notifyAuthor(ctx, actor, topic, notify.EventTopicLocked, fmt.Sprintf("Your topic %q was %s by a moderator", topic.Subject, state))
	return topic, nil
}

// MoveTopic moves a topic and its messages to another board in one transaction (moderator only)
func (s *ForumService) MoveTopic(ctx context.Context, actor domain.Actor, topicID, targetBoardID uint64) (*domain.Topic, error) {
	if err := s.requireModerator(ctx, actor); err != nil {
		return nil, err
	}

	var topic *domain.Topic
	var target *domain.Board
	err := s.store.Transact(ctx, func(tx *repository.Store) error {
		var err error
		topic, err = tx.Topics.FindByID(topicID)
		if err != nil {
			return notFound(err, common.ErrTopicNotFound)
		}
		if topic.BoardID == targetBoardID {
			return common.ErrSameBoard
		}
		target, err = tx.Boards.FindByID(targetBoardID)
		if err != nil {
			return notFound(err, common.ErrBoardNotFound)
		}
		source := topic.BoardID

		count, err := tx.Messages.CountByTopic(topic.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Messages.MoveTopic(topic.ID, targetBoardID); err != nil {
			return err
		}
		if err := tx.Topics.SetBoard(topic.ID, targetBoardID); err != nil {
			return err
		}

		if err := tx.Boards.AddCounters(source, -1, -count); err != nil {
			return err
		}
		if err := tx.Boards.RecomputeLastMessage(source); err != nil {
			return err
		}
		if err := tx.Boards.AddCounters(targetBoardID, 1, count); err != nil {
			return err
		}
		latest, err := tx.Messages.LatestInTopic(topic.ID)
		if err != nil {
			return err
		}
		if latest != nil {
			if err := tx.Boards.RepointIfNewer(targetBoardID, latest); err != nil {
				return err
			}
		}

		topic.BoardID = targetBoardID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCategories(ctx)
	s.notifyAuthor(ctx, actor, topic, notify.EventTopicMoved, fmt.Sprintf("Your topic %q was moved to %s", topic.Subject, target.Name))
	return topic, nil
}

// authorizeMessage loads a message and its topic and checks the actor is its author or a moderator
func (s *ForumService) authorizeMessage(ctx context.Context, actor domain.Actor, messageID uint64) (*domain.Message, *domain.Topic, bool, error) {
	if actor.IsGuest() {
		return nil, nil, false, common.ErrLoginRequired
	}

	store := s.store.WithContext(ctx)
	msg, err := store.Messages.FindByID(messageID)
	if err != nil {
		return nil, nil, false, notFound(err, common.ErrMessageNotFound)
	}
	topic, err := store.Topics.FindByID(msg.TopicID)
	if err != nil {
		return nil, nil, false, notFound(err, common.ErrTopicNotFound)
	}

	isMod := isModerator(ctx, s.perm, actor.ID)
	if msg.AuthorID != actor.ID && !isMod {
		return nil, nil, false, common.ErrNotAuthor
	}
	return msg, topic, isMod, nil
}

func (s *ForumService) requirePost(ctx context.Context, userID, boardID uint64) error {
	ok, err := s.perm.CanPost(ctx, userID, boardID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrBoardAccess
	}
	return nil
}

func (s *ForumService) requireModerator(ctx context.Context, actor domain.Actor) error {
	return requireModerator(ctx, s.perm, actor)
}

func (s *ForumService) notifyAuthor(ctx context.Context, actor domain.Actor, topic *domain.Topic, kind, message string) {
	if topic.AuthorID == actor.ID {
		return
	}
	notify.Send(ctx, s.notifier, notify.Event{
		Type:    kind,
		UserID:  topic.AuthorID,
		TopicID: topic.ID,
		Message: message,
	})
}

// isModerator asks perm and treats a failed check as "not a moderator"
func isModerator(ctx context.Context, perm permission.Checker, userID uint64) bool {
	if userID == 0 {
		return false
	}
	ok, err := perm.CanModerate(ctx, userID)
	if err != nil {
		pkglogger.GetLogger().Warn().Err(err).Uint64("user_id", userID).Msg("moderator check failed")
		return false
	}
	return ok
}

// requireModerator fails with ErrModeratorOnly unless perm grants moderation
func requireModerator(ctx context.Context, perm permission.Checker, actor domain.Actor) error {
	if actor.IsGuest() {
		return common.ErrLoginRequired
	}
	if !isModerator(ctx, perm, actor.ID) {
		return common.ErrModeratorOnly
	}
	return nil
}

// notFound maps gorm's missing-row error to the given not-found error
func notFound(err error, nf error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nf
	}
	return err
}
