package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/damoang/angple-forum/internal/domain"
	"github.com/damoang/angple-forum/internal/migration"
	"github.com/damoang/angple-forum/internal/notify"
	"github.com/damoang/angple-forum/internal/permission"
	"github.com/damoang/angple-forum/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 테스트 사용자
var (
	moderator = domain.Actor{ID: 1, Name: "운영자"}
	author    = domain.Actor{ID: 42, Name: "kim"}
	member    = domain.Actor{ID: 7, Name: "lee"}
	guest     = domain.Actor{GuestKey: "sess-abc"}
)

// Boards seeded by newEnv; readOnlyBoard accepts posts from moderators only
const (
	boardFree     uint64 = 1
	boardQA       uint64 = 2
	readOnlyBoard uint64 = 3
)

// testClock advances one second per reading so every write gets a distinct time
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// Advance jumps the clock forward
func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *recordingSink) Notify(_ context.Context, ev notify.Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Events() []notify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Event(nil), s.events...)
}

type testEnv struct {
	db         *gorm.DB
	store      *repository.Store
	clock      *testClock
	sink       *recordingSink
	forum      *ForumService
	polls      *PollService
	readState  *ReadStateService
	moderation *ModerationService
	reconcile  *ReconcileService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.Run(db))
	return db
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	require.NoError(t, db.Create(&domain.Category{ID: 1, Name: "커뮤니티", OrderNum: 1}).Error)
	for _, b := range []domain.Board{
		{ID: boardFree, CategoryID: 1, Name: "자유게시판", OrderNum: 1},
		{ID: boardQA, CategoryID: 1, Name: "질문과 답변", OrderNum: 2},
		{ID: readOnlyBoard, CategoryID: 1, Name: "공지사항", OrderNum: 3},
	} {
		require.NoError(t, db.Create(&b).Error)
	}

	store := repository.NewStore(db)
	perm := permission.NewConfigChecker([]uint64{moderator.ID}, []uint64{readOnlyBoard})
	clock := &testClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	sink := &recordingSink{}

	env := &testEnv{
		db:         db,
		store:      store,
		clock:      clock,
		sink:       sink,
		forum:      NewForumService(store, perm, Options{MessagesPerPage: 15, MaxPollChoices: 5}),
		polls:      NewPollService(store, perm),
		readState:  NewReadStateService(store, 100),
		moderation: NewModerationService(store, perm, 100),
		reconcile:  NewReconcileService(store),
	}
	env.forum.SetClock(clock.Now)
	env.forum.SetNotifier(sink)
	env.polls.SetClock(clock.Now)
	env.readState.SetClock(clock.Now)
	env.moderation.SetClock(clock.Now)
	env.moderation.SetNotifier(sink)
	return env
}

func (e *testEnv) createTopic(t *testing.T, actor domain.Actor, boardID uint64, subject string) *domain.Topic {
	t.Helper()
	topic, err := e.forum.CreateTopic(context.Background(), actor, &domain.CreateTopicRequest{
		BoardID: boardID, Subject: subject, Body: "body of " + subject,
	})
	require.NoError(t, err)
	return topic
}

func (e *testEnv) reply(t *testing.T, actor domain.Actor, topicID uint64, body string) *domain.Message {
	t.Helper()
	msg, err := e.forum.CreatePost(context.Background(), actor, &domain.CreatePostRequest{TopicID: topicID, Body: body})
	require.NoError(t, err)
	return msg
}

func (e *testEnv) board(t *testing.T, id uint64) *domain.Board {
	t.Helper()
	b, err := e.store.Boards.FindByID(id)
	require.NoError(t, err)
	return b
}

func (e *testEnv) topic(t *testing.T, id uint64) *domain.Topic {
	t.Helper()
	topic, err := e.store.Topics.FindByID(id)
	require.NoError(t, err)
	return topic
}
