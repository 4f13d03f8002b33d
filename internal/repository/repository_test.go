package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/damoang/angple-forum/internal/common"
	"github.com/damoang/angple-forum/internal/domain"
	"github.com/damoang/angple-forum/internal/migration"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// :memory: DB는 커넥션마다 별개이므로 하나만 사용
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.Run(db))
	return db
}

// seedTopic creates a board with one topic and its first message
func seedTopic(t *testing.T, s *Store, boardID uint64, at time.Time) (*domain.Topic, *domain.Message) {
	t.Helper()
	if _, err := s.Boards.FindByID(boardID); err != nil {
		require.NoError(t, s.Boards.Create(&domain.Board{ID: boardID, CategoryID: 1, Name: "board"}))
	}
	topic := &domain.Topic{BoardID: boardID, Subject: "hello", AuthorID: 42, LastMessageTime: at, CreatedAt: at}
	require.NoError(t, s.Topics.Create(topic))
	msg := &domain.Message{TopicID: topic.ID, BoardID: boardID, AuthorID: 42, AuthorName: "kim", Body: "world", PostedTime: at, IsFirstMessage: true}
	require.NoError(t, s.Messages.Create(msg))
	require.NoError(t, s.Topics.SetMessages(topic.ID, msg))
	return topic, msg
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(driver.ErrBadConn))
	assert.True(t, IsTransient(&mysqldriver.MySQLError{Number: 1213, Message: "Deadlock found"}))
	assert.True(t, IsTransient(&mysqldriver.MySQLError{Number: 1205, Message: "Lock wait timeout"}))
	assert.True(t, IsTransient(errors.New("database is locked")))
	assert.False(t, IsTransient(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, IsTransient(common.ErrTopicLocked))
	assert.False(t, IsTransient(nil))
}

func TestTransact_RetriesTransient(t *testing.T) {
	db := setupTestDB(t)

	calls := 0
	err := Transact(context.Background(), db, func(tx *gorm.DB) error {
		calls++
		if calls < 3 {
			return driver.ErrBadConn
		}
		return tx.Create(&domain.Category{Name: "c"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	var n int64
	db.Model(&domain.Category{}).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestTransact_ExhaustedIsUnavailable(t *testing.T) {
	db := setupTestDB(t)

	calls := 0
	err := Transact(context.Background(), db, func(tx *gorm.DB) error {
		calls++
		return driver.ErrBadConn
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.Equal(t, int(txMaxRetries)+1, calls)
}

func TestTransact_PermanentErrorRollsBack(t *testing.T) {
	db := setupTestDB(t)

	calls := 0
	err := Transact(context.Background(), db, func(tx *gorm.DB) error {
		calls++
		if err := tx.Create(&domain.Category{Name: "c"}).Error; err != nil {
			return err
		}
		return common.ErrTopicLocked
	})
	assert.ErrorIs(t, err, common.ErrTopicLocked)
	assert.Equal(t, 1, calls)

	var n int64
	db.Model(&domain.Category{}).Count(&n)
	assert.Zero(t, n)
}

func TestTopicRepository_Unread(t *testing.T) {
	s := NewStore(setupTestDB(t))
	t1, _ := seedTopic(t, s, 1, base)
	t2, _ := seedTopic(t, s, 1, base.Add(time.Minute))
	t3, _ := seedTopic(t, s, 2, base.Add(2*time.Minute))

	// 마커 없음: 모두 unread
	n, err := s.Topics.CountUnread(7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// 토픽 마커가 있으면 해당 토픽만 제외
	require.NoError(t, s.Markers.Upsert(7, t1.ID, base))
	topics, total, err := s.Topics.ListUnread(7, nil, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, topics, 2)
	assert.Equal(t, t3.ID, topics[0].ID, "most recent activity first")
	assert.Equal(t, t2.ID, topics[1].ID)

	// board filter
	board := uint64(1)
	topics, total, err = s.Topics.ListUnread(7, &board, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, t2.ID, topics[0].ID)

	// 전역 마커가 t2 이후라면 t3만 남음
	require.NoError(t, s.Markers.Upsert(7, domain.GlobalScope, base.Add(90*time.Second)))
	n, err = s.Topics.CountUnread(7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// 다른 사용자에게는 영향 없음
	n, err = s.Topics.CountUnread(8)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestTopicRepository_StaleTopicMarkerLosesToGlobal(t *testing.T) {
	s := NewStore(setupTestDB(t))
	topic, _ := seedTopic(t, s, 1, base.Add(time.Minute))

	// 오래된 토픽 마커 + 최신 전역 마커 → 읽음
	require.NoError(t, s.Markers.Upsert(7, topic.ID, base))
	require.NoError(t, s.Markers.Upsert(7, domain.GlobalScope, base.Add(time.Hour)))
	n, err := s.Topics.CountUnread(7)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReadMarkerRepository_UpsertOverwrites(t *testing.T) {
	s := NewStore(setupTestDB(t))

	require.NoError(t, s.Markers.Upsert(7, 5, base))
	require.NoError(t, s.Markers.Upsert(7, 5, base.Add(time.Hour)))

	m, err := s.Markers.Find(7, 5)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.MarkedAt.Equal(base.Add(time.Hour)))

	missing, err := s.Markers.Find(7, 6)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMessageRepository_RankAndLatest(t *testing.T) {
	s := NewStore(setupTestDB(t))
	topic, first := seedTopic(t, s, 1, base)

	var replies []*domain.Message
	for i := 1; i <= 4; i++ {
		m := &domain.Message{TopicID: topic.ID, BoardID: 1, AuthorName: "lee", Body: "r", PostedTime: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, s.Messages.Create(m))
		replies = append(replies, m)
	}
	// 같은 시각의 메시지는 id 순
	tie := &domain.Message{TopicID: topic.ID, BoardID: 1, AuthorName: "park", Body: "t", PostedTime: replies[3].PostedTime}
	require.NoError(t, s.Messages.Create(tie))

	rank, err := s.Messages.Rank(first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rank)

	rank, err = s.Messages.Rank(replies[2])
	require.NoError(t, err)
	assert.Equal(t, int64(4), rank)

	rank, err = s.Messages.Rank(tie)
	require.NoError(t, err)
	assert.Equal(t, int64(6), rank)

	latest, err := s.Messages.LatestInTopic(topic.ID)
	require.NoError(t, err)
	assert.Equal(t, tie.ID, latest.ID)

	none, err := s.Messages.LatestInBoard(99)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestBoardRepository_RepointIfNewer(t *testing.T) {
	s := NewStore(setupTestDB(t))
	_, msg := seedTopic(t, s, 1, base)

	require.NoError(t, s.Boards.RepointIfNewer(1, msg))
	board, err := s.Boards.FindByID(1)
	require.NoError(t, err)
	require.NotNil(t, board.LastMessageID)
	assert.Equal(t, msg.ID, *board.LastMessageID)

	older := &domain.Message{ID: msg.ID + 100, PostedTime: base.Add(-time.Hour), AuthorName: "old"}
	require.NoError(t, s.Boards.RepointIfNewer(1, older))
	board, err = s.Boards.FindByID(1)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, *board.LastMessageID, "older message must not take the pointer")

	require.NoError(t, s.Boards.SetLastMessage(1, nil))
	board, err = s.Boards.FindByID(1)
	require.NoError(t, err)
	assert.Nil(t, board.LastMessageID)
	assert.Nil(t, board.LastMessageTime)
}

func TestReportRepository_Close(t *testing.T) {
	s := NewStore(setupTestDB(t))

	report := &domain.Report{MessageID: 1, TopicID: 1, ReporterID: 7, Comment: "spam", Status: domain.ReportStatusOpen, CreatedAt: base}
	require.NoError(t, s.Reports.Create(report))

	open, err := s.Reports.HasOpen(1, 7)
	require.NoError(t, err)
	assert.True(t, open)

	ok, err := s.Reports.Close(report.ID, 1, base.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Reports.Close(report.ID, 2, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "second close is not a transition")

	got, err := s.Reports.GetByID(report.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusClosed, got.Status)
	require.NotNil(t, got.ClosedBy)
	assert.Equal(t, uint64(1), *got.ClosedBy)

	count, err := s.Reports.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count.Open)
	assert.Equal(t, int64(1), count.Closed)
}

func TestPollRepository_DriftedChoices(t *testing.T) {
	s := NewStore(setupTestDB(t))

	poll := &domain.Poll{TopicID: 1, Question: "q", MaxVotes: 1, CreatedAt: base}
	choices := []domain.PollChoice{{Label: "A"}, {Label: "B"}}
	require.NoError(t, s.Polls.Create(poll, choices))
	require.NoError(t, s.Polls.InsertVotes([]domain.PollVote{
		{PollID: poll.ID, VoterKey: "m:7", ChoiceID: choices[0].ID, CreatedAt: base},
		{PollID: poll.ID, VoterKey: "m:8", ChoiceID: choices[0].ID, CreatedAt: base},
	}))
	require.NoError(t, s.Polls.AddChoiceCount(choices[0].ID, 1))
	require.NoError(t, s.Polls.AddChoiceCount(choices[1].ID, 3))

	drift, err := s.Polls.DriftedChoices()
	require.NoError(t, err)
	require.Len(t, drift, 2)

	for _, d := range drift {
		ok, err := s.Polls.SetChoiceCount(d.ID, d.VoteCount, d.Actual)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	drift, err = s.Polls.DriftedChoices()
	require.NoError(t, err)
	assert.Empty(t, drift)

	voters, err := s.Polls.CountVoters(poll.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), voters)

	// unique (poll, voter, choice)
	err = s.Polls.InsertVotes([]domain.PollVote{{PollID: poll.ID, VoterKey: "m:7", ChoiceID: choices[0].ID, CreatedAt: base}})
	assert.Error(t, err)
}
