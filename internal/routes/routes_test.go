package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/damoang/angple-forum/internal/handler"
	"github.com/damoang/angple-forum/internal/middleware"
	"github.com/damoang/angple-forum/internal/migration"
	"github.com/damoang/angple-forum/internal/permission"
	"github.com/damoang/angple-forum/internal/presence"
	"github.com/damoang/angple-forum/internal/repository"
	"github.com/damoang/angple-forum/internal/scheduler"
	"github.com/damoang/angple-forum/internal/service"
	"github.com/damoang/angple-forum/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiEnv struct {
	router  *gin.Engine
	jwt     *jwt.Manager
	tracker *presence.Tracker
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Page       int   `json:"page"`
		PerPage    int   `json:"per_page"`
		Total      int64 `json:"total"`
		TotalPages int64 `json:"total_pages"`
	} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// 시드 데이터: 게시판 1,2,4 는 일반, 3 은 공지(운영자 전용). 운영자는 회원 1
func newAPI(t *testing.T) *apiEnv {
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
	require.NoError(t, migration.Seed(db))

	store := repository.NewStore(db)
	perm := permission.NewConfigChecker([]uint64{1}, []uint64{3})
	forum := service.NewForumService(store, perm, service.Options{MessagesPerPage: 2})
	moderation := service.NewModerationService(store, perm, 50)

	tracker := presence.NewTracker(presence.NewMemoryStore(), presence.Config{PoolSize: 4})
	require.NoError(t, tracker.Start(nil))
	t.Cleanup(tracker.Stop)

	sched := scheduler.New(0)
	sched.Register("noop", time.Hour, func(context.Context) error { return nil })

	manager := jwt.NewManager("test-secret", 3600, 0)
	router := gin.New()
	Setup(router, Handlers{
		Forum:       handler.NewForumHandler(forum),
		Poll:        handler.NewPollHandler(service.NewPollService(store, perm)),
		ReadState:   handler.NewReadStateHandler(service.NewReadStateService(store, 50)),
		Report:      handler.NewReportHandler(moderation, 50),
		Maintenance: handler.NewMaintenanceHandler(service.NewReconcileService(store), sched),
		Presence:    handler.NewPresenceHandler(tracker),
	}, Options{
		JWT:        manager,
		RateLimit:  middleware.DefaultRateLimitConfig(),
		AdminLevel: 10,
		Presence:   tracker,
	})
	return &apiEnv{router: router, jwt: manager, tracker: tracker}
}

type caller struct {
	id    uint64
	name  string
	level int
}

var (
	admin  = caller{1, "운영자", 10}
	kim    = caller{42, "kim", 2}
	lee    = caller{7, "lee", 2}
	nobody = caller{}
)

func (e *apiEnv) do(t *testing.T, who caller, method, path string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who.id != 0 {
		token, err := e.jwt.GenerateAccessToken(who.id, who.name, who.level)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode(t *testing.T, env envelope, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func (e *apiEnv) createTopic(t *testing.T, who caller, boardID uint64, subject string, poll map[string]interface{}) uint64 {
	t.Helper()
	body := map[string]interface{}{"board_id": boardID, "subject": subject, "body": "본문 " + subject}
	if poll != nil {
		body["poll"] = poll
	}
	w, env := e.do(t, who, http.MethodPost, "/api/v1/forums/topics", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var topic struct {
		ID uint64 `json:"id"`
	}
	decode(t, env, &topic)
	return topic.ID
}

func TestTopicLifecycle(t *testing.T) {
	api := newAPI(t)
	topicID := api.createTopic(t, kim, 1, "첫 글", nil)

	for i := 0; i < 3; i++ {
		w, _ := api.do(t, lee, http.MethodPost, "/api/v1/forums/posts",
			map[string]interface{}{"topic_id": topicID, "body": fmt.Sprintf("reply %d", i)})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	t.Run("topic page with meta", func(t *testing.T) {
		w, env := api.do(t, nobody, http.MethodGet, fmt.Sprintf("/api/v1/forums/topics/%d?page=2", topicID), nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, env.Meta)
		assert.Equal(t, 2, env.Meta.Page)
		assert.Equal(t, 2, env.Meta.PerPage)
		assert.Equal(t, int64(4), env.Meta.Total)
		assert.Equal(t, int64(2), env.Meta.TotalPages)

		var page struct {
			Topic struct {
				ReplyCount int64 `json:"reply_count"`
			} `json:"topic"`
			Messages []struct {
				Body string `json:"body"`
			} `json:"messages"`
		}
		decode(t, env, &page)
		assert.Equal(t, int64(3), page.Topic.ReplyCount)
		require.Len(t, page.Messages, 2)
		assert.Equal(t, "reply 1", page.Messages[0].Body)
	})

	t.Run("board lists the topic", func(t *testing.T) {
		w, env := api.do(t, nobody, http.MethodGet, "/api/v1/forums/boards/1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var page struct {
			Board struct {
				TopicCount   int64 `json:"topic_count"`
				MessageCount int64 `json:"message_count"`
			} `json:"board"`
			Topics []struct {
				ID uint64 `json:"id"`
			} `json:"topics"`
		}
		decode(t, env, &page)
		assert.Equal(t, int64(1), page.Board.TopicCount)
		assert.Equal(t, int64(4), page.Board.MessageCount)
		require.Len(t, page.Topics, 1)
		assert.Equal(t, topicID, page.Topics[0].ID)
	})

	t.Run("lock blocks replies", func(t *testing.T) {
		w, _ := api.do(t, kim, http.MethodPut, fmt.Sprintf("/api/v1/forums/topics/%d/lock", topicID), map[string]bool{"locked": true})
		assert.Equal(t, http.StatusForbidden, w.Code)

		w, _ = api.do(t, admin, http.MethodPut, fmt.Sprintf("/api/v1/forums/topics/%d/lock", topicID), map[string]bool{"locked": true})
		require.Equal(t, http.StatusOK, w.Code)

		w, env := api.do(t, lee, http.MethodPost, "/api/v1/forums/posts", map[string]interface{}{"topic_id": topicID, "body": "late"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "topic is locked", env.Error.Message)
	})

	t.Run("move", func(t *testing.T) {
		w, _ := api.do(t, admin, http.MethodPut, fmt.Sprintf("/api/v1/forums/topics/%d/move", topicID), map[string]uint64{"board_id": 2})
		require.Equal(t, http.StatusOK, w.Code)

		w, _ = api.do(t, admin, http.MethodPut, fmt.Sprintf("/api/v1/forums/topics/%d/move", topicID), map[string]uint64{"board_id": 2})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = api.do(t, admin, http.MethodPut, fmt.Sprintf("/api/v1/forums/topics/%d/move", topicID), map[string]uint64{"board_id": 99})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestStatusMapping(t *testing.T) {
	api := newAPI(t)
	topicID := api.createTopic(t, kim, 1, "status", nil)

	tests := []struct {
		name   string
		who    caller
		method string
		path   string
		body   interface{}
		status int
	}{
		{"no token", nobody, http.MethodPost, "/api/v1/forums/topics", map[string]interface{}{"board_id": 1, "subject": "s", "body": "b"}, http.StatusUnauthorized},
		{"missing fields", kim, http.MethodPost, "/api/v1/forums/topics", map[string]interface{}{"board_id": 1}, http.StatusBadRequest},
		{"blank subject", kim, http.MethodPost, "/api/v1/forums/topics", map[string]interface{}{"board_id": 1, "subject": "   ", "body": "b"}, http.StatusBadRequest},
		{"read only board", kim, http.MethodPost, "/api/v1/forums/topics", map[string]interface{}{"board_id": 3, "subject": "s", "body": "b"}, http.StatusForbidden},
		{"unknown board", kim, http.MethodPost, "/api/v1/forums/topics", map[string]interface{}{"board_id": 99, "subject": "s", "body": "b"}, http.StatusNotFound},
		{"bad id", nobody, http.MethodGet, "/api/v1/forums/topics/abc", nil, http.StatusBadRequest},
		{"unknown topic", nobody, http.MethodGet, "/api/v1/forums/topics/999", nil, http.StatusNotFound},
		{"unknown message page", nobody, http.MethodGet, "/api/v1/forums/posts/999/page", nil, http.StatusNotFound},
		{"not author edit", lee, http.MethodPut, fmt.Sprintf("/api/v1/forums/posts/%d", topicID), map[string]string{"body": "hijack"}, http.StatusForbidden},
		{"unread needs login", nobody, http.MethodGet, "/api/v1/forums/unread", nil, http.StatusUnauthorized},
		{"reports need moderator", kim, http.MethodGet, "/api/v1/forums/reports", nil, http.StatusForbidden},
		{"maintenance needs admin level", kim, http.MethodPost, "/api/v1/forums/maintenance/fix-pointers", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := api.do(t, tt.who, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
		})
	}
}

func TestMessagePageAndDelete(t *testing.T) {
	api := newAPI(t)
	topicID := api.createTopic(t, kim, 1, "paging", nil)

	var lastID uint64
	for i := 0; i < 4; i++ {
		w, env := api.do(t, lee, http.MethodPost, "/api/v1/forums/posts", map[string]interface{}{"topic_id": topicID, "body": fmt.Sprintf("r%d", i)})
		require.Equal(t, http.StatusCreated, w.Code)
		var msg struct {
			ID uint64 `json:"id"`
		}
		decode(t, env, &msg)
		lastID = msg.ID
	}

	// 5번째 메시지, 페이지당 2개 → 3페이지
	w, env := api.do(t, nobody, http.MethodGet, fmt.Sprintf("/api/v1/forums/posts/%d/page", lastID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pos struct {
		Rank int64 `json:"rank"`
		Page int64 `json:"page"`
	}
	decode(t, env, &pos)
	assert.Equal(t, int64(5), pos.Rank)
	assert.Equal(t, int64(3), pos.Page)

	// first message can't be deleted directly
	w, _ = api.do(t, kim, http.MethodDelete, fmt.Sprintf("/api/v1/forums/posts/%d", topicID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = api.do(t, lee, http.MethodDelete, fmt.Sprintf("/api/v1/forums/posts/%d", lastID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(t, kim, http.MethodDelete, fmt.Sprintf("/api/v1/forums/topics/%d", topicID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = api.do(t, admin, http.MethodDelete, fmt.Sprintf("/api/v1/forums/topics/%d", topicID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(t, nobody, http.MethodGet, fmt.Sprintf("/api/v1/forums/topics/%d", topicID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGuestPollVote(t *testing.T) {
	api := newAPI(t)
	topicID := api.createTopic(t, kim, 1, "점심 메뉴", map[string]interface{}{
		"question":   "뭐 먹지?",
		"choices":    []string{"국밥", "짜장면", "김밥"},
		"max_votes":  1,
		"guest_vote": true,
	})

	w, env := api.do(t, nobody, http.MethodGet, fmt.Sprintf("/api/v1/forums/topics/%d", topicID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		PollID *uint64 `json:"poll_id"`
	}
	decode(t, env, &page)
	require.NotNil(t, page.PollID)
	pollPath := fmt.Sprintf("/api/v1/forums/polls/%d", *page.PollID)

	// 첫 요청에서 세션 쿠키 발급
	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.GuestCookie {
			session = c
		}
	}
	require.NotNil(t, session)

	w, env = api.do(t, nobody, http.MethodGet, pollPath, nil, session)
	require.Equal(t, http.StatusOK, w.Code)
	var poll struct {
		Choices []struct {
			ID uint64 `json:"id"`
		} `json:"choices"`
		CanVote bool `json:"can_vote"`
	}
	decode(t, env, &poll)
	require.Len(t, poll.Choices, 3)
	assert.True(t, poll.CanVote)

	vote := map[string][]uint64{"choice_ids": {poll.Choices[1].ID}}
	w, env = api.do(t, nobody, http.MethodPost, pollPath+"/vote", vote, session)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var voted struct {
		HasVoted   bool   `json:"has_voted"`
		TotalVotes *int64 `json:"total_votes"`
	}
	decode(t, env, &voted)
	assert.True(t, voted.HasVoted)
	require.NotNil(t, voted.TotalVotes)
	assert.Equal(t, int64(1), *voted.TotalVotes)

	w, _ = api.do(t, nobody, http.MethodPost, pollPath+"/vote", vote, session)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = api.do(t, nobody, http.MethodPost, pollPath+"/vote", map[string][]uint64{"choice_ids": {999}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 회원은 별도 투표자
	w, _ = api.do(t, lee, http.MethodPost, pollPath+"/vote", vote)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(t, kim, http.MethodPut, pollPath+"/lock", map[string]bool{"locked": true})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = api.do(t, admin, http.MethodPost, pollPath+"/vote", vote)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMembersOnlyPollRejectsGuests(t *testing.T) {
	api := newAPI(t)
	topicID := api.createTopic(t, kim, 1, "members", map[string]interface{}{
		"question": "q",
		"choices":  []string{"a", "b"},
	})
	_, env := api.do(t, nobody, http.MethodGet, fmt.Sprintf("/api/v1/forums/topics/%d", topicID), nil)
	var page struct {
		PollID *uint64 `json:"poll_id"`
	}
	decode(t, env, &page)
	require.NotNil(t, page.PollID)

	w, env := api.do(t, nobody, http.MethodPost, fmt.Sprintf("/api/v1/forums/polls/%d/vote", *page.PollID),
		map[string][]uint64{"choice_ids": {1}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestReportRoutes(t *testing.T) {
	api := newAPI(t)
	topicID := api.createTopic(t, kim, 1, "신고 대상", nil)
	reportPath := fmt.Sprintf("/api/v1/forums/posts/%d/report", topicID)

	w, env := api.do(t, lee, http.MethodPost, reportPath, map[string]string{"comment": "광고입니다"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var report struct {
		ID     uint64 `json:"id"`
		Status string `json:"status"`
	}
	decode(t, env, &report)
	assert.Equal(t, "open", report.Status)

	w, _ = api.do(t, lee, http.MethodPost, reportPath, map[string]string{"comment": "또 신고"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = api.do(t, admin, http.MethodGet, "/api/v1/forums/reports/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var count struct {
		Open int64 `json:"open"`
	}
	decode(t, env, &count)
	assert.Equal(t, int64(1), count.Open)

	w, env = api.do(t, admin, http.MethodGet, "/api/v1/forums/reports?status=open", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(1), env.Meta.Total)

	// 요청 limit 는 서비스 상한으로 잘림
	_, env = api.do(t, lee, http.MethodGet, "/api/v1/forums/unread?limit=1000&offset=50", nil)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 50, env.Meta.PerPage)
	assert.Equal(t, 2, env.Meta.Page)

	closePath := fmt.Sprintf("/api/v1/forums/reports/%d/close", report.ID)
	w, _ = api.do(t, lee, http.MethodPut, closePath, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = api.do(t, admin, http.MethodPut, closePath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = api.do(t, admin, http.MethodPut, closePath, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReadStateRoutes(t *testing.T) {
	api := newAPI(t)
	first := api.createTopic(t, kim, 1, "one", nil)
	api.createTopic(t, kim, 2, "two", nil)

	w, env := api.do(t, lee, http.MethodGet, "/api/v1/forums/unread/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var count struct {
		Topics int64 `json:"topics"`
	}
	decode(t, env, &count)
	assert.Equal(t, int64(2), count.Topics)

	w, _ = api.do(t, lee, http.MethodPost, fmt.Sprintf("/api/v1/forums/topics/%d/mark-read", first), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = api.do(t, lee, http.MethodGet, "/api/v1/forums/unread?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var unread []struct {
		Subject string `json:"subject"`
	}
	decode(t, env, &unread)
	require.Len(t, unread, 1)
	assert.Equal(t, "two", unread[0].Subject)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(1), env.Meta.Total)

	w, _ = api.do(t, lee, http.MethodPost, "/api/v1/forums/mark-all-read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, env = api.do(t, lee, http.MethodGet, "/api/v1/forums/unread/count", nil)
	decode(t, env, &count)
	assert.Equal(t, int64(0), count.Topics)
}

func TestMaintenanceRoutes(t *testing.T) {
	api := newAPI(t)
	api.createTopic(t, kim, 1, "one", nil)

	w, env := api.do(t, admin, http.MethodPost, "/api/v1/forums/maintenance/fix-pointers", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report struct {
		TopicsScanned int `json:"topics_scanned"`
		TopicsFixed   int `json:"topics_fixed"`
	}
	decode(t, env, &report)
	assert.Equal(t, 1, report.TopicsScanned)
	assert.Equal(t, 0, report.TopicsFixed)

	w, env = api.do(t, admin, http.MethodGet, "/api/v1/forums/maintenance/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tasks []struct {
		Name string `json:"name"`
	}
	decode(t, env, &tasks)
	require.Len(t, tasks, 1)
	assert.Equal(t, "noop", tasks[0].Name)
}

func TestOnlineRoutes(t *testing.T) {
	api := newAPI(t)
	api.do(t, kim, http.MethodGet, "/api/v1/forums/categories", nil)
	api.do(t, nobody, http.MethodGet, "/api/v1/forums/boards/1", nil)

	assert.Eventually(t, func() bool {
		_, env := api.do(t, nobody, http.MethodGet, "/api/v1/forums/online/stats", nil)
		var stats struct {
			Members int `json:"members"`
			Guests  int `json:"guests"`
		}
		if err := json.Unmarshal(env.Data, &stats); err != nil {
			return false
		}
		return stats.Members == 1 && stats.Guests >= 1
	}, 2*time.Second, 20*time.Millisecond)
}
