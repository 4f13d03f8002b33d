package routes

import (
	"github.com/damoang/angple-forum/internal/handler"
	"github.com/damoang/angple-forum/internal/middleware"
	"github.com/damoang/angple-forum/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers bundles the forum handlers
type Handlers struct {
	Forum       *handler.ForumHandler
	Poll        *handler.PollHandler
	ReadState   *handler.ReadStateHandler
	Report      *handler.ReportHandler
	Maintenance *handler.MaintenanceHandler
	Presence    *handler.PresenceHandler
}

// Options configures the route middleware
type Options struct {
	JWT        *jwt.Manager
	Redis      *redis.Client // nil disables rate limiting
	RateLimit  middleware.RateLimitConfig
	AdminLevel int
	Presence   middleware.ActivityRecorder // nil disables activity recording
}

// Setup configures the forum API under /api/v1/forums
func Setup(router *gin.Engine, h Handlers, opts Options) {
	// 모든 요청은 선택적 인증 (비회원은 forum_sid 세션 쿠키)
	forums := router.Group("/api/v1/forums",
		middleware.OptionalJWTAuth(opts.JWT),
		middleware.Presence(opts.Presence),
	)

	auth := middleware.JWTAuth(opts.JWT)
	limit := middleware.RateLimit(opts.Redis, opts.RateLimit)

	// Boards & topics (공개)
	forums.GET("/categories", h.Forum.ListCategories)
	forums.GET("/boards/:id", h.Forum.GetBoard)
	forums.GET("/topics/:id", h.Forum.GetTopic)
	forums.POST("/topics/:id/view", h.Forum.IncrementView)
	forums.GET("/posts/:id/page", h.Forum.GetMessagePage)

	// Writing (로그인 필요)
	forums.POST("/topics", auth, limit, h.Forum.CreateTopic)
	forums.POST("/posts", auth, limit, h.Forum.CreatePost)
	forums.PUT("/posts/:id", auth, limit, h.Forum.UpdatePost)
	forums.DELETE("/posts/:id", auth, h.Forum.DeletePost)
	forums.POST("/posts/:id/report", auth, limit, h.Report.ReportMessage)

	// Moderation (운영자 여부는 서비스에서 확인)
	forums.DELETE("/topics/:id", auth, h.Forum.DeleteTopic)
	forums.PUT("/topics/:id/lock", auth, h.Forum.LockTopic)
	forums.PUT("/topics/:id/move", auth, h.Forum.MoveTopic)

	reports := forums.Group("/reports", auth)
	reports.GET("", h.Report.ListReports)
	reports.GET("/count", h.Report.CountReports)
	reports.GET("/:id", h.Report.GetReport)
	reports.PUT("/:id/close", h.Report.CloseReport)

	// Polls: 비회원 투표는 투표 설정(guest_vote)에 따름
	forums.GET("/polls/:id", h.Poll.GetPoll)
	forums.POST("/polls/:id/vote", limit, h.Poll.Vote)
	forums.DELETE("/polls/:id/vote", h.Poll.RemoveVote)
	forums.PUT("/polls/:id/lock", auth, h.Poll.LockVoting)

	// Read state
	forums.GET("/unread", auth, h.ReadState.GetUnread)
	forums.GET("/unread/count", auth, h.ReadState.GetUnreadCount)
	forums.POST("/topics/:id/mark-read", auth, h.ReadState.MarkTopicRead)
	forums.POST("/boards/:id/mark-read", auth, h.ReadState.MarkBoardRead)
	forums.POST("/mark-all-read", auth, h.ReadState.MarkAllRead)

	// Presence
	forums.GET("/online", h.Presence.Online)
	forums.GET("/online/stats", h.Presence.Stats)

	// Maintenance (관리자)
	maintenance := forums.Group("/maintenance", auth, middleware.RequireAdmin(opts.AdminLevel))
	maintenance.POST("/fix-pointers", h.Maintenance.FixPointers)
	maintenance.GET("/tasks", h.Maintenance.Tasks)
}
