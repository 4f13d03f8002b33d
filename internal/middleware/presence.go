package middleware

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/damoang/angple-forum/internal/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// ActivityRecorder receives one entry per request. Implementations must not block.
type ActivityRecorder interface {
	Record(entry domain.OnlineEntry)
}

// Presence records who is doing what after each successful request
func Presence(recorder ActivityRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}
		session := sessionKey(c)
		if session == "" {
			return
		}
		recorder.Record(domain.OnlineEntry{
			SessionID:  session,
			MemberID:   GetUserID(c),
			MemberName: GetNickname(c),
			Action:     currentAction(c),
		})
	}
}

// sessionKey: 회원은 ID, 비회원은 쿠키 세션, 둘 다 없으면 IP
func sessionKey(c *gin.Context) string {
	if id := GetUserID(c); id != 0 {
		return "m:" + strconv.FormatUint(id, 10)
	}
	if key := GetGuestKey(c); key != "" {
		return "g:" + key
	}
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return ""
}

func currentAction(c *gin.Context) datatypes.JSON {
	action := domain.OnlineAction{Route: c.FullPath()}
	if action.Route == "" {
		action.Route = c.Request.URL.Path
	}
	if id, err := strconv.ParseUint(c.Param("id"), 10, 64); err == nil {
		switch {
		case strings.Contains(action.Route, "/boards/:id"):
			action.BoardID = id
		case strings.Contains(action.Route, "/topics/:id"):
			action.TopicID = id
		}
	}
	data, err := json.Marshal(action)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
