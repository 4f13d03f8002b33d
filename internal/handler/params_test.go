package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParamID(t *testing.T) {
	tests := []struct {
		raw    string
		want   uint64
		ok     bool
		status int
	}{
		{"12", 12, true, http.StatusOK},
		{"0", 0, false, http.StatusBadRequest},
		{"-3", 0, false, http.StatusBadRequest},
		{"abc", 0, false, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Params = gin.Params{{Key: "id", Value: tt.raw}}

			id, ok := paramID(c, "id")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, id)
			if !ok {
				assert.Equal(t, tt.status, w.Code)
				assert.Contains(t, w.Body.String(), "Invalid id")
			}
		})
	}
}

func TestPageQuery(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, 20},
		{"page=3&limit=10", 3, 10},
		{"page=0&limit=-1", 1, 20},
		{"limit=500", 1, 100},
		{"page=x", 1, 20},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)

			page, limit := pageQuery(c, 20, 100)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}
