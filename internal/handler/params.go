package handler

import (
	"net/http"
	"strconv"

	"github.com/damoang/angple-forum/internal/common"
	"github.com/gin-gonic/gin"
)

// paramID parses a positive :name path parameter, answering 400 when it is not one
func paramID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return id, true
}

// pageQuery reads page/limit, defaulting limit to def and capping it at max
func pageQuery(c *gin.Context, def, max int) (int, int) {
	page := 1
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	limit := def
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}
	if max > 0 && limit > max {
		limit = max
	}
	return page, limit
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}
