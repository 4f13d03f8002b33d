package handler

import (
	"github.com/damoang/angple-forum/internal/common"
	"github.com/damoang/angple-forum/internal/domain"
	"github.com/damoang/angple-forum/internal/middleware"
	"github.com/damoang/angple-forum/internal/service"
	"github.com/gin-gonic/gin"
)

// ReportHandler handles message reports
type ReportHandler struct {
	service *service.ModerationService
	maxPage int
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service *service.ModerationService, maxPageSize int) *ReportHandler {
	return &ReportHandler{service: service, maxPage: maxPageSize}
}

// ReportMessage handles POST /api/v1/forums/posts/:id/report
// @Summary 메시지 신고
// @Tags reports
// @Accept json
// @Param id path int true "메시지 ID"
// @Param request body domain.ReportRequest true "신고 사유"
// @Success 201 {object} common.APIResponse{data=domain.Report}
// @Failure 409 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/posts/{id}/report [post]
func (h *ReportHandler) ReportMessage(c *gin.Context) {
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req domain.ReportRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.service.ReportMessage(c.Request.Context(), middleware.GetActor(c), messageID, req.Comment)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Created(c, report)
}

// ListReports handles GET /api/v1/forums/reports
// @Summary 신고 목록 (운영자)
// @Tags reports
// @Produce json
// @Param status query string false "상태 필터 (open, closed)"
// @Param page query int false "페이지 번호"
// @Param limit query int false "페이지당 항목 수"
// @Success 200 {object} common.APIResponse{data=[]domain.Report}
// @Failure 403 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/reports [get]
func (h *ReportHandler) ListReports(c *gin.Context) {
	page, limit := pageQuery(c, service.DefaultUnreadLimit, h.maxPage)
	reports, total, err := h.service.GetReports(c.Request.Context(), middleware.GetActor(c), c.Query("status"), page, limit)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.SuccessWithMeta(c, reports, common.NewMeta(page, limit, total))
}

// CountReports handles GET /api/v1/forums/reports/count
// @Summary 상태별 신고 수 (운영자)
// @Tags reports
// @Success 200 {object} common.APIResponse{data=domain.ReportCount}
// @Security BearerAuth
// @Router /forums/reports/count [get]
func (h *ReportHandler) CountReports(c *gin.Context) {
	count, err := h.service.GetReportsCount(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, count)
}

// GetReport handles GET /api/v1/forums/reports/:id
// @Summary 신고 상세 (운영자)
// @Tags reports
// @Param id path int true "신고 ID"
// @Success 200 {object} common.APIResponse{data=domain.Report}
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/reports/{id} [get]
func (h *ReportHandler) GetReport(c *gin.Context) {
	reportID, ok := paramID(c, "id")
	if !ok {
		return
	}
	report, err := h.service.GetReportByID(c.Request.Context(), middleware.GetActor(c), reportID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, report)
}

// CloseReport handles PUT /api/v1/forums/reports/:id/close
// @Summary 신고 처리 완료 (운영자)
// @Tags reports
// @Param id path int true "신고 ID"
// @Success 200 {object} common.APIResponse{data=domain.Report}
// @Failure 409 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/reports/{id}/close [put]
func (h *ReportHandler) CloseReport(c *gin.Context) {
	reportID, ok := paramID(c, "id")
	if !ok {
		return
	}
	report, err := h.service.CloseReport(c.Request.Context(), middleware.GetActor(c), reportID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, report)
}
