package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"groupsync/backend/internal/dto"
	"groupsync/backend/internal/service"
	"groupsync/backend/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportWindows 导出群组某日的空闲窗口
// GET /api/v1/groups/:id/availability/export?date=2025-03-10&tz_offset_minutes=480
func (h *ExportHandler) ExportWindows(c *gin.Context) {
	groupID, ok := MustGetGroupID(c)
	if !ok {
		return
	}
	var q dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	day, ok := MustResolveDay(c, q.Date, q.TZOffsetMinutes)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportWindows(c.Request.Context(), groupID, day, q.TZOffsetMinutes)
	if err != nil {
		c.Error(err)
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoWindows):
		response.NotFound(c, 22001, "该日期暂无群组空闲窗口")
	default:
		response.InternalError(c)
	}
}
