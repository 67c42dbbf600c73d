package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"groupsync/backend/internal/model"
	"groupsync/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoWindows    = errors.New("该日期暂无群组空闲窗口")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出内容为已存储的窗口，不触发重算；以 bytes.Buffer 返回，
// 由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportWindows 导出 (群组, 日期) 的空闲窗口为 Excel；时间按 tzOffsetMinutes 对应的当地时间呈现
	ExportWindows(ctx context.Context, groupID string, day time.Time, tzOffsetMinutes int) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportWindows — 导出空闲窗口为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式（单个 Sheet "空闲时间"）：
//   | 序号 | 开始 | 结束 | 时长(分钟) | 人数 | 参与者 |
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportWindows(ctx context.Context, groupID string, day time.Time, tzOffsetMinutes int) (*bytes.Buffer, string, error) {
	var windows []model.AvailabilityWindow
	err := s.repo.ReadOnly(ctx, func(txRepo *repository.Repository) error {
		var err error
		windows, err = txRepo.Availability.ListByGroupAndDay(ctx, groupID, day.UTC())
		return err
	})
	if err != nil {
		s.logger.Error("查询群组空闲窗口失败", zap.String("group_id", groupID), zap.Error(err))
		return nil, "", err
	}
	if len(windows) == 0 {
		return nil, "", ErrExportNoWindows
	}

	loc := time.FixedZone(tzLabel(tzOffsetMinutes), tzOffsetMinutes*60)
	localDay := day.In(loc).Format("2006-01-02")

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "空闲时间"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 8)
	f.SetColWidth(sheetName, "B", "C", 10)
	f.SetColWidth(sheetName, "D", "E", 12)
	f.SetColWidth(sheetName, "F", "F", 48)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s 群组空闲时间 (%s)", localDay, loc.String()))
	f.MergeCell(sheetName, "A1", "F1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	headers := []string{"序号", "开始", "结束", "时长(分钟)", "人数", "参与者"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", "F2", headerStyle)

	// 数据行
	row := 3
	for i, w := range windows {
		names := make([]string, 0, len(w.Participants))
		for _, p := range w.Participants {
			if p.User != nil && p.User.Name != "" {
				names = append(names, p.User.Name)
			} else {
				names = append(names, p.UserID)
			}
		}
		f.SetCellValue(sheetName, cell("A", row), i+1)
		f.SetCellValue(sheetName, cell("B", row), w.StartTime.In(loc).Format("15:04"))
		f.SetCellValue(sheetName, cell("C", row), w.EndTime.In(loc).Format("15:04"))
		f.SetCellValue(sheetName, cell("D", row), int(w.EndTime.Sub(w.StartTime).Round(time.Minute)/time.Minute))
		f.SetCellValue(sheetName, cell("E", row), len(names))
		f.SetCellValue(sheetName, cell("F", row), strings.Join(names, "、"))
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("空闲时间_%s.xlsx", localDay)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// tzLabel 生成 "UTC+08:00" 形式的时区名
func tzLabel(offsetMinutes int) string {
	sign := "+"
	if offsetMinutes < 0 {
		sign = "-"
		offsetMinutes = -offsetMinutes
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, offsetMinutes/60, offsetMinutes%60)
}
