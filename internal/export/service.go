package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doccapture/internal/entity"
)

// HistorySource is the slice of the store this service needs.
type HistorySource interface {
	GetHistory() []entity.ScanHistoryItem
}

// Service is a tiny façade over the store that produces XLSX bytes for
// scan-history exports.
type Service struct {
	history HistorySource
	logger  *slog.Logger
}

func NewService(history HistorySource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{history: history, logger: logger}
}

// ExportHistoryXLSX returns an XLSX workbook (as bytes) with one row per
// scan history entry, most recent first.
func (s *Service) ExportHistoryXLSX() ([]byte, error) {
	start := time.Now()
	items := s.history.GetHistory()

	f := excelize.NewFile()
	const sheet = "Scan History"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defIdx, _ := f.GetSheetIndex("Sheet1"); defIdx != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Server ID",
		"Local ID",
		"Status",
		"Confidence",
		"Created",
		"Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, item := range items {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, item.ID)
		write(2, item.LocalID)
		write(3, string(item.Status))
		if item.ConfidenceScore != nil {
			write(4, *item.ConfidenceScore)
		} else {
			write(4, "")
		}
		write(5, item.CreatedAt.Format("2006-01-02 15:04:05"))
		write(6, item.Error)
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("export.history.ok", "rows", len(items), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}
