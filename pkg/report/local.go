package report

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName = "Report"
	xlsxType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// LocalAssembler キャッシュ済みの状態だけから表計算ブックを作る（通信しない）
type LocalAssembler struct {
	now func() time.Time
}

// NewLocalAssembler 新しいLocalAssemblerを作成
func NewLocalAssembler() *LocalAssembler {
	return &LocalAssembler{now: time.Now}
}

// Assemble レポートブックを作成
func (a *LocalAssembler) Assemble(_ context.Context, in Input) (*Document, error) {
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = a.now()
	}
	sections, err := BuildSections(in)
	if err != nil {
		return nil, err
	}

	body, err := writeWorkbook(sections)
	if err != nil {
		return nil, err
	}
	return &Document{
		FileName:    FileName(in.Input.CropType, in.GeneratedAt, "xlsx"),
		ContentType: xlsxType,
		Body:        body,
		Sections:    sections,
	}, nil
}

func writeWorkbook(sections []Section) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("failed to name report sheet: %w", err)
	}

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16, Color: "2E7D32"}})
	if err != nil {
		return nil, fmt.Errorf("failed to create title style: %w", err)
	}
	headingStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E8F5E9"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create heading style: %w", err)
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create label style: %w", err)
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return nil, fmt.Errorf("failed to create text style: %w", err)
	}

	row := 1
	for i, section := range sections {
		style := headingStyle
		if i == 0 {
			style = titleStyle
		}
		if err := setRow(f, row, section.Title, "", style); err != nil {
			return nil, err
		}
		row++

		for _, r := range section.Rows {
			if err := setRow(f, row, r.Label, r.Value, labelStyle); err != nil {
				return nil, err
			}
			if err := f.SetCellStyle(sheetName, cell("B", row), cell("B", row), wrapStyle); err != nil {
				return nil, fmt.Errorf("failed to style report row: %w", err)
			}
			row++
		}
		for n, item := range section.Items {
			if err := setRow(f, row, fmt.Sprintf("%d.", n+1), item, labelStyle); err != nil {
				return nil, err
			}
			row++
		}
		row++
	}

	if err := f.SetColWidth(sheetName, "A", "A", 22); err != nil {
		return nil, fmt.Errorf("failed to size report columns: %w", err)
	}
	if err := f.SetColWidth(sheetName, "B", "B", 70); err != nil {
		return nil, fmt.Errorf("failed to size report columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write report workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, row int, label, value string, labelStyle int) error {
	if err := f.SetCellValue(sheetName, cell("A", row), label); err != nil {
		return fmt.Errorf("failed to write report row: %w", err)
	}
	if value != "" {
		if err := f.SetCellValue(sheetName, cell("B", row), value); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}
	if err := f.SetCellStyle(sheetName, cell("A", row), cell("A", row), labelStyle); err != nil {
		return fmt.Errorf("failed to style report row: %w", err)
	}
	return nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
