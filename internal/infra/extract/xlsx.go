package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XlsxText renders every sheet of a workbook as tab-separated rows, sheets
// separated by a blank line.
func XlsxText(data []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer wb.Close()

	var sheets []string
	for _, name := range wb.GetSheetList() {
		rows, err := wb.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", name, err)
		}
		var b strings.Builder
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
		sheets = append(sheets, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(sheets, "\n\n"), nil
}
