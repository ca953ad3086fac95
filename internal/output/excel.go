// internal/output/excel.go
package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// DefaultSheetName is the movies sheet of an exported workbook
const DefaultSheetName = "Movies"

// TheatersSheetName is the per-theater summary sheet
const TheatersSheetName = "Theaters"

// DefaultExcelMaxCellLength is the maximum characters in a single Excel cell
const DefaultExcelMaxCellLength = 32767

// ExcelWriter writes a workbook with a movies sheet and a per-theater
// summary sheet
type ExcelWriter struct {
	SheetName string
}

// Write renders the workbook and streams it to w
func (e ExcelWriter) Write(w io.Writer, catalog *types.TheaterCatalog) error {
	sheet := e.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName(file.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	var movies []types.MovieRecord
	if catalog != nil {
		movies = catalog.Movies
	}

	rows := make([][]string, 0, len(movies))
	for _, m := range movies {
		rows = append(rows, movieRow(m, ", "))
	}
	if err := writeSheet(file, sheet, movieColumns, rows, headerStyle); err != nil {
		return err
	}

	if _, err := file.NewSheet(TheatersSheetName); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeSheet(file, TheatersSheetName, []string{"theater", "movies", "showtimes"}, theaterRows(movies), headerStyle); err != nil {
		return err
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(file *excelize.File, sheet string, headers []string, rows [][]string, headerStyle int) error {
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := file.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = truncateCell(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := file.SetColWidth(sheet, "A", lastCol, 20); err != nil {
		return err
	}
	if err := file.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, len(rows)+1), nil); err != nil {
		return err
	}
	return file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func theaterRows(movies []types.MovieRecord) [][]string {
	type counts struct{ movies, showtimes int }
	byTheater := make(map[string]*counts)
	for _, m := range movies {
		c, ok := byTheater[m.Theater]
		if !ok {
			c = &counts{}
			byTheater[m.Theater] = c
		}
		c.movies++
		c.showtimes += len(m.Showtimes)
	}

	names := make([]string, 0, len(byTheater))
	for name := range byTheater {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		c := byTheater[name]
		rows = append(rows, []string{name, fmt.Sprintf("%d", c.movies), fmt.Sprintf("%d", c.showtimes)})
	}
	return rows
}

func truncateCell(v string) string {
	r := []rune(v)
	if len(r) > DefaultExcelMaxCellLength {
		return string(r[:DefaultExcelMaxCellLength])
	}
	return v
}
