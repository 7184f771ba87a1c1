package dataprocessing

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// LoadWorkbookGrid opens an XLSX file and returns its first sheet as a cell
// grid. Cells come back untyped as strings, which is what the workbook
// extractor consumes.
func LoadWorkbookGrid(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return firstSheetRows(f)
}

// LoadWorkbookGridFromReader reads an XLSX stream (e.g. a multipart upload)
// and returns its first sheet as a cell grid.
func LoadWorkbookGridFromReader(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return firstSheetRows(f)
}

func firstSheetRows(f *excelize.File) ([][]string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
