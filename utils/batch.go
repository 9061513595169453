package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// BatchEntry is one URL read from a batch file
type BatchEntry struct {
	URL string
	// Line is the 1-based row or line number the URL was found on
	Line int
}

// ReadURLList reads media URLs from an .xlsx workbook or a plain text file
func ReadURLList(path string) ([]BatchEntry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbookURLs(path)
	default:
		return readTextURLs(path)
	}
}

// readWorkbookURLs takes the first sheet. The column headed "url" is used
// when present, otherwise the first column holding an http(s) value.
func readWorkbookURLs(path string) ([]BatchEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheetName)
	}

	column, start := findURLColumn(rows)
	if column < 0 {
		return nil, fmt.Errorf("no URL column found in sheet %s", sheetName)
	}

	var entries []BatchEntry
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if len(row) <= column {
			continue
		}
		value := strings.TrimSpace(row[column])
		if value == "" {
			continue
		}
		entries = append(entries, BatchEntry{URL: value, Line: i + 1})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no URLs found in sheet %s", sheetName)
	}
	return entries, nil
}

// findURLColumn returns the URL column index and the first data row
func findURLColumn(rows [][]string) (column, start int) {
	for i, header := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(header), "url") {
			return i, 1
		}
	}

	for _, row := range rows {
		for i, cell := range row {
			if IsWebURL(cell) {
				return i, 0
			}
		}
	}
	return -1, 0
}

func readTextURLs(path string) ([]BatchEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer file.Close()

	var entries []BatchEntry
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		value := strings.TrimSpace(scanner.Text())
		if value == "" || strings.HasPrefix(value, "#") {
			continue
		}
		entries = append(entries, BatchEntry{URL: value, Line: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no URLs found in %s", path)
	}
	return entries, nil
}
