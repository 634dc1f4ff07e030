package snapshot

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"docwatch/internal/models"
)

// MaxFileSize caps a single uploaded snapshot.
const MaxFileSize = 100 * 1024 * 1024 // 100MB

// ErrEmptySnapshot is returned when a file has no header row.
var ErrEmptySnapshot = errors.New("snapshot has no header row")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadCSV reads a snapshot from a CSV file. The table name defaults to the
// file name without extension.
func LoadCSV(path string) (models.TableSnapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return models.TableSnapshot{}, err
	}
	defer file.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	snap, err := ParseCSV(file, name)
	if err != nil {
		return models.TableSnapshot{}, fmt.Errorf("parse %s: %w", path, err)
	}
	snap.Source = path
	return snap, nil
}

// ParseCSV reads a snapshot from CSV. The first record is the header.
// Quotes are lenient, rows may have any number of fields, and files that
// use ';' as separator are detected from the header.
func ParseCSV(r io.Reader, name string) (models.TableSnapshot, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return models.TableSnapshot{}, err
	}
	if len(data) > MaxFileSize {
		return models.TableSnapshot{}, fmt.Errorf("snapshot larger than %d bytes", MaxFileSize)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	headers, rows, err := readRecords(data, ',')
	if err != nil || (len(headers) == 1 && strings.Contains(headers[0], ";")) {
		// Try with semicolon separator
		headers, rows, err = readRecords(data, ';')
	}
	if err != nil {
		return models.TableSnapshot{}, err
	}

	return models.TableSnapshot{
		Name:    name,
		Columns: headers,
		Rows:    rows,
	}, nil
}

func readRecords(data []byte, comma rune) ([]string, [][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1 // Allow variable fields
	reader.LazyQuotes = true    // Allow bare quotes in non-quoted fields
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmptySnapshot
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read headers: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	rows := [][]string{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Try to continue on malformed rows
			continue
		}
		rows = append(rows, record)
	}
	// Spreadsheet exports often pad the end with empty rows.
	for len(rows) > 0 && blank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return headers, rows, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// FromGrid builds a snapshot from a header row followed by data rows, the
// shape spreadsheet exports use in JSON payloads.
func FromGrid(name string, grid [][]string) (models.TableSnapshot, error) {
	if len(grid) == 0 {
		return models.TableSnapshot{}, ErrEmptySnapshot
	}
	headers := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}
	rows := make([][]string, 0, len(grid)-1)
	for _, row := range grid[1:] {
		rows = append(rows, append([]string{}, row...))
	}
	return models.TableSnapshot{Name: name, Columns: headers, Rows: rows}, nil
}
