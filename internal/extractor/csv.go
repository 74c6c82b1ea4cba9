package extractor

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// extractCSV converts tabular data into a readable textual summary: headers,
// row and column counts, up to ten sample rows, and min/mean/max statistics
// for columns that are fully numeric.
func extractCSV(content []byte) (string, error) {
	reader := csv.NewReader(strings.NewReader(decodeText(content)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	headers := records[0]
	rows := records[1:]

	var parts []string
	parts = append(parts, "Column Headers: "+strings.Join(headers, ", "))
	parts = append(parts, "")
	parts = append(parts, fmt.Sprintf("Total Rows: %d", len(rows)))
	parts = append(parts, fmt.Sprintf("Total Columns: %d", len(headers)))
	parts = append(parts, "")

	sampleSize := len(rows)
	if sampleSize > 10 {
		sampleSize = 10
	}
	parts = append(parts, fmt.Sprintf("Sample Data (first %d rows):", sampleSize))
	for i := 0; i < sampleSize; i++ {
		var values []string
		for j, header := range headers {
			if j < len(rows[i]) && strings.TrimSpace(rows[i][j]) != "" {
				values = append(values, fmt.Sprintf("%s: %s", header, rows[i][j]))
			}
		}
		parts = append(parts, fmt.Sprintf("Row %d: %s", i+1, strings.Join(values, ", ")))
	}

	stats := numericStats(headers, rows)
	if len(stats) > 0 {
		parts = append(parts, "")
		parts = append(parts, "Numeric Column Statistics:")
		parts = append(parts, stats...)
	}

	return strings.Join(parts, "\n"), nil
}

// numericStats returns one formatted line per column whose non-empty values
// all parse as numbers.
func numericStats(headers []string, rows [][]string) []string {
	var lines []string
	for col, header := range headers {
		var (
			sum, min, max float64
			count         int
			numeric       = true
		)
		for _, row := range rows {
			if col >= len(row) || strings.TrimSpace(row[col]) == "" {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			if err != nil {
				numeric = false
				break
			}
			if count == 0 || v < min {
				min = v
			}
			if count == 0 || v > max {
				max = v
			}
			sum += v
			count++
		}
		if !numeric || count == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: Mean=%.2f, Min=%.2f, Max=%.2f",
			header, sum/float64(count), min, max))
	}
	return lines
}
