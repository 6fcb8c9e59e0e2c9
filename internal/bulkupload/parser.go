package bulkupload

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/xuri/excelize/v2"
)

// Format is an accepted upload encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the format from the filename extension, falling back
// to the content type.
func DetectFormat(filename, contentType string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".xlsx":
		return FormatXLSX, nil
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "csv"):
		return FormatCSV, nil
	case strings.Contains(ct, "json"):
		return FormatJSON, nil
	case strings.Contains(ct, "spreadsheetml"), strings.Contains(ct, "excel"):
		return FormatXLSX, nil
	}
	return "", apperr.Newf(apperr.KindValidation, "DetectFormat",
		"unsupported upload type %q: use CSV, JSON or XLSX", contentType)
}

// Parse decodes r according to format.
func Parse(format Format, r io.Reader) ([]RawRecord, error) {
	var (
		recs []RawRecord
		err  error
	)
	switch format {
	case FormatCSV:
		recs, err = ParseCSV(r)
	case FormatJSON:
		recs, err = ParseJSON(r)
	case FormatXLSX:
		recs, err = ParseXLSX(r)
	default:
		return nil, apperr.Newf(apperr.KindValidation, "Parse", "unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperr.New(apperr.KindValidation, "Parse", "upload contains no records")
	}
	return recs, nil
}

// ParseCSV reads a header row followed by data rows. Blank lines are skipped.
func ParseCSV(r io.Reader) ([]RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "ParseCSV", "unreadable CSV", err)
	}
	return fromTable(rows), nil
}

// ParseXLSX reads the first sheet of a workbook with the same layout as CSV.
func ParseXLSX(r io.Reader) ([]RawRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "ParseXLSX", "unreadable spreadsheet", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, apperr.New(apperr.KindValidation, "ParseXLSX", "spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "ParseXLSX", "reading sheet "+sheet, err)
	}
	return fromTable(rows), nil
}

// ParseJSON reads a top-level array of objects. Numbers keep their literal
// text so amounts are not rounded through float64.
func ParseJSON(r io.Reader) ([]RawRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, apperr.New(apperr.KindValidation, "ParseJSON", "JSON upload must be an array of objects")
		}
		return nil, apperr.Wrap(apperr.KindValidation, "ParseJSON", "unreadable JSON", err)
	}

	recs := make([]RawRecord, 0, len(items))
	for i, item := range items {
		fields := make(map[string]string, len(item))
		for k, v := range item {
			fields[normalizeHeader(k)] = jsonScalar(v)
		}
		recs = append(recs, RawRecord{Row: i + 1, Fields: fields})
	}
	return recs, nil
}

func fromTable(rows [][]string) []RawRecord {
	if len(rows) == 0 {
		return nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = normalizeHeader(h)
	}

	var recs []RawRecord
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		fields := make(map[string]string, len(header))
		for j, name := range header {
			if name == "" || j >= len(row) {
				continue
			}
			fields[name] = row[j]
		}
		recs = append(recs, RawRecord{Row: i + 1, Fields: fields})
	}
	return recs
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func jsonScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		var buf bytes.Buffer
		_ = json.NewEncoder(&buf).Encode(val)
		return strings.TrimSpace(buf.String())
	}
}
