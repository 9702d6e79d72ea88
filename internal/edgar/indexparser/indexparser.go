// Package indexparser decodes EDGAR's fixed-width "form.idx" directory
// files into a tabular projection. It is a pure function over bytes: no
// network or storage side effects, so the invariants of SPEC_FULL.md §8 are
// directly testable against fixtures.
package indexparser

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Row is one parsed line of a form.idx file.
type Row struct {
	FormType    string
	CIK         int64
	CompanyName string
	DateFiled   string
	FileName    string
}

// ParseIndexFile resolves path (trying path+".gz" on a missing file),
// decompresses it through the gzip/zlib/double-gzip fallback chain, and
// parses the fixed-width table it contains. It never returns an error: any
// unrecoverable failure yields an empty slice, matching §4.3.
func ParseIndexFile(path string, doubleGz bool) []Row {
	log := zap.L().With(zap.String("component", "edgar.indexparser"), zap.String("path", path))

	raw, err := readFile(path)
	if err != nil {
		log.Warn("index file unreadable", zap.Error(err))
		return nil
	}

	text, err := decodeBuffer(raw, doubleGz)
	if err != nil {
		log.Warn("index buffer undecodable", zap.Error(err))
		return nil
	}

	rows, err := parseFixedWidth(text)
	if err != nil {
		log.Warn("index buffer unparseable", zap.Error(err))
		return nil
	}
	return rows
}

// ParseIndexBuffer is the byte-in, record-out core used by both
// ParseIndexFile and tests: it skips the filesystem entirely.
func ParseIndexBuffer(raw []byte, doubleGz bool) []Row {
	text, err := decodeBuffer(raw, doubleGz)
	if err != nil {
		return nil
	}
	rows, err := parseFixedWidth(text)
	if err != nil {
		return nil
	}
	return rows
}

func readFile(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}
	return os.ReadFile(path + ".gz")
}

// decodeBuffer implements the gzip / raw+zlib / double-gzip fallback chain
// of §4.3 step 2-3, then decodes the result to a UTF-8 string.
func decodeBuffer(raw []byte, doubleGz bool) (string, error) {
	if doubleGz {
		once, err := gunzip(raw)
		if err == nil {
			twice, err2 := gunzip(once)
			if err2 == nil {
				return string(twice), nil
			}
		}
	}

	if decompressed, err := gunzip(raw); err == nil {
		return string(decompressed), nil
	}

	if looksLikeZlib(raw) {
		if inflated, err := zlibInflate(raw); err == nil {
			return string(inflated), nil
		}
	}

	if utf8Valid(raw) {
		return string(raw), nil
	}

	// Last resort: attempt gzip-wrapped reinterpretation of the raw bytes
	// once more, since some early-era indices are gzip streams missing
	// their magic header prefix after a lossy transfer.
	if decompressed, err := gunzip(append([]byte{0x1f, 0x8b}, raw...)); err == nil {
		return string(decompressed), nil
	}

	return "", errUnrecoverable
}

var errUnrecoverable = &decodeError{"index buffer could not be decoded by any known chain"}

type decodeError struct{ msg string }

func (e *decodeError) Error() string { return e.msg }

func gunzip(raw []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck
	return io.ReadAll(r)
}

func zlibInflate(raw []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck
	return io.ReadAll(r)
}

// looksLikeZlib implements the exact header check from §4.3 step 2:
// buf[0] == 0x78 and (buf[1] + 0x7800) mod 31 == 0.
func looksLikeZlib(buf []byte) bool {
	if len(buf) < 2 {
		return false
	}
	return buf[0] == 0x78 && (int(buf[1])+0x7800)%31 == 0
}

func utf8Valid(raw []byte) bool {
	return utf8.Valid(raw)
}

const canonicalFormTypeHeader = "Form Type"
const malformedFormHeader = "Form"

// parseFixedWidth implements §4.3 steps 4-5.
func parseFixedWidth(text string) ([]Row, error) {
	lines := strings.Split(text, "\n")

	headerIdx := -1
	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\r")
		if strings.HasPrefix(trimmed, canonicalFormTypeHeader) || strings.HasPrefix(trimmed, malformedFormHeader+" ") {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 || headerIdx+2 >= len(lines) {
		return nil, errUnrecoverable
	}

	header := strings.TrimRight(lines[headerIdx], "\r")
	separator := strings.TrimRight(lines[headerIdx+1], "\r")
	if !isSeparatorLine(separator) {
		return nil, errUnrecoverable
	}

	// Normalise the malformed "Form" header variant to "Form Type".
	if strings.HasPrefix(header, malformedFormHeader+" ") && !strings.HasPrefix(header, canonicalFormTypeHeader) {
		header = canonicalFormTypeHeader + header[len(malformedFormHeader):]
	}

	widths := inferColumnWidths(separator)
	colNames := splitFixedWidth(header, widths)

	var rows []Row
	for _, line := range lines[headerIdx+2:] {
		trimmed := strings.TrimRight(line, "\r")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		fields := splitFixedWidth(trimmed, widths)
		row, ok := projectRow(colNames, fields)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func isSeparatorLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	for _, r := range line {
		if r != '-' && r != ' ' {
			return false
		}
	}
	return true
}

// inferColumnWidths returns the [start,end) byte offset of each run of
// dashes in the separator line, preserving the single-space gap convention
// form.idx uses between columns.
func inferColumnWidths(separator string) [][2]int {
	var widths [][2]int
	start := -1
	for i, r := range separator + " " {
		if r == '-' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			widths = append(widths, [2]int{start, i})
			start = -1
		}
	}
	return widths
}

func splitFixedWidth(line string, widths [][2]int) []string {
	fields := make([]string, len(widths))
	for i, w := range widths {
		start, end := w[0], w[1]
		if start > len(line) {
			fields[i] = ""
			continue
		}
		if end > len(line) || i == len(widths)-1 {
			end = len(line)
		}
		fields[i] = strings.TrimSpace(line[start:end])
	}
	return fields
}

// projectRow selects the five canonical columns by name. If the column
// selection fails (header layout not recognised), it falls back to
// positional order {Form Type, Company Name, CIK, Date Filed, File Name}
// matching the canonical form.idx layout, per §4.3 step 5's "log and
// return the unfiltered table" fallback.
func projectRow(colNames, fields []string) (Row, bool) {
	byName := make(map[string]string, len(colNames))
	for i, name := range colNames {
		if i < len(fields) {
			byName[strings.TrimSpace(name)] = fields[i]
		}
	}

	formType, ok1 := byName[canonicalFormTypeHeader]
	companyName, ok2 := byName["Company Name"]
	cikStr, ok3 := byName["CIK"]
	dateFiled, ok4 := byName["Date Filed"]
	fileName, ok5 := byName["File Name"]

	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		if len(fields) < 5 {
			return Row{}, false
		}
		formType, companyName, cikStr, dateFiled, fileName = fields[0], fields[1], fields[2], fields[3], fields[4]
	}

	cik, err := strconv.ParseInt(strings.TrimSpace(cikStr), 10, 64)
	if err != nil {
		return Row{}, false
	}

	return Row{
		FormType:    formType,
		CIK:         cik,
		CompanyName: companyName,
		DateFiled:   dateFiled,
		FileName:    fileName,
	}, true
}
