// Package envelope splits a raw EDGAR filing archive into its SEC-HEADER
// metadata and constituent sub-documents, classifying and decoding each
// one (including uuencoded binaries) and content-addressing it by SHA-1.
package envelope

import (
	"crypto/sha1" //nolint:gosec // content-addressing key, not a security boundary
	"encoding/hex"
	"mime"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	documentStartTag = "<DOCUMENT>"
	documentEndTag   = "</DOCUMENT>"
)

// Header is the parsed <SEC-HEADER>/<IMS-HEADER> metadata block.
type Header struct {
	AccessionNumber    string
	FormType           string
	DocumentCount      int
	ReportingPeriod    *time.Time
	DateFiled          *time.Time
	CompanyName        string
	CIK                string
	SIC                string
	IRSNumber          string
	StateIncorporation string
	StateLocation      string
}

// Document is one <DOCUMENT>...</DOCUMENT> block within a filing.
type Document struct {
	Type        string
	Sequence    string
	FileName    string
	Description string
	ContentType string
	SHA1        string
	Content     []byte
	StartPos    int
	EndPos      int
}

// Filing is the result of splitting one archive into header and documents.
type Filing struct {
	Header    Header
	Documents []Document
}

var (
	typeRe        = regexp.MustCompile(`(?m)<TYPE>(.+)`)
	sequenceRe    = regexp.MustCompile(`(?m)<SEQUENCE>(.+)`)
	fileNameRe    = regexp.MustCompile(`(?m)<FILENAME>(.+)`)
	descriptionRe = regexp.MustCompile(`(?m)<DESCRIPTION>(.+)`)
)

// DecodeFiling decodes a raw filing buffer to text, trying UTF-8 first and
// falling back to ISO-8859-1 then ISO-8859-5. Returns false if none apply.
func DecodeFiling(raw []byte) (string, bool) {
	if isValidUTF8(raw) {
		return string(raw), true
	}
	if text, err := charmap.ISO8859_1.NewDecoder().String(string(raw)); err == nil {
		return text, true
	}
	if text, err := charmap.ISO8859_5.NewDecoder().String(string(raw)); err == nil {
		return text, true
	}
	return "", false
}

func isValidUTF8(raw []byte) bool {
	return utf8.Valid(raw)
}

// ParseFiling decodes raw (see DecodeFiling) and splits it into its header
// and documents. It does not render plain text; callers pass a document's
// Content to the textrender package for that.
func ParseFiling(raw []byte) Filing {
	text, ok := DecodeFiling(raw)
	if !ok {
		return Filing{}
	}
	return ParseFilingText(text)
}

// ParseFilingText is the pure, already-decoded counterpart of ParseFiling.
func ParseFilingText(buffer string) Filing {
	filing := Filing{}

	if header, ok := extractHeader(buffer); ok {
		filing.Header = header
	}

	p0 := strings.Index(buffer, documentStartTag)
	for p0 != -1 {
		p1 := strings.Index(buffer[p0:], documentEndTag)
		if p1 == -1 {
			break
		}
		p1 += p0 + len(documentEndTag)

		doc := parseDocument(buffer[p0:p1])
		doc.StartPos = p0
		doc.EndPos = p1
		filing.Documents = append(filing.Documents, doc)

		next := strings.Index(buffer[p1:], documentStartTag)
		if next == -1 {
			break
		}
		p0 = p1 + next
	}

	return filing
}

func extractHeader(buffer string) (Header, bool) {
	var p0, p1 int
	switch {
	case strings.Contains(buffer, "<SEC-HEADER>"):
		p0 = strings.Index(buffer, "<SEC-HEADER>")
		p1 = strings.Index(buffer, "</SEC-HEADER>")
	case strings.Contains(buffer, "<IMS-HEADER>"):
		p0 = strings.Index(buffer, "<IMS-HEADER>")
		p1 = strings.Index(buffer, "</IMS-HEADER>")
	default:
		return Header{}, false
	}
	if p0 == -1 || p1 == -1 {
		return Header{}, false
	}

	openTagLen := len("<SEC-HEADER>")
	block := buffer[p0+openTagLen : p1]

	h := Header{
		AccessionNumber:    extractField(block, "ACCESSION NUMBER"),
		FormType:           extractField(block, "CONFORMED SUBMISSION TYPE"),
		CompanyName:        extractField(block, "COMPANY CONFORMED NAME"),
		CIK:                extractField(block, "CENTRAL INDEX KEY"),
		SIC:                extractField(block, "STANDARD INDUSTRIAL CLASSIFICATION"),
		IRSNumber:          extractField(block, "IRS NUMBER"),
		StateIncorporation: extractField(block, "STATE OF INCORPORATION"),
		StateLocation:      extractField(block, "STATE"),
	}

	if count, err := strconv.Atoi(extractField(block, "PUBLIC DOCUMENT COUNT")); err == nil {
		h.DocumentCount = count
	}
	if t, ok := parseFilingDate(extractField(block, "CONFORMED PERIOD OF REPORT")); ok {
		h.ReportingPeriod = &t
	}
	if t, ok := parseFilingDate(extractField(block, "FILED AS OF DATE")); ok {
		h.DateFiled = &t
	}

	return h, true
}

// extractField implements the reference "FIELD:" label lookup: find the
// labeled prefix, return the text up to the next newline, trimmed.
func extractField(buffer, field string) string {
	label := field + ":"
	p0 := strings.Index(buffer, label)
	if p0 == -1 {
		return ""
	}
	p0 += len(label)
	p1 := strings.Index(buffer[p0:], "\n")
	if p1 == -1 {
		return strings.TrimSpace(buffer[p0:])
	}
	return strings.TrimSpace(buffer[p0 : p0+p1])
}

func parseFilingDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseDocument parses one <DOCUMENT>...</DOCUMENT> segment into its
// metadata fields, content-type classification, decoded content and SHA-1.
func parseDocument(buffer string) Document {
	doc := Document{
		Type:        firstMatch(typeRe, buffer),
		Sequence:    firstMatch(sequenceRe, buffer),
		FileName:    firstMatch(fileNameRe, buffer),
		Description: firstMatch(descriptionRe, buffer),
	}

	_, startTag, endTag, ok := contentBracket(buffer)
	if !ok {
		return doc
	}

	contentStart := strings.Index(buffer, startTag)
	if contentStart == -1 {
		return doc
	}
	contentStart += len(startTag)
	contentEnd := strings.Index(buffer, endTag)
	if contentEnd == -1 || contentEnd < contentStart {
		return doc
	}

	rawContent := buffer[contentStart:contentEnd]
	contentType, uuencoded := classifyContent(rawContent, doc.FileName)
	doc.ContentType = contentType

	content := []byte(rawContent)
	if uuencoded {
		content = uuDecode(content)
	}

	sum := sha1.Sum(content) //nolint:gosec
	doc.SHA1 = hex.EncodeToString(sum[:])
	doc.Content = content

	return doc
}

// contentBracket locates the second-to-last closing tag in buffer (the
// last is the enclosing </DOCUMENT>) and returns its tag name, matching
// the reference parser's "last opening tag before the close tag" heuristic.
func contentBracket(buffer string) (tagName, startTag, endTag string, ok bool) {
	lastClose := strings.LastIndex(buffer, "</")
	if lastClose < 0 {
		return "", "", "", false
	}
	secondLastClose := strings.LastIndex(buffer[:lastClose], "</")
	if secondLastClose < 0 {
		return "", "", "", false
	}
	closeTagEnd := strings.Index(buffer[secondLastClose:], ">")
	if closeTagEnd < 0 {
		return "", "", "", false
	}
	closeTagEnd += secondLastClose

	tagName = buffer[secondLastClose+2 : closeTagEnd]
	return tagName, "<" + tagName + ">", "</" + tagName + ">", true
}

func firstMatch(re *regexp.Regexp, buffer string) string {
	m := re.FindStringSubmatch(buffer)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// classifyContent implements the first-100-byte content-type table,
// reporting whether the content is uuencoded and must be decoded before
// use.
func classifyContent(content, fileName string) (contentType string, uuencoded bool) {
	head := content
	if len(head) > 100 {
		head = head[:100]
	}
	headUpper := strings.ToUpper(head)

	switch {
	case strings.Contains(headUpper, "<PDF>"):
		return "application/pdf", true
	case strings.Contains(headUpper, "<HTML"):
		return "text/html", false
	case strings.Contains(headUpper, "<XML"), strings.Contains(headUpper, "<?XML"):
		return "application/xml", false
	case strings.HasPrefix(head, "\nbegin "):
		if fileName != "" {
			if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
				return ct, true
			}
		}
		return "application/octet-stream", true
	default:
		return "text/plain", false
	}
}
