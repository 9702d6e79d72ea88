package envelope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFiling = `<SEC-HEADER>0000123456-94-000001.hdr.sgml : 19940815
ACCESSION NUMBER:		0000123456-94-000001
CONFORMED SUBMISSION TYPE:	10-K
PUBLIC DOCUMENT COUNT:		2
CONFORMED PERIOD OF REPORT:	19940630
FILED AS OF DATE:		19940815
COMPANY CONFORMED NAME:	ACME CORP
CENTRAL INDEX KEY:		0001234567
STANDARD INDUSTRIAL CLASSIFICATION:	3600
IRS NUMBER:			123456789
STATE OF INCORPORATION:	DE
STATE:				NY
</SEC-HEADER>
<DOCUMENT>
<TYPE>10-K
<SEQUENCE>1
<FILENAME>0000123456-94-000001.txt
<DESCRIPTION>ANNUAL REPORT
<TEXT>
<HTML>
<body>hello filing</body>
</HTML>
</TEXT>
</DOCUMENT>
<DOCUMENT>
<TYPE>EX-27
<SEQUENCE>2
<FILENAME>financial-data.txt
<TEXT>
plain exhibit text
</TEXT>
</DOCUMENT>
`

func TestParseFilingText_Header(t *testing.T) {
	filing := ParseFilingText(sampleFiling)
	h := filing.Header

	assert.Equal(t, "0000123456-94-000001", h.AccessionNumber)
	assert.Equal(t, "10-K", h.FormType)
	assert.Equal(t, 2, h.DocumentCount)
	assert.Equal(t, "ACME CORP", h.CompanyName)
	assert.Equal(t, "0001234567", h.CIK)
	assert.Equal(t, "DE", h.StateIncorporation)
	assert.Equal(t, "NY", h.StateLocation)
	require.NotNil(t, h.DateFiled)
	assert.Equal(t, "1994-08-15", h.DateFiled.Format("2006-01-02"))
	require.NotNil(t, h.ReportingPeriod)
	assert.Equal(t, "1994-06-30", h.ReportingPeriod.Format("2006-01-02"))
}

func TestParseFilingText_Documents(t *testing.T) {
	filing := ParseFilingText(sampleFiling)
	require.Len(t, filing.Documents, 2)

	first := filing.Documents[0]
	assert.Equal(t, "10-K", first.Type)
	assert.Equal(t, "1", first.Sequence)
	assert.Equal(t, "0000123456-94-000001.txt", first.FileName)
	assert.Equal(t, "ANNUAL REPORT", first.Description)
	assert.Equal(t, "text/html", first.ContentType)
	assert.Contains(t, string(first.Content), "hello filing")
	assert.Len(t, first.SHA1, 40)
	assert.Greater(t, first.EndPos, first.StartPos)

	second := filing.Documents[1]
	assert.Equal(t, "EX-27", second.Type)
	assert.Equal(t, "text/plain", second.ContentType)
	assert.Contains(t, string(second.Content), "plain exhibit text")
}

func TestParseFilingText_UUencodedDocument(t *testing.T) {
	payload := []byte("this is a binary exhibit payload, repeated a bit to span lines")
	encoded := uuEncode(payload, "exhibit.bin")

	var buf strings.Builder
	buf.WriteString("<DOCUMENT>\n<TYPE>EX-99\n<SEQUENCE>3\n<FILENAME>exhibit.bin\n<TEXT>\n")
	buf.Write(encoded)
	buf.WriteString("</TEXT>\n</DOCUMENT>\n")

	filing := ParseFilingText(buf.String())
	require.Len(t, filing.Documents, 1)
	doc := filing.Documents[0]
	assert.Equal(t, payload, doc.Content)
}

func TestUUEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("The quick brown fox jumps over the lazy dog 0123456789!@#$%^&*()")
	encoded := uuEncode(payload, "fox.txt")
	decoded := uuDecode(encoded)
	assert.Equal(t, payload, decoded)
}

func TestUUEncodeDecodeRoundTrip_Empty(t *testing.T) {
	encoded := uuEncode(nil, "empty.txt")
	decoded := uuDecode(encoded)
	assert.Empty(t, decoded)
}

func TestExtractField_MissingField(t *testing.T) {
	assert.Equal(t, "", extractField("no labels here", "ACCESSION NUMBER"))
}

func TestClassifyContent_PDF(t *testing.T) {
	ct, uuencoded := classifyContent("<PDF>\n%PDF-1.4 binary garbage", "")
	assert.Equal(t, "application/pdf", ct)
	assert.True(t, uuencoded)
}

func TestClassifyContent_UUencodedByPreamble(t *testing.T) {
	ct, uuencoded := classifyContent("\nbegin 644 report.pdf\n", "report.pdf")
	assert.True(t, uuencoded)
	assert.NotEmpty(t, ct)
}

func TestDecodeFiling_UTF8(t *testing.T) {
	text, ok := DecodeFiling([]byte("plain ascii text"))
	require.True(t, ok)
	assert.Equal(t, "plain ascii text", text)
}
