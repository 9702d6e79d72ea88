package indexparser

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIndex = "Form Type   Company Name                  CIK         Date Filed  File Name\n" +
	"----------- ----------------------------- ----------- ----------- -----------------------------------\n" +
	"10-K        ACME CORP                     1234567     1994-08-15  edgar/data/1234567/0000001-94-000001.txt\n" +
	"8-K         WIDGET HOLDINGS INC           7654321     1994-08-16  edgar/data/7654321/0000002-94-000002.txt\n"

func TestParseIndexBuffer_PlainText(t *testing.T) {
	rows := ParseIndexBuffer([]byte(sampleIndex), false)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{
		FormType:    "10-K",
		CIK:         1234567,
		CompanyName: "ACME CORP",
		DateFiled:   "1994-08-15",
		FileName:    "edgar/data/1234567/0000001-94-000001.txt",
	}, rows[0])
	assert.Equal(t, int64(7654321), rows[1].CIK)
}

func TestParseIndexBuffer_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(sampleIndex))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	rows := ParseIndexBuffer(buf.Bytes(), false)
	require.Len(t, rows, 2)
	assert.Equal(t, "ACME CORP", rows[0].CompanyName)
}

func TestParseIndexBuffer_Zlib(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte(sampleIndex))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	rows := ParseIndexBuffer(buf.Bytes(), false)
	require.Len(t, rows, 2)
	assert.Equal(t, "WIDGET HOLDINGS INC", rows[1].CompanyName)
}

func TestParseIndexBuffer_DoubleGzip(t *testing.T) {
	var inner bytes.Buffer
	iw := gzip.NewWriter(&inner)
	_, err := iw.Write([]byte(sampleIndex))
	require.NoError(t, err)
	require.NoError(t, iw.Close())

	var outer bytes.Buffer
	ow := gzip.NewWriter(&outer)
	_, err = ow.Write(inner.Bytes())
	require.NoError(t, err)
	require.NoError(t, ow.Close())

	rows := ParseIndexBuffer(outer.Bytes(), true)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1234567), rows[0].CIK)
}

// TestParseIndexBuffer_EncodingsAgree is the round-trip law: decoding the
// same logical table via plain, gzip, or zlib encoding yields an identical
// projection.
func TestParseIndexBuffer_EncodingsAgree(t *testing.T) {
	plain := ParseIndexBuffer([]byte(sampleIndex), false)

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	_, _ = gw.Write([]byte(sampleIndex))
	_ = gw.Close()
	gzipped := ParseIndexBuffer(gzBuf.Bytes(), false)

	var zlBuf bytes.Buffer
	zw := zlib.NewWriter(&zlBuf)
	_, _ = zw.Write([]byte(sampleIndex))
	_ = zw.Close()
	zlibbed := ParseIndexBuffer(zlBuf.Bytes(), false)

	assert.Equal(t, plain, gzipped)
	assert.Equal(t, plain, zlibbed)
}

func TestParseIndexBuffer_MalformedFormHeader(t *testing.T) {
	malformed := "Form        Company Name                  CIK         Date Filed  File Name\n" +
		"----------- ----------------------------- ----------- ----------- -----------------------------------\n" +
		"10-K        ACME CORP                     1234567     1994-08-15  edgar/data/1234567/0000001-94-000001.txt\n"

	rows := ParseIndexBuffer([]byte(malformed), false)
	require.Len(t, rows, 1)
	assert.Equal(t, "10-K", rows[0].FormType)
}

func TestParseIndexBuffer_SkipsBlankLines(t *testing.T) {
	withBlank := sampleIndex + "\n\n"
	rows := ParseIndexBuffer([]byte(withBlank), false)
	assert.Len(t, rows, 2)
}

func TestParseIndexBuffer_Unparseable(t *testing.T) {
	rows := ParseIndexBuffer([]byte("not an index file at all"), false)
	assert.Nil(t, rows)
}

func TestLooksLikeZlib(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write([]byte("x"))
	_ = zw.Close()
	assert.True(t, looksLikeZlib(buf.Bytes()))
	assert.False(t, looksLikeZlib([]byte("plain text")))
	assert.False(t, looksLikeZlib(nil))
}
