package blobstore

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/rotisserie/eris"
)

// deflateBytes zlib-compresses data at the default compression level.
func deflateBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, eris.Wrap(err, "blobstore: deflate")
	}
	if err := w.Close(); err != nil {
		return nil, eris.Wrap(err, "blobstore: deflate close")
	}
	return buf.Bytes(), nil
}

// inflateBytes zlib-decompresses data previously produced by deflateBytes.
func inflateBytes(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "blobstore: inflate")
	}
	defer r.Close() //nolint:errcheck
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "blobstore: inflate read")
	}
	return out, nil
}
