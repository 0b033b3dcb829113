package protocol

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// packFrame applies the compression layer to a packet body. Bodies shorter
// than the threshold are sent as-is behind a zero data-length marker; larger
// bodies are deflated and prefixed with their uncompressed length.
func packFrame(body []byte, threshold int32) ([]byte, error) {
	if int32(len(body)) < threshold {
		out := make([]byte, 0, 1+len(body))
		out = AppendVarInt(out, 0)
		return append(out, body...), nil
	}

	var buf bytes.Buffer
	buf.Write(AppendVarInt(nil, int32(len(body))))

	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// unpackFrame undoes packFrame. A nonzero data-length marker declares the
// uncompressed size, and the inflated output must match it exactly; any
// mismatch or corrupt deflate stream yields a CompressionError.
func unpackFrame(frame []byte, max int32) ([]byte, error) {
	r := bytes.NewReader(frame)

	dataLength, err := ReadVarInt(r)
	if err != nil {
		return nil, &CompressionError{Err: err}
	}

	if dataLength == 0 {
		body := make([]byte, r.Len())
		copy(body, frame[len(frame)-r.Len():])
		return body, nil
	}

	if dataLength < 0 || dataLength > max {
		return nil, &CompressionError{Declared: dataLength, Err: &FrameTooLargeError{Length: dataLength, Max: max}}
	}

	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, &CompressionError{Declared: dataLength, Err: err}
	}
	defer zr.Close()

	body := make([]byte, dataLength)
	if _, err := io.ReadFull(zr, body); err != nil {
		return nil, &CompressionError{Declared: dataLength, Err: err}
	}

	// The stream must end exactly at the declared length. Trailing bytes mean
	// the peer lied about the uncompressed size.
	var extra [1]byte
	if n, _ := zr.Read(extra[:]); n != 0 {
		return nil, &CompressionError{Declared: dataLength, Actual: dataLength + int32(n)}
	}

	return body, nil
}
