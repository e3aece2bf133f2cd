package index

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/melodetect/pkg/errors"
)

// Matrix file layout: a fixed little-endian header followed by a zstd
// compressed msgpack CSR payload.
//
//	[0:4]   magic "LMVX"
//	[4:8]   format version
//	[8:12]  rows
//	[12:16] dim
//	[16:24] payload length
//	[24:32] xxhash64 of payload
const (
	MatrixMagic         = "LMVX"
	MatrixFormatVersion = uint32(1)
	MatrixHeaderSize    = 32
)

type matrixHeader struct {
	Version    uint32
	Rows       uint32
	Dim        uint32
	PayloadLen uint64
	Checksum   uint64
}

type matrixPayload struct {
	BuildID string    `msgpack:"build_id"`
	Rows    int       `msgpack:"rows"`
	Dim     int       `msgpack:"dim"`
	Indptr  []int64   `msgpack:"indptr"`
	Indices []int32   `msgpack:"indices"`
	Data    []float64 `msgpack:"data"`
}

func encodeMatrix(buildID string, m *vector.Matrix) ([]byte, error) {
	indptr, indices, data := m.CSR()
	p := matrixPayload{
		BuildID: buildID,
		Rows:    m.Rows(),
		Dim:     m.Dim(),
		Indptr:  indptr,
		Indices: indices,
		Data:    data,
	}

	var payload bytes.Buffer
	zw, err := zstd.NewWriter(&payload, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	if err := msgpack.NewEncoder(zw).Encode(&p); err != nil {
		zw.Close()
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zstd close: %w", err)
	}

	out := make([]byte, MatrixHeaderSize, MatrixHeaderSize+payload.Len())
	copy(out[0:4], MatrixMagic)
	binary.LittleEndian.PutUint32(out[4:8], MatrixFormatVersion)
	binary.LittleEndian.PutUint32(out[8:12], uint32(p.Rows))
	binary.LittleEndian.PutUint32(out[12:16], uint32(p.Dim))
	binary.LittleEndian.PutUint64(out[16:24], uint64(payload.Len()))
	binary.LittleEndian.PutUint64(out[24:32], xxhash.Sum64(payload.Bytes()))
	return append(out, payload.Bytes()...), nil
}

func readMatrixHeader(b []byte) (matrixHeader, error) {
	if len(b) < MatrixHeaderSize {
		return matrixHeader{}, fmt.Errorf("file is %d bytes, shorter than the header", len(b))
	}
	if string(b[0:4]) != MatrixMagic {
		return matrixHeader{}, fmt.Errorf("bad magic %q", b[0:4])
	}
	h := matrixHeader{
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		Rows:       binary.LittleEndian.Uint32(b[8:12]),
		Dim:        binary.LittleEndian.Uint32(b[12:16]),
		PayloadLen: binary.LittleEndian.Uint64(b[16:24]),
		Checksum:   binary.LittleEndian.Uint64(b[24:32]),
	}
	if h.Version != MatrixFormatVersion {
		return matrixHeader{}, fmt.Errorf("unsupported format version %d", h.Version)
	}
	return h, nil
}

// decodeMatrix verifies and decodes a matrix file. Every failure wraps
// ErrArtifactCorrupt.
func decodeMatrix(b []byte) (string, *vector.Matrix, error) {
	corrupt := func(format string, args ...any) error {
		return fmt.Errorf("%w: matrix: %s", apperrors.ErrArtifactCorrupt, fmt.Sprintf(format, args...))
	}

	h, err := readMatrixHeader(b)
	if err != nil {
		return "", nil, corrupt("%v", err)
	}
	payload := b[MatrixHeaderSize:]
	if uint64(len(payload)) != h.PayloadLen {
		return "", nil, corrupt("payload is %d bytes, header says %d", len(payload), h.PayloadLen)
	}
	if sum := xxhash.Sum64(payload); sum != h.Checksum {
		return "", nil, corrupt("checksum %016x does not match header %016x", sum, h.Checksum)
	}

	zr, err := zstd.NewReader(bytes.NewReader(payload), zstd.WithDecoderConcurrency(0))
	if err != nil {
		return "", nil, corrupt("zstd reader: %v", err)
	}
	defer zr.Close()

	var p matrixPayload
	if err := msgpack.NewDecoder(zr).Decode(&p); err != nil {
		return "", nil, corrupt("msgpack decode: %v", err)
	}
	if p.Rows != int(h.Rows) || p.Dim != int(h.Dim) {
		return "", nil, corrupt("payload shape %dx%d disagrees with header %dx%d", p.Rows, p.Dim, h.Rows, h.Dim)
	}
	m, err := vector.FromCSR(p.Dim, p.Rows, p.Indptr, p.Indices, p.Data)
	if err != nil {
		return "", nil, corrupt("%v", err)
	}
	return p.BuildID, m, nil
}
