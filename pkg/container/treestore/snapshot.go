package treestore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the codec applied to the encoded tree.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps a configuration string onto a codec. The empty
// string selects zstd.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "", "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("unknown snapshot compression %q", s)
	}
}

// Snapshot layout:
// [magic "RDTS"][format uint8][codec uint8][reserved uint16][raw length uint64][body...]
var snapshotMagic = [4]byte{'R', 'D', 'T', 'S'}

const (
	snapshotFormat     = 1
	snapshotHeaderSize = 16
	// maxSnapshotSize caps the decoded tree.
	maxSnapshotSize = 1 << 34
	// lz4MaxRatio bounds the expansion of an lz4 block.
	lz4MaxRatio = 255
)

var (
	// ErrBadSnapshot is returned when a file is not a tree snapshot.
	ErrBadSnapshot = errors.New("not a tree snapshot")

	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{MaxNestedLevels: 256}.DecMode()
	if err != nil {
		panic(err)
	}
}

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxSnapshotSize))
	return dec
}

func encodeSnapshot(root *node, codec Compression) ([]byte, error) {
	raw, err := encMode.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("error encoding tree: %w", err)
	}

	body := raw
	switch codec {
	case CompressionNone:
	case CompressionLZ4:
		compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("error compressing tree: %w", err)
		}
		if n == 0 {
			// Incompressible
			codec = CompressionNone
		} else {
			body = compressed[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		body = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("unknown snapshot compression %v", codec)
	}

	var buf bytes.Buffer
	buf.Grow(snapshotHeaderSize + len(body))
	buf.Write(snapshotMagic[:])
	buf.WriteByte(snapshotFormat)
	buf.WriteByte(byte(codec))
	buf.Write([]byte{0, 0})
	var length [8]byte
	binary.LittleEndian.PutUint64(length[:], uint64(len(raw)))
	buf.Write(length[:])
	buf.Write(body)
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) (*node, Compression, error) {
	if len(data) < snapshotHeaderSize || !bytes.Equal(data[:4], snapshotMagic[:]) {
		return nil, 0, ErrBadSnapshot
	}
	if data[4] != snapshotFormat {
		return nil, 0, fmt.Errorf("snapshot format %d: %w", data[4], ErrBadSnapshot)
	}
	codec := Compression(data[5])
	rawLength := binary.LittleEndian.Uint64(data[8:16])
	body := data[snapshotHeaderSize:]
	if rawLength > maxSnapshotSize {
		return nil, 0, fmt.Errorf("snapshot length %d: %w", rawLength, ErrBadSnapshot)
	}

	var raw []byte
	switch codec {
	case CompressionNone:
		raw = body
	case CompressionLZ4:
		if rawLength > lz4MaxRatio*uint64(len(body)) {
			return nil, 0, fmt.Errorf("snapshot length %d from %d lz4 bytes: %w", rawLength, len(body), ErrBadSnapshot)
		}
		raw = make([]byte, rawLength)
		n, err := lz4.UncompressBlock(body, raw)
		if err != nil {
			return nil, 0, fmt.Errorf("error decompressing tree: %v: %w", err, ErrBadSnapshot)
		}
		raw = raw[:n]
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(body, nil)
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, 0, fmt.Errorf("error decompressing tree: %v: %w", err, ErrBadSnapshot)
		}
		raw = out
	default:
		return nil, 0, fmt.Errorf("snapshot codec %d: %w", codec, ErrBadSnapshot)
	}
	if uint64(len(raw)) != rawLength {
		return nil, 0, fmt.Errorf("snapshot holds %d bytes, header says %d: %w",
			len(raw), rawLength, ErrBadSnapshot)
	}

	root := &node{}
	if err := decMode.Unmarshal(raw, root); err != nil {
		return nil, 0, fmt.Errorf("error decoding tree: %v: %w", err, ErrBadSnapshot)
	}
	return root, codec, nil
}
