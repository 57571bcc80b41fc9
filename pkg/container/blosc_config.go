package container

import (
	"encoding/json"
	"fmt"
)

// BloscAlgorithm is the compressor used inside the Blosc filter. Codes
// follow the filter's own numbering.
type BloscAlgorithm struct {
	Name string
	Code uint8
}

const (
	BLOSC_BLOSCLZ uint8 = iota
	BLOSC_LZ4
	BLOSC_LZ4HC
	BLOSC_SNAPPY
	BLOSC_ZLIB
	BLOSC_ZSTD
)

var bloscAlgorithmStrings = []string{
	"blosclz",
	"lz4",
	"lz4hc",
	"snappy",
	"zlib",
	"zstd",
}

func (b BloscAlgorithm) String() string {
	if b.Code > BLOSC_ZSTD {
		return "UNKNOWN"
	}
	return bloscAlgorithmStrings[b.Code]
}

func (b BloscAlgorithm) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *BloscAlgorithm) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, v := range bloscAlgorithmStrings {
		if v == s {
			*b = BloscAlgorithm{Name: s, Code: uint8(i)}
			return nil
		}
	}
	return fmt.Errorf("invalid BloscAlgorithm: %s", s)
}

type BloscShuffle struct {
	Name string
	Code uint8
}

const (
	BLOSC_NOSHUFFLE uint8 = iota
	BLOSC_SHUFFLE
	BLOSC_BITSHUFFLE
)

var bloscShuffleStrings = []string{
	"no-shuffle",
	"byte-shuffle",
	"bit-shuffle",
}

func (b BloscShuffle) String() string {
	if b.Code > BLOSC_BITSHUFFLE {
		return "UNKNOWN"
	}
	return bloscShuffleStrings[b.Code]
}

func (b BloscShuffle) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *BloscShuffle) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, v := range bloscShuffleStrings {
		if v == s {
			*b = BloscShuffle{Name: s, Code: uint8(i)}
			return nil
		}
	}
	return fmt.Errorf("invalid BloscShuffle: %s", s)
}

// DatasetCompression sets the filter applied to chunked datasets. With
// UseBlosc false, a non-zero Level selects deflate.
type DatasetCompression struct {
	UseBlosc  bool
	Level     int
	Algorithm BloscAlgorithm
	Shuffle   BloscShuffle
}

// Enabled reports whether datasets get any filter at all.
func (c DatasetCompression) Enabled() bool {
	return c.UseBlosc || c.Level > 0
}

// Tunable is an engine whose dataset compression comes from the
// configuration.
type Tunable interface {
	Opener
	WithCompression(c DatasetCompression) Opener
}
