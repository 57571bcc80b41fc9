package rawdata

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	FragmentMagic        uint32 = 0x11112222
	FragmentVersion      uint32 = 5
	RecordHeaderMagic    uint32 = 0x33334444
	RecordHeaderVersion  uint32 = 4
	TimeSliceHeaderMagic uint32 = 0x55556666
)

// FragmentHeader is the fixed little-endian header in front of every
// fragment payload.
type FragmentHeader struct {
	Magic            uint32
	Version          uint32
	Size             uint64 // header plus payload
	TriggerNumber    uint64
	TriggerTimestamp uint64
	WindowBegin      uint64
	WindowEnd        uint64
	RunNumber        uint32
	ErrorBits        uint32
	FragmentType     FragmentType
	SequenceNumber   uint32
	DetectorID       Subdetector
	ElementID        SourceID
}

var FragmentHeaderSize = binary.Size(FragmentHeader{})

// RecordHeader heads a trigger record or a time slice.
type RecordHeader struct {
	Magic                  uint32
	Version                uint32
	RecordNumber           uint64
	Timestamp              uint64
	NumRequestedComponents uint64
	RunNumber              uint32
	ErrorBits              uint32
	TriggerType            uint16
	SequenceNumber         uint32
	MaxSequenceNumber      uint32
	ElementID              SourceID
}

var RecordHeaderSize = binary.Size(RecordHeader{})

func (h *RecordHeader) RecordID() RecordID {
	return RecordID{RecordNumber: h.RecordNumber, SequenceNumber: h.SequenceNumber}
}

// withDefaults returns a copy of h with a zero magic set to magic and a
// zero version set to RecordHeaderVersion.
func (h *RecordHeader) withDefaults(magic uint32) (RecordHeader, error) {
	c := *h
	switch c.Magic {
	case 0:
		c.Magic = magic
	case RecordHeaderMagic, TimeSliceHeaderMagic:
	default:
		return c, &ErrBadMagic{What: "record header", Magic: c.Magic}
	}
	if c.Version == 0 {
		c.Version = RecordHeaderVersion
	}
	return c, nil
}

func (h *RecordHeader) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(RecordHeaderSize)
	// Writes into a bytes.Buffer do not fail.
	binary.Write(&buf, binary.LittleEndian, h)
	return buf.Bytes()
}

func ParseRecordHeader(data []byte) (*RecordHeader, error) {
	if len(data) < RecordHeaderSize {
		return nil, fmt.Errorf("record header needs %d bytes, got %d", RecordHeaderSize, len(data))
	}
	header := &RecordHeader{}
	if err := binary.Read(bytes.NewReader(data[:RecordHeaderSize]), binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("error decoding record header: %w", err)
	}
	if header.Magic != RecordHeaderMagic && header.Magic != TimeSliceHeaderMagic {
		return nil, fmt.Errorf("bad record header magic 0x%08x", header.Magic)
	}
	return header, nil
}

// Fragment is one source's contribution to a record. The payload is
// opaque here.
type Fragment struct {
	Header  FragmentHeader
	Payload []byte
}

// NewFragment fills the magic, version and size fields of header.
func NewFragment(header FragmentHeader, payload []byte) *Fragment {
	header.Magic = FragmentMagic
	header.Version = FragmentVersion
	header.Size = uint64(FragmentHeaderSize + len(payload))
	return &Fragment{Header: header, Payload: payload}
}

func (f *Fragment) Size() int {
	return FragmentHeaderSize + len(f.Payload)
}

// checkMagic accepts the fragment magic or an unset one, which Bytes fills.
func (f *Fragment) checkMagic() error {
	if f.Header.Magic != 0 && f.Header.Magic != FragmentMagic {
		return &ErrBadMagic{What: "fragment", Magic: f.Header.Magic}
	}
	return nil
}

func (f *Fragment) Bytes() []byte {
	header := f.Header
	header.Size = uint64(f.Size())
	if header.Magic == 0 {
		header.Magic = FragmentMagic
	}
	if header.Version == 0 {
		header.Version = FragmentVersion
	}
	var buf bytes.Buffer
	buf.Grow(f.Size())
	binary.Write(&buf, binary.LittleEndian, &header)
	buf.Write(f.Payload)
	return buf.Bytes()
}

func ParseFragment(data []byte) (*Fragment, error) {
	if len(data) < FragmentHeaderSize {
		return nil, fmt.Errorf("fragment needs at least %d bytes, got %d", FragmentHeaderSize, len(data))
	}
	f := &Fragment{}
	if err := binary.Read(bytes.NewReader(data[:FragmentHeaderSize]), binary.LittleEndian, &f.Header); err != nil {
		return nil, fmt.Errorf("error decoding fragment header: %w", err)
	}
	if f.Header.Magic != FragmentMagic {
		return nil, fmt.Errorf("bad fragment magic 0x%08x", f.Header.Magic)
	}
	if f.Header.Size < uint64(FragmentHeaderSize) || f.Header.Size > uint64(len(data)) {
		return nil, fmt.Errorf("fragment size %d does not fit %d bytes", f.Header.Size, len(data))
	}
	f.Payload = data[FragmentHeaderSize:f.Header.Size]
	return f, nil
}

// Record is one header plus its fragments.
type Record struct {
	Header    RecordHeader
	Fragments []*Fragment
}

func (r *Record) ID() RecordID {
	return r.Header.RecordID()
}
