package rawdata

import (
	"cmp"
	"fmt"
)

// SourceIDVersion is stamped on every serialized SourceID document.
const SourceIDVersion = 2

type Subsystem uint16

const (
	SubsystemUnknown Subsystem = iota
	DetectorReadout
	HwSignalsInterface
	Trigger
	TRBuilder
)

var subsystemNames = map[Subsystem]string{
	SubsystemUnknown:   "Unknown",
	DetectorReadout:    "Detector_Readout",
	HwSignalsInterface: "HW_Signals_Interface",
	Trigger:            "Trigger",
	TRBuilder:          "TR_Builder",
}

func (s Subsystem) String() string {
	if name, ok := subsystemNames[s]; ok {
		return name
	}
	return "Unknown"
}

// SubsystemFromString returns SubsystemUnknown for unrecognised names.
func SubsystemFromString(name string) Subsystem {
	for s, n := range subsystemNames {
		if n == name {
			return s
		}
	}
	return SubsystemUnknown
}

// SourceID identifies a data-producing source. The ID packs the fragment
// path coordinates: the high 16 bits are the region and the low 16 bits
// the element.
type SourceID struct {
	Subsystem Subsystem
	ID        uint32
}

func NewSourceID(subsystem Subsystem, id uint32) SourceID {
	return SourceID{Subsystem: subsystem, ID: id}
}

func SourceIDFromString(subsystemName string, id uint32) SourceID {
	return SourceID{Subsystem: SubsystemFromString(subsystemName), ID: id}
}

func SourceIDFromLocation(subsystem Subsystem, region, element uint16) SourceID {
	return SourceID{Subsystem: subsystem, ID: uint32(region)<<16 | uint32(element)}
}

func (s SourceID) Region() uint16  { return uint16(s.ID >> 16) }
func (s SourceID) Element() uint16 { return uint16(s.ID & 0xFFFF) }

func (s SourceID) String() string {
	return fmt.Sprintf("%s_0x%08x", s.Subsystem, s.ID)
}

// Compare orders by subsystem then id.
func (s SourceID) Compare(other SourceID) int {
	if c := cmp.Compare(s.Subsystem, other.Subsystem); c != 0 {
		return c
	}
	return cmp.Compare(s.ID, other.ID)
}

// GeoID describes where a readout stream sits in the detector.
type GeoID struct {
	DetID    uint16
	CrateID  uint16
	SlotID   uint16
	StreamID uint16
}

func (g GeoID) Pack() uint64 {
	return uint64(g.DetID) | uint64(g.CrateID)<<16 | uint64(g.SlotID)<<32 | uint64(g.StreamID)<<48
}

func UnpackGeoID(packed uint64) GeoID {
	return GeoID{
		DetID:    uint16(packed),
		CrateID:  uint16(packed >> 16),
		SlotID:   uint16(packed >> 32),
		StreamID: uint16(packed >> 48),
	}
}

func (g GeoID) String() string {
	return fmt.Sprintf("det %d crate %d slot %d stream %d", g.DetID, g.CrateID, g.SlotID, g.StreamID)
}

type FragmentType uint32

const (
	FragmentTypeUnknown     FragmentType = 0
	ProtoWIB                FragmentType = 1
	WIB                     FragmentType = 2
	DAPHNE                  FragmentType = 3
	TDEAMC                  FragmentType = 4
	FWTriggerPrimitive      FragmentType = 5
	TriggerPrimitive        FragmentType = 6
	TriggerActivity         FragmentType = 7
	TriggerCandidate        FragmentType = 8
	HardwareSignal          FragmentType = 9
	PACMAN                  FragmentType = 10
	MPD                     FragmentType = 11
	WIBEth                  FragmentType = 12
	DAPHNEStream            FragmentType = 13
	CRT                     FragmentType = 14
	TriggerTypeFragmentType FragmentType = 15
)

var fragmentTypeNames = map[FragmentType]string{
	FragmentTypeUnknown:     "Unknown",
	ProtoWIB:                "ProtoWIB",
	WIB:                     "WIB",
	DAPHNE:                  "DAPHNE",
	TDEAMC:                  "TDE_AMC",
	FWTriggerPrimitive:      "FW_TriggerPrimitive",
	TriggerPrimitive:        "Trigger_Primitive",
	TriggerActivity:         "Trigger_Activity",
	TriggerCandidate:        "Trigger_Candidate",
	HardwareSignal:          "Hardware_Signal",
	PACMAN:                  "PACMAN",
	MPD:                     "MPD",
	WIBEth:                  "WIBEth",
	DAPHNEStream:            "DAPHNEStream",
	CRT:                     "CRT",
	TriggerTypeFragmentType: "Trigger_Type",
}

func (t FragmentType) String() string {
	if name, ok := fragmentTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

func FragmentTypeFromString(name string) FragmentType {
	for t, n := range fragmentTypeNames {
		if n == name {
			return t
		}
	}
	return FragmentTypeUnknown
}

type Subdetector uint16

const (
	SubdetectorUnknown Subdetector = iota
	DAQ
	TPC
	PDS
	CRTDetector
	NDLArTPC
	NDLArPDS
)

var subdetectorNames = map[Subdetector]string{
	SubdetectorUnknown: "Unknown",
	DAQ:                "DAQ",
	TPC:                "TPC",
	PDS:                "PDS",
	CRTDetector:        "CRT",
	NDLArTPC:           "NDLAr_TPC",
	NDLArPDS:           "NDLAr_PDS",
}

func (d Subdetector) String() string {
	if name, ok := subdetectorNames[d]; ok {
		return name
	}
	return "Unknown"
}

func SubdetectorFromString(name string) Subdetector {
	for d, n := range subdetectorNames {
		if n == name {
			return d
		}
	}
	return SubdetectorUnknown
}

// RecordID identifies a record within a file. SequenceNumber is 0 for
// record kinds that are not sequenced.
type RecordID struct {
	RecordNumber   uint64
	SequenceNumber uint32
}

func (r RecordID) Less(other RecordID) bool {
	if r.RecordNumber != other.RecordNumber {
		return r.RecordNumber < other.RecordNumber
	}
	return r.SequenceNumber < other.SequenceNumber
}

func (r RecordID) Compare(other RecordID) int {
	if c := cmp.Compare(r.RecordNumber, other.RecordNumber); c != 0 {
		return c
	}
	return cmp.Compare(r.SequenceNumber, other.SequenceNumber)
}

func (r RecordID) String() string {
	return fmt.Sprintf("(%d,%d)", r.RecordNumber, r.SequenceNumber)
}
