package rawdata

import (
	"slices"

	"golang.org/x/exp/maps"
)

// SourceIDSet is a set of SourceIDs. A nil set is empty.
type SourceIDSet map[SourceID]struct{}

func NewSourceIDSet(sids ...SourceID) SourceIDSet {
	s := make(SourceIDSet, len(sids))
	for _, sid := range sids {
		s.Add(sid)
	}
	return s
}

func (s SourceIDSet) Add(sid SourceID) { s[sid] = struct{}{} }

func (s SourceIDSet) Contains(sid SourceID) bool {
	_, ok := s[sid]
	return ok
}

// Sorted returns the members ordered by subsystem then id.
func (s SourceIDSet) Sorted() []SourceID {
	out := make([]SourceID, 0, len(s))
	for sid := range s {
		out = append(out, sid)
	}
	slices.SortFunc(out, SourceID.Compare)
	return out
}

func (s SourceIDSet) Clone() SourceIDSet {
	if s == nil {
		return SourceIDSet{}
	}
	return maps.Clone(s)
}

// SourceIDPathMap holds one path per SourceID.
type SourceIDPathMap map[SourceID]string

// Add inserts or overwrites the path for sid.
func (m SourceIDPathMap) Add(sid SourceID, path string) { m[sid] = path }

func (m SourceIDPathMap) SourceIDs() SourceIDSet {
	s := make(SourceIDSet, len(m))
	for sid := range m {
		s.Add(sid)
	}
	return s
}

// SourceIDGeoIDMap maps a SourceID to its packed GeoIDs. Pairs are
// appended as given, so a repeated pair is kept twice.
type SourceIDGeoIDMap map[SourceID][]uint64

func (m SourceIDGeoIDMap) Add(sid SourceID, geoID uint64) {
	m[sid] = append(m[sid], geoID)
}

// Merge appends every pair of other into m.
func (m SourceIDGeoIDMap) Merge(other SourceIDGeoIDMap) {
	for sid, geoIDs := range other {
		for _, geoID := range geoIDs {
			m.Add(sid, geoID)
		}
	}
}

func (m SourceIDGeoIDMap) Clone() SourceIDGeoIDMap {
	out := make(SourceIDGeoIDMap, len(m))
	out.Merge(m)
	return out
}

// FragmentTypeSourceIDMap groups SourceIDs by the fragment type they produced.
type FragmentTypeSourceIDMap map[FragmentType]SourceIDSet

func (m FragmentTypeSourceIDMap) Add(fragmentType FragmentType, sid SourceID) {
	if m[fragmentType] == nil {
		m[fragmentType] = SourceIDSet{}
	}
	m[fragmentType].Add(sid)
}

// SubdetectorSourceIDMap groups SourceIDs by subdetector.
type SubdetectorSourceIDMap map[Subdetector]SourceIDSet

func (m SubdetectorSourceIDMap) Add(subdetector Subdetector, sid SourceID) {
	if m[subdetector] == nil {
		m[subdetector] = SourceIDSet{}
	}
	m[subdetector].Add(sid)
}

// SubsystemSourceIDMap groups SourceIDs by subsystem.
type SubsystemSourceIDMap map[Subsystem]SourceIDSet

func (m SubsystemSourceIDMap) Add(subsystem Subsystem, sid SourceID) {
	if m[subsystem] == nil {
		m[subsystem] = SourceIDSet{}
	}
	m[subsystem].Add(sid)
}

func subsystemGrouping(sids SourceIDSet) SubsystemSourceIDMap {
	m := make(SubsystemSourceIDMap)
	for sid := range sids {
		m.Add(sid.Subsystem, sid)
	}
	return m
}
