package rawdata

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Wire documents for the index attributes. Entries are written sorted by
// key so the text does not depend on map iteration order.

type sourceIDEntry struct {
	Subsys uint32 `json:"subsys"`
	ID     uint32 `json:"id"`
}

func newSourceIDEntry(sid SourceID) sourceIDEntry {
	return sourceIDEntry{Subsys: uint32(sid.Subsystem), ID: sid.ID}
}

func (e sourceIDEntry) sourceID() SourceID {
	return SourceID{Subsystem: Subsystem(e.Subsys), ID: e.ID}
}

type sourceIDPathEntry struct {
	Subsys uint32 `json:"subsys"`
	ID     uint32 `json:"id"`
	Path   string `json:"path"`
}

type sourceIDPathDocument struct {
	SourceIDVersion uint32              `json:"source_id_version"`
	MapEntries      []sourceIDPathEntry `json:"map_entries"`
}

type sourceIDGeoIDEntry struct {
	Subsys uint32   `json:"subsys"`
	ID     uint32   `json:"id"`
	GeoIDs []uint64 `json:"geoids"`
}

type sourceIDGeoIDDocument struct {
	SourceIDVersion uint32               `json:"source_id_version"`
	MapEntries      []sourceIDGeoIDEntry `json:"map_entries"`
}

type fragmentTypeEntry struct {
	FragmentType uint32          `json:"fragment_type"`
	SourceIDs    []sourceIDEntry `json:"source_ids"`
}

type fragmentTypeDocument struct {
	SourceIDVersion uint32              `json:"source_id_version"`
	MapEntries      []fragmentTypeEntry `json:"map_entries"`
}

type subdetectorEntry struct {
	Subdetector uint32          `json:"subdetector"`
	SourceIDs   []sourceIDEntry `json:"source_ids"`
}

type subdetectorDocument struct {
	SourceIDVersion uint32             `json:"source_id_version"`
	MapEntries      []subdetectorEntry `json:"map_entries"`
}

type recordHeaderSourceIDDocument struct {
	SourceIDVersion uint32 `json:"source_id_version"`
	Subsys          uint32 `json:"subsys"`
	ID              uint32 `json:"id"`
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSON(text string, v any) error {
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("error parsing index document: %w", err)
	}
	return nil
}

func sortedSourceIDs[V any](m map[SourceID]V) []SourceID {
	keys := make([]SourceID, 0, len(m))
	for sid := range m {
		keys = append(keys, sid)
	}
	slices.SortFunc(keys, SourceID.Compare)
	return keys
}

func sourceIDEntries(s SourceIDSet) []sourceIDEntry {
	entries := make([]sourceIDEntry, 0, len(s))
	for _, sid := range s.Sorted() {
		entries = append(entries, newSourceIDEntry(sid))
	}
	return entries
}

func EncodeSourceIDPathMap(m SourceIDPathMap) (string, error) {
	doc := sourceIDPathDocument{SourceIDVersion: SourceIDVersion, MapEntries: []sourceIDPathEntry{}}
	for _, sid := range sortedSourceIDs(m) {
		doc.MapEntries = append(doc.MapEntries, sourceIDPathEntry{Subsys: uint32(sid.Subsystem), ID: sid.ID, Path: m[sid]})
	}
	return encodeJSON(doc)
}

func DecodeSourceIDPathMap(text string) (SourceIDPathMap, error) {
	var doc sourceIDPathDocument
	if err := decodeJSON(text, &doc); err != nil {
		return nil, err
	}
	m := make(SourceIDPathMap, len(doc.MapEntries))
	for _, e := range doc.MapEntries {
		m.Add(SourceID{Subsystem: Subsystem(e.Subsys), ID: e.ID}, e.Path)
	}
	return m, nil
}

func EncodeSourceIDGeoIDMap(m SourceIDGeoIDMap) (string, error) {
	doc := sourceIDGeoIDDocument{SourceIDVersion: SourceIDVersion, MapEntries: []sourceIDGeoIDEntry{}}
	for _, sid := range sortedSourceIDs(m) {
		geoIDs := append([]uint64{}, m[sid]...)
		doc.MapEntries = append(doc.MapEntries, sourceIDGeoIDEntry{Subsys: uint32(sid.Subsystem), ID: sid.ID, GeoIDs: geoIDs})
	}
	return encodeJSON(doc)
}

func DecodeSourceIDGeoIDMap(text string) (SourceIDGeoIDMap, error) {
	var doc sourceIDGeoIDDocument
	if err := decodeJSON(text, &doc); err != nil {
		return nil, err
	}
	m := make(SourceIDGeoIDMap, len(doc.MapEntries))
	for _, e := range doc.MapEntries {
		sid := SourceID{Subsystem: Subsystem(e.Subsys), ID: e.ID}
		for _, geoID := range e.GeoIDs {
			m.Add(sid, geoID)
		}
	}
	return m, nil
}

func EncodeFragmentTypeSourceIDMap(m FragmentTypeSourceIDMap) (string, error) {
	keys := make([]FragmentType, 0, len(m))
	for t := range m {
		keys = append(keys, t)
	}
	slices.Sort(keys)
	doc := fragmentTypeDocument{SourceIDVersion: SourceIDVersion, MapEntries: []fragmentTypeEntry{}}
	for _, t := range keys {
		doc.MapEntries = append(doc.MapEntries, fragmentTypeEntry{FragmentType: uint32(t), SourceIDs: sourceIDEntries(m[t])})
	}
	return encodeJSON(doc)
}

func DecodeFragmentTypeSourceIDMap(text string) (FragmentTypeSourceIDMap, error) {
	var doc fragmentTypeDocument
	if err := decodeJSON(text, &doc); err != nil {
		return nil, err
	}
	m := make(FragmentTypeSourceIDMap, len(doc.MapEntries))
	for _, e := range doc.MapEntries {
		for _, s := range e.SourceIDs {
			m.Add(FragmentType(e.FragmentType), s.sourceID())
		}
	}
	return m, nil
}

func EncodeSubdetectorSourceIDMap(m SubdetectorSourceIDMap) (string, error) {
	keys := make([]Subdetector, 0, len(m))
	for d := range m {
		keys = append(keys, d)
	}
	slices.Sort(keys)
	doc := subdetectorDocument{SourceIDVersion: SourceIDVersion, MapEntries: []subdetectorEntry{}}
	for _, d := range keys {
		doc.MapEntries = append(doc.MapEntries, subdetectorEntry{Subdetector: uint32(d), SourceIDs: sourceIDEntries(m[d])})
	}
	return encodeJSON(doc)
}

func DecodeSubdetectorSourceIDMap(text string) (SubdetectorSourceIDMap, error) {
	var doc subdetectorDocument
	if err := decodeJSON(text, &doc); err != nil {
		return nil, err
	}
	m := make(SubdetectorSourceIDMap, len(doc.MapEntries))
	for _, e := range doc.MapEntries {
		for _, s := range e.SourceIDs {
			m.Add(Subdetector(e.Subdetector), s.sourceID())
		}
	}
	return m, nil
}

func EncodeRecordHeaderSourceID(sid SourceID) (string, error) {
	return encodeJSON(recordHeaderSourceIDDocument{
		SourceIDVersion: SourceIDVersion,
		Subsys:          uint32(sid.Subsystem),
		ID:              sid.ID,
	})
}

func DecodeRecordHeaderSourceID(text string) (SourceID, error) {
	var doc recordHeaderSourceIDDocument
	if err := decodeJSON(text, &doc); err != nil {
		return SourceID{}, err
	}
	return SourceID{Subsystem: Subsystem(doc.Subsys), ID: doc.ID}, nil
}
