package rawdata

import (
	"fmt"

	"github.com/next-exp/rawdata_go/pkg/container"
)

// Index attribute names.
const (
	SourceIDGeoIDMapAttr        = "source_id_geo_id_map"
	SourceIDPathMapAttr         = "source_id_path_map"
	FragmentTypeSourceIDMapAttr = "fragment_type_source_id_map"
	SubdetectorSourceIDMapAttr  = "subdetector_source_id_map"
	RecordHeaderSourceIDAttr    = "record_header_source_id"
)

// writeStringIfAbsent leaves an existing attribute untouched.
func writeStringIfAbsent(attrs container.Attributes, name, value string) error {
	if attrs.HasAttribute(name) {
		return nil
	}
	if err := attrs.WriteString(name, value); err != nil {
		return &ErrAttribute{Name: name, Err: err}
	}
	return nil
}

func writeUintIfAbsent(attrs container.Attributes, name string, value uint64) error {
	if attrs.HasAttribute(name) {
		return nil
	}
	if err := attrs.WriteUint(name, value); err != nil {
		return &ErrAttribute{Name: name, Err: err}
	}
	return nil
}

func storeDocument(attrs container.Attributes, name string, encode func() (string, error)) error {
	text, err := encode()
	if err != nil {
		return &ErrAttribute{Name: name, Err: err}
	}
	return writeStringIfAbsent(attrs, name, text)
}

func StoreFileLevelGeoIDInfo(root container.Attributes, m SourceIDGeoIDMap) error {
	return storeDocument(root, SourceIDGeoIDMapAttr, func() (string, error) { return EncodeSourceIDGeoIDMap(m) })
}

func StoreRecordLevelPathInfo(recordGroup container.Attributes, m SourceIDPathMap) error {
	return storeDocument(recordGroup, SourceIDPathMapAttr, func() (string, error) { return EncodeSourceIDPathMap(m) })
}

func StoreRecordLevelFragmentTypeInfo(recordGroup container.Attributes, m FragmentTypeSourceIDMap) error {
	return storeDocument(recordGroup, FragmentTypeSourceIDMapAttr, func() (string, error) { return EncodeFragmentTypeSourceIDMap(m) })
}

func StoreRecordLevelSubdetectorInfo(recordGroup container.Attributes, m SubdetectorSourceIDMap) error {
	return storeDocument(recordGroup, SubdetectorSourceIDMapAttr, func() (string, error) { return EncodeSubdetectorSourceIDMap(m) })
}

func StoreRecordHeaderSourceID(recordGroup container.Attributes, sid SourceID) error {
	return storeDocument(recordGroup, RecordHeaderSourceIDAttr, func() (string, error) { return EncodeRecordHeaderSourceID(sid) })
}

// SourceIDHandler reads the index attributes of a file. Reads only happen
// for versions that carry the index; for anything else, and for missing
// or malformed attributes, the target is left as it was.
type SourceIDHandler struct {
	version LayoutVersion
}

func NewSourceIDHandler(version LayoutVersion) *SourceIDHandler {
	return &SourceIDHandler{version: version}
}

func (h *SourceIDHandler) fetch(attrs container.Attributes, name string, parse func(string) error) bool {
	if !h.version.HasSourceIDIndex() {
		return false
	}
	IndexFetches.WithLabelValues(name, "attempt").Inc()
	text, err := attrs.ReadString(name)
	if err == nil {
		err = parse(text)
	}
	if err != nil {
		IndexFetches.WithLabelValues(name, "ignored").Inc()
		if configuration.Verbosity > 1 {
			logger.Info(fmt.Sprintf("Ignoring %s: %v", name, err), "sourceid")
		}
		return false
	}
	return true
}

func (h *SourceIDHandler) FetchFileLevelGeoIDInfo(root container.Attributes, m SourceIDGeoIDMap) {
	h.fetch(root, SourceIDGeoIDMapAttr, func(text string) error {
		parsed, err := DecodeSourceIDGeoIDMap(text)
		if err == nil {
			m.Merge(parsed)
		}
		return err
	})
}

// FetchRecordLevelGeoIDInfo merges a record-level geo-id map into m.
// Current files only carry the file-level map.
func (h *SourceIDHandler) FetchRecordLevelGeoIDInfo(recordGroup container.Attributes, m SourceIDGeoIDMap) {
	if !recordGroup.HasAttribute(SourceIDGeoIDMapAttr) {
		return
	}
	h.FetchFileLevelGeoIDInfo(recordGroup, m)
}

func (h *SourceIDHandler) FetchSourceIDPathInfo(recordGroup container.Attributes, m SourceIDPathMap) {
	h.fetch(recordGroup, SourceIDPathMapAttr, func(text string) error {
		parsed, err := DecodeSourceIDPathMap(text)
		for sid, path := range parsed {
			m.Add(sid, path)
		}
		return err
	})
}

func (h *SourceIDHandler) FetchFragmentTypeInfo(recordGroup container.Attributes, m FragmentTypeSourceIDMap) {
	h.fetch(recordGroup, FragmentTypeSourceIDMapAttr, func(text string) error {
		parsed, err := DecodeFragmentTypeSourceIDMap(text)
		for t, sids := range parsed {
			for sid := range sids {
				m.Add(t, sid)
			}
		}
		return err
	})
}

func (h *SourceIDHandler) FetchSubdetectorInfo(recordGroup container.Attributes, m SubdetectorSourceIDMap) {
	h.fetch(recordGroup, SubdetectorSourceIDMapAttr, func(text string) error {
		parsed, err := DecodeSubdetectorSourceIDMap(text)
		for d, sids := range parsed {
			for sid := range sids {
				m.Add(d, sid)
			}
		}
		return err
	})
}

// FetchRecordHeaderSourceID reports false when the record carries no
// readable header SourceID.
func (h *SourceIDHandler) FetchRecordHeaderSourceID(recordGroup container.Attributes) (SourceID, bool) {
	var sid SourceID
	ok := h.fetch(recordGroup, RecordHeaderSourceIDAttr, func(text string) error {
		var err error
		sid, err = DecodeRecordHeaderSourceID(text)
		return err
	})
	return sid, ok
}
