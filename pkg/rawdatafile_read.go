package rawdata

import (
	"fmt"
	"slices"
	"strings"

	"github.com/next-exp/rawdata_go/pkg/container"
)

// OpenForRead opens a finished file. File-level attributes are read here;
// records are discovered and indexed on first use.
func OpenForRead(fileName string, opts ...Option) (*RawDataFile, error) {
	o := applyOptions(opts)
	f, err := o.opener.Open(fileName, container.ReadOnly)
	if err != nil {
		return nil, &ErrOpenFile{Filename: fileName, Err: err}
	}
	r, err := newReader(f, fileName, o)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f container.File, fileName string, o options) (*RawDataFile, error) {
	root := f.Root()

	var recordedSize uint64
	if root.HasAttribute(RecordedSizeAttr) {
		size, err := root.ReadUint(RecordedSizeAttr)
		if err != nil {
			return nil, &ErrAttribute{Name: RecordedSizeAttr, Err: err}
		}
		recordedSize = size
	} else {
		logger.Warn(fmt.Sprintf("File %s has no %s, it was not closed cleanly", fileName, RecordedSizeAttr), "reader")
	}

	version := LayoutVersion0
	params := LegacyFileLayoutParams()
	if root.HasAttribute(FileLayoutVersionAttr) {
		v, err := root.ReadUint(FileLayoutVersionAttr)
		if err != nil {
			return nil, &ErrAttribute{Name: FileLayoutVersionAttr, Err: err}
		}
		version = LayoutVersion(v)
	} else {
		logger.Info(fmt.Sprintf("File %s has no %s, using the legacy layout", fileName, FileLayoutVersionAttr), "reader")
	}
	if root.HasAttribute(FileLayoutParamsAttr) {
		text, err := root.ReadString(FileLayoutParamsAttr)
		if err != nil {
			return nil, &ErrAttribute{Name: FileLayoutParamsAttr, Err: err}
		}
		if params, err = ParseFileLayoutParams(text); err != nil {
			return nil, err
		}
	} else if !strategyFor(version).legacyDefaults {
		logger.Warn(fmt.Sprintf("File %s has no %s, using the legacy layout", fileName, FileLayoutParamsAttr), "reader")
	}

	layout, err := NewFileLayout(params, version)
	if err != nil {
		return nil, err
	}
	strategy := strategyFor(version)

	recordType := layout.RecordNamePrefix()
	if root.HasAttribute(RecordTypeAttr) {
		stored, err := root.ReadString(RecordTypeAttr)
		if err != nil {
			return nil, &ErrAttribute{Name: RecordTypeAttr, Err: err}
		}
		if strategy.checkRecordType && stored != layout.RecordNamePrefix() {
			return nil, &ErrBadRecordType{RecordType: stored, Prefix: layout.RecordNamePrefix()}
		}
		recordType = stored
	}

	cache, err := NewRecordCache(o.cacheCapacity)
	if err != nil {
		return nil, err
	}

	r := &RawDataFile{
		file:         f,
		fileName:     fileName,
		openName:     fileName,
		opts:         o,
		layout:       layout,
		strategy:     strategy,
		sidHandler:   NewSourceIDHandler(version),
		recordType:   recordType,
		recordedSize: recordedSize,
		fileGeoIDs:   SourceIDGeoIDMap{},
		cache:        cache,
	}
	r.sidHandler.FetchFileLevelGeoIDInfo(root, r.fileGeoIDs)
	return r, nil
}

func (r *RawDataFile) scanRecords() error {
	if r.recordNames != nil {
		return nil
	}
	if err := r.checkOpen(); err != nil {
		return err
	}
	children, err := r.file.Root().Children()
	if err != nil {
		return fmt.Errorf("error listing records of %q: %v: %w", r.fileName, err, ErrContainer)
	}
	names := make(map[RecordID]string)
	ids := []RecordID{}
	for _, child := range children {
		if child.Type != container.GroupObject {
			continue
		}
		rid, ok := r.layout.ParseRecordName(child.Name)
		if !ok {
			continue
		}
		if _, dup := names[rid]; !dup {
			ids = append(ids, rid)
		}
		names[rid] = child.Name
	}
	slices.SortFunc(ids, RecordID.Compare)
	r.recordIDs = ids
	r.recordNames = names
	return nil
}

// AllRecordIDs lists the records in the file in order. The file is
// scanned once per handle.
func (r *RawDataFile) AllRecordIDs() ([]RecordID, error) {
	if err := r.scanRecords(); err != nil {
		return nil, err
	}
	return slices.Clone(r.recordIDs), nil
}

func (r *RawDataFile) AllTriggerRecordIDs() ([]RecordID, error) {
	if !r.IsTriggerRecordFile() {
		return nil, &ErrWrongRecordType{Wanted: TriggerRecordPrefix, Actual: r.recordType}
	}
	return r.AllRecordIDs()
}

func (r *RawDataFile) AllTimeSliceIDs() ([]RecordID, error) {
	if !r.IsTimeSliceFile() {
		return nil, &ErrWrongRecordType{Wanted: TimeSlicePrefix, Actual: r.recordType}
	}
	return r.AllRecordIDs()
}

func (r *RawDataFile) recordName(rid RecordID) (string, error) {
	if err := r.scanRecords(); err != nil {
		return "", err
	}
	name, ok := r.recordNames[rid]
	if !ok {
		return "", &ErrRecordIDNotFound{RecordID: rid, Filename: r.fileName}
	}
	return name, nil
}

// EnsureCached builds the index of rid unless it is already cached.
func (r *RawDataFile) EnsureCached(rid RecordID) error {
	_, err := r.recordIndex(rid)
	return err
}

func (r *RawDataFile) recordIndex(rid RecordID) (*recordIndex, error) {
	if entry, ok := r.cache.get(rid); ok {
		return entry, nil
	}
	name, err := r.recordName(rid)
	if err != nil {
		return nil, err
	}
	group, err := r.file.Root().OpenGroup(name)
	if err != nil {
		return nil, fmt.Errorf("error opening record group %q: %v: %w", name, err, ErrContainer)
	}
	defer group.Close()

	entry := &recordIndex{
		paths:          SourceIDPathMap{},
		geoIDs:         r.fileGeoIDs.Clone(),
		byFragmentType: FragmentTypeSourceIDMap{},
		bySubdetector:  SubdetectorSourceIDMap{},
	}
	r.sidHandler.FetchRecordLevelGeoIDInfo(group, entry.geoIDs)
	entry.headerSourceID, entry.hasHeaderSourceID = r.sidHandler.FetchRecordHeaderSourceID(group)
	r.sidHandler.FetchSourceIDPathInfo(group, entry.paths)
	r.sidHandler.FetchFragmentTypeInfo(group, entry.byFragmentType)
	r.sidHandler.FetchSubdetectorInfo(group, entry.bySubdetector)

	entry.all = entry.paths.SourceIDs()
	entry.fragments = entry.all.Clone()
	if entry.hasHeaderSourceID {
		delete(entry.fragments, entry.headerSourceID)
	}
	entry.bySubsystem = subsystemGrouping(entry.all)

	r.cache.add(rid, entry)
	return entry, nil
}

func (r *RawDataFile) SourceIDs(rid RecordID) ([]SourceID, error) {
	entry, err := r.recordIndex(rid)
	if err != nil {
		return nil, err
	}
	return entry.all.Sorted(), nil
}

func (r *RawDataFile) FragmentSourceIDs(rid RecordID) ([]SourceID, error) {
	entry, err := r.recordIndex(rid)
	if err != nil {
		return nil, err
	}
	return entry.fragments.Sorted(), nil
}

func (r *RawDataFile) RecordHeaderSourceID(rid RecordID) (SourceID, error) {
	entry, err := r.recordIndex(rid)
	if err != nil {
		return SourceID{}, err
	}
	if !entry.hasHeaderSourceID {
		if !r.strategy.sourceIDIndex {
			return SourceID{}, &ErrIncompatibleVersion{Operation: "record header source id", Version: r.Version(), Minimum: LayoutVersion3}
		}
		return SourceID{}, fmt.Errorf("record %v has no header source id: %w", rid, ErrLookup)
	}
	return entry.headerSourceID, nil
}

func (r *RawDataFile) SourceIDsForSubsystem(rid RecordID, subsystem Subsystem) ([]SourceID, error) {
	entry, err := r.recordIndex(rid)
	if err != nil {
		return nil, err
	}
	return entry.bySubsystem[subsystem].Sorted(), nil
}

func (r *RawDataFile) SourceIDsForFragmentType(rid RecordID, fragmentType FragmentType) ([]SourceID, error) {
	entry, err := r.recordIndex(rid)
	if err != nil {
		return nil, err
	}
	return entry.byFragmentType[fragmentType].Sorted(), nil
}

func (r *RawDataFile) SourceIDsForSubdetector(rid RecordID, subdetector Subdetector) ([]SourceID, error) {
	entry, err := r.recordIndex(rid)
	if err != nil {
		return nil, err
	}
	return entry.bySubdetector[subdetector].Sorted(), nil
}

// GeoIDsForSourceID returns the packed GeoIDs of sid, possibly none.
func (r *RawDataFile) GeoIDsForSourceID(rid RecordID, sid SourceID) ([]uint64, error) {
	entry, err := r.recordIndex(rid)
	if err != nil {
		return nil, err
	}
	return slices.Clone(entry.geoIDs[sid]), nil
}

// fragmentPath resolves (rid, sid) to a dataset path: through the index
// when the file has one, through the layout for version 2 files.
func (r *RawDataFile) fragmentPath(rid RecordID, sid SourceID) (string, error) {
	switch {
	case r.strategy.sourceIDIndex:
		entry, err := r.recordIndex(rid)
		if err != nil {
			return "", err
		}
		path, ok := entry.paths[sid]
		if !ok || !entry.fragments.Contains(sid) {
			return "", &ErrSourceIDNotFound{RecordID: rid, SourceID: sid}
		}
		return path, nil
	case r.strategy.derivedPaths:
		name, err := r.recordName(rid)
		if err != nil {
			return "", err
		}
		elements, err := r.layout.fragmentElements(rid.RecordNumber, rid.SequenceNumber, sid)
		if err != nil {
			return "", &ErrSourceIDNotFound{RecordID: rid, SourceID: sid}
		}
		elements[0] = name
		path := strings.Join(elements, "/")
		if !r.file.Root().Exists(path) {
			return "", &ErrSourceIDNotFound{RecordID: rid, SourceID: sid}
		}
		return path, nil
	default:
		return "", &ErrIncompatibleVersion{Operation: "fragment lookup by source id", Version: r.Version(), Minimum: LayoutVersion2}
	}
}

// DatasetRawData reads the bytes of the dataset at path.
func (r *RawDataFile) DatasetRawData(path string) ([]byte, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	ds, err := r.file.Root().OpenDataset(path)
	if err != nil {
		return nil, &ErrReadDataset{Path: path, Err: err}
	}
	defer ds.Close()
	data, err := ds.ReadRaw()
	if err != nil {
		return nil, fmt.Errorf("error reading dataset %q: %v: %w", path, err, ErrContainer)
	}
	return data, nil
}

func (r *RawDataFile) FragmentAt(path string) (*Fragment, error) {
	data, err := r.DatasetRawData(path)
	if err != nil {
		return nil, err
	}
	fragment, err := ParseFragment(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %v: %w", path, err, ErrLookup)
	}
	return fragment, nil
}

// Fragment returns the fragment sid contributed to rid. Use NewSourceID or
// SourceIDFromString to build sid from its parts.
func (r *RawDataFile) Fragment(rid RecordID, sid SourceID) (*Fragment, error) {
	path, err := r.fragmentPath(rid, sid)
	if err != nil {
		return nil, err
	}
	return r.FragmentAt(path)
}

func (r *RawDataFile) RecordHeaderAt(path string) (*RecordHeader, error) {
	data, err := r.DatasetRawData(path)
	if err != nil {
		return nil, err
	}
	header, err := ParseRecordHeader(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %v: %w", path, err, ErrLookup)
	}
	return header, nil
}

func (r *RawDataFile) RecordHeaderDatasetPath(rid RecordID) (string, error) {
	if r.strategy.sourceIDIndex {
		entry, err := r.recordIndex(rid)
		if err != nil {
			return "", err
		}
		if path, ok := entry.paths[entry.headerSourceID]; ok && entry.hasHeaderSourceID {
			return path, nil
		}
	}
	name, err := r.recordName(rid)
	if err != nil {
		return "", err
	}
	return name + "/" + r.layout.RecordHeaderDatasetName(), nil
}

func (r *RawDataFile) RecordHeader(rid RecordID) (*RecordHeader, error) {
	path, err := r.RecordHeaderDatasetPath(rid)
	if err != nil {
		return nil, err
	}
	return r.RecordHeaderAt(path)
}

// Record reads the header and every fragment of rid.
func (r *RawDataFile) Record(rid RecordID) (*Record, error) {
	header, err := r.RecordHeader(rid)
	if err != nil {
		return nil, err
	}
	paths, err := r.FragmentDatasetPaths(rid)
	if err != nil {
		return nil, err
	}
	record := &Record{Header: *header, Fragments: make([]*Fragment, 0, len(paths))}
	for _, path := range paths {
		fragment, err := r.FragmentAt(path)
		if err != nil {
			return nil, err
		}
		record.Fragments = append(record.Fragments, fragment)
	}
	return record, nil
}

// DatasetPaths lists every dataset below groupPath, depth first in name
// order. An empty groupPath or "/" walks the whole file.
func (r *RawDataFile) DatasetPaths(groupPath string) ([]string, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	group := r.file.Root()
	prefix := ""
	if elements := container.SplitPath(groupPath); len(elements) > 0 {
		g, err := group.OpenGroup(groupPath)
		if err != nil {
			return nil, &ErrReadDataset{Path: groupPath, Err: err}
		}
		defer g.Close()
		group = g
		for _, e := range elements {
			prefix += e + "/"
		}
	}
	paths := []string{}
	if err := walkDatasets(group, prefix, &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

func walkDatasets(group container.Group, prefix string, paths *[]string) error {
	children, err := group.Children()
	if err != nil {
		return fmt.Errorf("error listing %q: %v: %w", group.Path(), err, ErrContainer)
	}
	for _, child := range children {
		switch child.Type {
		case container.DatasetObject:
			*paths = append(*paths, prefix+child.Name)
		case container.GroupObject:
			sub, err := group.OpenGroup(child.Name)
			if err != nil {
				return fmt.Errorf("error opening %q: %v: %w", child.Name, err, ErrContainer)
			}
			err = walkDatasets(sub, prefix+child.Name+"/", paths)
			sub.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *RawDataFile) RecordHeaderDatasetPaths() ([]string, error) {
	ids, err := r.AllRecordIDs()
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(ids))
	for _, rid := range ids {
		path := r.recordNames[rid] + "/" + r.layout.RecordHeaderDatasetName()
		if r.file.Root().Exists(path) {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// FragmentDatasetPaths lists the fragment datasets of rid, leaving out the
// record header.
func (r *RawDataFile) FragmentDatasetPaths(rid RecordID) ([]string, error) {
	name, err := r.recordName(rid)
	if err != nil {
		return nil, err
	}
	all, err := r.DatasetPaths(name)
	if err != nil {
		return nil, err
	}
	header := name + "/" + r.layout.RecordHeaderDatasetName()
	return slices.DeleteFunc(all, func(p string) bool { return p == header }), nil
}

func (r *RawDataFile) AllFragmentDatasetPaths() ([]string, error) {
	ids, err := r.AllRecordIDs()
	if err != nil {
		return nil, err
	}
	paths := []string{}
	for _, rid := range ids {
		recordPaths, err := r.FragmentDatasetPaths(rid)
		if err != nil {
			return nil, err
		}
		paths = append(paths, recordPaths...)
	}
	return paths, nil
}

func (r *RawDataFile) FragmentDatasetPathsForSubsystem(rid RecordID, subsystem Subsystem) ([]string, error) {
	name, err := r.recordName(rid)
	if err != nil {
		return nil, err
	}
	pp, err := r.layout.PathParamsFor(subsystem)
	if err != nil {
		return nil, err
	}
	groupPath := name + "/" + pp.DetectorGroupName
	if !r.file.Root().Exists(groupPath) {
		return []string{}, nil
	}
	return r.DatasetPaths(groupPath)
}

// SourceIDsFromPaths recovers SourceIDs from fragment dataset paths
// through the layout.
func (r *RawDataFile) SourceIDsFromPaths(paths []string) ([]SourceID, error) {
	set := SourceIDSet{}
	for _, path := range paths {
		sid, err := r.layout.SourceIDFromPathElements(container.SplitPath(path))
		if err != nil {
			return nil, err
		}
		set.Add(sid)
	}
	return set.Sorted(), nil
}
