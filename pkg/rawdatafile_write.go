package rawdata

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/next-exp/rawdata_go/pkg/container"
)

// OpenForWrite creates fileName plus the in-progress suffix and writes the
// file-level attributes. The file gets its final name on Close.
func OpenForWrite(fileName string, runNumber, fileIndex uint64, appName string,
	params FileLayoutParams, geoIDs SourceIDGeoIDMap, opts ...Option) (*RawDataFile, error) {
	o := applyOptions(opts)
	if o.mode == container.ReadOnly {
		return nil, &ErrIncompatibleOpenMode{Filename: fileName}
	}

	layout, err := NewFileLayout(params, o.layoutVersion)
	if err != nil {
		return nil, err
	}

	openName := fileName + o.inProgressSuffix
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Creating file: %s", openName), "writer")
	}
	f, err := o.opener.Open(openName, o.mode)
	if err != nil {
		return nil, &ErrOpenFile{Filename: openName, Err: err}
	}

	r := &RawDataFile{
		file:       f,
		fileName:   fileName,
		openName:   openName,
		writable:   true,
		opts:       o,
		layout:     layout,
		strategy:   strategyFor(layout.Version()),
		sidHandler: NewSourceIDHandler(layout.Version()),
		recordType: layout.RecordNamePrefix(),
		fileGeoIDs: geoIDs.Clone(),
	}
	if err := r.writeFileAttributes(runNumber, fileIndex, appName); err != nil {
		return nil, errors.Join(err, f.Close())
	}
	return r, nil
}

func (r *RawDataFile) writeFileAttributes(runNumber, fileIndex uint64, appName string) error {
	root := r.file.Root()
	layoutText, err := r.layout.Params().JSON()
	if err != nil {
		return &ErrAttribute{Name: FileLayoutParamsAttr, Err: err}
	}

	writes := []func() error{
		func() error { return writeUintIfAbsent(root, RunNumberAttr, runNumber) },
		func() error { return writeUintIfAbsent(root, FileIndexAttr, fileIndex) },
		func() error { return writeStringIfAbsent(root, CreationTimestampAttr, timestampString(time.Now())) },
		func() error { return writeStringIfAbsent(root, ApplicationNameAttr, appName) },
		func() error { return writeStringIfAbsent(root, FileLayoutParamsAttr, layoutText) },
		func() error { return writeUintIfAbsent(root, FileLayoutVersionAttr, uint64(r.layout.Version())) },
		func() error { return writeStringIfAbsent(root, RecordTypeAttr, r.recordType) },
	}
	if r.strategy.sourceIDIndex {
		writes = append(writes, func() error { return StoreFileLevelGeoIDInfo(root, r.fileGeoIDs) })
	}
	for _, write := range writes {
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}

// writeDataset creates the groups along elements and a dataset holding
// data at the last element.
func (r *RawDataFile) writeDataset(elements []string, data []byte) error {
	path := strings.Join(elements, "/")
	group := r.file.Root()
	for _, name := range elements[:len(elements)-1] {
		var (
			next container.Group
			err  error
		)
		if group.Exists(name) {
			next, err = group.OpenGroup(name)
		} else {
			next, err = group.CreateGroup(name)
		}
		if err != nil {
			return &ErrCreateGroup{GroupName: container.JoinPath(group.Path(), name), Err: err}
		}
		defer next.Close()
		group = next
	}

	ds, err := group.CreateDataset(elements[len(elements)-1], len(data))
	if err != nil {
		return &ErrCreateDataset{DatasetName: path, Err: err}
	}
	defer ds.Close()
	if err := ds.WriteRaw(data); err != nil {
		return &ErrCreateDataset{DatasetName: path, Err: err}
	}

	r.recordedSize += uint64(len(data))
	BytesWritten.Add(float64(len(data)))
	return nil
}

// Write stores the record header and then every fragment, and for
// indexed layouts the record's SourceID index on its group. Unset magic
// and version fields are filled in on the stored copy.
func (r *RawDataFile) Write(record *Record) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if !r.writable {
		return &ErrIncompatibleOpenMode{Filename: r.fileName}
	}

	headerMagic := RecordHeaderMagic
	if r.layout.IsTimeSlice() {
		headerMagic = TimeSliceHeaderMagic
	}
	header, err := record.Header.withDefaults(headerMagic)
	if err != nil {
		return err
	}
	for _, fragment := range record.Fragments {
		if err := fragment.checkMagic(); err != nil {
			return err
		}
	}

	paths := SourceIDPathMap{}
	fragmentTypes := FragmentTypeSourceIDMap{}
	subdetectors := SubdetectorSourceIDMap{}

	headerElements := r.layout.HeaderPathElements(&header)
	if err := r.writeDataset(headerElements, header.Bytes()); err != nil {
		return err
	}
	paths.Add(header.ElementID, strings.Join(headerElements, "/"))

	for _, fragment := range record.Fragments {
		elements, err := r.layout.FragmentPathElements(&fragment.Header)
		if err != nil {
			return err
		}
		if err := r.writeDataset(elements, fragment.Bytes()); err != nil {
			return err
		}
		sid := fragment.Header.ElementID
		paths.Add(sid, strings.Join(elements, "/"))
		fragmentTypes.Add(fragment.Header.FragmentType, sid)
		subdetectors.Add(fragment.Header.DetectorID, sid)
	}

	if r.strategy.sourceIDIndex {
		recordGroup, err := r.file.Root().OpenGroup(headerElements[0])
		if err != nil {
			return &ErrCreateGroup{GroupName: headerElements[0], Err: err}
		}
		defer recordGroup.Close()
		if err := StoreRecordHeaderSourceID(recordGroup, header.ElementID); err != nil {
			return err
		}
		if err := StoreRecordLevelPathInfo(recordGroup, paths); err != nil {
			return err
		}
		if err := StoreRecordLevelFragmentTypeInfo(recordGroup, fragmentTypes); err != nil {
			return err
		}
		if err := StoreRecordLevelSubdetectorInfo(recordGroup, subdetectors); err != nil {
			return err
		}
	}

	RecordsWritten.WithLabelValues(r.recordType).Inc()
	if configuration.Verbosity > 1 {
		logger.Info(fmt.Sprintf("Wrote record %v with %d fragments", record.ID(), len(record.Fragments)), "writer")
	}
	return nil
}
