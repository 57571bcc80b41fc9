package rawdata

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/next-exp/rawdata_go/pkg/container"
)

// Root attribute names.
const (
	RunNumberAttr         = "run_number"
	FileIndexAttr         = "file_index"
	CreationTimestampAttr = "creation_timestamp"
	ApplicationNameAttr   = "application_name"
	RecordTypeAttr        = "record_type"
	FileLayoutParamsAttr  = "filelayout_params"
	FileLayoutVersionAttr = "filelayout_version"
	RecordedSizeAttr      = "recorded_size"
	ClosingTimestampAttr  = "closing_timestamp"
)

// RawDataFile is an open raw-data file, either being written or being
// read. A handle must not be used from more than one goroutine at a time;
// separate read handles on the same file are independent.
type RawDataFile struct {
	file       container.File
	fileName   string
	openName   string
	writable   bool
	closed     bool
	opts       options
	layout     *FileLayout
	strategy   layoutStrategy
	sidHandler *SourceIDHandler
	recordType string

	recordedSize uint64
	fileGeoIDs   SourceIDGeoIDMap

	recordIDs   []RecordID
	recordNames map[RecordID]string
	cache       *RecordCache
}

func timestampString(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func (r *RawDataFile) FileName() string { return r.fileName }

func (r *RawDataFile) Layout() *FileLayout { return r.layout }

func (r *RawDataFile) Version() LayoutVersion { return r.layout.Version() }

func (r *RawDataFile) RecordType() string { return r.recordType }

func (r *RawDataFile) IsTriggerRecordFile() bool { return r.recordType == TriggerRecordPrefix }

func (r *RawDataFile) IsTimeSliceFile() bool { return r.recordType == TimeSlicePrefix }

// RecordedSize is the number of dataset bytes written so far, or the
// recorded_size attribute of a file opened for reading.
func (r *RawDataFile) RecordedSize() uint64 { return r.recordedSize }

// GeoIDs returns a copy of the file-level geo-id map.
func (r *RawDataFile) GeoIDs() SourceIDGeoIDMap { return r.fileGeoIDs.Clone() }

func (r *RawDataFile) checkOpen() error {
	if r.closed {
		return fmt.Errorf("file %q: %w", r.fileName, container.ErrClosed)
	}
	return nil
}

func (r *RawDataFile) UintAttribute(name string) (uint64, error) {
	if err := r.checkOpen(); err != nil {
		return 0, err
	}
	value, err := r.file.Root().ReadUint(name)
	if err != nil {
		return 0, &ErrAttribute{Name: name, Err: err}
	}
	return value, nil
}

func (r *RawDataFile) StringAttribute(name string) (string, error) {
	if err := r.checkOpen(); err != nil {
		return "", err
	}
	value, err := r.file.Root().ReadString(name)
	if err != nil {
		return "", &ErrAttribute{Name: name, Err: err}
	}
	return value, nil
}

func (r *RawDataFile) RunNumber() (uint64, error) { return r.UintAttribute(RunNumberAttr) }

func (r *RawDataFile) FileIndex() (uint64, error) { return r.UintAttribute(FileIndexAttr) }

func (r *RawDataFile) ApplicationName() (string, error) { return r.StringAttribute(ApplicationNameAttr) }

// Close finishes the file. A writer records its size and closing time,
// flushes, closes and renames the in-progress file to its final name.
// Every step runs even if an earlier one failed; the failures are
// joined. Closing twice is a no-op.
func (r *RawDataFile) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	errs := []error{}
	if r.writable {
		root := r.file.Root()
		if err := root.WriteUint(RecordedSizeAttr, r.recordedSize); err != nil {
			errs = append(errs, &ErrAttribute{Name: RecordedSizeAttr, Err: err})
		}
		if err := root.WriteString(ClosingTimestampAttr, timestampString(time.Now())); err != nil {
			errs = append(errs, &ErrAttribute{Name: ClosingTimestampAttr, Err: err})
		}
		if err := r.file.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("error flushing file %q: %w", r.openName, err))
		}
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file %q: %w", r.openName, err))
	}
	if r.writable && r.openName != r.fileName {
		if err := os.Rename(r.openName, r.fileName); err != nil {
			errs = append(errs, fmt.Errorf("error renaming %q to %q: %w", r.openName, r.fileName, err))
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		logger.Error(err.Error())
		return err
	}
	return nil
}
