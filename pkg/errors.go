package rawdata

import (
	"errors"
	"fmt"
)

// Error categories. Errors from RawDataFile and FileLayout operations
// match one of them with errors.Is.
var (
	// ErrConfiguration is a malformed or unrecognised layout configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrContainer is a storage-layer open, create or read failure.
	ErrContainer = errors.New("container error")
	// ErrRecordNotFound is a record id that is not in the file.
	ErrRecordNotFound = errors.New("record not found")
	// ErrLookup is a SourceID or path missing from a known record.
	ErrLookup = errors.New("lookup error")
	// ErrVersionMismatch is an index-dependent operation on a file that
	// predates the index.
	ErrVersionMismatch = errors.New("file layout version mismatch")
)

// ErrInvalidRecordName represents an unrecognised record name prefix.
type ErrInvalidRecordName struct {
	Prefix string
}

func (e *ErrInvalidRecordName) Error() string {
	return fmt.Sprintf("invalid record name prefix %q, expected %q or %q", e.Prefix, TriggerRecordPrefix, TimeSlicePrefix)
}

func (e *ErrInvalidRecordName) Is(target error) bool { return target == ErrConfiguration }

// ErrInvalidSubsystem represents a detector group type that is not a subsystem.
type ErrInvalidSubsystem struct {
	GroupType string
}

func (e *ErrInvalidSubsystem) Error() string {
	return fmt.Sprintf("detector group type %q is not a known subsystem", e.GroupType)
}

func (e *ErrInvalidSubsystem) Is(target error) bool { return target == ErrConfiguration }

// ErrDuplicatePathParams represents two path parameter rows sharing a
// group type or a display name.
type ErrDuplicatePathParams struct {
	Field string
	Value string
}

func (e *ErrDuplicatePathParams) Error() string {
	return fmt.Sprintf("duplicate %s %q in path parameters", e.Field, e.Value)
}

func (e *ErrDuplicatePathParams) Is(target error) bool { return target == ErrConfiguration }

// ErrUnconfiguredSubsystem represents a subsystem with no path parameters.
type ErrUnconfiguredSubsystem struct {
	Subsystem Subsystem
}

func (e *ErrUnconfiguredSubsystem) Error() string {
	return fmt.Sprintf("no path parameters configured for subsystem %v (%d)", e.Subsystem, uint16(e.Subsystem))
}

func (e *ErrUnconfiguredSubsystem) Is(target error) bool { return target == ErrConfiguration }

// ErrUnknownGroupName represents a path element that does not match the layout.
type ErrUnknownGroupName struct {
	Name string
}

func (e *ErrUnknownGroupName) Error() string {
	return fmt.Sprintf("path element %q does not match the file layout", e.Name)
}

func (e *ErrUnknownGroupName) Is(target error) bool { return target == ErrConfiguration }

// ErrBadRecordType represents a stored record type that disagrees with the layout.
type ErrBadRecordType struct {
	RecordType string
	Prefix     string
}

func (e *ErrBadRecordType) Error() string {
	return fmt.Sprintf("record type %q does not match layout prefix %q", e.RecordType, e.Prefix)
}

func (e *ErrBadRecordType) Is(target error) bool { return target == ErrConfiguration }

// ErrWrongRecordType represents a record-kind accessor used on the other kind of file.
type ErrWrongRecordType struct {
	Wanted string
	Actual string
}

func (e *ErrWrongRecordType) Error() string {
	return fmt.Sprintf("file holds %q records, not %q", e.Actual, e.Wanted)
}

func (e *ErrWrongRecordType) Is(target error) bool { return target == ErrLookup }

// ErrBadMagic represents a header handed to Write with a magic number
// the reader would refuse.
type ErrBadMagic struct {
	What  string
	Magic uint32
}

func (e *ErrBadMagic) Error() string {
	return fmt.Sprintf("%s magic 0x%08x is not a known magic number", e.What, e.Magic)
}

func (e *ErrBadMagic) Is(target error) bool { return target == ErrConfiguration }

// ErrIncompatibleOpenMode represents a write open requested in read-only mode.
type ErrIncompatibleOpenMode struct {
	Filename string
}

func (e *ErrIncompatibleOpenMode) Error() string {
	return fmt.Sprintf("file %q cannot be opened for writing in read-only mode", e.Filename)
}

func (e *ErrIncompatibleOpenMode) Is(target error) bool { return target == ErrConfiguration }

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error         { return e.Err }
func (e *ErrOpenFile) Is(target error) bool { return target == ErrContainer }

// ErrCreateGroup represents an error when creating a group.
type ErrCreateGroup struct {
	GroupName string
	Err       error
}

func (e *ErrCreateGroup) Error() string {
	return fmt.Sprintf("error creating group %q: %v", e.GroupName, e.Err)
}

func (e *ErrCreateGroup) Unwrap() error         { return e.Err }
func (e *ErrCreateGroup) Is(target error) bool { return target == ErrContainer }

// ErrCreateDataset represents an error when creating or writing a dataset.
type ErrCreateDataset struct {
	DatasetName string
	Err         error
}

func (e *ErrCreateDataset) Error() string {
	return fmt.Sprintf("error creating dataset %q: %v", e.DatasetName, e.Err)
}

func (e *ErrCreateDataset) Unwrap() error         { return e.Err }
func (e *ErrCreateDataset) Is(target error) bool { return target == ErrContainer }

// ErrReadDataset represents an error when opening or reading a dataset.
type ErrReadDataset struct {
	Path string
	Err  error
}

func (e *ErrReadDataset) Error() string {
	return fmt.Sprintf("error reading dataset %q: %v", e.Path, e.Err)
}

func (e *ErrReadDataset) Unwrap() error         { return e.Err }
func (e *ErrReadDataset) Is(target error) bool { return target == ErrLookup }

// ErrAttribute represents an error when reading or writing an attribute.
type ErrAttribute struct {
	Name string
	Err  error
}

func (e *ErrAttribute) Error() string {
	return fmt.Sprintf("error accessing attribute %q: %v", e.Name, e.Err)
}

func (e *ErrAttribute) Unwrap() error         { return e.Err }
func (e *ErrAttribute) Is(target error) bool { return target == ErrContainer }

// ErrRecordIDNotFound represents a record id that is not in the file.
type ErrRecordIDNotFound struct {
	RecordID RecordID
	Filename string
}

func (e *ErrRecordIDNotFound) Error() string {
	return fmt.Sprintf("record %v not found in file %q", e.RecordID, e.Filename)
}

func (e *ErrRecordIDNotFound) Is(target error) bool { return target == ErrRecordNotFound }

// ErrSourceIDNotFound represents a SourceID missing from a known record.
type ErrSourceIDNotFound struct {
	RecordID RecordID
	SourceID SourceID
}

func (e *ErrSourceIDNotFound) Error() string {
	return fmt.Sprintf("source id %v not found in record %v", e.SourceID, e.RecordID)
}

func (e *ErrSourceIDNotFound) Is(target error) bool { return target == ErrLookup }

// ErrIncompatibleVersion represents an operation the file's layout version
// cannot answer.
type ErrIncompatibleVersion struct {
	Operation string
	Version   LayoutVersion
	Minimum   LayoutVersion
}

func (e *ErrIncompatibleVersion) Error() string {
	return fmt.Sprintf("%s needs file layout version %d or later, file has version %d",
		e.Operation, e.Minimum, e.Version)
}

func (e *ErrIncompatibleVersion) Is(target error) bool { return target == ErrVersionMismatch }
