package rawdata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

const (
	TriggerRecordPrefix = "TriggerRecord"
	TimeSlicePrefix     = "TimeSlice"
)

// PathParams describes how one subsystem's fragments are laid out below a
// record group.
type PathParams struct {
	DetectorGroupType      string `json:"detector_group_type"`
	DetectorGroupName      string `json:"detector_group_name"`
	RegionNamePrefix       string `json:"region_name_prefix"`
	DigitsForRegionNumber  int    `json:"digits_for_region_number"`
	ElementNamePrefix      string `json:"element_name_prefix"`
	DigitsForElementNumber int    `json:"digits_for_element_number"`
}

type FileLayoutParams struct {
	RecordNamePrefix        string       `json:"record_name_prefix"`
	DigitsForRecordNumber   int          `json:"digits_for_record_number"`
	DigitsForSequenceNumber int          `json:"digits_for_sequence_number"`
	RecordHeaderDatasetName string       `json:"record_header_dataset_name"`
	PathParamList           []PathParams `json:"path_param_list"`
}

func (p FileLayoutParams) JSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func ParseFileLayoutParams(text string) (FileLayoutParams, error) {
	var params FileLayoutParams
	if err := json.Unmarshal([]byte(text), &params); err != nil {
		return params, fmt.Errorf("error parsing file layout: %v: %w", err, ErrConfiguration)
	}
	return params, nil
}

func subsystemPathParams(subsystem Subsystem) PathParams {
	return PathParams{
		DetectorGroupType:      subsystem.String(),
		DetectorGroupName:      subsystem.String(),
		RegionNamePrefix:       "Region",
		DigitsForRegionNumber:  3,
		ElementNamePrefix:      "Element",
		DigitsForElementNumber: 2,
	}
}

// LegacyFileLayoutParams is the fixed layout of version 0 and 1 files.
func LegacyFileLayoutParams() FileLayoutParams {
	return FileLayoutParams{
		RecordNamePrefix:        TriggerRecordPrefix,
		DigitsForRecordNumber:   6,
		DigitsForSequenceNumber: 0,
		RecordHeaderDatasetName: "TriggerRecordHeader",
		PathParamList: []PathParams{
			subsystemPathParams(DetectorReadout),
			subsystemPathParams(HwSignalsInterface),
			subsystemPathParams(Trigger),
		},
	}
}

// DefaultFileLayoutParams is the trigger record layout written by default.
func DefaultFileLayoutParams() FileLayoutParams {
	return FileLayoutParams{
		RecordNamePrefix:        TriggerRecordPrefix,
		DigitsForRecordNumber:   6,
		DigitsForSequenceNumber: 4,
		RecordHeaderDatasetName: "TriggerRecordHeader",
		PathParamList: []PathParams{
			subsystemPathParams(DetectorReadout),
			subsystemPathParams(HwSignalsInterface),
			subsystemPathParams(Trigger),
			subsystemPathParams(TRBuilder),
		},
	}
}

// TimeSliceFileLayoutParams is the default layout for time slice files.
func TimeSliceFileLayoutParams() FileLayoutParams {
	params := DefaultFileLayoutParams()
	params.RecordNamePrefix = TimeSlicePrefix
	params.DigitsForSequenceNumber = 0
	params.RecordHeaderDatasetName = "TimeSliceHeader"
	return params
}

// FragmentLocation is what a fragment path encodes below the record group.
type FragmentLocation struct {
	Subsystem Subsystem
	Region    uint16
	Element   uint16
}

// FileLayout maps record and fragment identifiers onto container paths and
// back. It does not change after construction.
type FileLayout struct {
	params     FileLayoutParams
	version    LayoutVersion
	strategy   layoutStrategy
	pathParams map[Subsystem]PathParams
	groupTypes map[string]Subsystem
	warnings   []string
}

func NewFileLayout(params FileLayoutParams, version LayoutVersion) (*FileLayout, error) {
	l := &FileLayout{
		version:  version,
		strategy: strategyFor(version),
	}
	if l.strategy.legacyDefaults {
		params = LegacyFileLayoutParams()
	}
	// Keep the caller's slice untouched.
	params.PathParamList = append([]PathParams(nil), params.PathParamList...)
	l.params = params

	if err := l.fillPathParamsMaps(); err != nil {
		return nil, err
	}
	if l.strategy.checkConfig {
		if err := l.checkConfig(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *FileLayout) fillPathParamsMaps() error {
	l.pathParams = make(map[Subsystem]PathParams, len(l.params.PathParamList))
	l.groupTypes = make(map[string]Subsystem, len(l.params.PathParamList))
	for _, pp := range l.params.PathParamList {
		subsystem := SubsystemFromString(pp.DetectorGroupType)
		if subsystem == SubsystemUnknown {
			return &ErrInvalidSubsystem{GroupType: pp.DetectorGroupType}
		}
		if _, dup := l.pathParams[subsystem]; dup {
			return &ErrDuplicatePathParams{Field: "detector group type", Value: pp.DetectorGroupType}
		}
		if _, dup := l.groupTypes[pp.DetectorGroupName]; dup {
			return &ErrDuplicatePathParams{Field: "detector group name", Value: pp.DetectorGroupName}
		}
		l.pathParams[subsystem] = pp
		l.groupTypes[pp.DetectorGroupName] = subsystem
	}
	return nil
}

func (l *FileLayout) checkConfig() error {
	switch l.params.RecordNamePrefix {
	case TriggerRecordPrefix:
		if l.params.DigitsForSequenceNumber == 0 {
			l.warn(fmt.Sprintf("%s layouts need sequence number digits, using 4", TriggerRecordPrefix))
			l.params.DigitsForSequenceNumber = 4
		}
	case TimeSlicePrefix:
		if l.params.DigitsForSequenceNumber != 0 {
			l.warn(fmt.Sprintf("%s layouts have no sequence numbers, ignoring %d digits",
				TimeSlicePrefix, l.params.DigitsForSequenceNumber))
			l.params.DigitsForSequenceNumber = 0
		}
	default:
		return &ErrInvalidRecordName{Prefix: l.params.RecordNamePrefix}
	}
	return nil
}

func (l *FileLayout) warn(message string) {
	l.warnings = append(l.warnings, message)
	logger.Warn(message, "filelayout")
}

// Warnings lists the corrections made to the configuration at construction.
func (l *FileLayout) Warnings() []string {
	return append([]string(nil), l.warnings...)
}

func (l *FileLayout) Params() FileLayoutParams {
	params := l.params
	params.PathParamList = append([]PathParams(nil), l.params.PathParamList...)
	return params
}

func (l *FileLayout) Version() LayoutVersion { return l.version }

func (l *FileLayout) RecordNamePrefix() string { return l.params.RecordNamePrefix }

func (l *FileLayout) RecordHeaderDatasetName() string { return l.params.RecordHeaderDatasetName }

func (l *FileLayout) IsTimeSlice() bool { return l.params.RecordNamePrefix == TimeSlicePrefix }

func (l *FileLayout) PathParamsFor(subsystem Subsystem) (PathParams, error) {
	pp, ok := l.pathParams[subsystem]
	if !ok {
		return PathParams{}, &ErrUnconfiguredSubsystem{Subsystem: subsystem}
	}
	return pp, nil
}

func countDigits[T constraints.Unsigned](value T) int {
	n := 1
	for value >= 10 {
		value /= 10
		n++
	}
	return n
}

// pad renders value zero padded to width. A value with more digits than
// width is rendered at its natural width.
func pad[T constraints.Unsigned](value T, width int, field string) string {
	if width > 0 && countDigits(value) > width {
		logger.Warn(fmt.Sprintf("%s %d needs more than %d digits, writing it unpadded", field, value, width), "filelayout")
		width = 0
	}
	return fmt.Sprintf("%0*d", width, value)
}

func (l *FileLayout) RecordNumberString(recordNumber uint64, sequenceNumber uint32) string {
	var b strings.Builder
	b.WriteString(l.params.RecordNamePrefix)
	b.WriteString(pad(recordNumber, l.params.DigitsForRecordNumber, "record number"))
	if l.params.DigitsForSequenceNumber > 0 {
		b.WriteByte('.')
		b.WriteString(pad(sequenceNumber, l.params.DigitsForSequenceNumber, "sequence number"))
	}
	return b.String()
}

func (l *FileLayout) RecordHeaderPath(recordNumber uint64, sequenceNumber uint32) string {
	return l.RecordNumberString(recordNumber, sequenceNumber) + "/" + l.params.RecordHeaderDatasetName
}

func (l *FileLayout) HeaderPathElements(header *RecordHeader) []string {
	return []string{
		l.RecordNumberString(header.RecordNumber, header.SequenceNumber),
		l.params.RecordHeaderDatasetName,
	}
}

func (l *FileLayout) fragmentElements(recordNumber uint64, sequenceNumber uint32, sid SourceID) ([]string, error) {
	pp, err := l.PathParamsFor(sid.Subsystem)
	if err != nil {
		return nil, err
	}
	return []string{
		l.RecordNumberString(recordNumber, sequenceNumber),
		pp.DetectorGroupName,
		pp.RegionNamePrefix + pad(sid.Region(), pp.DigitsForRegionNumber, "region number"),
		pp.ElementNamePrefix + pad(sid.Element(), pp.DigitsForElementNumber, "element number"),
	}, nil
}

func (l *FileLayout) FragmentPathElements(header *FragmentHeader) ([]string, error) {
	return l.fragmentElements(header.TriggerNumber, header.SequenceNumber, header.ElementID)
}

func (l *FileLayout) FragmentPath(recordNumber uint64, sequenceNumber uint32, sid SourceID) (string, error) {
	elements, err := l.fragmentElements(recordNumber, sequenceNumber, sid)
	if err != nil {
		return "", err
	}
	return strings.Join(elements, "/"), nil
}

// FragmentTypePath is the detector group holding a subsystem's fragments.
func (l *FileLayout) FragmentTypePath(recordNumber uint64, sequenceNumber uint32, subsystem Subsystem) (string, error) {
	pp, err := l.PathParamsFor(subsystem)
	if err != nil {
		return "", err
	}
	return l.RecordNumberString(recordNumber, sequenceNumber) + "/" + pp.DetectorGroupName, nil
}

func (l *FileLayout) FragmentRegionPath(recordNumber uint64, sequenceNumber uint32, subsystem Subsystem, region uint16) (string, error) {
	pp, err := l.PathParamsFor(subsystem)
	if err != nil {
		return "", err
	}
	return l.RecordNumberString(recordNumber, sequenceNumber) + "/" + pp.DetectorGroupName + "/" +
		pp.RegionNamePrefix + pad(region, pp.DigitsForRegionNumber, "region number"), nil
}

// ParseRecordName reads a record group name back into a RecordID. It
// reports false for names that are not record groups of this layout.
func (l *FileLayout) ParseRecordName(name string) (RecordID, bool) {
	rest, ok := strings.CutPrefix(name, l.params.RecordNamePrefix)
	if !ok || rest == "" {
		return RecordID{}, false
	}
	recordPart, sequencePart, sequenced := strings.Cut(rest, ".")
	recordNumber, err := strconv.ParseUint(recordPart, 10, 64)
	if err != nil {
		return RecordID{}, false
	}
	rid := RecordID{RecordNumber: recordNumber}
	if sequenced {
		sequenceNumber, err := strconv.ParseUint(sequencePart, 10, 32)
		if err != nil {
			return RecordID{}, false
		}
		rid.SequenceNumber = uint32(sequenceNumber)
	}
	return rid, true
}

func parsePrefixedNumber(element, prefix string) (uint16, error) {
	digits, ok := strings.CutPrefix(element, prefix)
	if !ok {
		return 0, &ErrUnknownGroupName{Name: element}
	}
	value, err := strconv.ParseUint(digits, 10, 16)
	if err != nil {
		return 0, &ErrUnknownGroupName{Name: element}
	}
	return uint16(value), nil
}

// LocationFromPathElements reads the detector group, region and element
// back from [record, group, region, element] path elements.
func (l *FileLayout) LocationFromPathElements(elements []string) (FragmentLocation, error) {
	if len(elements) != 4 {
		return FragmentLocation{}, fmt.Errorf("fragment paths have 4 elements, got %d (%q): %w",
			len(elements), strings.Join(elements, "/"), ErrConfiguration)
	}
	subsystem, ok := l.groupTypes[elements[1]]
	if !ok {
		return FragmentLocation{}, &ErrUnknownGroupName{Name: elements[1]}
	}
	pp := l.pathParams[subsystem]
	region, err := parsePrefixedNumber(elements[2], pp.RegionNamePrefix)
	if err != nil {
		return FragmentLocation{}, err
	}
	element, err := parsePrefixedNumber(elements[3], pp.ElementNamePrefix)
	if err != nil {
		return FragmentLocation{}, err
	}
	return FragmentLocation{Subsystem: subsystem, Region: region, Element: element}, nil
}

func (l *FileLayout) SourceIDFromPathElements(elements []string) (SourceID, error) {
	loc, err := l.LocationFromPathElements(elements)
	if err != nil {
		return SourceID{}, err
	}
	return SourceIDFromLocation(loc.Subsystem, loc.Region, loc.Element), nil
}
