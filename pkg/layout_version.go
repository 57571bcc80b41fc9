package rawdata

// LayoutVersion is the on-disk schema version stored in the
// filelayout_version attribute.
type LayoutVersion uint32

const (
	// LayoutVersion0 and LayoutVersion1 predate configurable layouts.
	LayoutVersion0 LayoutVersion = 0
	LayoutVersion1 LayoutVersion = 1
	// LayoutVersion2 stores the layout configuration but no SourceID index.
	LayoutVersion2 LayoutVersion = 2
	// LayoutVersion3 adds the SourceID index attributes.
	LayoutVersion3 LayoutVersion = 3

	CurrentLayoutVersion = LayoutVersion3
)

// layoutStrategy is what a reader or writer may assume about a file of a
// given version.
type layoutStrategy struct {
	// legacyDefaults ignores the supplied layout and uses the fixed one.
	legacyDefaults bool
	// checkConfig repairs the prefix/sequence digits and rejects unknown prefixes.
	checkConfig bool
	// checkRecordType compares the record_type attribute with the prefix.
	checkRecordType bool
	// sourceIDIndex means the index attributes are written and read.
	sourceIDIndex bool
	// derivedPaths allows (record, SourceID) lookups through the layout
	// when there is no index.
	derivedPaths bool
}

var layoutStrategies = []struct {
	minimum  LayoutVersion
	strategy layoutStrategy
}{
	{LayoutVersion3, layoutStrategy{checkConfig: true, checkRecordType: true, sourceIDIndex: true}},
	{LayoutVersion2, layoutStrategy{checkConfig: true, checkRecordType: true, derivedPaths: true}},
	{LayoutVersion0, layoutStrategy{legacyDefaults: true}},
}

func strategyFor(v LayoutVersion) layoutStrategy {
	for _, s := range layoutStrategies {
		if v >= s.minimum {
			return s.strategy
		}
	}
	return layoutStrategy{legacyDefaults: true}
}

func (v LayoutVersion) HasSourceIDIndex() bool {
	return strategyFor(v).sourceIDIndex
}
