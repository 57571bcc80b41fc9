package rawdata

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/next-exp/rawdata_go/pkg/container"
	"github.com/next-exp/rawdata_go/pkg/container/treestore"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const testRunNumber = 53

type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (l *recordingLogger) Info(message string, module string) {}

func (l *recordingLogger) Warn(message string, module string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, message)
}

func (l *recordingLogger) Error(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, message)
}

func TestMain(m *testing.M) {
	SetLogger(nil)
	os.Exit(m.Run())
}

func tpcSourceID(link uint32) SourceID { return NewSourceID(DetectorReadout, link) }

func pdsSourceID(link uint32) SourceID { return NewSourceID(DetectorReadout, 1<<16|link) }

// makeRecord builds a record with four TPC and four PDS fragments.
func makeRecord(number uint64, sequence uint32) *Record {
	record := &Record{Header: RecordHeader{
		Magic:                  RecordHeaderMagic,
		Version:                RecordHeaderVersion,
		RecordNumber:           number,
		Timestamp:              1000 * number,
		NumRequestedComponents: 8,
		RunNumber:              testRunNumber,
		SequenceNumber:         sequence,
		ElementID:              NewSourceID(TRBuilder, 0),
	}}
	for link := uint32(0); link < 4; link++ {
		record.Fragments = append(record.Fragments, NewFragment(FragmentHeader{
			TriggerNumber:    number,
			TriggerTimestamp: 1000 * number,
			RunNumber:        testRunNumber,
			FragmentType:     WIB,
			SequenceNumber:   sequence,
			DetectorID:       TPC,
			ElementID:        tpcSourceID(link),
		}, []byte{byte(number), byte(link), 0xAA}))
		record.Fragments = append(record.Fragments, NewFragment(FragmentHeader{
			TriggerNumber:    number,
			TriggerTimestamp: 1000 * number,
			RunNumber:        testRunNumber,
			FragmentType:     DAPHNE,
			SequenceNumber:   sequence,
			DetectorID:       PDS,
			ElementID:        pdsSourceID(link),
		}, []byte{byte(number), byte(link), 0xBB, 0xCC}))
	}
	return record
}

func testGeoIDs() SourceIDGeoIDMap {
	m := SourceIDGeoIDMap{}
	for link := uint32(0); link < 4; link++ {
		m.Add(tpcSourceID(link), GeoID{DetID: 3, CrateID: 1, StreamID: uint16(link)}.Pack())
	}
	return m
}

// writeTestFile writes records 1..5 and returns the final file name.
func writeTestFile(t *testing.T, params FileLayoutParams, opts ...Option) string {
	t.Helper()
	fileName := filepath.Join(t.TempDir(), "run53.rdf")
	w, err := OpenForWrite(fileName, testRunNumber, 2, "test", params, testGeoIDs(), opts...)
	require.NoError(t, err)
	for number := uint64(1); number <= 5; number++ {
		require.NoError(t, w.Write(makeRecord(number, 0)))
	}
	require.NoError(t, w.Close())
	return fileName
}

func TestWriteAndRead(t *testing.T) {
	fileName := writeTestFile(t, DefaultFileLayoutParams())

	r, err := OpenForRead(fileName)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, CurrentLayoutVersion, r.Version())
	assert.True(t, r.IsTriggerRecordFile())
	assert.False(t, r.IsTimeSliceFile())
	run, err := r.RunNumber()
	require.NoError(t, err)
	assert.Equal(t, uint64(testRunNumber), run)
	index, err := r.FileIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), index)
	app, err := r.ApplicationName()
	require.NoError(t, err)
	assert.Equal(t, "test", app)
	_, err = r.StringAttribute(CreationTimestampAttr)
	assert.NoError(t, err)
	_, err = r.StringAttribute(ClosingTimestampAttr)
	assert.NoError(t, err)

	expectedSize := uint64(0)
	for number := uint64(1); number <= 5; number++ {
		record := makeRecord(number, 0)
		expectedSize += uint64(len(record.Header.Bytes()))
		for _, f := range record.Fragments {
			expectedSize += uint64(f.Size())
		}
	}
	assert.Equal(t, expectedSize, r.RecordedSize())

	ids, err := r.AllRecordIDs()
	require.NoError(t, err)
	assert.Equal(t, []RecordID{{1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}}, ids)
	triggerIDs, err := r.AllTriggerRecordIDs()
	require.NoError(t, err)
	assert.Equal(t, ids, triggerIDs)
	_, err = r.AllTimeSliceIDs()
	assert.ErrorIs(t, err, ErrLookup)

	fragmentPaths, err := r.AllFragmentDatasetPaths()
	require.NoError(t, err)
	assert.Len(t, fragmentPaths, 40)

	headerPaths, err := r.RecordHeaderDatasetPaths()
	require.NoError(t, err)
	assert.Len(t, headerPaths, 5)
	assert.Equal(t, "TriggerRecord000001.0000/TriggerRecordHeader", headerPaths[0])

	rid := RecordID{RecordNumber: 2}
	fragment, err := r.Fragment(rid, tpcSourceID(0))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), fragment.Header.TriggerNumber)
	assert.Equal(t, uint32(testRunNumber), fragment.Header.RunNumber)
	assert.Equal(t, []byte{2, 0, 0xAA}, fragment.Payload)

	header, err := r.RecordHeader(rid)
	require.NoError(t, err)
	assert.Equal(t, makeRecord(2, 0).Header, *header)

	record, err := r.Record(rid)
	require.NoError(t, err)
	assert.Equal(t, rid, record.ID())
	assert.Len(t, record.Fragments, 8)
}

func TestSourceIDQueries(t *testing.T) {
	fileName := writeTestFile(t, DefaultFileLayoutParams())
	r, err := OpenForRead(fileName)
	require.NoError(t, err)
	defer r.Close()

	rid := RecordID{RecordNumber: 3}
	all, err := r.SourceIDs(rid)
	require.NoError(t, err)
	assert.Len(t, all, 9)

	fragments, err := r.FragmentSourceIDs(rid)
	require.NoError(t, err)
	assert.Equal(t, []SourceID{
		tpcSourceID(0), tpcSourceID(1), tpcSourceID(2), tpcSourceID(3),
		pdsSourceID(0), pdsSourceID(1), pdsSourceID(2), pdsSourceID(3),
	}, fragments)

	headerSID, err := r.RecordHeaderSourceID(rid)
	require.NoError(t, err)
	assert.Equal(t, NewSourceID(TRBuilder, 0), headerSID)

	readout, err := r.SourceIDsForSubsystem(rid, DetectorReadout)
	require.NoError(t, err)
	assert.Len(t, readout, 8)
	builder, err := r.SourceIDsForSubsystem(rid, TRBuilder)
	require.NoError(t, err)
	assert.Equal(t, []SourceID{headerSID}, builder)
	trigger, err := r.SourceIDsForSubsystem(rid, Trigger)
	require.NoError(t, err)
	assert.Empty(t, trigger)

	wib, err := r.SourceIDsForFragmentType(rid, WIB)
	require.NoError(t, err)
	assert.Equal(t, []SourceID{tpcSourceID(0), tpcSourceID(1), tpcSourceID(2), tpcSourceID(3)}, wib)
	daphne, err := r.SourceIDsForFragmentType(rid, DAPHNE)
	require.NoError(t, err)
	assert.Len(t, daphne, 4)

	pds, err := r.SourceIDsForSubdetector(rid, PDS)
	require.NoError(t, err)
	assert.Equal(t, []SourceID{pdsSourceID(0), pdsSourceID(1), pdsSourceID(2), pdsSourceID(3)}, pds)

	geoIDs, err := r.GeoIDsForSourceID(rid, tpcSourceID(2))
	require.NoError(t, err)
	assert.Equal(t, []uint64{GeoID{DetID: 3, CrateID: 1, StreamID: 2}.Pack()}, geoIDs)
	geoIDs, err = r.GeoIDsForSourceID(rid, pdsSourceID(2))
	require.NoError(t, err)
	assert.Empty(t, geoIDs)

	_, err = r.SourceIDs(RecordID{RecordNumber: 99})
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = r.Fragment(rid, NewSourceID(Trigger, 7))
	assert.ErrorIs(t, err, ErrLookup)
	_, err = r.Fragment(rid, headerSID)
	assert.ErrorIs(t, err, ErrLookup, "the header is not a fragment")
}

func TestDatasetPaths(t *testing.T) {
	fileName := writeTestFile(t, DefaultFileLayoutParams())
	r, err := OpenForRead(fileName)
	require.NoError(t, err)
	defer r.Close()

	rid := RecordID{RecordNumber: 1}
	paths, err := r.FragmentDatasetPaths(rid)
	require.NoError(t, err)
	require.Len(t, paths, 8)
	assert.Equal(t, "TriggerRecord000001.0000/Detector_Readout/Region000/Element00", paths[0])
	assert.Equal(t, "TriggerRecord000001.0000/Detector_Readout/Region001/Element03", paths[7])

	sids, err := r.SourceIDsFromPaths(paths)
	require.NoError(t, err)
	fragments, err := r.FragmentSourceIDs(rid)
	require.NoError(t, err)
	assert.Equal(t, fragments, sids)

	all, err := r.DatasetPaths("/")
	require.NoError(t, err)
	assert.Len(t, all, 45)
	recordPaths, err := r.DatasetPaths("TriggerRecord000001.0000")
	require.NoError(t, err)
	assert.Len(t, recordPaths, 9)
	assert.Contains(t, recordPaths, "TriggerRecord000001.0000/TriggerRecordHeader")

	readout, err := r.FragmentDatasetPathsForSubsystem(rid, DetectorReadout)
	require.NoError(t, err)
	assert.Equal(t, paths, readout)
	trigger, err := r.FragmentDatasetPathsForSubsystem(rid, Trigger)
	require.NoError(t, err)
	assert.Empty(t, trigger)

	headerPath, err := r.RecordHeaderDatasetPath(rid)
	require.NoError(t, err)
	header, err := r.RecordHeaderAt(headerPath)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), header.RecordNumber)

	fragment, err := r.FragmentAt(paths[4])
	require.NoError(t, err)
	assert.Equal(t, pdsSourceID(0), fragment.Header.ElementID)

	_, err = r.DatasetRawData("TriggerRecord000001.0000/Nothing")
	var readErr *ErrReadDataset
	assert.ErrorAs(t, err, &readErr)
	_, err = r.DatasetPaths("Missing")
	assert.ErrorIs(t, err, ErrLookup)
}

func TestRecordCacheCoherence(t *testing.T) {
	fileName := writeTestFile(t, DefaultFileLayoutParams())
	r, err := OpenForRead(fileName)
	require.NoError(t, err)
	defer r.Close()

	rid := RecordID{RecordNumber: 4}
	assert.False(t, r.cache.Populated(rid))

	attempts := IndexFetches.WithLabelValues(SourceIDPathMapAttr, "attempt")
	before := testutil.ToFloat64(attempts)

	_, err = r.SourceIDs(rid)
	require.NoError(t, err)
	_, err = r.FragmentSourceIDs(rid)
	require.NoError(t, err)
	_, err = r.SourceIDsForFragmentType(rid, WIB)
	require.NoError(t, err)
	_, err = r.Fragment(rid, pdsSourceID(1))
	require.NoError(t, err)
	require.NoError(t, r.EnsureCached(rid))

	assert.Equal(t, 1.0, testutil.ToFloat64(attempts)-before)
	assert.True(t, r.cache.Populated(rid))
	assert.Equal(t, 1, r.cache.Len())
}

func TestRecordCacheEviction(t *testing.T) {
	fileName := writeTestFile(t, DefaultFileLayoutParams())
	r, err := OpenForRead(fileName, WithCacheCapacity(2))
	require.NoError(t, err)
	defer r.Close()

	for number := uint64(1); number <= 3; number++ {
		require.NoError(t, r.EnsureCached(RecordID{RecordNumber: number}))
	}
	assert.Equal(t, 2, r.cache.Len())
	assert.False(t, r.cache.Populated(RecordID{RecordNumber: 1}))

	attempts := IndexFetches.WithLabelValues(SourceIDPathMapAttr, "attempt")
	before := testutil.ToFloat64(attempts)
	fragments, err := r.FragmentSourceIDs(RecordID{RecordNumber: 1})
	require.NoError(t, err)
	assert.Len(t, fragments, 8)
	assert.True(t, r.cache.Populated(RecordID{RecordNumber: 1}))
	assert.Equal(t, 1.0, testutil.ToFloat64(attempts)-before)

	_, err = r.SourceIDs(RecordID{RecordNumber: 3})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(attempts)-before)
}

func TestRecordNumberOverflow(t *testing.T) {
	log := &recordingLogger{}
	SetLogger(log)
	defer SetLogger(nil)

	fileName := filepath.Join(t.TempDir(), "overflow.rdf")
	w, err := OpenForWrite(fileName, testRunNumber, 0, "test", DefaultFileLayoutParams(), nil)
	require.NoError(t, err)
	const big = 2000000001
	require.NoError(t, w.Write(makeRecord(big, 0)))
	require.NoError(t, w.Close())
	assert.NotEmpty(t, log.warnings)

	r, err := OpenForRead(fileName)
	require.NoError(t, err)
	defer r.Close()
	ids, err := r.AllRecordIDs()
	require.NoError(t, err)
	assert.Equal(t, []RecordID{{RecordNumber: big}}, ids)

	fragment, err := r.Fragment(ids[0], tpcSourceID(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(big), fragment.Header.TriggerNumber)
	headerPath, err := r.RecordHeaderDatasetPath(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "TriggerRecord2000000001.0000/TriggerRecordHeader", headerPath)
}

func TestVersion2Files(t *testing.T) {
	fileName := writeTestFile(t, DefaultFileLayoutParams(), WithLayoutVersion(LayoutVersion2))
	r, err := OpenForRead(fileName)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, LayoutVersion2, r.Version())

	rid := RecordID{RecordNumber: 2}
	sids, err := r.SourceIDs(rid)
	require.NoError(t, err)
	assert.Empty(t, sids)
	wib, err := r.SourceIDsForFragmentType(rid, WIB)
	require.NoError(t, err)
	assert.Empty(t, wib)
	geoIDs, err := r.GeoIDsForSourceID(rid, tpcSourceID(0))
	require.NoError(t, err)
	assert.Empty(t, geoIDs)
	_, err = r.RecordHeaderSourceID(rid)
	assert.ErrorIs(t, err, ErrVersionMismatch)

	paths, err := r.AllFragmentDatasetPaths()
	require.NoError(t, err)
	assert.Len(t, paths, 40)

	fragment, err := r.Fragment(rid, pdsSourceID(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), fragment.Header.TriggerNumber)
	_, err = r.Fragment(rid, pdsSourceID(9))
	assert.ErrorIs(t, err, ErrLookup)

	recordPaths, err := r.FragmentDatasetPaths(rid)
	require.NoError(t, err)
	fromPaths, err := r.SourceIDsFromPaths(recordPaths)
	require.NoError(t, err)
	assert.Len(t, fromPaths, 8)

	record, err := r.Record(rid)
	require.NoError(t, err)
	assert.Len(t, record.Fragments, 8)
}

func TestLegacyFiles(t *testing.T) {
	fileName := writeTestFile(t, TimeSliceFileLayoutParams(), WithLayoutVersion(LayoutVersion1))
	r, err := OpenForRead(fileName)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, LegacyFileLayoutParams(), r.Layout().Params())
	ids, err := r.AllRecordIDs()
	require.NoError(t, err)
	assert.Len(t, ids, 5)

	headerPath, err := r.RecordHeaderDatasetPath(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "TriggerRecord000001/TriggerRecordHeader", headerPath)
	_, err = r.RecordHeader(ids[0])
	require.NoError(t, err)

	_, err = r.Fragment(ids[0], tpcSourceID(0))
	var incompatible *ErrIncompatibleVersion
	require.ErrorAs(t, err, &incompatible)
	assert.Equal(t, LayoutVersion2, incompatible.Minimum)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestTimeSliceFiles(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "slices.rdf")
	w, err := OpenForWrite(fileName, testRunNumber, 0, "test", TimeSliceFileLayoutParams(), nil)
	require.NoError(t, err)
	for number := uint64(1); number <= 2; number++ {
		record := makeRecord(number, 0)
		record.Header.Magic = TimeSliceHeaderMagic
		require.NoError(t, w.Write(record))
	}
	require.NoError(t, w.Close())

	r, err := OpenForRead(fileName)
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, r.IsTimeSliceFile())
	ids, err := r.AllTimeSliceIDs()
	require.NoError(t, err)
	assert.Equal(t, []RecordID{{1, 0}, {2, 0}}, ids)
	_, err = r.AllTriggerRecordIDs()
	assert.ErrorIs(t, err, ErrLookup)

	headerPath, err := r.RecordHeaderDatasetPath(ids[1])
	require.NoError(t, err)
	assert.Equal(t, "TimeSlice000002/TimeSliceHeader", headerPath)
	header, err := r.RecordHeader(ids[1])
	require.NoError(t, err)
	assert.Equal(t, TimeSliceHeaderMagic, header.Magic)
}

func TestMalformedIndexAttributes(t *testing.T) {
	fileName := writeTestFile(t, DefaultFileLayoutParams())
	layout, err := NewFileLayout(DefaultFileLayoutParams(), CurrentLayoutVersion)
	require.NoError(t, err)

	garble := map[uint64]string{
		1: SourceIDPathMapAttr,
		2: FragmentTypeSourceIDMapAttr,
		3: RecordHeaderSourceIDAttr,
	}
	f, err := treestore.New(treestore.CompressionZSTD).Open(fileName, container.ReadWrite)
	require.NoError(t, err)
	for number, attr := range garble {
		group, err := f.Root().OpenGroup(layout.RecordNumberString(number, 0))
		require.NoError(t, err)
		require.NoError(t, group.WriteString(attr, "not json"))
		require.NoError(t, group.Close())
	}
	require.NoError(t, f.Close())

	ignored := func(attr string) float64 {
		return testutil.ToFloat64(IndexFetches.WithLabelValues(attr, "ignored"))
	}
	before := map[string]float64{}
	for _, attr := range garble {
		before[attr] = ignored(attr)
	}

	r, err := OpenForRead(fileName)
	require.NoError(t, err)
	defer r.Close()

	sids, err := r.SourceIDs(RecordID{RecordNumber: 1})
	require.NoError(t, err)
	assert.Empty(t, sids)
	sids, err = r.FragmentSourceIDs(RecordID{RecordNumber: 1})
	require.NoError(t, err)
	assert.Empty(t, sids)
	_, err = r.Fragment(RecordID{RecordNumber: 1}, tpcSourceID(0))
	assert.ErrorIs(t, err, ErrLookup)
	paths, err := r.FragmentDatasetPaths(RecordID{RecordNumber: 1})
	require.NoError(t, err)
	assert.Len(t, paths, 8)

	sids, err = r.SourceIDsForFragmentType(RecordID{RecordNumber: 2}, WIB)
	require.NoError(t, err)
	assert.Empty(t, sids)
	sids, err = r.SourceIDs(RecordID{RecordNumber: 2})
	require.NoError(t, err)
	assert.Len(t, sids, 9)

	_, err = r.RecordHeaderSourceID(RecordID{RecordNumber: 3})
	assert.ErrorIs(t, err, ErrLookup)
	sids, err = r.SourceIDsForSubdetector(RecordID{RecordNumber: 3}, PDS)
	require.NoError(t, err)
	assert.Len(t, sids, 4)

	for _, attr := range garble {
		assert.Equal(t, 1.0, ignored(attr)-before[attr], attr)
	}
}

func TestRecordTypeMismatch(t *testing.T) {
	fileName := writeTestFile(t, DefaultFileLayoutParams())

	f, err := treestore.New(treestore.CompressionZSTD).Open(fileName, container.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, f.Root().WriteString(RecordTypeAttr, TimeSlicePrefix))
	require.NoError(t, f.Close())

	_, err = OpenForRead(fileName)
	var bad *ErrBadRecordType
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, TimeSlicePrefix, bad.RecordType)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestWriterLifecycle(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "lifecycle.rdf")
	w, err := OpenForWrite(fileName, testRunNumber, 0, "test", DefaultFileLayoutParams(), nil)
	require.NoError(t, err)

	assert.FileExists(t, fileName+DefaultInProgressSuffix)
	assert.NoFileExists(t, fileName)
	require.NoError(t, w.Write(makeRecord(1, 0)))

	require.NoError(t, w.Close())
	assert.FileExists(t, fileName)
	assert.NoFileExists(t, fileName+DefaultInProgressSuffix)
	assert.NoError(t, w.Close())
	assert.ErrorIs(t, w.Write(makeRecord(2, 0)), container.ErrClosed)

	r, err := OpenForRead(fileName)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Write(makeRecord(2, 0)), ErrConfiguration)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.AllRecordIDs()
	assert.ErrorIs(t, err, container.ErrClosed)
}

func TestWriteFillsMagicNumbers(t *testing.T) {
	for _, params := range []FileLayoutParams{DefaultFileLayoutParams(), TimeSliceFileLayoutParams()} {
		t.Run(params.RecordNamePrefix, func(t *testing.T) {
			fileName := filepath.Join(t.TempDir(), "unstamped.rdf")
			w, err := OpenForWrite(fileName, testRunNumber, 0, "test", params, nil)
			require.NoError(t, err)
			record := &Record{
				Header: RecordHeader{RecordNumber: 1, RunNumber: testRunNumber, ElementID: NewSourceID(TRBuilder, 0)},
				Fragments: []*Fragment{{
					Header: FragmentHeader{
						TriggerNumber: 1,
						FragmentType:  WIB,
						DetectorID:    TPC,
						ElementID:     tpcSourceID(3),
					},
					Payload: []byte{7, 7},
				}},
			}
			require.NoError(t, w.Write(record))
			require.NoError(t, w.Close())
			assert.Zero(t, record.Header.Magic)

			r, err := OpenForRead(fileName)
			require.NoError(t, err)
			defer r.Close()
			rid := RecordID{RecordNumber: 1}

			header, err := r.RecordHeader(rid)
			require.NoError(t, err)
			wantMagic := RecordHeaderMagic
			if params.RecordNamePrefix == TimeSlicePrefix {
				wantMagic = TimeSliceHeaderMagic
			}
			assert.Equal(t, wantMagic, header.Magic)
			assert.Equal(t, RecordHeaderVersion, header.Version)

			fragment, err := r.Fragment(rid, tpcSourceID(3))
			require.NoError(t, err)
			assert.Equal(t, FragmentMagic, fragment.Header.Magic)
			assert.Equal(t, FragmentVersion, fragment.Header.Version)
			assert.Equal(t, []byte{7, 7}, fragment.Payload)
		})
	}
}

func TestWriteRejectsUnknownMagic(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "badmagic.rdf")
	w, err := OpenForWrite(fileName, testRunNumber, 0, "test", DefaultFileLayoutParams(), nil)
	require.NoError(t, err)
	defer w.Close()

	record := makeRecord(1, 0)
	record.Header.Magic = 0xDEADBEEF
	var bad *ErrBadMagic
	err = w.Write(record)
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, "record header", bad.What)
	assert.ErrorIs(t, err, ErrConfiguration)

	record = makeRecord(2, 0)
	record.Fragments[5].Header.Magic = 0x12345678
	err = w.Write(record)
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, "fragment", bad.What)

	paths, err := w.DatasetPaths("/")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestWriterOptions(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenForWrite(filepath.Join(dir, "ro.rdf"), testRunNumber, 0, "test",
		DefaultFileLayoutParams(), nil, WithOpenMode(container.ReadOnly))
	var mode *ErrIncompatibleOpenMode
	assert.ErrorAs(t, err, &mode)

	fileName := filepath.Join(dir, "direct.rdf")
	w, err := OpenForWrite(fileName, testRunNumber, 0, "test", DefaultFileLayoutParams(), nil,
		WithInProgressSuffix(""), WithBackend(treestore.New(treestore.CompressionLZ4)))
	require.NoError(t, err)
	assert.FileExists(t, fileName)
	require.NoError(t, w.Close())

	_, err = OpenForWrite(fileName, testRunNumber, 0, "test", DefaultFileLayoutParams(), nil,
		WithInProgressSuffix(""), WithOpenMode(container.Exclusive))
	assert.ErrorIs(t, err, ErrContainer)

	params := DefaultFileLayoutParams()
	params.RecordNamePrefix = "Spill"
	_, err = OpenForWrite(filepath.Join(dir, "bad.rdf"), testRunNumber, 0, "test", params, nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = OpenForRead(filepath.Join(dir, "missing.rdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorIs(t, err, ErrContainer)
}

func TestWriteUnconfiguredSubsystem(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "partial.rdf")
	params := DefaultFileLayoutParams()
	params.PathParamList = params.PathParamList[:1]
	w, err := OpenForWrite(fileName, testRunNumber, 0, "test", params, nil)
	require.NoError(t, err)
	defer w.Close()

	record := makeRecord(1, 0)
	record.Fragments = append(record.Fragments, NewFragment(FragmentHeader{
		TriggerNumber: 1,
		ElementID:     NewSourceID(Trigger, 0),
	}, nil))
	assert.ErrorIs(t, w.Write(record), ErrConfiguration)
}

func TestConcurrentReaders(t *testing.T) {
	fileName := writeTestFile(t, DefaultFileLayoutParams())

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			r, err := OpenForRead(fileName)
			if err != nil {
				return err
			}
			defer r.Close()
			ids, err := r.AllRecordIDs()
			if err != nil {
				return err
			}
			for _, rid := range ids {
				sids, err := r.FragmentSourceIDs(rid)
				if err != nil {
					return err
				}
				for _, sid := range sids {
					if _, err := r.Fragment(rid, sid); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
