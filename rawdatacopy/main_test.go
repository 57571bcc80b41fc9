package main

import (
	"bytes"
	"path/filepath"
	"testing"

	rawdata "github.com/next-exp/rawdata_go/pkg"
	"github.com/next-exp/rawdata_go/pkg/container"
	"github.com/next-exp/rawdata_go/pkg/container/treestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, nRecords uint64) string {
	t.Helper()
	rawdata.SetLogger(nil)
	fileName := filepath.Join(t.TempDir(), "in.rdf")
	w, err := rawdata.OpenForWrite(fileName, 7, 1, "test", rawdata.DefaultFileLayoutParams(), nil,
		rawdata.WithLayoutVersion(rawdata.LayoutVersion2), rawdata.WithBackend(treestore.New(treestore.CompressionLZ4)))
	require.NoError(t, err)
	for number := uint64(1); number <= nRecords; number++ {
		record := &rawdata.Record{Header: rawdata.RecordHeader{
			Magic:        rawdata.RecordHeaderMagic,
			Version:      rawdata.RecordHeaderVersion,
			RecordNumber: number,
			RunNumber:    7,
			ElementID:    rawdata.NewSourceID(rawdata.TRBuilder, 0),
		}}
		for link := uint32(0); link < 3; link++ {
			record.Fragments = append(record.Fragments, rawdata.NewFragment(rawdata.FragmentHeader{
				TriggerNumber: number,
				RunNumber:     7,
				FragmentType:  rawdata.WIB,
				DetectorID:    rawdata.TPC,
				ElementID:     rawdata.NewSourceID(rawdata.DetectorReadout, link),
			}, []byte{byte(number), byte(link)}))
		}
		require.NoError(t, w.Write(record))
	}
	require.NoError(t, w.Close())
	return fileName
}

func TestCopyFile(t *testing.T) {
	fileIn := writeInput(t, 6)
	fileOut := filepath.Join(t.TempDir(), "out.rdf")

	config := rawdata.DefaultConfiguration()
	config.NumWorkers = 3
	inOpener, err := container.Lookup(treestore.EngineName)
	require.NoError(t, err)

	written, err := copyFile(fileIn, fileOut, inOpener, config)
	require.NoError(t, err)
	assert.Equal(t, 6, written)

	r, err := rawdata.OpenForRead(fileOut)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, rawdata.CurrentLayoutVersion, r.Version())
	run, err := r.RunNumber()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), run)

	ids, err := r.AllRecordIDs()
	require.NoError(t, err)
	require.Len(t, ids, 6)

	sids, err := r.FragmentSourceIDs(ids[3])
	require.NoError(t, err)
	assert.Len(t, sids, 3)
	fragment, err := r.Fragment(ids[3], rawdata.NewSourceID(rawdata.DetectorReadout, 2))
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 2}, fragment.Payload)
}

func TestCopyFileErrors(t *testing.T) {
	inOpener, err := container.Lookup(treestore.EngineName)
	require.NoError(t, err)

	_, err = copyFile(filepath.Join(t.TempDir(), "missing.rdf"), filepath.Join(t.TempDir(), "out.rdf"),
		inOpener, rawdata.DefaultConfiguration())
	assert.ErrorIs(t, err, rawdata.ErrContainer)

	config := rawdata.DefaultConfiguration()
	config.Backend = "tape"
	_, err = copyFile(writeInput(t, 1), filepath.Join(t.TempDir(), "out.rdf"), inOpener, config)
	assert.ErrorIs(t, err, rawdata.ErrConfiguration)
}

func TestPrintSummary(t *testing.T) {
	fileIn := writeInput(t, 2)
	inOpener, err := container.Lookup(treestore.EngineName)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printSummary(&out, fileIn, inOpener))
	text := out.String()
	assert.Contains(t, text, "Layout version: 2")
	assert.Contains(t, text, "Records: 2")
	assert.Contains(t, text, "(2,0): 3 fragments")
}
