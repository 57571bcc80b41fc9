//go:build hdf5

package h5store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-exp/rawdata_go/pkg/container"
)

func TestHDF5RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.hdf5")
	store := New()

	f, err := store.Open(path, container.Truncate)
	require.NoError(t, err)
	root := f.Root()
	require.NoError(t, root.WriteUint("run_number", 53))
	require.NoError(t, root.WriteString("application_name", "test"))
	rec, err := root.CreateGroup("TriggerRecord00001")
	require.NoError(t, err)
	region, err := rec.CreateGroup("APA000")
	require.NoError(t, err)
	ds, err := region.CreateDataset("Link00", 3)
	require.NoError(t, err)
	require.NoError(t, ds.WriteRaw([]byte{7, 8, 9}))
	require.NoError(t, ds.Close())
	require.NoError(t, region.Close())
	require.NoError(t, rec.Close())
	require.NoError(t, f.Close())

	f, err = store.Open(path, container.ReadOnly)
	require.NoError(t, err)
	defer f.Close()
	root = f.Root()

	run, err := root.ReadUint("run_number")
	require.NoError(t, err)
	assert.Equal(t, uint64(53), run)
	app, err := root.ReadString("application_name")
	require.NoError(t, err)
	assert.Equal(t, "test", app)

	assert.True(t, root.Exists("TriggerRecord00001/APA000/Link00"))
	assert.False(t, root.Exists("TriggerRecord00002/APA000"))

	ds, err = root.OpenDataset("TriggerRecord00001/APA000/Link00")
	require.NoError(t, err)
	defer ds.Close()
	assert.Equal(t, 3, ds.Size())
	data, err := ds.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8, 9}, data)

	children, err := root.Children()
	require.NoError(t, err)
	assert.Equal(t, []container.Child{{Name: "TriggerRecord00001", Type: container.GroupObject}}, children)

	_, err = root.CreateGroup("x")
	assert.ErrorIs(t, err, container.ErrReadOnly)
}

func TestHDF5CompressedDatasets(t *testing.T) {
	payload := make([]byte, 3*chunkSize/2)
	for i := range payload {
		payload[i] = byte(i % 7)
	}
	settings := map[string]container.DatasetCompression{
		"deflate": {Level: 4},
		"blosc": {
			UseBlosc:  true,
			Level:     5,
			Algorithm: container.BloscAlgorithm{Name: "zstd", Code: container.BLOSC_ZSTD},
			Shuffle:   container.BloscShuffle{Name: "byte-shuffle", Code: container.BLOSC_SHUFFLE},
		},
	}
	for name, c := range settings {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "compressed.hdf5")
			store := New().WithCompression(c)

			f, err := store.Open(path, container.Truncate)
			require.NoError(t, err)
			ds, err := f.Root().CreateDataset("Link00", len(payload))
			require.NoError(t, err)
			require.NoError(t, ds.WriteRaw(payload))
			require.NoError(t, ds.Close())
			empty, err := f.Root().CreateDataset("Empty", 0)
			require.NoError(t, err)
			require.NoError(t, empty.Close())
			require.NoError(t, f.Close())

			f, err = New().Open(path, container.ReadOnly)
			require.NoError(t, err)
			defer f.Close()
			ds, err = f.Root().OpenDataset("Link00")
			require.NoError(t, err)
			defer ds.Close()
			data, err := ds.ReadRaw()
			require.NoError(t, err)
			assert.Equal(t, payload, data)
		})
	}
}
