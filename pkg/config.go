package rawdata

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/next-exp/rawdata_go/pkg/container"
	"github.com/next-exp/rawdata_go/pkg/container/treestore"
)

type Configuration struct {
	RunNumber        uint64                   `json:"run_number"`
	FileIndex        uint64                   `json:"file_index"`
	ApplicationName  string                   `json:"application_name"`
	LayoutFile       string                   `json:"layout_file"`
	LayoutVersion    uint32                   `json:"layout_version"`
	Backend          string                   `json:"backend"`
	Compression      string                   `json:"compression"`
	UseBlosc         bool                     `json:"use_blosc"`
	CompressionLevel int                      `json:"compression_level"`
	BloscAlgorithm   container.BloscAlgorithm `json:"blosc_algorithm"`
	BloscShuffle     container.BloscShuffle   `json:"blosc_shuffle"`
	InProgressSuffix string                   `json:"in_progress_suffix"`
	CacheCapacity    int                      `json:"cache_capacity"`
	NumWorkers       int                      `json:"num_workers"`
	Verbosity        int                      `json:"verbosity"`
	HWMapFile        string                   `json:"hw_map_file"`
	NoDB             bool                     `json:"no_db"`
	Host             string                   `json:"host"`
	User             string                   `json:"user"`
	Passwd           string                   `json:"pass"`
	DBName           string                   `json:"dbname"`
}

var configuration = DefaultConfiguration()

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
	if configuration.Verbosity > 0 {
		printConfiguration(configuration)
	}
}

func DefaultConfiguration() Configuration {
	return Configuration{
		ApplicationName:  "rawdata",
		LayoutVersion:    uint32(CurrentLayoutVersion),
		Backend:          treestore.EngineName,
		Compression:      "zstd",
		UseBlosc:         false,
		CompressionLevel: 4,
		BloscAlgorithm:   container.BloscAlgorithm{Name: "zstd", Code: container.BLOSC_ZSTD},
		BloscShuffle:     container.BloscShuffle{Name: "byte-shuffle", Code: container.BLOSC_SHUFFLE},
		InProgressSuffix: DefaultInProgressSuffix,
		CacheCapacity:    DefaultCacheCapacity,
		NumWorkers:       1,
		Verbosity:        0,
		NoDB:             true,
		Host:             "localhost",
		User:             "reader",
		Passwd:           "readonly",
		DBName:           "hwmap",
	}
}

func LoadConfiguration(filename string) (Configuration, error) {
	config := DefaultConfiguration()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	return config, nil
}

// LoadFileLayoutParams reads a layout document. An empty filename returns
// the default layout.
func LoadFileLayoutParams(filename string) (FileLayoutParams, error) {
	if filename == "" {
		return DefaultFileLayoutParams(), nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return FileLayoutParams{}, err
	}
	var params FileLayoutParams
	if err := json.Unmarshal(data, &params); err != nil {
		return FileLayoutParams{}, fmt.Errorf("error parsing file layout %q: %v: %w", filename, err, ErrConfiguration)
	}
	return params, nil
}

// Opener resolves the configured container engine.
func (c Configuration) Opener() (container.Opener, error) {
	if c.Backend == "" || c.Backend == treestore.EngineName {
		compression, err := treestore.ParseCompression(c.Compression)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrConfiguration)
		}
		return treestore.New(compression), nil
	}
	opener, err := container.Lookup(c.Backend)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrConfiguration)
	}
	if tunable, ok := opener.(container.Tunable); ok {
		return tunable.WithCompression(c.DatasetCompression()), nil
	}
	return opener, nil
}

// DatasetCompression is the dataset filter setting for engines that
// compress per dataset.
func (c Configuration) DatasetCompression() container.DatasetCompression {
	return container.DatasetCompression{
		UseBlosc:  c.UseBlosc,
		Level:     c.CompressionLevel,
		Algorithm: c.BloscAlgorithm,
		Shuffle:   c.BloscShuffle,
	}
}

// Options turns the configuration into file options.
func (c Configuration) Options() ([]Option, error) {
	opener, err := c.Opener()
	if err != nil {
		return nil, err
	}
	return []Option{
		WithBackend(opener),
		WithInProgressSuffix(c.InProgressSuffix),
		WithLayoutVersion(LayoutVersion(c.LayoutVersion)),
		WithCacheCapacity(c.CacheCapacity),
	}, nil
}

func printConfiguration(config Configuration) {
	logger.Info(fmt.Sprintf("Run number: %d", config.RunNumber), "config")
	logger.Info(fmt.Sprintf("File index: %d", config.FileIndex), "config")
	logger.Info(fmt.Sprintf("Application name: %s", config.ApplicationName), "config")
	logger.Info(fmt.Sprintf("Layout file: %s", config.LayoutFile), "config")
	logger.Info(fmt.Sprintf("Layout version: %d", config.LayoutVersion), "config")
	logger.Info(fmt.Sprintf("Backend: %s", config.Backend), "config")
	logger.Info(fmt.Sprintf("Compression: %s", config.Compression), "config")
	logger.Info(fmt.Sprintf("Use Blosc: %t", config.UseBlosc), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("Blosc algorithm: %s", config.BloscAlgorithm), "config")
	logger.Info(fmt.Sprintf("Blosc shuffle: %s", config.BloscShuffle), "config")
	logger.Info(fmt.Sprintf("Cache capacity: %d", config.CacheCapacity), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
}
