package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	rawdata "github.com/next-exp/rawdata_go/pkg"
	"github.com/next-exp/rawdata_go/pkg/container"
)

var logger = rawdata.NewSlogLogger(os.Stdout, os.Stderr)

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	fileIn := flag.String("in", "", "Input raw data file")
	fileOut := flag.String("out", "", "Output raw data file")
	inBackend := flag.String("from", "tree", "Container engine of the input file")
	summary := flag.Bool("summary", false, "Print the records of the input file and exit")
	flag.Parse()

	rawdata.SetLogger(logger)

	configuration := rawdata.DefaultConfiguration()
	if *configFilename != "" {
		var err error
		configuration, err = rawdata.LoadConfiguration(*configFilename)
		if err != nil {
			message := fmt.Errorf("Error reading configuration file: %w", err)
			logger.Error(message.Error())
			os.Exit(1)
		}
	}
	rawdata.SetConfiguration(configuration)

	inOpener, err := container.Lookup(*inBackend)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	if *fileIn == "" {
		logger.Error("No input file given")
		os.Exit(1)
	}

	if *summary {
		if err := printSummary(os.Stdout, *fileIn, inOpener); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	if *fileOut == "" {
		logger.Error("No output file given")
		os.Exit(1)
	}
	start := time.Now()
	written, err := copyFile(*fileIn, *fileOut, inOpener, configuration)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	message := fmt.Sprintf("Copied %d records in %d ms", written, time.Since(start).Milliseconds())
	logger.Info(message, "main")
}

// copyFile rewrites every record of fileIn into fileOut with the layout,
// engine and version of config. Records are read by config.NumWorkers
// workers, each with its own read handle.
func copyFile(fileIn, fileOut string, inOpener container.Opener, config rawdata.Configuration) (int, error) {
	opts, err := config.Options()
	if err != nil {
		return 0, err
	}

	reader, err := rawdata.OpenForRead(fileIn, rawdata.WithBackend(inOpener))
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	ids, err := reader.AllRecordIDs()
	if err != nil {
		return 0, err
	}
	runNumber, err := reader.RunNumber()
	if err != nil {
		return 0, err
	}
	fileIndex, err := reader.FileIndex()
	if err != nil {
		return 0, err
	}

	params := reader.Layout().Params()
	if config.LayoutFile != "" {
		if params, err = rawdata.LoadFileLayoutParams(config.LayoutFile); err != nil {
			return 0, err
		}
	}
	geoIDs, err := rawdata.LoadGeoIDMap(config)
	if err != nil {
		return 0, err
	}
	if len(geoIDs) == 0 {
		geoIDs = reader.GeoIDs()
	}

	writer, err := rawdata.OpenForWrite(fileOut, runNumber, fileIndex, config.ApplicationName, params, geoIDs, opts...)
	if err != nil {
		return 0, err
	}

	numWorkers := max(config.NumWorkers, 1)
	jobs := make(chan rawdata.RecordID, numWorkers)
	results := make(chan WorkerResult, 100)
	for w := 1; w <= numWorkers; w++ {
		go worker(w, fileIn, inOpener, jobs, results)
	}
	go sendRecordsToWorkers(ids, jobs)

	written, err := processWorkerResults(results, writer, len(ids))
	return written, errors.Join(err, writer.Close())
}

func printSummary(w io.Writer, fileIn string, inOpener container.Opener) error {
	reader, err := rawdata.OpenForRead(fileIn, rawdata.WithBackend(inOpener))
	if err != nil {
		return err
	}
	defer reader.Close()

	ids, err := reader.AllRecordIDs()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "File: %s\n", reader.FileName())
	fmt.Fprintf(w, "Layout version: %d\n", reader.Version())
	fmt.Fprintf(w, "Record type: %s\n", reader.RecordType())
	fmt.Fprintf(w, "Recorded size: %d bytes\n", reader.RecordedSize())
	fmt.Fprintf(w, "Records: %d\n", len(ids))
	for _, rid := range ids {
		paths, err := reader.FragmentDatasetPaths(rid)
		if err != nil {
			return err
		}
		sids, err := reader.SourceIDsFromPaths(paths)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%v: %d fragments", rid, len(paths))
		if len(sids) > 0 {
			fmt.Fprintf(w, " (%v .. %v)", sids[0], sids[len(sids)-1])
		}
		fmt.Fprintln(w)
	}
	return nil
}
