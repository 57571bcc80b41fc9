package main

import (
	"errors"
	"fmt"
	"time"

	rawdata "github.com/next-exp/rawdata_go/pkg"
	"github.com/next-exp/rawdata_go/pkg/container"
)

type WorkerResult struct {
	RecordID rawdata.RecordID
	Record   *rawdata.Record
	Err      error
}

// worker answers every job it receives, with an error result when the
// record cannot be read.
func worker(id int, fileIn string, inOpener container.Opener, jobs <-chan rawdata.RecordID, results chan<- WorkerResult) {
	reader, err := rawdata.OpenForRead(fileIn, rawdata.WithBackend(inOpener))
	if err != nil {
		for rid := range jobs {
			results <- WorkerResult{RecordID: rid, Err: err}
		}
		return
	}
	defer reader.Close()

	for rid := range jobs {
		if rawdata.GetConfiguration().Verbosity > 1 {
			logger.Info(fmt.Sprintf("Worker %d reading record %v", id, rid), "worker")
		}
		results <- readRecord(id, reader, rid)
	}
}

func readRecord(id int, reader *rawdata.RawDataFile, rid rawdata.RecordID) (result WorkerResult) {
	result.RecordID = rid
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("worker %d recovered from panic on record %v: %v", id, rid, r)
		}
	}()
	result.Record, result.Err = reader.Record(rid)
	return result
}

func sendRecordsToWorkers(ids []rawdata.RecordID, jobs chan<- rawdata.RecordID) {
	for _, rid := range ids {
		jobs <- rid
	}
	close(jobs)
}

// processWorkerResults writes nRecords results as they arrive. Failed
// records are skipped and reported together at the end.
func processWorkerResults(results <-chan WorkerResult, writer *rawdata.RawDataFile, nRecords int) (int, error) {
	errs := []error{}
	written := 0
	var totalTime time.Duration
	for i := 0; i < nRecords; i++ {
		result := <-results
		if result.Err != nil {
			errs = append(errs, fmt.Errorf("error reading record %v: %w", result.RecordID, result.Err))
			continue
		}
		start := time.Now()
		if err := writer.Write(result.Record); err != nil {
			errs = append(errs, fmt.Errorf("error writing record %v: %w", result.RecordID, err))
			continue
		}
		totalTime += time.Since(start)
		written++
	}
	if rawdata.GetConfiguration().Verbosity > 0 {
		logger.Info(fmt.Sprintf("Total time writing: %d ms", totalTime.Milliseconds()), "main")
	}
	return written, errors.Join(errs...)
}
