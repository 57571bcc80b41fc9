package rawdata

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var RecordsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rawdata",
	Subsystem: "writer",
	Name:      "records_written",
}, []string{"record_type"})

var BytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "rawdata",
	Subsystem: "writer",
	Name:      "bytes_written",
})

var CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rawdata",
	Subsystem: "record_cache",
	Name:      "lookups",
}, []string{"result"})

// IndexFetches counts reads of index attributes from the container.
var IndexFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rawdata",
	Subsystem: "sourceid_index",
	Name:      "fetches",
}, []string{"attribute", "result"})

// RegisterMetrics registers every collector of the package with reg.
// Collectors that are already registered are skipped.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{RecordsWritten, BytesWritten, CacheLookups, IndexFetches} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}
