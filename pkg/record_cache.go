package rawdata

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// recordIndex is everything the SourceID index says about one record. It
// is built in one visit to the record group and not changed afterwards.
type recordIndex struct {
	headerSourceID    SourceID
	hasHeaderSourceID bool
	paths             SourceIDPathMap
	geoIDs            SourceIDGeoIDMap
	all               SourceIDSet
	fragments         SourceIDSet
	bySubsystem       SubsystemSourceIDMap
	byFragmentType    FragmentTypeSourceIDMap
	bySubdetector     SubdetectorSourceIDMap
}

// RecordCache holds the index of recently used records, keyed by RecordID.
// Entries never change while cached. Evicted records are rebuilt from the
// container on their next use, so one fetch per record holds only while
// the handle touches at most capacity records.
type RecordCache struct {
	entries *lru.Cache[RecordID, *recordIndex]
}

func NewRecordCache(capacity int) (*RecordCache, error) {
	entries, err := lru.New[RecordID, *recordIndex](capacity)
	if err != nil {
		return nil, err
	}
	return &RecordCache{entries: entries}, nil
}

// Populated reports whether rid is cached without touching its recency.
func (c *RecordCache) Populated(rid RecordID) bool {
	return c.entries.Contains(rid)
}

func (c *RecordCache) get(rid RecordID) (*recordIndex, bool) {
	entry, ok := c.entries.Get(rid)
	if ok {
		CacheLookups.WithLabelValues("hit").Inc()
	} else {
		CacheLookups.WithLabelValues("miss").Inc()
	}
	return entry, ok
}

func (c *RecordCache) add(rid RecordID, entry *recordIndex) {
	c.entries.Add(rid, entry)
}

func (c *RecordCache) Len() int {
	return c.entries.Len()
}
