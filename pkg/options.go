package rawdata

import (
	"github.com/next-exp/rawdata_go/pkg/container"
	"github.com/next-exp/rawdata_go/pkg/container/treestore"
)

const (
	// DefaultInProgressSuffix is appended to the file name while writing.
	DefaultInProgressSuffix = ".writing"
	// DefaultCacheCapacity is the number of records a read handle caches.
	DefaultCacheCapacity = 65536
)

type options struct {
	opener           container.Opener
	inProgressSuffix string
	layoutVersion    LayoutVersion
	cacheCapacity    int
	mode             container.Mode
}

type Option func(*options)

func defaultOptions() options {
	return options{
		opener:           treestore.New(treestore.CompressionZSTD),
		inProgressSuffix: DefaultInProgressSuffix,
		layoutVersion:    CurrentLayoutVersion,
		cacheCapacity:    DefaultCacheCapacity,
		mode:             container.Truncate,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithBackend selects the container engine.
func WithBackend(opener container.Opener) Option {
	return func(o *options) {
		if opener != nil {
			o.opener = opener
		}
	}
}

// WithInProgressSuffix sets the suffix used until Close renames the file.
// An empty suffix writes the final name directly.
func WithInProgressSuffix(suffix string) Option {
	return func(o *options) { o.inProgressSuffix = suffix }
}

// WithLayoutVersion sets the layout version written. Versions below 3
// write no SourceID index.
func WithLayoutVersion(version LayoutVersion) Option {
	return func(o *options) { o.layoutVersion = version }
}

// WithCacheCapacity bounds the number of cached records on a read handle.
// A record's index is fetched once while it stays cached. A record evicted
// by capacity newer ones is fetched again on its next use, so handles that
// revisit more records than capacity pay one fetch per revisit.
func WithCacheCapacity(capacity int) Option {
	return func(o *options) {
		if capacity > 0 {
			o.cacheCapacity = capacity
		}
	}
}

// WithOpenMode sets how the writer opens its file.
func WithOpenMode(mode container.Mode) Option {
	return func(o *options) { o.mode = mode }
}
