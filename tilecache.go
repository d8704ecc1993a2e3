// Package tilecache is a bounded, freshness-aware cache for tile and resource responses.
//
// Responses are written to a store.Provider under their request identity. Reads return
// the stored response along with whether it is still fresh. Every write that reaches the
// store counts as an admission; after enough admissions a background pass trims the store
// back to its size limit by evicting the entries that were written or read least recently.
package tilecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	cachekey "github.com/always-cache/tile-cache/pkg/cache-key"
	"github.com/always-cache/tile-cache/pkg/metrics"
	"github.com/always-cache/tile-cache/store"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultNamespace      = "mapbox-tiles"
	DefaultLimit          = 500
	DefaultCheckThreshold = 50
	DefaultQueueSize      = 64
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// Storage for cache entries.
	// Without a store, writes are dropped and every read is a miss.
	Store store.Provider
	// Name of the bucket entries are kept in. Defaults to DefaultNamespace.
	Namespace string
	// Number of entries kept after a size limit pass. Defaults to DefaultLimit.
	Limit int
	// Number of admissions between size limit passes. Defaults to DefaultCheckThreshold.
	CheckThreshold int
	// Number of writes that can be waiting for the store before Put blocks.
	QueueSize int
	// Leave the query string out of the request identity.
	IgnoreSearch bool
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Metrics to record to. New metrics are created if nil.
	Metrics *metrics.Metrics
	// Clock for freshness decisions. Defaults to time.Now.
	Clock func() time.Time
}

type TileCache struct {
	provider       store.Provider
	enabled        bool
	keyer          cachekey.Keyer
	namespace      string
	limit          int
	checkThreshold int64
	log            zerolog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time

	// admissions since the last size limit pass
	admissions atomic.Int64

	writes     chan writeJob
	closeMutex sync.RWMutex
	closed     bool
	group      errgroup.Group
}

// New creates the cache and starts its write worker, which also runs size limit passes.
// Call Close to stop it.
func New(config Config) (*TileCache, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	} else {
		logger = *config.Logger
	}

	// create a child logger and add defaults
	logger = logger.With().
		Str("namespace", config.Namespace).
		Logger()

	c := &TileCache{
		provider:       config.Store,
		enabled:        config.Store != nil,
		keyer:          cachekey.NewKeyer(config.IgnoreSearch),
		namespace:      config.Namespace,
		limit:          config.Limit,
		checkThreshold: int64(config.CheckThreshold),
		log:            logger,
		metrics:        config.Metrics,
		now:            config.Clock,
		writes:         make(chan writeJob, config.QueueSize),
	}
	if !c.enabled {
		c.provider = noStore{}
		logger.Warn().Msg("No store configured, caching is disabled")
	}

	// first admission triggers a pass
	c.admissions.Store(c.checkThreshold + 1)

	c.group.Go(func() error {
		c.writeLoop(context.Background())
		return nil
	})

	logger.Debug().
		Int("limit", c.limit).
		Int64("checkThreshold", c.checkThreshold).
		Bool("ignoreSearch", config.IgnoreSearch).
		Msg("Tile cache started")
	return c, nil
}

// Close stops accepting writes, waits for queued writes to reach the store and
// runs a last size limit pass.
// Put after Close does nothing; Get, Clear and EnforceSizeLimit keep working as long as the store does.
func (c *TileCache) Close() error {
	c.closeMutex.Lock()
	if !c.closed {
		c.closed = true
		close(c.writes)
	}
	c.closeMutex.Unlock()
	return c.group.Wait()
}

// Metrics returns the metrics the cache records to.
func (c *TileCache) Metrics() *metrics.Metrics {
	return c.metrics
}

// Enabled reports whether the cache has a store to write to.
func (c *TileCache) Enabled() bool {
	return c.enabled
}

func (config Config) validate() error {
	if config.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidConfig, config.Limit)
	}
	if config.CheckThreshold < 0 {
		return fmt.Errorf("%w: check threshold must not be negative, got %d", ErrInvalidConfig, config.CheckThreshold)
	}
	if config.QueueSize < 0 {
		return fmt.Errorf("%w: queue size must not be negative, got %d", ErrInvalidConfig, config.QueueSize)
	}
	return nil
}

func (config *Config) setDefaults() {
	if config.Namespace == "" {
		config.Namespace = DefaultNamespace
	}
	if config.Limit == 0 {
		config.Limit = DefaultLimit
	}
	if config.CheckThreshold == 0 {
		config.CheckThreshold = DefaultCheckThreshold
	}
	if config.QueueSize == 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NewMetrics()
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
}
