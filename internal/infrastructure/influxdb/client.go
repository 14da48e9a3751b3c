package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	// Door telemetry is sparse: a few points per door movement. Small
	// batches keep dashboards close to real time.
	defaultBatchSize     = 20
	defaultFlushInterval = 5 * time.Second
)

// Client writes door snapshots and command outcomes to one bucket.
//
// Writes never block the publisher. Points are batched by the library and
// failures arrive on the SetOnError callback.
type Client struct {
	influx   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string

	// stateMu guards closed. Writes hold the read lock so Close cannot
	// release the write API underneath them.
	stateMu     sync.RWMutex
	closed      bool
	writeErrors atomic.Uint64

	mu      sync.RWMutex
	onError func(err error)
}

// Connect pings the server and prepares the batching write API.
//
// Returns ErrDisabled when cfg.Enabled is false and ErrUnreachable when the
// ping fails.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batchSize(cfg)).
		SetFlushInterval(uint(flushInterval(cfg).Milliseconds())) //nolint:gosec // positive by construction
	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	if err := ping(ctx, influx, connectTimeout); err != nil {
		influx.Close()
		return nil, err
	}

	c := &Client{
		influx:   influx,
		writeAPI: influx.WriteAPI(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
	}
	go c.forwardErrors(c.writeAPI.Errors())
	return c, nil
}

func batchSize(cfg config.InfluxDBConfig) uint {
	if cfg.BatchSize <= 0 {
		return defaultBatchSize
	}
	return uint(cfg.BatchSize)
}

func flushInterval(cfg config.InfluxDBConfig) time.Duration {
	if cfg.FlushInterval <= 0 {
		return defaultFlushInterval
	}
	return time.Duration(cfg.FlushInterval) * time.Second
}

func ping(ctx context.Context, influx influxdb2.Client, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := influx.Ping(pingCtx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if !ok {
		return fmt.Errorf("%w: ping not ok", ErrUnreachable)
	}
	return nil
}

func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.writeErrors.Add(1)
		c.mu.RLock()
		cb := c.onError
		c.mu.RUnlock()
		if cb != nil {
			cb(err)
		}
	}
}

// write hands p to the batching API unless the client is closed.
func (c *Client) write(p *write.Point) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.closed {
		return
	}
	c.writeAPI.WritePoint(p)
}

// SetOnError installs the callback for failed batch writes.
func (c *Client) SetOnError(cb func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = cb
}

// WriteErrors returns how many batch writes have failed since Connect.
func (c *Client) WriteErrors() uint64 {
	return c.writeErrors.Load()
}

// Bucket returns the target bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// HealthCheck pings the server. It fails with ErrClosed after Close.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.stateMu.RLock()
	closed := c.closed
	c.stateMu.RUnlock()
	if closed {
		return ErrClosed
	}
	return ping(ctx, c.influx, pingTimeout)
}

// Close flushes buffered points and releases the client. Later writes are
// dropped. Calling Close twice is harmless.
func (c *Client) Close() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.writeAPI.Flush()
	c.influx.Close()
	return nil
}
