package idxmigrate

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	source Service
	target Service

	driver    string // "fs", "valkey" or "s3"
	container string
	dir       string
	addrs     []string
	password  string
	ttl       time.Duration
	endpoint  string
	accessKey string
	secretKey string
	useSSL    bool

	batchSize       int
	parallelJobs    int
	synonymMap      string
	persistSchema   bool
	requireComplete bool
	stopOnError     bool

	verifyInterval time.Duration
	verifyTimeout  time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithSource sets the service indexes are copied from.
func WithSource(s Service) Option {
	return optionFunc(func(c *clientConfig) {
		c.source = s
	})
}

// WithTarget sets the service indexes are copied to.
func WithTarget(s Service) Option {
	return optionFunc(func(c *clientConfig) {
		c.target = s
	})
}

// WithFSStage stages batch files under dir/<container>.
func WithFSStage(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "fs"
		c.dir = dir
	})
}

// WithValkeyStage stages batch files as Valkey keys. ttl 0 keeps them forever.
func WithValkeyStage(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
		c.ttl = ttl
	})
}

// WithS3Stage stages batch files in an S3-compatible bucket named after the container.
func WithS3Stage(endpoint, accessKey, secretKey string, useSSL bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "s3"
		c.endpoint = endpoint
		c.accessKey = accessKey
		c.secretKey = secretKey
		c.useSSL = useSSL
	})
}

// WithContainer names the stage container (directory, key namespace or bucket).
// Default: "idxmigrate".
func WithContainer(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.container = name
	})
}

// WithBatchSize sets the page size used for extraction. Default: 500.
func WithBatchSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = n
	})
}

// WithParallelJobs sets how many pages are extracted per wave. Default: 10.
func WithParallelJobs(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.parallelJobs = n
	})
}

// WithSynonymMap sets the synonym map copied before the indexes.
// Default: "synonym-map".
func WithSynonymMap(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.synonymMap = name
	})
}

// WithPersistSchema stores each index definition next to its batch files.
func WithPersistSchema() Option {
	return optionFunc(func(c *clientConfig) {
		c.persistSchema = true
	})
}

// WithRequireCompleteExport leaves the target index untouched when a page failed to stage.
func WithRequireCompleteExport() Option {
	return optionFunc(func(c *clientConfig) {
		c.requireComplete = true
	})
}

// WithStopImportOnError stops replaying an index after its first failed file.
func WithStopImportOnError() Option {
	return optionFunc(func(c *clientConfig) {
		c.stopOnError = true
	})
}

// WithVerify tunes count reconciliation polling. Defaults: 2s interval, 2m timeout.
func WithVerify(interval, timeout time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.verifyInterval = interval
		c.verifyTimeout = timeout
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
