// Package config handles configuration for the bundler server, including
// defaults, JSON overlay, and command-line flags.
package config

// Config holds runtime settings for the bundler server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the public HTTP endpoint.
//   - DatabaseDSN: PostgreSQL DSN (pgx); empty selects the in-memory store.
//   - StagingDirectory: URI under which <job_id>/ output directories live.
//   - StagingDirectoryBase / BaseURL: prefix replacement that turns staged
//     paths into client-facing download URLs.
//   - EntryPathExclusions: leading substrings stripped from archive entry
//     paths.
//   - S3Endpoint / S3Region / IAMRole / AccessKey / SecretKey: object-store
//     provider settings; either the IAM role, or both keys, must be present
//     for the s3:// scheme to be registered.
//   - MinArchiveSizeMB / MaxArchiveSizeMB / DefaultArchiveSizeMB: clamp
//     bounds for the requested target archive size.
//   - AverageCompressionPct: the estimator's compression constant.
//   - RequestDirectory: optional directory for debug archival of raw
//     requests; empty disables the feature.
//   - HashType: digest algorithm for archive hash files.
type Config struct {
	EndpointAddrHTTP      string
	DatabaseDSN           string
	StagingDirectory      string
	StagingDirectoryBase  string
	BaseURL               string
	EntryPathExclusions   []string
	S3Endpoint            string
	S3Region              string
	IAMRole               string
	AccessKey             string
	SecretKey             string
	MinArchiveSizeMB      int64
	MaxArchiveSizeMB      int64
	DefaultArchiveSizeMB  int64
	AverageCompressionPct int
	RequestDirectory      string
	HashType              string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the staging paths and credentials must be overridden in production.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.DatabaseDSN = ""
	c.StagingDirectory = "file:///var/tmp/bundler/staging"
	c.StagingDirectoryBase = "/var/tmp/bundler/staging"
	c.BaseURL = "http://localhost:8080/downloads"
	c.S3Region = "us-east-1"
	c.MinArchiveSizeMB = 20
	c.MaxArchiveSizeMB = 1024
	c.DefaultArchiveSizeMB = 400
	c.AverageCompressionPct = 40
	c.HashType = "SHA1"
}

// S3Configured reports whether any object-store credential material is
// present; without it the s3:// scheme stays unregistered.
func (c *Config) S3Configured() bool {
	return c.IAMRole != "" || c.AccessKey != "" || c.SecretKey != ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
