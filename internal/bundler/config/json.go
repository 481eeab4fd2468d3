package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/bundler/internal/flagx"
)

// JsonConfig is the DTO used only for reading JSON configuration files.
// After unmarshalling, set fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP      *string  `json:"endpoint_addr_http"`
	DatabaseDSN           *string  `json:"database_dsn"`
	StagingDirectory      *string  `json:"staging_directory"`
	StagingDirectoryBase  *string  `json:"staging_directory_base"`
	BaseURL               *string  `json:"base_url"`
	EntryPathExclusions   []string `json:"entry_path_exclusions"`
	S3Endpoint            *string  `json:"s3_endpoint"`
	S3Region              *string  `json:"s3_region"`
	IAMRole               *string  `json:"iam_role"`
	AccessKey             *string  `json:"access_key"`
	SecretKey             *string  `json:"secret_key"`
	MinArchiveSizeMB      *int64   `json:"min_archive_size"`
	MaxArchiveSizeMB      *int64   `json:"max_archive_size"`
	DefaultArchiveSizeMB  *int64   `json:"default_archive_size"`
	AverageCompressionPct *int     `json:"average_compression_percentage"`
	RequestDirectory      *string  `json:"bundle_request_directory"`
	HashType              *string  `json:"hash_type"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. Absent fields keep their
// current values. An unreadable or invalid file panics: a deployment that
// points at a broken config file must not come up half-configured.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	applyString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	applyString(&config.DatabaseDSN, c.DatabaseDSN)
	applyString(&config.StagingDirectory, c.StagingDirectory)
	applyString(&config.StagingDirectoryBase, c.StagingDirectoryBase)
	applyString(&config.BaseURL, c.BaseURL)
	applyString(&config.S3Endpoint, c.S3Endpoint)
	applyString(&config.S3Region, c.S3Region)
	applyString(&config.IAMRole, c.IAMRole)
	applyString(&config.AccessKey, c.AccessKey)
	applyString(&config.SecretKey, c.SecretKey)
	applyString(&config.RequestDirectory, c.RequestDirectory)
	applyString(&config.HashType, c.HashType)

	if c.EntryPathExclusions != nil {
		config.EntryPathExclusions = c.EntryPathExclusions
	}
	if c.MinArchiveSizeMB != nil {
		config.MinArchiveSizeMB = *c.MinArchiveSizeMB
	}
	if c.MaxArchiveSizeMB != nil {
		config.MaxArchiveSizeMB = *c.MaxArchiveSizeMB
	}
	if c.DefaultArchiveSizeMB != nil {
		config.DefaultArchiveSizeMB = *c.DefaultArchiveSizeMB
	}
	if c.AverageCompressionPct != nil {
		config.AverageCompressionPct = *c.AverageCompressionPct
	}
}
