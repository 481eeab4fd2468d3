package config

import (
	"flag"
	"os"
	"strings"

	"github.com/dmitrijs2005/bundler/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN (empty selects the in-memory store)
//	-s string   staging directory URI
//	-b string   staging directory base (URL prefix replacement source)
//	-u string   base URL (URL prefix replacement target)
//	-x string   comma-separated entry path exclusions
//	-e string   S3 endpoint
//	-g string   S3 region
//	-i string   IAM role
//	-k string   S3 access key
//	-p string   S3 secret key
//	-q string   bundle request archival directory
//	-t string   hash algorithm (MD5|SHA1|SHA256|SHA384|SHA512)
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-b", "-u", "-x", "-e", "-g", "-i", "-k", "-p", "-q", "-t",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.StagingDirectory, "s", config.StagingDirectory, "staging directory URI")
	fs.StringVar(&config.StagingDirectoryBase, "b", config.StagingDirectoryBase, "staging directory base path")
	fs.StringVar(&config.BaseURL, "u", config.BaseURL, "base download URL")

	exclusions := fs.String("x", "", "comma-separated entry path exclusions")

	fs.StringVar(&config.S3Endpoint, "e", config.S3Endpoint, "S3 endpoint")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.IAMRole, "i", config.IAMRole, "IAM role")
	fs.StringVar(&config.AccessKey, "k", config.AccessKey, "S3 access key")
	fs.StringVar(&config.SecretKey, "p", config.SecretKey, "S3 secret key")
	fs.StringVar(&config.RequestDirectory, "q", config.RequestDirectory, "request archival directory")
	fs.StringVar(&config.HashType, "t", config.HashType, "hash algorithm")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *exclusions != "" {
		parts := strings.Split(*exclusions, ",")
		config.EntryPathExclusions = config.EntryPathExclusions[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				config.EntryPathExclusions = append(config.EntryPathExclusions, p)
			}
		}
	}
}
