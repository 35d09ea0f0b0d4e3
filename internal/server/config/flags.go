package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/redactvault/internal/flagx"
)

var knownFlags = []string{
	"-a", "-d", "-s", "-u", "-p", "-b", "-g", "-e",
	"-store", "-table", "-region", "-artifacts", "-base-url", "-jwt-secret-id",
	"-cipher", "-kdf-iterations", "-kdf-memory", "-kdf-parallelism", "-kdf-workers",
	"-lockout-threshold", "-lockout-base", "-lockout-max",
	"-max-password-len", "-max-document-size", "-max-message-size",
	"-retention", "-sweep-interval", "-log-level",
}

// parseFlags populates Config fields from command-line flags.
//
// The short flags keep their historical meaning:
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-u/-p       S3 root user / password
//	-b/-g/-e    S3 bucket / region / base endpoint
//
// Everything else uses a long name, e.g. -store dynamodb or -retention 720h.
// os.Args is first filtered with flagx.FilterArgs so flags meant for other
// components are ignored. A malformed value panics.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.StoreBackend, "store", config.StoreBackend, "vault store: postgres, dynamodb or memory")
	fs.StringVar(&config.DynamoTable, "table", config.DynamoTable, "DynamoDB table")
	fs.StringVar(&config.AWSRegion, "region", config.AWSRegion, "AWS region for DynamoDB and Secrets Manager")
	fs.StringVar(&config.ArtifactBackend, "artifacts", config.ArtifactBackend, "artifact store: s3 or memory")
	fs.StringVar(&config.BaseURL, "base-url", config.BaseURL, "base URL of share links")
	fs.StringVar(&config.JWTSecretID, "jwt-secret-id", config.JWTSecretID, "Secrets Manager id of the JWT key")

	fs.StringVar(&config.Cipher, "cipher", config.Cipher, "aes-256-gcm or xchacha20-poly1305")
	iterations := fs.Uint("kdf-iterations", uint(config.Kdf.Iterations), "argon2id passes")
	memory := fs.Uint("kdf-memory", uint(config.Kdf.MemoryKiB), "argon2id memory, KiB")
	parallelism := fs.Uint("kdf-parallelism", uint(config.Kdf.Parallelism), "argon2id lanes")
	fs.IntVar(&config.KdfWorkers, "kdf-workers", config.KdfWorkers, "concurrent key derivations, 0 = GOMAXPROCS")

	fs.IntVar(&config.LockoutThreshold, "lockout-threshold", config.LockoutThreshold, "failures before lockout")
	fs.DurationVar(&config.LockoutBase, "lockout-base", config.LockoutBase, "first lockout duration")
	fs.DurationVar(&config.LockoutMax, "lockout-max", config.LockoutMax, "longest lockout duration")

	fs.IntVar(&config.MaxPasswordLen, "max-password-len", config.MaxPasswordLen, "longest accepted password, bytes")
	fs.IntVar(&config.MaxDocumentSize, "max-document-size", config.MaxDocumentSize, "largest accepted document, bytes")
	fs.IntVar(&config.MaxMessageSize, "max-message-size", config.MaxMessageSize, "largest gRPC message, bytes")

	fs.DurationVar(&config.RetentionPeriod, "retention", config.RetentionPeriod, "entry lifetime, 0 = forever")
	fs.DurationVar(&config.SweepInterval, "sweep-interval", config.SweepInterval, "expired entry sweep interval")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.Kdf.Iterations = uint32(*iterations)
	config.Kdf.MemoryKiB = uint32(*memory)
	config.Kdf.Parallelism = uint8(*parallelism)
}
