package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/redactvault/internal/cryptox"
	"github.com/dmitrijs2005/redactvault/internal/flagx"
	"github.com/dmitrijs2005/redactvault/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "1m" and integer nanoseconds are accepted. Fields
// left out of the file keep their current value; a "kdf" object replaces
// the KDF parameters as a whole.
type JsonConfig struct {
	EndpointAddrGRPC string             `json:"endpoint_addr_grpc"`
	MaxMessageSize   int                `json:"max_message_size"`
	StoreBackend     string             `json:"store_backend"`
	DatabaseDSN      string             `json:"database_dsn"`
	DynamoTable      string             `json:"dynamo_table"`
	AWSRegion        string             `json:"aws_region"`
	ArtifactBackend  string             `json:"artifact_backend"`
	S3RootUser       string             `json:"s3_root_user"`
	S3RootPassword   string             `json:"s3_root_password"`
	S3Bucket         string             `json:"s3_bucket"`
	S3Region         string             `json:"s3_region"`
	S3BaseEndpoint   string             `json:"s3_base_endpoint"`
	BaseURL          string             `json:"base_url"`
	SecretKey        string             `json:"secret_key"`
	JWTSecretID      string             `json:"jwt_secret_id"`
	Kdf              *cryptox.KdfParams `json:"kdf"`
	Cipher           string             `json:"cipher"`
	KdfWorkers       int                `json:"kdf_workers"`
	LockoutThreshold int                `json:"lockout_threshold"`
	LockoutBase      timex.Duration     `json:"lockout_base"`
	LockoutMax       timex.Duration     `json:"lockout_max"`
	MaxPasswordLen   int                `json:"max_password_len"`
	MaxDocumentSize  int                `json:"max_document_size"`
	RetentionPeriod  timex.Duration     `json:"retention_period"`
	SweepInterval    timex.Duration     `json:"sweep_interval"`
	SweepBatchSize   int                `json:"sweep_batch_size"`
	LogLevel         string             `json:"log_level"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

// parseJson loads configuration values from the JSON file named by -c/-config
// (or REDACTVAULT_CONFIG) into config. Without a file nothing changes. An
// unreadable or malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setInt(&config.MaxMessageSize, c.MaxMessageSize)
	setString(&config.StoreBackend, c.StoreBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.DynamoTable, c.DynamoTable)
	setString(&config.AWSRegion, c.AWSRegion)
	setString(&config.ArtifactBackend, c.ArtifactBackend)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.BaseURL, c.BaseURL)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.JWTSecretID, c.JWTSecretID)
	if c.Kdf != nil {
		config.Kdf = *c.Kdf
	}
	setString(&config.Cipher, c.Cipher)
	setInt(&config.KdfWorkers, c.KdfWorkers)
	setInt(&config.LockoutThreshold, c.LockoutThreshold)
	setInt(&config.MaxPasswordLen, c.MaxPasswordLen)
	setInt(&config.MaxDocumentSize, c.MaxDocumentSize)
	setInt(&config.SweepBatchSize, c.SweepBatchSize)
	setString(&config.LogLevel, c.LogLevel)

	setDuration(&config.LockoutBase, c.LockoutBase)
	setDuration(&config.LockoutMax, c.LockoutMax)
	setDuration(&config.RetentionPeriod, c.RetentionPeriod)
	setDuration(&config.SweepInterval, c.SweepInterval)
}
