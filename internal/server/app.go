// Package server initializes and runs the vault server. It selects storage
// backends, runs migrations, starts the gRPC endpoint and the retention
// sweeper, and shuts everything down on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/redactvault/internal/logging"
	"github.com/dmitrijs2005/redactvault/internal/server/access"
	"github.com/dmitrijs2005/redactvault/internal/server/artifacts"
	"github.com/dmitrijs2005/redactvault/internal/server/auth"
	"github.com/dmitrijs2005/redactvault/internal/server/awsx"
	"github.com/dmitrijs2005/redactvault/internal/server/config"
	"github.com/dmitrijs2005/redactvault/internal/server/jobs"
	"github.com/dmitrijs2005/redactvault/internal/server/kdfpool"
	"github.com/dmitrijs2005/redactvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/redactvault/internal/server/services"

	gs "github.com/dmitrijs2005/redactvault/internal/server/grpc"
)

// Seams for tests.
var (
	openDB           = sql.Open
	dbPingRetries    = uint64(5)
	dbPingBackoff    = 500 * time.Millisecond
	loadAWSConfig    = awsx.LoadConfig
	loadSigningKey   = auth.LoadSigningKey
	newSecretsClient = func(ctx context.Context, o awsx.Options) (auth.SecretsAPI, error) {
		awsCfg, err := loadAWSConfig(ctx, o)
		if err != nil {
			return nil, err
		}
		return secretsmanager.NewFromConfig(awsCfg), nil
	}
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	server  *gs.GRPCServer
	sweeper *jobs.Sweeper
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	repos, err := newRepositoryManager(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := newArtifactStore(ctx, c)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("artifact store init error: %w", err)
	}

	jwtKey, err := signingKey(ctx, c)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("signing key error: %w", err)
	}

	repo := repos.Vault()
	ac := access.NewController(repo, c.LockoutPolicy(), logger)
	vs := services.NewVaultService(repo, store, ac, kdfpool.New(c.KdfWorkers), c, logger)

	app := &App{
		config: c,
		logger: logger,
		repos:  repos,
		server: gs.NewGRPCServer(c.EndpointAddrGRPC, logger, vs, jwtKey, c.MaxMessageSize),
	}
	if c.RetentionPeriod > 0 {
		app.sweeper = jobs.NewSweeper(repo, store, logger, c.SweepInterval, c.SweepBatchSize)
	}
	return app, nil
}

func newRepositoryManager(ctx context.Context, c *config.Config) (repomanager.RepositoryManager, error) {
	switch c.StoreBackend {
	case config.BackendPostgres:
		db, err := openDB("pgx", c.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		if err := pingDB(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return repomanager.NewPostgresRepositoryManager(db), nil
	case config.BackendDynamoDB:
		awsCfg, err := loadAWSConfig(ctx, awsx.Options{Region: c.AWSRegion})
		if err != nil {
			return nil, err
		}
		return repomanager.NewDynamoRepositoryManager(dynamodb.NewFromConfig(awsCfg), c.DynamoTable), nil
	default:
		return repomanager.NewMemoryRepositoryManager(), nil
	}
}

// pingDB waits for the database to accept connections; it is usually still
// starting when the server container comes up.
func pingDB(ctx context.Context, db *sql.DB) error {
	b := retry.WithMaxRetries(dbPingRetries, retry.NewExponential(dbPingBackoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func newArtifactStore(ctx context.Context, c *config.Config) (artifacts.Store, error) {
	if c.ArtifactBackend != config.BackendS3 {
		return artifacts.NewMemoryStore(), nil
	}
	awsCfg, err := loadAWSConfig(ctx, awsx.Options{
		Region:          c.S3Region,
		AccessKeyID:     c.S3RootUser,
		SecretAccessKey: c.S3RootPassword,
	})
	if err != nil {
		return nil, err
	}
	return artifacts.NewS3Store(awsCfg, c.S3Bucket, c.S3BaseEndpoint), nil
}

func signingKey(ctx context.Context, c *config.Config) ([]byte, error) {
	if c.JWTSecretID == "" {
		return []byte(c.SecretKey), nil
	}
	client, err := newSecretsClient(ctx, awsx.Options{Region: c.AWSRegion})
	if err != nil {
		return nil, err
	}
	return loadSigningKey(ctx, client, c.JWTSecretID)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled, a signal arrives or a component fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.server.Run(ctx)
	})

	if app.sweeper != nil {
		g.Go(func() error {
			return app.sweeper.Run(ctx)
		})
	}

	err := g.Wait()
	if cerr := app.repos.Close(); cerr != nil {
		app.logger.Error(ctx, "failed to close repositories", "error", cerr.Error())
	}
	if err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}
