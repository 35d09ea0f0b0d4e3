package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"

	"github.com/dmitrijs2005/redactvault/internal/api"
	"github.com/dmitrijs2005/redactvault/internal/client/client"
	"github.com/dmitrijs2005/redactvault/internal/client/config"
	"github.com/dmitrijs2005/redactvault/internal/common"
	"github.com/dmitrijs2005/redactvault/internal/filex"
)

// VaultAPI is the part of client.GRPCClient the commands use.
type VaultAPI interface {
	Upload(ctx context.Context, req *api.UploadRequest) (*api.UploadResponse, error)
	GetPreview(ctx context.Context, docID string) (*api.GetPreviewResponse, error)
	FetchArtifact(ctx context.Context, docID string) ([]byte, error)
	Unlock(ctx context.Context, docID string, password []byte) ([]byte, error)
	ListDocuments(ctx context.Context) ([]api.Document, error)
	Close() error
}

type App struct {
	config     *config.Config
	client     VaultAPI
	newClient  func(cfg *config.Config) (VaultAPI, error)
	httpClient *http.Client
	stdin      io.Reader
}

func NewApp(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		newClient: dialVault,
		stdin:     os.Stdin,
	}
}

func dialVault(cfg *config.Config) (VaultAPI, error) {
	return client.NewVaultClientService(cfg.ServerEndpointAddr, cfg.AccessToken, cfg.MaxMessageSize, cfg.Retries)
}

func (a *App) connect() error {
	if a.client != nil {
		return nil
	}
	c, err := a.newClient(a.config)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", a.config.ServerEndpointAddr, err)
	}
	a.client = c
	return nil
}

func (a *App) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

// Execute runs the command line args against the vault.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.RootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	var reported *reportedError
	if err != nil && !errors.As(err, &reported) {
		fmt.Fprintln(root.ErrOrStderr(), color.RedString("✗")+" "+err.Error())
	}
	return err
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

// writeOutput sends data to path, or to w when path is empty.
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	return filex.WritePrivate(path, data)
}

// describeError turns client errors into one line for the user.
func describeError(err error) string {
	var locked *common.LockedError
	switch {
	case errors.As(err, &locked):
		if locked.RetryAfter > 0 {
			return fmt.Sprintf("document is locked, try again in %s", locked.RetryAfter)
		}
		return "document is locked, try again later"
	case errors.Is(err, common.ErrDenied):
		return "access denied"
	case errors.Is(err, common.ErrorNotFound):
		return "document not found"
	case errors.Is(err, client.ErrUnauthorized):
		return "a valid access token is required (--token)"
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable, try again"
	case errors.Is(err, client.ErrTooLarge):
		return "request exceeds the message size limit"
	default:
		return err.Error()
	}
}

// reportedError marks an error already shown to the user.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func failure(w io.Writer, err error) error {
	fmt.Fprintln(w, color.RedString("✗")+" "+describeError(err))
	return &reportedError{err: err}
}
