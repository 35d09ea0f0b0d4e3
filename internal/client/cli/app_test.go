package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/redactvault/internal/api"
	"github.com/dmitrijs2005/redactvault/internal/client/client"
	"github.com/dmitrijs2005/redactvault/internal/client/config"
	"github.com/dmitrijs2005/redactvault/internal/common"
)

type fakeVault struct {
	uploads   []*api.UploadRequest
	uploadErr error

	preview   *api.GetPreviewResponse
	artifact  []byte
	fetched   int
	passwords map[string]string
	originals map[string][]byte
	docs      []api.Document
	listErr   error
	closed    bool
}

func newFakeVault() *fakeVault {
	return &fakeVault{passwords: map[string]string{}, originals: map[string][]byte{}}
}

func (f *fakeVault) Upload(ctx context.Context, req *api.UploadRequest) (*api.UploadResponse, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	cp := *req
	cp.Password = append([]byte(nil), req.Password...)
	cp.Original = append([]byte(nil), req.Original...)
	f.uploads = append(f.uploads, &cp)
	id := "6f1c2c1e-8d7a-4b7e-9a40-2f5b8f0d7a11"
	f.passwords[id] = string(req.Password)
	f.originals[id] = cp.Original
	return &api.UploadResponse{DocID: id, ArtifactRef: "memory://k", ShareURL: "https://vault.example/share/" + id}, nil
}

func (f *fakeVault) GetPreview(ctx context.Context, docID string) (*api.GetPreviewResponse, error) {
	if f.preview == nil {
		return nil, common.ErrorNotFound
	}
	return f.preview, nil
}

func (f *fakeVault) FetchArtifact(ctx context.Context, docID string) ([]byte, error) {
	f.fetched++
	return f.artifact, nil
}

func (f *fakeVault) Unlock(ctx context.Context, docID string, password []byte) ([]byte, error) {
	want, ok := f.passwords[docID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if want != string(password) {
		return nil, common.ErrDenied
	}
	return append([]byte(nil), f.originals[docID]...), nil
}

func (f *fakeVault) ListDocuments(ctx context.Context) ([]api.Document, error) {
	return f.docs, f.listErr
}

func (f *fakeVault) Close() error {
	f.closed = true
	return nil
}

func newTestApp(f *fakeVault) *App {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	a := NewApp(cfg)
	a.newClient = func(*config.Config) (VaultAPI, error) { return f, nil }
	return a
}

func run(t *testing.T, a *App, stdin string, args ...string) (string, string, error) {
	t.Helper()
	a.stdin = strings.NewReader(stdin)
	var out, errOut bytes.Buffer
	root := a.RootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestUploadThenUnlock(t *testing.T) {
	f := newFakeVault()
	a := newTestApp(f)
	dir := t.TempDir()
	orig := writeFile(t, dir, "report.txt", "hello-pii")
	red := writeFile(t, dir, "report.redacted.txt", "[REDACTED]")

	out, _, err := run(t, a, "correct-horse\n", "upload", "--password-stdin", orig, red)
	require.NoError(t, err)
	assert.Contains(t, out, "6f1c2c1e-8d7a-4b7e-9a40-2f5b8f0d7a11")
	assert.Contains(t, out, "https://vault.example/share/")

	require.Len(t, f.uploads, 1)
	assert.Equal(t, "report.txt", f.uploads[0].Filename)
	assert.Equal(t, []byte("hello-pii"), f.uploads[0].Original)
	assert.Equal(t, []byte("correct-horse"), f.uploads[0].Password)
	assert.True(t, strings.HasPrefix(f.uploads[0].ContentType, "text/plain"))

	target := filepath.Join(dir, "recovered.txt")
	_, errOut, err := run(t, a, "correct-horse\n", "unlock", "--password-stdin", "-o", target, "6f1c2c1e-8d7a-4b7e-9a40-2f5b8f0d7a11")
	require.NoError(t, err)
	assert.Contains(t, errOut, "recovered.txt")

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello-pii", string(got))
}

func TestUnlock_ToStdoutAndDenied(t *testing.T) {
	f := newFakeVault()
	f.passwords["d1"] = "pw"
	f.originals["d1"] = []byte("orig")
	a := newTestApp(f)

	out, _, err := run(t, a, "pw\n", "unlock", "--password-stdin", "d1")
	require.NoError(t, err)
	assert.Equal(t, "orig", out)

	_, errOut, err := run(t, a, "nope\n", "unlock", "--password-stdin", "d1")
	require.ErrorIs(t, err, common.ErrDenied)
	assert.Contains(t, errOut, "access denied")
}

func TestUnlock_PromptsOnTerminal(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func(int) ([]byte, error) { return []byte("pw"), nil }

	f := newFakeVault()
	f.passwords["d1"] = "pw"
	f.originals["d1"] = []byte("orig")

	out, errOut, err := run(t, newTestApp(f), "", "unlock", "d1")
	require.NoError(t, err)
	assert.Equal(t, "orig", out)
	assert.Contains(t, errOut, "Enter document password")
}

func TestUpload_GeneratedPasswordPrintedOnce(t *testing.T) {
	f := newFakeVault()
	dir := t.TempDir()
	orig := writeFile(t, dir, "a.txt", "x")
	red := writeFile(t, dir, "b.txt", "y")

	out, _, err := run(t, newTestApp(f), "", "upload", "--generate-password", "--filename", "named.txt", orig, red)
	require.NoError(t, err)
	require.Len(t, f.uploads, 1)

	pw := string(f.uploads[0].Password)
	assert.Len(t, pw, 24)
	assert.Equal(t, 1, strings.Count(out, pw))
	assert.Equal(t, "named.txt", f.uploads[0].Filename)
}

func TestUpload_PasswordMismatch(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })
	answers := [][]byte{[]byte("one"), []byte("two")}
	readPassword = func(int) ([]byte, error) {
		a := answers[0]
		answers = answers[1:]
		return a, nil
	}

	f := newFakeVault()
	dir := t.TempDir()
	_, _, err := run(t, newTestApp(f), "", "upload", writeFile(t, dir, "a", "x"), writeFile(t, dir, "b", "y"))
	require.ErrorIs(t, err, ErrPasswordMismatch)
	assert.Empty(t, f.uploads)
}

func TestUpload_Errors(t *testing.T) {
	f := newFakeVault()
	dir := t.TempDir()
	orig := writeFile(t, dir, "a.txt", "0123456789")
	red := writeFile(t, dir, "b.txt", "y")

	_, _, err := run(t, newTestApp(f), "pw\n", "upload", "--password-stdin", "--max-size", "4", orig, red)
	require.Error(t, err)

	_, _, err = run(t, newTestApp(f), "", "upload", "--password-stdin", "--generate-password", orig, red)
	require.Error(t, err)

	_, _, err = run(t, newTestApp(f), "pw\n", "upload", orig)
	require.Error(t, err)

	f.uploadErr = client.ErrUnavailable
	_, errOut, err := run(t, newTestApp(f), "pw\n", "upload", "--password-stdin", orig, red)
	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Contains(t, errOut, "server unavailable")
}

func TestPreviewAndFetch(t *testing.T) {
	f := newFakeVault()
	f.preview = &api.GetPreviewResponse{
		DocID: "d1", Filename: "report.txt", ArtifactRef: "memory://k",
		ShareURL: "https://vault.example/share/d1", CreatedAt: time.Now(),
	}
	f.artifact = []byte("[REDACTED]")
	a := newTestApp(f)

	out, _, err := run(t, a, "", "preview", "d1")
	require.NoError(t, err)
	assert.Contains(t, out, "report.txt")
	assert.Contains(t, out, "https://vault.example/share/d1")

	out, _, err = run(t, a, "", "fetch", "d1")
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", out)

	// memory refs are not URLs, so --direct goes through the server
	out, _, err = run(t, a, "", "fetch", "--direct", "d1")
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", out)
	assert.Equal(t, 2, f.fetched)
}

func TestFetch_DirectFromPresignedURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("from-s3"))
	}))
	defer ts.Close()

	f := newFakeVault()
	f.preview = &api.GetPreviewResponse{DocID: "d1", ArtifactRef: ts.URL + "/artifacts/k?X-Amz-Signature=abc"}
	a := newTestApp(f)
	a.httpClient = ts.Client()

	out, _, err := run(t, a, "", "fetch", "--direct", "d1")
	require.NoError(t, err)
	assert.Equal(t, "from-s3", out)
	assert.Zero(t, f.fetched)
}

func TestPreview_NotFound(t *testing.T) {
	_, errOut, err := run(t, newTestApp(newFakeVault()), "", "preview", "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Contains(t, errOut, "document not found")
}

func TestList(t *testing.T) {
	f := newFakeVault()
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	f.docs = []api.Document{
		{DocID: "d1", Filename: "a.txt", CreatedAt: time.Now()},
		{DocID: "d2", Filename: "b.txt", CreatedAt: time.Now(), ExpiresAt: &exp},
	}

	out, _, err := run(t, newTestApp(f), "", "list", "-t", "tok")
	require.NoError(t, err)
	assert.Contains(t, out, "DOC_ID")
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "never")

	f.listErr = client.ErrUnauthorized
	_, errOut, err := run(t, newTestApp(f), "", "list")
	require.Error(t, err)
	assert.Contains(t, errOut, "access token")
}

func TestGenpass_DoesNotConnect(t *testing.T) {
	a := newTestApp(newFakeVault())
	a.newClient = func(*config.Config) (VaultAPI, error) { return nil, errors.New("must not dial") }

	out, _, err := run(t, a, "", "genpass")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 24)
}

func TestFlagsOverrideConfig(t *testing.T) {
	f := newFakeVault()
	a := newTestApp(f)
	var seen config.Config
	a.newClient = func(cfg *config.Config) (VaultAPI, error) {
		seen = *cfg
		return f, nil
	}

	_, _, err := run(t, a, "", "list", "-a", "vault:6000", "--token", "tok", "--timeout", "5s")
	require.NoError(t, err)
	assert.Equal(t, "vault:6000", seen.ServerEndpointAddr)
	assert.Equal(t, "tok", seen.AccessToken)
	assert.Equal(t, 5*time.Second, seen.RequestTimeout)

	require.NoError(t, a.Close())
	assert.True(t, f.closed)
}

func TestDescribeError_Locked(t *testing.T) {
	msg := describeError(&common.LockedError{RetryAfter: 2 * time.Minute})
	assert.Equal(t, "document is locked, try again in 2m0s", msg)
	assert.Equal(t, "document is locked, try again later", describeError(&common.LockedError{}))
}

func TestDescribeError_TooLargeIsNotLocked(t *testing.T) {
	err := fmt.Errorf("%w: grpc: trying to send message larger than max", client.ErrTooLarge)
	assert.Equal(t, "request exceeds the message size limit", describeError(err))
}

func TestExecute_RejectsMissingArgs(t *testing.T) {
	a := newTestApp(newFakeVault())
	err := a.Execute(context.Background(), []string{"preview"})
	require.Error(t, err)

	var reported *reportedError
	assert.False(t, errors.As(err, &reported))
}
