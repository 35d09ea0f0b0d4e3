package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/redactvault/internal/netx"
)

func (a *App) previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview DOC_ID",
		Short: "Show the public details of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			p, err := a.client.GetPreview(ctx, args[0])
			if err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "doc_id:   %s\n", p.DocID)
			fmt.Fprintf(out, "filename: %s\n", p.Filename)
			fmt.Fprintf(out, "created:  %s\n", p.CreatedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(out, "share:    %s\n", p.ShareURL)
			fmt.Fprintf(out, "artifact: %s\n", p.ArtifactRef)
			return nil
		},
	}
}

func (a *App) fetchCmd() *cobra.Command {
	var (
		output  string
		direct  bool
		maxSize int64
	)

	cmd := &cobra.Command{
		Use:   "fetch DOC_ID",
		Short: "Download the redacted artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			errOut := cmd.ErrOrStderr()

			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			var data []byte
			var err error
			if direct {
				data, err = a.fetchDirect(cmd, args[0], maxSize)
			} else {
				data, err = a.client.FetchArtifact(ctx, args[0])
			}
			if err != nil {
				return failure(errOut, err)
			}

			if err := writeOutput(cmd.OutOrStdout(), output, data); err != nil {
				return failure(errOut, err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "write the artifact to this file instead of standard output")
	f.BoolVar(&direct, "direct", false, "download from the presigned object-store URL when one is available")
	f.Int64Var(&maxSize, "max-size", 16<<20, "largest accepted artifact in bytes")
	return cmd
}

// fetchDirect downloads via the preview's presigned URL, falling back to the
// server when the artifact store does not hand out URLs.
func (a *App) fetchDirect(cmd *cobra.Command, docID string, maxSize int64) ([]byte, error) {
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	p, err := a.client.GetPreview(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(p.ArtifactRef, "http://") && !strings.HasPrefix(p.ArtifactRef, "https://") {
		return a.client.FetchArtifact(ctx, docID)
	}
	return netx.DownloadPresignedURL(ctx, a.httpClient, p.ArtifactRef, maxSize)
}
