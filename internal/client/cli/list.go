package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/redactvault/internal/cryptox"
)

func (a *App) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List documents uploaded with the current access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			docs, err := a.client.ListDocuments(ctx)
			if err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DOC_ID\tFILENAME\tCREATED\tEXPIRES")
			for _, d := range docs {
				expires := "never"
				if d.ExpiresAt != nil {
					expires = d.ExpiresAt.Local().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.DocID, d.Filename, d.CreatedAt.Local().Format(time.RFC3339), expires)
			}
			return tw.Flush()
		},
	}
}

func (a *App) genpassCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "genpass",
		Short:       "Print a random document password",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{offlineAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := cryptox.GeneratePassword()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pw)
			return nil
		},
	}
}
