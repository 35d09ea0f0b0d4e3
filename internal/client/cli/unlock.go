package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/redactvault/internal/cryptox"
)

func (a *App) unlockCmd() *cobra.Command {
	var (
		output        string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "unlock DOC_ID",
		Short: "Recover the original document with its password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			errOut := cmd.ErrOrStderr()

			var password []byte
			var err error
			if passwordStdin {
				password, err = ReadPasswordLine(a.stdin)
			} else {
				password, err = GetPassword(errOut, "Enter document password: ")
			}
			if err != nil {
				return failure(errOut, err)
			}
			defer cryptox.Wipe(password)

			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			original, err := a.client.Unlock(ctx, args[0], password)
			if err != nil {
				return failure(errOut, err)
			}
			defer cryptox.Wipe(original)

			if err := writeOutput(cmd.OutOrStdout(), output, original); err != nil {
				return failure(errOut, err)
			}
			if output != "" {
				fmt.Fprintln(errOut, color.GreenString("✓")+" Original written to "+color.YellowString(output))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "write the original to this file (mode 0600) instead of standard output")
	f.BoolVar(&passwordStdin, "password-stdin", false, "read the password from the first line of standard input")
	return cmd
}
