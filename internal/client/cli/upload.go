package cli

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/redactvault/internal/api"
	"github.com/dmitrijs2005/redactvault/internal/cryptox"
	"github.com/dmitrijs2005/redactvault/internal/filex"
)

func (a *App) uploadCmd() *cobra.Command {
	var (
		filename         string
		contentType      string
		passwordStdin    bool
		generatePassword bool
		maxSize          int64
	)

	cmd := &cobra.Command{
		Use:   "upload ORIGINAL REDACTED",
		Short: "Seal ORIGINAL under a password and publish REDACTED",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

			if passwordStdin && generatePassword {
				return fmt.Errorf("--password-stdin and --generate-password are mutually exclusive")
			}

			original, err := filex.ReadLimited(args[0], maxSize)
			if err != nil {
				return failure(errOut, err)
			}
			defer cryptox.Wipe(original)

			redacted, err := filex.ReadLimited(args[1], maxSize)
			if err != nil {
				return failure(errOut, err)
			}

			var password []byte
			var generated string
			switch {
			case generatePassword:
				generated, err = cryptox.GeneratePassword()
				password = []byte(generated)
			case passwordStdin:
				password, err = ReadPasswordLine(a.stdin)
			default:
				password, err = GetNewPassword(errOut)
			}
			if err != nil {
				return failure(errOut, err)
			}
			defer cryptox.Wipe(password)

			if filename == "" {
				filename = filepath.Base(args[0])
			}
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(args[1]))
			}
			if contentType == "" {
				contentType = http.DetectContentType(redacted)
			}

			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			res, err := a.client.Upload(ctx, &api.UploadRequest{
				Original:    original,
				Password:    password,
				Redacted:    redacted,
				Filename:    filename,
				ContentType: contentType,
			})
			if err != nil {
				return failure(errOut, err)
			}

			fmt.Fprintln(out, color.GreenString("✓")+" Document sealed")
			fmt.Fprintf(out, "  doc_id:   %s\n", res.DocID)
			fmt.Fprintf(out, "  share:    %s\n", color.CyanString(res.ShareURL))
			fmt.Fprintf(out, "  artifact: %s\n", res.ArtifactRef)
			if generated != "" {
				fmt.Fprintf(out, "  password: %s\n", color.YellowString(generated))
				fmt.Fprintln(out, color.CyanString("→")+" Store the password now; it cannot be recovered")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&filename, "filename", "", "name recorded for the document (default: base name of ORIGINAL)")
	f.StringVar(&contentType, "content-type", "", "content type of REDACTED (default: from its extension or content)")
	f.BoolVar(&passwordStdin, "password-stdin", false, "read the password from the first line of standard input")
	f.BoolVar(&generatePassword, "generate-password", false, "generate a random password and print it once")
	f.Int64Var(&maxSize, "max-size", 16<<20, "largest accepted input file in bytes")
	return cmd
}
