package cli

import (
	"github.com/spf13/cobra"
)

// RootCmd builds the command tree. Flags override values loaded by
// config.LoadConfig.
func (a *App) RootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "redactvault",
		Short:         "Password-protected reversible redaction vault client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[offlineAnnotation] == "true" {
				return nil
			}
			return a.connect()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.config.ServerEndpointAddr, "address", "a", a.config.ServerEndpointAddr, "address and port of the vault server")
	pf.StringVarP(&a.config.AccessToken, "token", "t", a.config.AccessToken, "uploader access token")
	pf.DurationVar(&a.config.RequestTimeout, "timeout", a.config.RequestTimeout, "per-request timeout")
	pf.StringVarP(&configPath, "config", "c", "", "path to JSON config file")

	root.AddCommand(
		a.uploadCmd(),
		a.previewCmd(),
		a.fetchCmd(),
		a.unlockCmd(),
		a.listCmd(),
		a.genpassCmd(),
	)
	return root
}

// offlineAnnotation marks commands that never talk to the server.
const offlineAnnotation = "offline"
