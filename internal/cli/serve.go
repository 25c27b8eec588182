package cli

import (
	"github.com/spf13/cobra"

	"vecbind/internal/server"
)

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the declared bindings over HTTP",
	Long: `Start an HTTP server exposing every declared binding:

  GET  /healthz
  GET  /bindings
  GET  /{binding}/describe
  POST /{binding}/insert   body: {"vectors": [...]} or [...]
  POST /{binding}/upsert`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	sc := GetConfig().Server
	if serveAddress != "" {
		sc.Address = serveAddress
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	return server.New(e, sc, logger).ListenAndServe(cmd.Context())
}
