package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <binding>",
	Short: "Print the details of a bound index",
	Long: `Resolve the named binding and print its index details as JSON.

Examples:
  vecbind describe VECTORIZE`,
	Args: cobra.ExactArgs(1),
	RunE: runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	v, err := e.Vectorize(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := e.CallContext(cmd.Context())
	defer cancel()

	details, err := v.Describe(ctx)
	if err != nil {
		return fmt.Errorf("describe failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(details)
}
