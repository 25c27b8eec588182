package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vecbind/internal/binding"
)

var bindingsCmd = &cobra.Command{
	Use:   "bindings",
	Short: "List declared bindings and how they resolve",
	Args:  cobra.NoArgs,
	RunE:  runBindings,
}

func init() {
	rootCmd.AddCommand(bindingsCmd)
}

func runBindings(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tSCHEMA\tRESOLVES AS")

	for _, name := range e.Names() {
		bc, _ := cfg.Binding(name)

		resolved := binding.Classify(e.Get(name)).String()
		if _, err := e.Vectorize(name); err != nil {
			resolved = err.Error()
		}

		schema := bc.Schema
		if schema == "" {
			schema = binding.SchemaCurrent.String()
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, bc.Kind, schema, resolved)
	}

	return w.Flush()
}
