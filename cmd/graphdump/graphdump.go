// Package graphdump implements "ingen graph dump": a placeholder hook for
// the RDF graph serializer, which spec.md places out of scope (the core
// spec describes the Store/Graph in-memory model, not an on-disk
// serialization format). This command exists so the CLI surface matches
// what an operator of a real Ingen deployment would expect, and fails
// loudly rather than silently rather than pretending to support a format
// that was never implemented.
package graphdump

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ingen-audio/ingen/internal/conf"
)

// Command returns the "graph" command, whose only sub-command is "dump".
func Command(settings *conf.Settings) *cobra.Command {
	root := &cobra.Command{
		Use:   "graph",
		Short: "Inspect or serialize saved graph state",
	}
	root.AddCommand(dumpCommand())
	return root
}

func dumpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <path-to-saved-state>",
		Short: "Dump a saved graph's state as RDF (not implemented)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("graph dump: RDF serialization is out of scope for this build; use the /graph HTTP endpoint for a JSON snapshot of a running engine")
		},
	}
}
