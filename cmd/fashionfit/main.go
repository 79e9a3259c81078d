// Command fashionfit runs offline compositing and inspects stored try-ons.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fashionfit",
		Short:         "Virtual try-on tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCompositeCmd(), newHistoryCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
