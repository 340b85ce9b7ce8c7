package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Weft is a collaborative edit-sequencing engine",
	Long:  `Weft rebases concurrent edits from many peers into a single sequenced history with bounded memory. This CLI runs simulations against the engine and inspects stored snapshots.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(saveDemoCmd)
}
