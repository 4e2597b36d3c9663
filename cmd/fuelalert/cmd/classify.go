package cmd

import (
	"fmt"
	"strings"

	"fuelalert/lib/phase"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(classifyCmd)
}

var classifyCmd = &cobra.Command{
	Use:   "classify <advisory text>",
	Short: "Classifies an advisory snippet, for checking against upstream wording changes.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(phase.Classify(strings.Join(args, " ")))
	},
}
