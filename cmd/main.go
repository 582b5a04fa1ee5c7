package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func check(e error) {
	if e != nil {
		fmt.Printf("%v\n", e.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "keywheel",
	Short:   "Keywheel rotates key-agreement keys between paired messaging peers",
	Long:    `Keywheel is the rotation service of the Keywheel secure messaging wallet. It schedules, delivers and verifies periodic key rotations so a compromised key-agreement key has a bounded useful lifetime.`,
	Version: "0.1.0",
	Run: func(cmd *cobra.Command, args []string) {
		// empty
	},
}

func main() {
	Execute()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
