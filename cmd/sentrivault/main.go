// Package main is the sentrivault command line interface.
package main

import "os"

func main() {
	if err := run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// run executes one command line and always releases the store afterwards;
// cobra skips post-run hooks when a command fails.
func run(args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	closeStore()
	return err
}
