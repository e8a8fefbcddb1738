/*
Package main is the entry point for the farmadvisor command.

Usage:

	farmadvisor [command]

Available Commands:

	serve       Run the FarmAdvisor JSON API for a browser or desktop UI
	login       Log in and keep the session for later commands
	register    Create an account with farm details and log in
	logout      Forget the stored session
	status      Show whether a session is stored and the farm profile
	predict     Check fertilizer compatibility for the given conditions
	report      Run an analysis and save its report
	history     List past analyses, newest first
	analytics   Show statistics over all past analyses
*/
package main

import (
	"fmt"
	"log"
	"os"

	"farmadvisor-client/internal/cli"

	"github.com/joho/godotenv"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: .env file could not be loaded: %v", err)
	}

	rootCmd := cli.NewRootCmd(fmt.Sprintf("%s (commit: %s)", version, commit))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
