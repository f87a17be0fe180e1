// Package main provides the blobdir CLI.
//
// Usage:
//
//	blobdir [flags] <command> [args]
//
// Commands:
//
//	put     - Write a file from disk or stdin
//	get     - Print a file
//	ls      - List files
//	rm      - Delete files
//	stat    - Show the size of a file
//	export  - Copy files to s3://, minio://, badger://, pebble:// or file://
//	import  - Copy files back from one of those targets
//
// Configuration:
//
//	Settings are read from ~/.blobdir/config.yaml when present and can be
//	overridden by flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/blobdir/cmd/blobdir/commands"
)

func main() {
	if err := commands.Execute(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "blobdir:", err)
		os.Exit(1)
	}
}
