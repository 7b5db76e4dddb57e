package main

import (
	"context"
	"fmt"
	"os"

	"shared/internal/client"
)

func main() {
	args := os.Args[1:]

	paths, err := client.ParseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: shared <file> [file ...]")
		os.Exit(1)
	}

	server := os.Getenv("SHARED_SERVER")
	if server == "" {
		server = "http://localhost:5000"
	}

	result, err := client.Upload(context.Background(), server, paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Share code: %s\n", result.Code)
	for _, f := range result.Files {
		fmt.Printf("  %s (%d bytes)\n", f.OriginalName, f.Size)
	}
	fmt.Printf("Expires in %s (%s)\n", result.ExpiresIn, result.ExpiresAt.Local().Format("15:04:05"))
}
