package app

import (
	"flag"
	"fmt"
	"os"

	"horse.fit/presslate/internal/auth"
)

// runHashPassword prints a bcrypt hash suitable for API_PASSWORD_HASH.
func runHashPassword(args []string) int {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: presslate hash-password <password>")
		return 2
	}

	hash, err := auth.HashPassword(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}
