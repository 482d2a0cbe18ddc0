package app

import (
	"flag"
	"fmt"

	"horse.fit/presslate/internal/translation"
)

// runLanguages prints the supported target languages as "code  label".
func runLanguages(args []string) int {
	fs := flag.NewFlagSet("languages", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	for _, opt := range translation.LanguageOptions() {
		fmt.Printf("%-6s %s\n", opt.Code, opt.Label)
	}
	return 0
}
