package main

import (
	"os"

	"horse.fit/presslate/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
