package main

import (
	"os"

	"horse.fit/whatson/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
