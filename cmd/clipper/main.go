package main

import (
	"os"

	"horse.fit/clipper/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
