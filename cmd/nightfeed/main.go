package main

import (
	"os"

	"nightfeed.app/nightfeed/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
