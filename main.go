package main

import (
	"time"

	"court-notifier/cmd"
)

func main() {
	// Schedules on kluby.org are in Warsaw time.
	if loc, err := time.LoadLocation("Europe/Warsaw"); err == nil {
		time.Local = loc
	}
	cmd.Execute()
}
