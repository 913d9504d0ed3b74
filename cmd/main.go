package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

var options struct {
	Debug bool `short:"d" long:"debug" description:"Debug mode"`

	Run    RunCommand    `command:"run" description:"Sample the process table at a fixed interval and persist to SQLite"`
	Export ExportCommand `command:"export" description:"Export aggregated data"`
	Top    TopCommand    `command:"top" description:"Show the heaviest groups over a trailing window"`
	Vacuum VacuumCommand `command:"vacuum" description:"Compact the database file"`
	Reset  ResetCommand  `command:"reset" description:"Clear all collected data and compact"`
}

const (
	exitCodeErr = -1
)

func main() {
	parser := flags.NewParser(&options, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "procpulse: %v\n", err)
		os.Exit(exitCodeErr)
	}
}
