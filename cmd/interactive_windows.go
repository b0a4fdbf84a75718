//go:build windows

package main

import (
	"io"
	"os"

	"golang.org/x/sys/windows"
)

// enableVT switches the console handles behind in and out to VT sequence mode and returns
// a func that puts their previous modes back. Redirected handles are left untouched.
func enableVT(in *os.File, out io.Writer) (restore func()) {
	consoles := []console{windowsConsole(in, windows.ENABLE_VIRTUAL_TERMINAL_INPUT)}
	if f, ok := out.(*os.File); ok {
		consoles = append(consoles, windowsConsole(f, windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING))
	}
	return switchModes(consoles)
}

func windowsConsole(f *os.File, flag uint32) console {
	h := windows.Handle(f.Fd())
	return console{
		flag: flag,
		get: func() (uint32, error) {
			var mode uint32
			err := windows.GetConsoleMode(h, &mode)
			return mode, err
		},
		set: func(mode uint32) error { return windows.SetConsoleMode(h, mode) },
	}
}
