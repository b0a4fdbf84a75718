//go:build !windows

package main

import (
	"io"
	"os"
)

// enableVT does nothing; Unix terminals already interpret ANSI sequences.
func enableVT(*os.File, io.Writer) (restore func()) { return func() {} }
