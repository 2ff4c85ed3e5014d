//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package logger

import "io"

func isTerminal(io.Writer) bool { return false }
