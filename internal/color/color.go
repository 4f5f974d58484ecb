// Package color provides the small ANSI palette the console reporter uses.
// Every helper is a no-op until Init detects a colour-capable terminal, so
// callers never need to guard their output.
package color

import "os"

// Enabled is true when ANSI colour output is supported.
var Enabled bool

// Init probes os.Stdout and sets Enabled. Colour stays off when NO_COLOR is
// set (https://no-color.org), when TERM=dumb, or when stdout is not a
// character device.
func Init() {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return
	}
	stat, err := os.Stdout.Stat()
	if err != nil {
		return
	}
	Enabled = stat.Mode()&os.ModeCharDevice != 0
}

func wrap(code, s string) string {
	if !Enabled || s == "" {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func Bold(s string) string    { return wrap("1", s) }
func Dim(s string) string     { return wrap("2", s) }
func Green(s string) string   { return wrap("32", s) }
func Yellow(s string) string  { return wrap("33", s) }
func BoldRed(s string) string { return wrap("1;31", s) }
