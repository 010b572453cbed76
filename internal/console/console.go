// Package console prints categorized, colored status lines for the
// operator running the bot in a terminal.
package console

import (
	"fmt"
	"os"

	"github.com/gookit/color"
)

var (
	infoStyle  = color.New(color.FgWhite, color.Bold)
	ircStyle   = color.New(color.FgGreen, color.Bold)
	rconStyle  = color.New(color.FgCyan, color.Bold)
	dbStyle    = color.New(color.FgMagenta, color.Bold)
	errorStyle = color.New(color.FgRed, color.BgWhite, color.Bold)
)

// Info prints a general status line.
func Info(format string, args ...any) {
	infoStyle.Println(fmt.Sprintf(format, args...))
}

// IRC prints an IRC status line.
func IRC(format string, args ...any) {
	ircStyle.Println(fmt.Sprintf(format, args...))
}

// Rcon prints a game-server status line.
func Rcon(format string, args ...any) {
	rconStyle.Println(fmt.Sprintf(format, args...))
}

// DB prints a database status line.
func DB(format string, args ...any) {
	dbStyle.Println(fmt.Sprintf(format, args...))
}

// Error prints an error line to stderr.
func Error(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf(format, args...)))
}
