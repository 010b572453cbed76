// Package format strips and applies IRC text formatting and color codes.
//
// Recognized control sequences:
//
//	0x02 0x0f 0x11 0x16 0x1d 0x1f   bare formatting toggles (bold, reset, ...)
//	0x03[N[,N]]                     mIRC color, N is 1-2 decimal digits
//	0x04[HHHHHH]                    RGB color, up to 6 hex digits
package format

import "strings"

// Kind selects the color scheme applied by Colorize.
type Kind int

const (
	Info Kind = iota + 1
	Confirm
	Error
)

const (
	colorReset   = "\x0f"
	colorInfo    = "\x02\x030,01"
	colorConfirm = "\x02\x033,01"
	colorError   = "\x02\x035,01"
)

// Strip removes all formatting and color control sequences from s,
// leaving the visible text untouched.
func Strip(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 0x02, 0x0f, 0x11, 0x16, 0x1d, 0x1f:
			// bare formatting byte
		case 0x03:
			i += skipMircColor(s[i+1:])
		case 0x04:
			i += skipHexColor(s[i+1:])
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// skipMircColor returns how many bytes of s belong to the optional
// foreground[,background] part of a mIRC color code.
func skipMircColor(s string) int {
	n := countDigits(s, 2)
	if n == 0 {
		return 0
	}
	// optional ,background, only consumed if digits follow the comma
	if len(s) > n && s[n] == ',' {
		if bg := countDigits(s[n+1:], 2); bg > 0 {
			return n + 1 + bg
		}
	}
	return n
}

// skipHexColor returns how many bytes of s form the hex digit run
// (at most 6) after an RGB color byte.
func skipHexColor(s string) int {
	n := 0
	for n < len(s) && n < 6 && isHexDigit(s[n]) {
		n++
	}
	return n
}

func countDigits(s string, max int) int {
	n := 0
	for n < len(s) && n < max && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// HasColor reports whether s carries any formatting or color codes.
func HasColor(s string) bool {
	return Strip(s) != s
}

// Colorize decorates s with the palette for kind k. With formatting
// disabled it strips instead. Text that already carries custom codes
// only gets a trailing reset so the custom colors win.
func Colorize(s string, k Kind, enabled bool) string {
	if !enabled {
		return Strip(s)
	}
	if HasColor(s) {
		return s + colorReset
	}
	var prefix string
	switch k {
	case Info:
		prefix = colorInfo
	case Confirm:
		prefix = colorConfirm
	case Error:
		prefix = colorError
	}
	return prefix + s + colorReset
}
