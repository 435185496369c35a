package models

import (
	"fmt"
	"unicode/utf16"
)

// ColorFrom derives the display color of a name: a rolling hash over the
// UTF-16 code units mapped to a hue. Deterministic, not cryptographic.
func ColorFrom(name string) string {
	h := 0
	for _, c := range utf16.Encode([]rune(name)) {
		h = (h*31 + int(c)) % 360
	}
	return fmt.Sprintf("hsl(%d 70%% 48%%)", h)
}
