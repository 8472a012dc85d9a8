package settings

import (
	"net/url"
	"strconv"
	"strings"
)

// FromForm builds a Partial from the admin form. Only keys present in the
// form are set; numeric fields are coerced leniently and never clamped.
func FromForm(v url.Values) Partial {
	var p Partial
	if _, ok := v["max_questions"]; ok {
		n := Intval(v.Get("max_questions"))
		p.MaxQuestions = &n
	}
	if _, ok := v["consecutive_correct_needed"]; ok {
		n := Intval(v.Get("consecutive_correct_needed"))
		p.ConsecutiveNeeded = &n
	}
	if _, ok := v["shortcode_text"]; ok {
		s := strings.TrimSpace(v.Get("shortcode_text"))
		p.DisplayTitle = &s
	}
	return p
}

// Intval parses the leading integer of s ("12abc" -> 12, "abc" -> 0).
func Intval(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' || end == 0 && (c == '-' || c == '+') {
			end++
			continue
		}
		break
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
