// Package parser turns one raw comma-delimited device line into structured
// sensor fields. The device emits tokens of the form Key:Value, optionally
// followed by a bare status word for the moisture, light and water sensors:
//
//	Moisture:512,MOIST,Light:700,BRIGHT,Water:45,MEDIUM,Temp:24.5,Humid:55,Servo:90
//
// The parse is tolerant: unknown keys and stray bare words are skipped, a
// value that fails to parse leaves its field unset, and the scan always runs
// to the end of the line.
package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Result holds the fields extracted from one line. A nil field was not
// present (or did not parse) in the line. Problems lists the tokens whose
// value failed to parse; a non-empty Problems still means a usable Result.
type Result struct {
	Moisture       *int
	MoistureStatus *string
	Light          *int
	LightStatus    *string
	Water          *int
	WaterStatus    *string
	Temperature    *float64
	Humidity       *float64
	Servo          *int

	Problems []string
}

// Parse scans the line left to right. On repeated keys the last occurrence
// wins. A status word attaches to Moisture/Light/Water only when it is the
// immediately following comma token and carries no ':' itself.
func Parse(raw string) Result {
	var res Result

	tokens := strings.Split(raw, ",")
	for i, token := range tokens {
		token = strings.TrimSpace(token)

		sep := strings.Index(token, ":")
		if sep < 0 {
			// Bare word: either consumed as a status by the previous
			// iteration's peek, or noise to skip.
			continue
		}

		key := strings.TrimSpace(token[:sep])
		value := strings.TrimSpace(token[sep+1:])

		switch key {
		case "Moisture":
			res.Moisture = parseInt(value, key, &res.Problems)
			res.MoistureStatus = peekStatus(tokens, i)
		case "Light":
			res.Light = parseInt(value, key, &res.Problems)
			res.LightStatus = peekStatus(tokens, i)
		case "Water":
			res.Water = parseInt(value, key, &res.Problems)
			res.WaterStatus = peekStatus(tokens, i)
		case "Temp":
			res.Temperature = parseFloat(value, key, &res.Problems)
		case "Humid":
			res.Humidity = parseFloat(value, key, &res.Problems)
		case "Servo":
			res.Servo = parseInt(value, key, &res.Problems)
		default:
			// Unknown key, skip.
		}
	}

	return res
}

// peekStatus looks at the token after index i and returns it as a status
// string if it is a non-empty bare word. Status attachment is positional:
// anything with a ':' in it is the next key, not a status.
func peekStatus(tokens []string, i int) *string {
	if i+1 >= len(tokens) {
		return nil
	}
	next := strings.TrimSpace(tokens[i+1])
	if next == "" || strings.Contains(next, ":") {
		return nil
	}
	return &next
}

func parseInt(value, key string, problems *[]string) *int {
	n, err := strconv.Atoi(value)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s: bad integer %q", key, value))
		return nil
	}
	return &n
}

func parseFloat(value, key string, problems *[]string) *float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s: bad number %q", key, value))
		return nil
	}
	return &f
}
