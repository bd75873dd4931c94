package paravision

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"
)

// Classify materializes a payload blob into a Value.
//
// Precedence: parenthesized groups, then all-infinity runs, then numbers,
// then angle-bracket tags, then the trimmed text. A one-element group or tag
// list collapses to its element, which keeps the old and new ParaVision
// dialects equivalent. Classify never fails.
func Classify(blob string, shape []int) Value {
	s := strings.TrimSpace(blob)

	if groups, ok := splitGroups(s); ok {
		if len(groups) == 1 {
			return StringValue(groups[0])
		}
		return ListValue(groups)
	}

	fields := strings.Fields(s)

	if n, ok := allInf(fields); ok {
		data := make([]float64, n)
		for i := range data {
			data[i] = math.Inf(1)
		}
		return ArrayValue(data, shape)
	}

	if data, ok := parseNumbers(fields); ok {
		if len(data) == 1 {
			return ScalarValue(data[0])
		}
		if len(shape) > 0 && product(shape) != len(data) {
			log.WithFields(log.Fields{
				"shape":    shape,
				"elements": len(data),
			}).Debug("Declared shape does not match payload, keeping flat array")
		}
		return ArrayValue(data, shape)
	}

	if tags, ok := splitTags(s); ok {
		if len(tags) == 1 {
			return StringValue(tags[0])
		}
		return ListValue(tags)
	}

	return StringValue(s)
}

// splitGroups splits "(a) (b) (c)" into its parenthesized groups.
func splitGroups(s string) ([]string, bool) {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, false
	}
	parts := strings.Split(s[1:len(s)-1], ") (")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = "(" + p + ")"
	}
	return out, true
}

// splitTags splits "<a> <b>" into its tags.
func splitTags(s string) ([]string, bool) {
	if len(s) < 2 || s[0] != '<' || s[len(s)-1] != '>' {
		return nil, false
	}
	return strings.Split(s[1:len(s)-1], "> <"), true
}

func allInf(fields []string) (int, bool) {
	if len(fields) == 0 {
		return 0, false
	}
	for _, f := range fields {
		if f != "inf" {
			return 0, false
		}
	}
	return len(fields), true
}

// parseNumbers accepts fields made of digits, signs, decimal points and
// exponent marks. Infinity tokens are accepted among numbers, and a
// run-length field such as @3*(0) stands for three zeros.
func parseNumbers(fields []string) ([]float64, bool) {
	if len(fields) == 0 {
		return nil, false
	}
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		n, f := runLength(f)
		v, ok := parseNumber(f)
		if !ok {
			return nil, false
		}
		for i := 0; i < n; i++ {
			out = append(out, v)
		}
	}
	return out, true
}

// runLength splits "@N*(x)" into N and x. Other fields count once.
func runLength(f string) (int, string) {
	if !strings.HasPrefix(f, "@") || !strings.HasSuffix(f, ")") {
		return 1, f
	}
	count, value, ok := strings.Cut(f[1:len(f)-1], "*(")
	if !ok {
		return 1, f
	}
	n, err := strconv.Atoi(count)
	if err != nil || n < 1 {
		return 1, f
	}
	return n, strings.TrimSpace(value)
}

func parseNumber(f string) (float64, bool) {
	if isInfToken(f) {
		if f[0] == '-' {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	}
	if !isNumericToken(f) {
		return 0, false
	}
	v, err := strconv.ParseFloat(f, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isInfToken(f string) bool {
	switch f {
	case "inf", "+inf", "-inf":
		return true
	}
	return false
}

func isNumericToken(f string) bool {
	digits := false
	for _, r := range f {
		switch {
		case unicode.IsDigit(r):
			digits = true
		case r == '-', r == '+', r == '.', r == 'e', r == 'E':
		default:
			return false
		}
	}
	return digits
}
