package paravision

import (
	"strconv"
	"strings"
)

// Form is the structural shape of a declaration line.
type Form int

const (
	// FormShaped is "##$NAME=( dims )" with the payload on following lines.
	FormShaped Form = iota
	// FormInline is "##$NAME=value".
	FormInline
	// FormGroups is "##NAME=( ... )" spanning lines, without a "$".
	FormGroups
	// FormPlain is "##NAME=value" without "$" or "(".
	FormPlain
	// FormFallback covers declarations that fit none of the above.
	FormFallback
)

func (f Form) String() string {
	switch f {
	case FormShaped:
		return "shaped"
	case FormInline:
		return "inline"
	case FormGroups:
		return "groups"
	case FormPlain:
		return "plain"
	}
	return "fallback"
}

// Declaration is one variable declaration with its accumulated payload.
type Declaration struct {
	Name    string
	Form    Form
	Shape   []int
	Payload string
	Line    int
}

// Value classifies the declaration payload.
func (d Declaration) Value() Value {
	if d.Form == FormFallback {
		return StringValue(d.Payload)
	}
	return Classify(d.Payload, d.Shape)
}

type tokenizerState int

const (
	awaitingHeader tokenizerState = iota
	accumulatingPayload
	done
)

// Tokenizer turns parameter file lines into declarations.
//
// Lines are fed one at a time. A "##" line opens a declaration; shaped and
// group declarations then accumulate continuation lines until a line
// containing "##" or "$$", or the end of input.
type Tokenizer struct {
	state   tokenizerState
	current Declaration
	payload strings.Builder
	line    int
	out     []Declaration
}

// NewTokenizer returns a tokenizer awaiting its first header
func NewTokenizer() *Tokenizer {
	return &Tokenizer{state: awaitingHeader}
}

// Feed consumes one line (without its newline).
func (t *Tokenizer) Feed(line string) {
	if t.state == done {
		return
	}
	t.line++

	if t.state == accumulatingPayload {
		if !isTerminator(line) {
			t.payload.WriteString(strings.TrimSpace(line))
			t.payload.WriteByte(' ')
			return
		}
		t.flush()
	}

	if strings.Contains(line, "##") {
		t.header(line)
	}
}

// Close flushes any open declaration and returns all declarations.
func (t *Tokenizer) Close() []Declaration {
	if t.state == accumulatingPayload {
		t.flush()
	}
	t.state = done
	return t.out
}

func isTerminator(line string) bool {
	return strings.Contains(line, "##") || strings.Contains(line, "$$")
}

func (t *Tokenizer) flush() {
	t.current.Payload += t.payload.String()
	t.out = append(t.out, t.current)
	t.payload.Reset()
	t.current = Declaration{}
	t.state = awaitingHeader
}

func (t *Tokenizer) emit(d Declaration) {
	d.Line = t.line
	t.out = append(t.out, d)
}

func (t *Tokenizer) open(d Declaration) {
	d.Line = t.line
	t.current = d
	t.payload.Reset()
	t.state = accumulatingPayload
}

func (t *Tokenizer) header(line string) {
	lhs, rhs, ok := strings.Cut(line, "=")
	if !ok {
		return
	}
	hasDollar := strings.Contains(line, "$")
	hasParen := strings.Contains(line, "(")

	switch {
	case hasDollar && hasParen && !strings.Contains(line, "<"):
		d := Declaration{Name: CleanName(lhs), Form: FormShaped}
		d.Shape, d.Payload = shapeOrPayload(rhs)
		t.open(d)

	case hasDollar && !hasParen:
		t.emit(Declaration{Name: CleanName(lhs), Form: FormInline, Payload: rhs})

	case !hasDollar && hasParen:
		t.open(Declaration{Name: CleanName(lhs), Form: FormGroups, Payload: strings.TrimSpace(rhs) + " "})

	case !hasDollar && !hasParen:
		t.emit(Declaration{Name: CleanName(lhs), Form: FormPlain, Payload: strings.TrimSpace(rhs)})

	default:
		t.emit(Declaration{Name: CleanName(lhs), Form: FormFallback, Payload: looseClean(rhs)})
	}
}

// shapeOrPayload decides whether the right-hand side of a shaped header is a
// dimension list or already the start of the payload.
func shapeOrPayload(rhs string) ([]int, string) {
	compact := strings.ReplaceAll(strings.TrimSpace(rhs), " ", "")
	inner := strings.TrimSpace(strings.NewReplacer("(", "", ")", "").Replace(rhs))

	if strings.HasSuffix(compact, ",") || (strings.HasSuffix(compact, ")") && strings.Contains(compact, ".")) {
		return nil, inner
	}

	parts := strings.Split(inner, ",")
	shape := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, inner + " "
		}
		shape = append(shape, n)
	}
	return shape, ""
}

// looseClean strips brackets and separators from a value no form matched.
func looseClean(rhs string) string {
	r := strings.NewReplacer("(", "", ")", "", "<", "", ">", "", ",", " ", "\n", "", "\r", "")
	return strings.TrimSpace(r.Replace(rhs))
}

// VendorPrefix is stripped from parameter names.
const VendorPrefix = "PVM_"

// CleanName removes "#", "$" and the vendor prefix from a declared name.
func CleanName(name string) string {
	r := strings.NewReplacer("#", "", "$", "", VendorPrefix, "")
	return strings.TrimSpace(r.Replace(name))
}
