// Package errors provides structured error types for the template engine.
//
// Error is a unified error type for markup parse errors, expression
// evaluation errors, store errors and plugin loading errors. Each carries a
// class and a catalog code so callers can tell a fatal build error from a
// recoverable one without string matching.
package errors

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassParse     ErrorClass = "parse"     // Malformed markup, unknown tags or attributes
	ClassUndefined ErrorClass = "undefined" // Unresolved path, filter or callback
	ClassType      ErrorClass = "type"      // Value of the wrong type for a setter
	ClassOperator  ErrorClass = "operator"  // Invalid operand types
	ClassStore     ErrorClass = "store"     // Reactive store path errors
	ClassPlugin    ErrorClass = "plugin"    // Manifest and module loading
)

// Error represents any error raised while building or binding a template.
type Error struct {
	Class   ErrorClass     `json:"class"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hints   []string       `json:"hints,omitempty"`
	Line    int            `json:"line"`
	File    string         `json:"file,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Err     error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.String()
}

// Unwrap returns the underlying Go error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// String returns a formatted string representation of the error.
func (e *Error) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d: ", e.Line))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// WithFile returns a copy of the error with the file path set.
func (e *Error) WithFile(file string) *Error {
	copy := *e
	copy.File = file
	return &copy
}

// WithLine returns a copy of the error with the source line set.
func (e *Error) WithLine(line int) *Error {
	copy := *e
	copy.Line = line
	return &copy
}

// IsParseError returns true if this is a markup parse error.
func (e *Error) IsParseError() bool {
	return e.Class == ClassParse
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass
	Template string
	Hints    []string
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Parse errors (PARSE-0xxx)
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "unknown tag \"{{.Tag}}\" in element {{.Parent}}",
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "unknown attribute '{{.Attr}}' on element {{.Tag}}",
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "{{.Tag}} requires attribute '{{.Attr}}'",
	},
	"PARSE-0004": {
		Class:    ClassParse,
		Template: "invalid markup: {{.GoError}}",
	},
	"PARSE-0005": {
		Class:    ClassParse,
		Template: "unknown signal '{{.Signal}}' on element {{.Tag}}",
		Hints:    []string{"event handlers must end with Event, e.g. mousePressEvent"},
	},
	"PARSE-0006": {
		Class:    ClassParse,
		Template: "invalid repeater expression '{{.Expr}}'",
		Hints:    []string{"<Repeater for=\"item in data.items\">"},
	},
	"PARSE-0007": {
		Class:    ClassParse,
		Template: "cannot construct {{.Tag}}: {{.GoError}}",
	},
	"PARSE-0008": {
		Class:    ClassParse,
		Template: "template has no root element",
	},
	"PARSE-0009": {
		Class:    ClassParse,
		Template: "unbalanced quotes or brackets in '{{.Expr}}'",
	},
	"PARSE-0010": {
		Class:    ClassParse,
		Template: "{{.Attr}} on element {{.Tag}} requires a layout",
		Hints:    []string{"set layout=\"vbox\" before {{.Attr}}"},
	},

	// Undefined errors (UNDEF-0xxx)
	"UNDEF-0001": {
		Class:    ClassUndefined,
		Template: "'{{.Name}}' not found resolving '{{.Path}}'",
	},
	"UNDEF-0002": {
		Class:    ClassUndefined,
		Template: "unknown filter: {{.Name}}",
	},
	"UNDEF-0003": {
		Class:    ClassUndefined,
		Template: "callback '{{.Path}}' not found",
	},

	// Type errors (TYPE-0xxx)
	"TYPE-0001": {
		Class:    ClassType,
		Template: "{{.Attr}} expected {{.Expected}}, got {{.Got}}",
	},
	"TYPE-0002": {
		Class:    ClassType,
		Template: "cannot iterate over {{.Got}}",
		Hints:    []string{"repeaters work with lists, tuples, maps and integers"},
	},
	"TYPE-0003": {
		Class:    ClassType,
		Template: "'{{.Path}}' is not callable",
	},
	"TYPE-0004": {
		Class:    ClassType,
		Template: "{{.Attr}} expects {{.Want}} argument(s), got {{.Got}}",
	},

	// Operator errors (OP-0xxx)
	"OP-0001": {
		Class:    ClassOperator,
		Template: "unsupported operand types for {{.Op}}: {{.Left}} and {{.Right}}",
	},
	"OP-0002": {
		Class:    ClassOperator,
		Template: "missing operand for {{.Op}}",
	},
	"OP-0003": {
		Class:    ClassOperator,
		Template: "filter {{.Name}}: {{.GoError}}",
	},

	// Store errors (STORE-0xxx)
	"STORE-0001": {
		Class:    ClassStore,
		Template: "cannot set '{{.Path}}': '{{.Segment}}' is not a mapping",
	},
	"STORE-0002": {
		Class:    ClassStore,
		Template: "invalid store path '{{.Path}}'",
	},

	// Plugin errors (PLUGIN-0xxx)
	"PLUGIN-0001": {
		Class:    ClassPlugin,
		Template: "manifest {{.Path}}: {{.GoError}}",
	},
	"PLUGIN-0002": {
		Class:    ClassPlugin,
		Template: "manifest {{.Path}}: missing required field '{{.Field}}'",
	},
	"PLUGIN-0003": {
		Class:    ClassPlugin,
		Template: "module '{{.Module}}' is not registered",
	},
	"PLUGIN-0004": {
		Class:    ClassPlugin,
		Template: "module reference '{{.Module}}' must have the form module.ClassName",
	},
	"PLUGIN-0005": {
		Class:    ClassPlugin,
		Template: "module '{{.Module}}' is a {{.Got}}, not a {{.Want}}",
	},
}

// New creates an Error from the catalog.
// If the code is not found, creates a generic error with the message.
func New(code string, data map[string]any) *Error {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &Error{
			Class:   ClassType,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		rendered := renderTemplate(hintTmpl, data)
		if rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &Error{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// Wrap creates a catalog error that carries an underlying Go error.
// The Go error's text is available to the template as {{.GoError}}.
func Wrap(code string, err error, data map[string]any) *Error {
	if data == nil {
		data = map[string]any{}
	}
	if err != nil {
		data["GoError"] = err.Error()
	}
	e := New(code, data)
	e.Err = err
	return e
}

// NewSimple creates a simple error without using the catalog.
func NewSimple(class ErrorClass, message string) *Error {
	return &Error{
		Class:   class,
		Message: message,
	}
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code string) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// renderTemplate renders a Go template with the given data.
func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// FindClosestMatch finds the closest match to the given string from candidates.
// Returns the best match if the distance is within the threshold, otherwise empty string.
func FindClosestMatch(input string, candidates []string) string {
	if len(input) == 0 || len(candidates) == 0 {
		return ""
	}

	inputLower := strings.ToLower(input)
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	var bestMatch string
	bestDistance := -1
	for _, candidate := range sorted {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	// Short words (1-3): max 1 edit, medium (4-6): 2, longer: 3
	threshold := 1
	if len(input) >= 4 && len(input) <= 6 {
		threshold = 2
	} else if len(input) >= 7 {
		threshold = 3
	}

	if bestDistance <= 0 || bestDistance > threshold {
		return ""
	}
	return bestMatch
}

// WithSuggestion appends a "Did you mean" hint when input is close to a candidate.
func (e *Error) WithSuggestion(input string, candidates []string) *Error {
	if suggestion := FindClosestMatch(input, candidates); suggestion != "" {
		e.Hints = append(e.Hints, "Did you mean `"+suggestion+"`?")
	}
	return e
}
