package flatwire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/flatwire/i18n"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	// Shape issues: a value disagrees with the schema guiding it.
	CodeInvalidType    = "invalid_type"    // Leaf/Sequence/Mapping class differs.
	CodeLengthMismatch = "length_mismatch" // Sequence arity differs.
	CodeKeyMismatch    = "key_mismatch"    // Mapping key set differs.
	CodeFlatCount      = "flat_count"      // Flat value count differs from the schema's leaf count.

	// Declaration issues: raised while a callback is being built, never at call time.
	CodeDuplicateArgument  = "duplicate_argument"
	CodeDuplicateOutput    = "duplicate_output"
	CodeUnsupportedPattern = "unsupported_pattern"
	CodeInvalidRole        = "invalid_role"
	CodeInvalidProperty    = "invalid_property"
	CodeMixedForms         = "mixed_forms"
	CodeNoOutputs          = "no_outputs"
	CodeInvalidFunction    = "invalid_function"
	CodeAlreadyRegistered  = "already_registered"

	// Invocation issues outside the shape family.
	CodeInvalidArgument = "invalid_argument"
	CodeUnknownCallback = "unknown_callback"
	CodeMissingInput    = "missing_input"
	CodeParseError      = "parse_error"
)

// Issue represents a single binding or shape error entry.
type Issue struct {
	Path    string `json:"path"` // JSON Pointer (for example: /fig or /1/0).
	Code    string `json:"code"` // One of the codes listed above.
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"` // Optional: remediation hints.
	Cause   error  `json:"-"`              // Optional: underlying error.
	// Params carries structured parameters (e.g., {"expected":4, "got":3}).
	Params map[string]any `json:"params,omitempty"`
}

// Issues is a collection of errors that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. length_mismatch at /1: expected 2, received 3
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
		if it.Message != "" {
			b.WriteString(": ")
			b.WriteString(it.Message)
		}
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Unwrap exposes the causes so errors.Is/As reach through an Issues value.
func (iss Issues) Unwrap() []error {
	var out []error
	for _, it := range iss {
		if it.Cause != nil {
			out = append(out, it.Cause)
		}
	}
	return out
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// HasCode reports whether err carries at least one Issue with the given code.
func HasCode(err error, code string) bool {
	iss, ok := AsIssues(err)
	if !ok {
		return false
	}
	for _, it := range iss {
		if it.Code == code {
			return true
		}
	}
	return false
}

// NewIssue builds an Issue whose message is resolved through the i18n
// translator. Params are rendered with fmt.Sprint for message substitution.
func NewIssue(path PathRef, code string, params map[string]any) Issue {
	var data map[string]string
	if len(params) > 0 {
		data = make(map[string]string, len(params))
		for k, v := range params {
			data[k] = fmt.Sprint(v)
		}
	}
	p := "/"
	if path != nil {
		p = path.Pointer()
	}
	return Issue{Path: p, Code: code, Message: i18n.T(code, data), Params: params}
}

// Fail returns a single-issue Issues error. Convenient at declaration sites
// where the first problem aborts construction.
func Fail(path PathRef, code string, params map[string]any) error {
	return Issues{NewIssue(path, code, params)}
}

// Prefix rebases every issue path under the given pointer prefix.
func (iss Issues) Prefix(p PathRef) Issues {
	if p == nil || p.Pointer() == "/" {
		return iss
	}
	out := make(Issues, len(iss))
	base := p.Pointer()
	for i, it := range iss {
		if it.Path == "" || it.Path == "/" {
			it.Path = base
		} else {
			it.Path = base + it.Path
		}
		out[i] = it
	}
	return out
}
