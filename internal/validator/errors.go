package validator

import "strings"

// ValidationError reports where in the input a validator gave up and why.
// Path lists object keys and array indices from the document root.
type ValidationError struct {
	Path    []string
	Message string
}

func newError(path []string, message string) *ValidationError {
	return &ValidationError{Path: append([]string{}, path...), Message: message}
}

func (e *ValidationError) Error() string {
	return Location(e.Path) + ": " + e.Message
}

// Location renders a path as dotted text, or "<root>" for the empty path.
func Location(path []string) string {
	if len(path) == 0 {
		return "<root>"
	}
	return strings.Join(path, ".")
}

// mergeProblems folds the failures of every union alternative into one
// error positioned at their longest common path prefix.
func mergeProblems(problems []*ValidationError) *ValidationError {
	paths := make([][]string, len(problems))
	for i, p := range problems {
		paths[i] = p.Path
	}
	prefix := commonPrefix(paths)

	parts := make([]string, len(problems))
	for i, p := range problems {
		parts[i] = strings.Join(p.Path[len(prefix):], ".") + ": " + p.Message
	}
	return &ValidationError{Path: prefix, Message: strings.Join(parts, " OR ")}
}

func commonPrefix(paths [][]string) []string {
	if len(paths) == 0 {
		return []string{}
	}
	prefix := paths[0]
	for _, p := range paths[1:] {
		n := 0
		for n < len(prefix) && n < len(p) && prefix[n] == p[n] {
			n++
		}
		prefix = prefix[:n]
	}
	return append([]string{}, prefix...)
}
