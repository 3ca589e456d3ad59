package flatwire

// Validate checks that value has the shape described by schema. Only shape is
// compared: leaf payloads are never inspected. All disagreements are
// collected depth-first as Issues with one of the codes CodeInvalidType,
// CodeLengthMismatch or CodeKeyMismatch.
func Validate[S any](value any, schema Grouping[S]) error {
	w := &walker{}
	walkValue(w, value, schema, Root())
	if len(w.issues) > 0 {
		return w.issues
	}
	return nil
}

// ValidateFirst is Validate that stops at the first disagreement.
func ValidateFirst[S any](value any, schema Grouping[S]) error {
	w := &walker{failFast: true}
	walkValue(w, value, schema, Root())
	if len(w.issues) > 0 {
		return w.issues
	}
	return nil
}

// Check reports whether value conforms to schema.
func Check[S any](value any, schema Grouping[S]) bool {
	return ValidateFirst(value, schema) == nil
}
