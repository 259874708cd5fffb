package tools

// Result is the formatted outcome of one tool call. Warning carries the error
// of a best-effort sub-step that did not abort the call.
type Result struct {
	Text    string
	Warning string
}

// String renders the text with any warning annotation appended.
func (r Result) String() string {
	if r.Warning == "" {
		return r.Text
	}
	return r.Text + "\n\n⚠️ " + r.Warning
}

// step is the captured outcome of a fallible sub-call whose error is rendered
// inline instead of failing the tool call.
type step struct {
	output string
	err    error
}

func (s step) ok() bool { return s.err == nil }
