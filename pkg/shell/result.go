package shell

// Result is what one command line produces for the caller.
type Result struct {
	// Output is the command's normal text, possibly empty.
	Output string
	// Error is the error text, empty on success.
	Error string
	// Exit asks the front-end to stop reading input.
	Exit bool
}

func (r Result) IsError() bool {
	return r.Error != ""
}
