package transfer

// UserError is the one error the client surfaces to callers. Error returns
// Message alone so storage detail never reaches the UI; Err keeps the cause
// for logs and errors.Is.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }

func userError(msg string, err error) error {
	return &UserError{Message: msg, Err: err}
}
