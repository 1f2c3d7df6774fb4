package budget

import "errors"

// Sentinel errors for the budget domain.
var (
	ErrBadRequest          = errors.New("bad request")
	ErrBadCredentials      = errors.New("bad credentials")
	ErrAlreadyExists       = errors.New("already exists")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrExpenseNotFound     = errors.New("expense not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// CommandError is a user-facing command failure. Code is the machine-readable
// identifier sent back as {"error":"<code>"}.
type CommandError struct {
	Code string
}

func (e *CommandError) Error() string { return e.Code }

// NewCommandError returns a CommandError with the given code.
func NewCommandError(code string) *CommandError {
	return &CommandError{Code: code}
}
