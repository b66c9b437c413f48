package franka

import "github.com/pkg/errors"

// Error kinds returned by the hardware interface. Returned errors wrap one of these, test with
// errors.Is.
var (
	// ErrConfiguration means the hardware description does not match the arm.
	ErrConfiguration = errors.New("invalid hardware configuration")
	// ErrConnection means the robot could not be reached.
	ErrConnection = errors.New("robot connection failed")
	// ErrValidation means a requested mode switch is not allowed.
	ErrValidation = errors.New("invalid mode switch")
	// ErrInvalidCommand means a command value cannot be sent to the robot.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrDevice means the robot failed to execute a request.
	ErrDevice = errors.New("robot request failed")
)

// kindError attaches an error kind to a cause so that both match errors.Is.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.cause
}

func withKind(kind, cause error) error {
	return &kindError{kind: kind, cause: cause}
}

func configurationErrorf(format string, args ...interface{}) error {
	return withKind(ErrConfiguration, errors.Errorf(format, args...))
}

func validationErrorf(format string, args ...interface{}) error {
	return withKind(ErrValidation, errors.Errorf(format, args...))
}
