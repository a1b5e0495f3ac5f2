package errors

import "errors"

var (
	ErrMissingBotToken = errors.New("TELEGRAM_BOT_TOKEN environment variable is required")
	ErrUnauthorized    = errors.New("unauthorized user")

	// ErrInvalidRule marks a rule configuration problem. Such a rule is inert.
	ErrInvalidRule  = errors.New("invalid forwarding rule")
	ErrRuleNotFound = errors.New("forwarding rule not found")

	// ErrInvalidPattern is returned for every lookup of a pattern that failed to compile.
	ErrInvalidPattern = errors.New("invalid regex pattern")
	ErrPatternTimeout = errors.New("regex match timed out")

	ErrQueueFull = errors.New("queue full")
)

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
