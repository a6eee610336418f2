package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrScriptNotFound) {
//	    // handle not found case
//	}
var (
	// ErrActionNotFound is returned when an action ID does not exist.
	ErrActionNotFound = errors.New("action: not found")

	// ErrScriptNotFound is returned when a script ID does not exist.
	ErrScriptNotFound = errors.New("script: not found")

	// ErrInvalidAction is returned when an action fails validation.
	ErrInvalidAction = errors.New("action: invalid")

	// ErrInvalidScript is returned when a script fails validation.
	ErrInvalidScript = errors.New("script: invalid")

	// ErrInvalidParams is returned when an action's parameter string does
	// not match its type's grammar.
	ErrInvalidParams = errors.New("action: invalid parameters")

	// ErrUnsafePath is returned when a system command escapes the scripts
	// directory.
	ErrUnsafePath = errors.New("action: command path outside scripts directory")

	// ErrScriptDepth is returned when nested run_script actions exceed
	// MaxScriptDepth, which is how cycles surface.
	ErrScriptDepth = errors.New("script: nesting too deep")

	// ErrCommandsDisabled is returned for run_system_command when no
	// scripts directory is configured.
	ErrCommandsDisabled = errors.New("action: system commands disabled")
)
