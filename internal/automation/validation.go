package automation

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Validation constants.
const (
	maxNameLength = 100
	maxSteps      = 200

	// maxSleep bounds a single sleep action.
	maxSleep = time.Hour
)

// Pre-computed validation set for O(1) type lookups.
var validActionTypes map[ActionType]struct{}

func init() {
	validActionTypes = make(map[ActionType]struct{}, len(AllActionTypes()))
	for _, t := range AllActionTypes() {
		validActionTypes[t] = struct{}{}
	}
}

// ValidateName checks if an action or script name is valid.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidAction)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAction, maxNameLength)
	}
	return nil
}

// ValidateAction checks an action's name, type, target and parameters.
func ValidateAction(a *Action) error {
	if a == nil {
		return ErrInvalidAction
	}
	if err := ValidateName(a.Name); err != nil {
		return err
	}
	if _, ok := validActionTypes[a.Type]; !ok {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
	if a.Type.targetsDevice() && (a.Device == "" || a.Element == "") {
		return fmt.Errorf("%w: %s needs a device and element", ErrInvalidAction, a.Type)
	}

	var err error
	switch a.Type {
	case ActionSetSwitch:
		_, err = parseSwitch(a.Params)
	case ActionSetDimmer:
		_, err = parseDimmer(a.Params)
	case ActionSetHeater:
		_, _, err = parseHeater(a.Params)
	case ActionRunScript:
		_, err = parseScriptID(a.Params)
	case ActionSleep:
		_, err = parseSleep(a.Params)
	case ActionRunSystemCommand:
		_, _, err = parseCommand(a.Params)
	case ActionToggleSwitch:
	}
	return err
}

// ValidateScript checks a script's name and step list.
func ValidateScript(s *Script) error {
	if s == nil {
		return ErrInvalidScript
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidScript)
	}
	if len(s.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidScript, maxNameLength)
	}
	if len(s.Steps) > maxSteps {
		return fmt.Errorf("%w: exceeds maximum of %d steps", ErrInvalidScript, maxSteps)
	}
	for i, step := range s.Steps {
		if step.ActionID <= 0 {
			return fmt.Errorf("%w: step[%d] has no action", ErrInvalidScript, i)
		}
	}
	return nil
}

// parseSwitch accepts "0" or "1".
func parseSwitch(params string) (int, error) {
	switch strings.TrimSpace(params) {
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	return 0, fmt.Errorf("%w: switch value %q is not 0 or 1", ErrInvalidParams, params)
}

func parseDimmer(params string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(params))
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: dimmer level %q", ErrInvalidParams, params)
	}
	return v, nil
}

// parseHeater reads "<enabled>,<max>".
func parseHeater(params string) (bool, float64, error) {
	flag, maxStr, ok := strings.Cut(params, ",")
	if !ok {
		return false, 0, fmt.Errorf("%w: heater params %q want <enabled>,<max>", ErrInvalidParams, params)
	}
	set, err := parseFlag(flag)
	if err != nil {
		return false, 0, fmt.Errorf("%w: heater enabled flag %q", ErrInvalidParams, flag)
	}
	maxValue, err := strconv.ParseFloat(strings.TrimSpace(maxStr), 64)
	if err != nil {
		return false, 0, fmt.Errorf("%w: heater max %q", ErrInvalidParams, maxStr)
	}
	return set, maxValue, nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on":
		return true, nil
	case "0", "false", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a flag: %q", s)
}

func parseScriptID(params string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(params), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: script id %q", ErrInvalidParams, params)
	}
	return id, nil
}

func parseSleep(params string) (time.Duration, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(params), 10, 64)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%w: sleep milliseconds %q", ErrInvalidParams, params)
	}
	if ms > maxSleep.Milliseconds() {
		return 0, fmt.Errorf("%w: sleep exceeds %s", ErrInvalidParams, maxSleep)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// parseCommand splits "<relative path> [args...]" and rejects absolute
// paths and paths that climb out of the scripts directory.
func parseCommand(params string) (string, []string, error) {
	fields := strings.Fields(params)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("%w: empty command", ErrInvalidParams)
	}
	rel := filepath.Clean(fields[0])
	if filepath.IsAbs(rel) || !filepath.IsLocal(rel) {
		return "", nil, fmt.Errorf("%w: %q", ErrUnsafePath, fields[0])
	}
	return rel, fields[1:], nil
}
