package automation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateAction(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr error
	}{
		{"valid switch", Action{Name: "a", Type: ActionSetSwitch, Device: "d", Element: "1", Params: "1"}, nil},
		{"valid toggle", Action{Name: "a", Type: ActionToggleSwitch, Device: "d", Element: "1"}, nil},
		{"valid dimmer", Action{Name: "a", Type: ActionSetDimmer, Device: "d", Element: "D1", Params: "99"}, nil},
		{"valid heater", Action{Name: "a", Type: ActionSetHeater, Device: "d", Element: "H1", Params: "on, 20.5"}, nil},
		{"valid script", Action{Name: "a", Type: ActionRunScript, Params: "3"}, nil},
		{"valid sleep", Action{Name: "a", Type: ActionSleep, Params: "1500"}, nil},
		{"valid command", Action{Name: "a", Type: ActionRunSystemCommand, Params: "sub/run.sh -v"}, nil},
		{"empty name", Action{Name: " ", Type: ActionSleep, Params: "1"}, ErrInvalidAction},
		{"long name", Action{Name: strings.Repeat("x", maxNameLength+1), Type: ActionSleep, Params: "1"}, ErrInvalidAction},
		{"unknown type", Action{Name: "a", Type: "jump"}, ErrInvalidAction},
		{"switch without target", Action{Name: "a", Type: ActionSetSwitch, Params: "1"}, ErrInvalidAction},
		{"switch value 2", Action{Name: "a", Type: ActionSetSwitch, Device: "d", Element: "1", Params: "2"}, ErrInvalidParams},
		{"negative dimmer", Action{Name: "a", Type: ActionSetDimmer, Device: "d", Element: "1", Params: "-1"}, ErrInvalidParams},
		{"heater missing max", Action{Name: "a", Type: ActionSetHeater, Device: "d", Element: "1", Params: "1"}, ErrInvalidParams},
		{"heater bad flag", Action{Name: "a", Type: ActionSetHeater, Device: "d", Element: "1", Params: "maybe,20"}, ErrInvalidParams},
		{"script zero", Action{Name: "a", Type: ActionRunScript, Params: "0"}, ErrInvalidParams},
		{"sleep negative", Action{Name: "a", Type: ActionSleep, Params: "-5"}, ErrInvalidParams},
		{"sleep too long", Action{Name: "a", Type: ActionSleep, Params: "3600001"}, ErrInvalidParams},
		{"sleep overflowing a duration", Action{Name: "a", Type: ActionSleep, Params: "9223372036855"}, ErrInvalidParams},
		{"sleep at the limit", Action{Name: "a", Type: ActionSleep, Params: "3600000"}, nil},
		{"command empty", Action{Name: "a", Type: ActionRunSystemCommand, Params: "  "}, ErrInvalidParams},
		{"command absolute", Action{Name: "a", Type: ActionRunSystemCommand, Params: "/usr/bin/rm -rf"}, ErrUnsafePath},
		{"command escapes", Action{Name: "a", Type: ActionRunSystemCommand, Params: "sub/../../x.sh"}, ErrUnsafePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAction(&tt.action)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateAction() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateAction() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateScript(t *testing.T) {
	if err := ValidateScript(&Script{Name: "ok", Steps: []Step{{ActionID: 1, Enabled: true}}}); err != nil {
		t.Errorf("ValidateScript(valid) = %v", err)
	}
	if err := ValidateScript(&Script{Name: ""}); !errors.Is(err, ErrInvalidScript) {
		t.Errorf("ValidateScript(empty name) = %v", err)
	}
	if err := ValidateScript(&Script{Name: "x", Steps: []Step{{ActionID: 0}}}); !errors.Is(err, ErrInvalidScript) {
		t.Errorf("ValidateScript(zero action) = %v", err)
	}
	if err := ValidateScript(&Script{Name: "x", Steps: make([]Step, maxSteps+1)}); !errors.Is(err, ErrInvalidScript) {
		t.Errorf("ValidateScript(too many steps) = %v", err)
	}
	if err := ValidateScript(nil); !errors.Is(err, ErrInvalidScript) {
		t.Errorf("ValidateScript(nil) = %v", err)
	}
}

func TestParseParams(t *testing.T) {
	if set, maxC, err := parseHeater("off,18"); err != nil || set || maxC != 18 {
		t.Errorf("parseHeater(off,18) = %v, %v, %v", set, maxC, err)
	}
	if d, err := parseSleep("250"); err != nil || d != 250*time.Millisecond {
		t.Errorf("parseSleep(250) = %v, %v", d, err)
	}
	rel, args, err := parseCommand("./tools//sync.sh a b")
	if err != nil || rel != "tools/sync.sh" || len(args) != 2 {
		t.Errorf("parseCommand() = %q, %q, %v", rel, args, err)
	}
}
