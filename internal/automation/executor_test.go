package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/journal"
	"github.com/nerrad567/gray-logic-hub/internal/process"
)

func TestExecute_DeviceActions(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		want   device.StartupStatus
	}{
		{
			name:   "set switch",
			action: Action{Name: "lamp on", Type: ActionSetSwitch, Device: "arduino1", Element: "1", Params: "1"},
			want:   device.StartupStatus{Device: "arduino1", Kind: device.KindSwitch, Element: "1", Value: 1},
		},
		{
			name:   "toggle switch",
			action: Action{Name: "lamp toggle", Type: ActionToggleSwitch, Device: "arduino1", Element: "2"},
			want:   device.StartupStatus{Device: "arduino1", Kind: device.KindSwitch, Element: "2", Value: 1},
		},
		{
			name:   "set dimmer",
			action: Action{Name: "dim", Type: ActionSetDimmer, Device: "arduino1", Element: "D1", Params: "40"},
			want:   device.StartupStatus{Device: "arduino1", Kind: device.KindDimmer, Element: "D1", Value: 40},
		},
		{
			name:   "set heater",
			action: Action{Name: "heat", Type: ActionSetHeater, Device: "arduino1", Element: "H1", Params: "1,21.5"},
			want:   device.StartupStatus{Device: "arduino1", Kind: device.KindHeater, Element: "H1", Value: 21.5, Flag: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, "")
			if err := rig.exec.Execute(context.Background(), tt.action); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if len(rig.startup.saved) != 1 || rig.startup.saved[0] != tt.want {
				t.Errorf("startup status = %+v, want %+v", rig.startup.saved, tt.want)
			}
			if got := rig.journal.byOrigin(journal.OriginAction); len(got) != 1 || !strings.Contains(got[0].Message, "succeeded") {
				t.Errorf("journal = %+v, want one success entry", got)
			}
		})
	}
}

func TestExecute_Failures(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr error
	}{
		{"unknown device", Action{Type: ActionSetSwitch, Device: "nope", Element: "1", Params: "1"}, device.ErrDeviceNotFound},
		{"disabled device", Action{Type: ActionSetSwitch, Device: "garage", Element: "1", Params: "1"}, device.ErrDisabled},
		{"bad switch value", Action{Type: ActionSetSwitch, Device: "arduino1", Element: "1", Params: "2"}, ErrInvalidParams},
		{"bad heater params", Action{Type: ActionSetHeater, Device: "arduino1", Element: "H", Params: "1"}, ErrInvalidParams},
		{"unknown type", Action{Type: "dance"}, ErrInvalidAction},
		{"commands disabled", Action{Type: ActionRunSystemCommand, Params: "backup.sh"}, ErrCommandsDisabled},
		{"missing script", Action{Type: ActionRunScript, Params: "99"}, ErrScriptNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, "")
			err := rig.exec.Execute(context.Background(), tt.action)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
			}
			if len(rig.startup.saved) != 0 {
				t.Errorf("startup status saved on failure: %+v", rig.startup.saved)
			}
			if got := rig.journal.byOrigin(journal.OriginAction); len(got) != 1 || !strings.Contains(got[0].Message, "failed") {
				t.Errorf("journal = %+v, want one failure entry", got)
			}
		})
	}
}

func TestExecute_TransportFailure(t *testing.T) {
	rig := newTestRig(t, "")
	rig.driver.err = device.ErrTransport

	err := rig.exec.Execute(context.Background(), Action{Type: ActionSetDimmer, Device: "arduino1", Element: "D1", Params: "5"})
	if !errors.Is(err, device.ErrTransport) {
		t.Fatalf("Execute() error = %v, want ErrTransport", err)
	}
}

func TestExecute_StartupSaveFailureIsNotFatal(t *testing.T) {
	rig := newTestRig(t, "")
	rig.startup.failed = true

	if err := rig.exec.Execute(context.Background(), Action{Type: ActionSetSwitch, Device: "arduino1", Element: "1", Params: "1"}); err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if rig.driver.switches["1"] != 1 {
		t.Error("switch was not written")
	}
}

func TestExecute_Sleep(t *testing.T) {
	rig := newTestRig(t, "")

	start := time.Now()
	if err := rig.exec.Execute(context.Background(), Action{Type: ActionSleep, Params: "20"}); err != nil {
		t.Fatalf("Execute(sleep) error = %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("sleep returned early")
	}
	if len(rig.commands.cmds) != 0 {
		t.Error("sleep spawned a command")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rig.exec.Execute(ctx, Action{Type: ActionSleep, Params: "60000"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Execute(sleep) cancelled error = %v, want context.Canceled", err)
	}
}

func writeCommand(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), 0o755); err != nil { //nolint:gosec // Test script must be executable
		t.Fatalf("writing command: %v", err)
	}
}

func TestExecute_SystemCommand(t *testing.T) {
	dir := t.TempDir()
	writeCommand(t, dir, "backup.sh")
	rig := newTestRig(t, dir)
	rig.commands.lines = []string{"copied 3 files", "done"}

	if err := rig.exec.Execute(context.Background(), Action{Name: "backup", Type: ActionRunSystemCommand, Params: "backup.sh --fast"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(rig.commands.cmds) != 1 {
		t.Fatalf("commands run = %d, want 1", len(rig.commands.cmds))
	}
	cmd := rig.commands.cmds[0]
	if filepath.Base(cmd.Binary) != "backup.sh" || len(cmd.Args) != 1 || cmd.Args[0] != "--fast" {
		t.Errorf("command = %+v", cmd)
	}

	lines := rig.journal.byOrigin(journal.OriginCommand)
	if len(lines) != 2 || lines[0].Message != "copied 3 files" || lines[1].Message != "done" {
		t.Errorf("command journal = %+v", lines)
	}
}

func TestExecute_SystemCommandExitCodeIsLoggedOnly(t *testing.T) {
	dir := t.TempDir()
	writeCommand(t, dir, "fail.sh")
	rig := newTestRig(t, dir)
	rig.commands.result = process.Result{ExitCode: 2}

	if err := rig.exec.Execute(context.Background(), Action{Type: ActionRunSystemCommand, Params: "fail.sh"}); err != nil {
		t.Errorf("Execute() non-zero exit error = %v, want nil", err)
	}

	rig.commands.err = errors.New("exec format error")
	if err := rig.exec.Execute(context.Background(), Action{Type: ActionRunSystemCommand, Params: "fail.sh"}); err == nil {
		t.Error("Execute() spawn failure = nil error")
	}
}

func TestExecute_SystemCommandConfinement(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	writeCommand(t, outside, "evil.sh")
	if err := os.Symlink(filepath.Join(outside, "evil.sh"), filepath.Join(dir, "link.sh")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	rig := newTestRig(t, dir)

	for _, params := range []string{"../evil.sh", "/bin/sh", "link.sh"} {
		err := rig.exec.Execute(context.Background(), Action{Type: ActionRunSystemCommand, Params: params})
		if !errors.Is(err, ErrUnsafePath) {
			t.Errorf("Execute(%q) error = %v, want ErrUnsafePath", params, err)
		}
	}
	if len(rig.commands.cmds) != 0 {
		t.Errorf("unsafe command was spawned: %+v", rig.commands.cmds)
	}
}
