package autostart

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func stubCommands(t *testing.T) *[]string {
	t.Helper()
	var calls []string
	original := runCommand
	runCommand = func(name string, args ...string) error {
		calls = append(calls, name+" "+strings.Join(args, " "))
		return nil
	}
	t.Cleanup(func() { runCommand = original })
	return &calls
}

func TestEntry_CommandLine(t *testing.T) {
	tests := []struct {
		entry Entry
		want  string
	}{
		{Entry{Executable: "/usr/bin/glucose-share", Args: []string{"serve"}}, "/usr/bin/glucose-share serve"},
		{Entry{Executable: "/opt/my apps/glucose-share", Args: []string{"watch"}}, `"/opt/my apps/glucose-share" watch`},
		{Entry{Executable: "/bin/gs"}, "/bin/gs"},
	}

	for _, tt := range tests {
		if got := tt.entry.commandLine(); got != tt.want {
			t.Errorf("commandLine() = %s, want %s", got, tt.want)
		}
	}
}

func TestEntry_SystemdUnit(t *testing.T) {
	entry := &Entry{Executable: "/usr/bin/glucose-share", Args: []string{"serve", "--config", "/etc/gs.yaml"}}

	unit := entry.systemdUnit()
	for _, want := range []string{
		"ExecStart=/usr/bin/glucose-share serve --config /etc/gs.yaml",
		"WantedBy=default.target",
		"Restart=on-failure",
	} {
		if !strings.Contains(unit, want) {
			t.Errorf("unit missing %q:\n%s", want, unit)
		}
	}
}

func TestEntry_LaunchAgentPlist(t *testing.T) {
	entry := &Entry{Executable: "/Applications/Glucose & Co/glucose-share", Args: []string{"serve"}}

	plist := entry.launchAgentPlist()
	for _, want := range []string{
		"<string>" + launchLabel + "</string>",
		"<string>/Applications/Glucose &amp; Co/glucose-share</string>",
		"<string>serve</string>",
		"<key>RunAtLoad</key>",
	} {
		if !strings.Contains(plist, want) {
			t.Errorf("plist missing %q:\n%s", want, plist)
		}
	}
}

func TestEntry_EnableDisableLinux(t *testing.T) {
	if runtime.GOOS != osLinux {
		t.Skip("systemd unit files are only written on Linux")
	}

	configDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	calls := stubCommands(t)

	entry := &Entry{Executable: "/usr/bin/glucose-share", Args: []string{"serve"}}

	if enabled, err := entry.IsEnabled(); err != nil || enabled {
		t.Fatalf("IsEnabled() = %v, %v before Enable", enabled, err)
	}

	if err := entry.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	unitPath := filepath.Join(configDir, "systemd", "user", appName+".service")
	data, err := os.ReadFile(unitPath)
	if err != nil {
		t.Fatalf("unit file not written: %v", err)
	}
	if !strings.Contains(string(data), "ExecStart=/usr/bin/glucose-share serve") {
		t.Errorf("unit content = %s", data)
	}
	if enabled, _ := entry.IsEnabled(); !enabled {
		t.Error("IsEnabled() = false after Enable")
	}
	if len(*calls) == 0 || !strings.HasPrefix((*calls)[len(*calls)-1], "systemctl --user enable") {
		t.Errorf("systemctl calls = %v", *calls)
	}

	if err := entry.Disable(); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if _, err := os.Stat(unitPath); !os.IsNotExist(err) {
		t.Error("unit file should be removed")
	}

	// Disabling twice is not an error
	if err := entry.Disable(); err != nil {
		t.Errorf("second Disable() error = %v", err)
	}
}
