// Package autostart registers glucose-share to start at login
package autostart

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	appName        = "glucose-share"
	appDisplayName = "Glucose Share"
	launchLabel    = "com.mrcode." + appName

	windowsRunKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`

	// OS constants
	osLinux   = "linux"
	osWindows = "windows"
	osDarwin  = "darwin"
)

// runCommand runs an external helper such as systemctl or reg
var runCommand = func(name string, args ...string) error {
	//nolint:gosec // G204: fixed helper binaries with our own arguments
	return exec.Command(name, args...).Run()
}

// Entry describes the command started at login
type Entry struct {
	Executable string
	Args       []string
}

// NewEntry creates an entry for the running binary with the given arguments
func NewEntry(args ...string) (*Entry, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	return &Entry{Executable: execPath, Args: args}, nil
}

// IsEnabled checks if auto-start is enabled
func (e *Entry) IsEnabled() (bool, error) {
	switch runtime.GOOS {
	case osLinux, osDarwin:
		path, err := e.path()
		if err != nil {
			return false, err
		}
		_, err = os.Stat(path)
		return err == nil, nil
	case osWindows:
		err := runCommand("reg", "query", windowsRunKey, "/v", appName)
		return err == nil, nil
	default:
		return false, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Enable enables auto-start
func (e *Entry) Enable() error {
	switch runtime.GOOS {
	case osLinux:
		if err := e.writeFile(e.systemdUnit()); err != nil {
			return err
		}
		// Best effort, the unit file is still picked up on next login
		_ = runCommand("systemctl", "--user", "daemon-reload")
		_ = runCommand("systemctl", "--user", "enable", appName+".service")
		return nil
	case osDarwin:
		return e.writeFile(e.launchAgentPlist())
	case osWindows:
		return runCommand("reg", "add", windowsRunKey,
			"/v", appName,
			"/t", "REG_SZ",
			"/d", e.commandLine(),
			"/f")
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Disable disables auto-start
func (e *Entry) Disable() error {
	switch runtime.GOOS {
	case osLinux:
		_ = runCommand("systemctl", "--user", "disable", appName+".service")
		return e.removeFile()
	case osDarwin:
		path, err := e.path()
		if err != nil {
			return err
		}
		// Unload the agent first (ignore errors as it may not be loaded)
		_ = runCommand("launchctl", "unload", path)
		return e.removeFile()
	case osWindows:
		err := runCommand("reg", "delete", windowsRunKey, "/v", appName, "/f")
		if err != nil && strings.Contains(err.Error(), "not exist") {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// path returns the unit or launch agent file for the current platform
func (e *Entry) path() (string, error) {
	if runtime.GOOS == osDarwin {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "LaunchAgents", launchLabel+".plist"), nil
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "systemd", "user", appName+".service"), nil
}

func (e *Entry) writeFile(content string) error {
	path, err := e.path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

func (e *Entry) removeFile() error {
	path, err := e.path()
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// commandLine joins the executable and arguments, quoting where needed
func (e *Entry) commandLine() string {
	parts := make([]string, 0, len(e.Args)+1)
	for _, p := range append([]string{e.Executable}, e.Args...) {
		if strings.ContainsAny(p, " \t\"") {
			p = `"` + strings.ReplaceAll(p, `"`, `\"`) + `"`
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

func (e *Entry) systemdUnit() string {
	return fmt.Sprintf(`[Unit]
Description=%s Dexcom proxy
After=network-online.target

[Service]
ExecStart=%s
Restart=on-failure
RestartSec=30

[Install]
WantedBy=default.target
`, appDisplayName, e.commandLine())
}

func (e *Entry) launchAgentPlist() string {
	var args strings.Builder
	for _, a := range append([]string{e.Executable}, e.Args...) {
		fmt.Fprintf(&args, "        <string>%s</string>\n", xmlEscape(a))
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>%s</string>
    <key>ProgramArguments</key>
    <array>
%s    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`, launchLabel, args.String())
}

var xmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}
