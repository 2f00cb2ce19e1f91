// Package autostart registers the relay to start on login.
package autostart

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

// Label identifies the login item on every platform
const Label = "com.inputrelay.agent"

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=Input Relay
Comment=Receive remote mouse and keyboard input
Exec={{.Command}}
X-GNOME-Autostart-enabled=true
NoDisplay=true
`

var (
	plistTmpl   = template.Must(template.New("plist").Parse(macLaunchAgentPlist))
	desktopTmpl = template.Must(template.New("desktop").Parse(xdgDesktopEntry))
)

type entry struct {
	Label          string
	ExecutablePath string
	Args           []string
	Command        string
}

// Enable enables auto-start on login. args are passed to the executable.
func Enable(args ...string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return enableFile(macPlistPath, renderPlist, execPath, args)
	case "windows":
		return enableWindows(execPath, args)
	case "linux", "freebsd", "openbsd", "netbsd":
		return enableFile(xdgDesktopPath, renderDesktop, execPath, args)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Disable disables auto-start on login
func Disable() error {
	switch runtime.GOOS {
	case "darwin":
		return disableFile(macPlistPath)
	case "windows":
		return disableWindows()
	case "linux", "freebsd", "openbsd", "netbsd":
		return disableFile(xdgDesktopPath)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	switch runtime.GOOS {
	case "darwin":
		return fileExists(macPlistPath)
	case "windows":
		return isEnabledWindows()
	case "linux", "freebsd", "openbsd", "netbsd":
		return fileExists(xdgDesktopPath)
	default:
		return false
	}
}

func macPlistPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", Label+".plist"), nil
}

// xdgDesktopPath is $XDG_CONFIG_HOME/autostart,
// falling back to ~/.config/autostart.
func xdgDesktopPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "autostart", "inputrelay.desktop"), nil
}

func renderPlist(execPath string, args []string) ([]byte, error) {
	var buf bytes.Buffer
	err := plistTmpl.Execute(&buf, entry{
		Label:          Label,
		ExecutablePath: xmlEscape(execPath),
		Args:           escapeAll(args, xmlEscape),
	})
	return buf.Bytes(), err
}

func renderDesktop(execPath string, args []string) ([]byte, error) {
	var buf bytes.Buffer
	err := desktopTmpl.Execute(&buf, entry{
		Command: commandLine(append([]string{execPath}, args...), desktopQuote),
	})
	return buf.Bytes(), err
}

func enableFile(path func() (string, error), render func(string, []string) ([]byte, error), execPath string, args []string) error {
	p, err := path()
	if err != nil {
		return err
	}
	data, err := render(execPath, args)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}

func disableFile(path func() (string, error)) error {
	p, err := path()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func fileExists(path func() (string, error)) bool {
	p, err := path()
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	template.HTMLEscape(&buf, []byte(s))
	return buf.String()
}

func escapeAll(args []string, escape func(string) string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = escape(a)
	}
	return out
}

// desktopQuote quotes an Exec argument when it contains characters the
// desktop entry format treats specially.
func desktopQuote(s string) string {
	s = strings.ReplaceAll(s, "%", "%%")
	if s != "" && !strings.ContainsAny(s, " \t\n\"'\\><~|&;$*?#()`") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
	return `"` + r.Replace(s) + `"`
}

func commandLine(argv []string, quote func(string) string) string {
	return strings.Join(escapeAll(argv, quote), " ")
}
