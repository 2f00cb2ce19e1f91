//go:build windows

package osutils

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

const firewallRuleName = "Input Relay UDP"

// IsAdmin checks if the current process has administrative privileges
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token)
	if err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err = windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}

	return member
}

// EnsureFirewallRule makes sure inbound UDP traffic on port is allowed,
// creating the rule through an elevated PowerShell if needed.
func EnsureFirewallRule(port int, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("rule", firewallRuleName), zap.Int("port", port))

	checkCmd := exec.Command("netsh", "advfirewall", "firewall", "show", "rule", "name="+firewallRuleName)
	output, err := checkCmd.CombinedOutput()
	outputStr := string(output)

	if err == nil && strings.Contains(outputStr, firewallRuleName) {
		if strings.Contains(outputStr, strconv.Itoa(port)) && strings.Contains(outputStr, "UDP") && strings.Contains(outputStr, "Allow") {
			log.Debug("Firewall: rule already present")
			return nil
		}
		log.Info("Firewall: rule exists but port/protocol mismatch, updating")
	} else {
		log.Info("Firewall: rule not found, creating")
	}

	psCommand := fmt.Sprintf(
		"Remove-NetFirewallRule -DisplayName '%s' -ErrorAction SilentlyContinue; New-NetFirewallRule -DisplayName '%s' -Direction Inbound -LocalPort %d -Protocol UDP -Action Allow -Profile Any",
		firewallRuleName, firewallRuleName, port,
	)

	if !IsAdmin() {
		log.Info("Firewall: process is not elevated, requesting UAC elevation")

		verbPtr, _ := syscall.UTF16PtrFromString("runas")
		exePtr, _ := syscall.UTF16PtrFromString("powershell.exe")
		argPtr, _ := syscall.UTF16PtrFromString(fmt.Sprintf("-NoProfile -WindowStyle Hidden -Command \"%s\"", psCommand))

		var showCmd int32 = 0 // SW_HIDE

		if err := windows.ShellExecute(0, verbPtr, exePtr, argPtr, nil, showCmd); err != nil {
			return fmt.Errorf("launch elevated powershell: %w", err)
		}
		return nil
	}

	cmd := exec.Command("powershell", "-NoProfile", "-Command", psCommand)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("create firewall rule: %w (output: %s)", err, string(output))
	}
	log.Info("Firewall: rule applied")
	return nil
}
