//go:build darwin

package permission

import (
	"bytes"
	"os/exec"
	"time"
)

// platformProber implements the OS capability queries on macOS through
// System Events. A frontmost-process query fails with error -25211 when the
// process is not trusted for accessibility, which makes it a usable
// prompt-free trust check.
type platformProber struct{}

func newPlatformProber() Prober {
	return platformProber{}
}

const frontmostScript = `tell application "System Events" to get name of first application process whose frontmost is true`

func (platformProber) AccessibilityTrusted() bool {
	return runAppleScript(frontmostScript) == nil
}

func (platformProber) RequestAccessibility() bool {
	if runAppleScript(frontmostScript) == nil {
		return true
	}
	// Surface the privacy pane; the actual grant happens there. Poll until
	// the user finishes or gives up.
	_ = exec.Command("open",
		"x-apple.systempreferences:com.apple.preference.security?Privacy_Accessibility").Run()
	deadline := time.Now().Add(2 * time.Minute)
	for time.Now().Before(deadline) {
		if runAppleScript(frontmostScript) == nil {
			return true
		}
		time.Sleep(2 * time.Second)
	}
	return false
}

func (platformProber) MediaProbe() bool {
	// Touching the now-playing bridge is exactly the call that hangs when the
	// library is gatekeeping-blocked; the Gatekeeper bounds this.
	script := `if application "Music" is running then
	tell application "Music" to get player state
end if`
	return runAppleScript(script) == nil
}

func runAppleScript(script string) error {
	cmd := exec.Command("osascript", "-e", script)
	var errb bytes.Buffer
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		return err
	}
	return nil
}
