package windows

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// SystemBrowser opens URLs with the platform's default browser.
type SystemBrowser struct {
	// command overrides the launcher binary and leading args, for tests.
	command []string
}

// NewSystemBrowser picks the launcher for the running OS.
func NewSystemBrowser() *SystemBrowser {
	switch runtime.GOOS {
	case "darwin":
		return &SystemBrowser{command: []string{"open"}}
	case "windows":
		return &SystemBrowser{command: []string{"rundll32", "url.dll,FileProtocolHandler"}}
	default:
		return &SystemBrowser{command: []string{"xdg-open"}}
	}
}

// Launch runs the launcher and waits for it to hand off to the browser.
func (b *SystemBrowser) Launch(ctx context.Context, url string) error {
	args := append(append([]string(nil), b.command[1:]...), url)
	out, err := exec.CommandContext(ctx, b.command[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", b.command[0], err, out)
	}
	return nil
}
