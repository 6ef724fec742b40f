// Package browser dispatches meeting URLs to the system opener or a
// user-chosen browser binary.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Open launches the URL. browserHint, when non-empty, names the browser
// binary to use instead of the platform default opener.
func Open(url, browserHint string) error {
	var cmd *exec.Cmd
	switch {
	case browserHint != "":
		cmd = exec.Command(browserHint, url)
	case runtime.GOOS == "darwin":
		cmd = exec.Command("open", url)
	case runtime.GOOS == "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open url: %w", err)
	}
	// Detach: the opener's exit status is not our concern.
	go func() { _ = cmd.Wait() }()
	return nil
}
