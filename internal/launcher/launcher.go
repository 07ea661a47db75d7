// Package launcher encodes a job into the chat page's URL fragment and
// hands it to a browsing context. The fragment is the entire hand-off
// protocol; there is no other channel into the page.
package launcher

import (
	"errors"
	"net/url"
	"os/exec"
	"runtime"
)

// ErrPopupBlocked is the "no window handle" condition: the operating
// system gave us no way to open a browser, so the hand-off never started.
var ErrPopupBlocked = errors.New("could not open a browser window; open the job URL manually")

// URL returns the chat page URL with the job text percent-encoded into
// the fragment. The agent decodes it with decodeURIComponent, which
// accepts any percent-encoding, so PathEscape's conservative set is fine.
func URL(base, jobText string) string {
	return base + "#" + url.PathEscape(jobText)
}

// OpenSystemBrowser opens the URL in the user's default browser. Used in
// manual mode, where a userscript-style agent in that browser picks the
// job up; the launcher has no return channel other than the webhook.
func OpenSystemBrowser(target string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{target}
	case "linux":
		cmd = "xdg-open"
		args = []string{target}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", target}
	default:
		return ErrPopupBlocked
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		return ErrPopupBlocked
	}
	return nil
}
