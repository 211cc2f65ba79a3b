// Package deps checks the external binaries the daemon shells out to.
package deps

import (
	"os/exec"
	"strings"
)

// Status represents the installation status of a dependency
type Status struct {
	Installed bool
	Path      string
	Version   string
}

// CheckPwRecord checks the PipeWire capture binary used by the default
// audio source.
func CheckPwRecord() Status {
	return check("pw-record")
}

// CheckPwCat checks the PipeWire playback binary used by the audio sink.
func CheckPwCat() Status {
	return check("pw-cat")
}

// CheckNotifySend checks the desktop notification binary. Optional: the
// daemon degrades to log-only notifications without it.
func CheckNotifySend() Status {
	return check("notify-send")
}

func check(name string) Status {
	path, err := exec.LookPath(name)
	if err != nil {
		return Status{Installed: false}
	}

	status := Status{
		Installed: true,
		Path:      path,
	}

	// pw-record, pw-cat and notify-send all answer --version
	output, err := exec.Command(path, "--version").Output()
	if err == nil {
		lines := strings.Split(string(output), "\n")
		if len(lines) > 0 {
			status.Version = strings.TrimSpace(lines[0])
		}
	}

	return status
}
