// Package notify sends desktop notifications through notify-send. Delivery
// is best effort: a missing binary or a failed call is logged and dropped.
package notify

import (
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

const appName = "Tabtalk"

type Notifier interface {
	RecordingStarted()
	RecordingStopped(id string, seconds int64)
	TranscriptionDone(id string)
	TranscriptionFailed(id string, cause error)
}

// Desktop delivers notifications with notify-send.
type Desktop struct {
	log zerolog.Logger
}

func NewDesktop(log zerolog.Logger) Desktop {
	return Desktop{log: log}
}

func (d Desktop) RecordingStarted() {
	d.send("", "Recording started", "")
}

func (d Desktop) RecordingStopped(id string, seconds int64) {
	d.send("", "Recording saved", fmt.Sprintf("%s (%ds)", id, seconds))
}

func (d Desktop) TranscriptionDone(id string) {
	d.send("", "Transcription complete", id)
}

func (d Desktop) TranscriptionFailed(id string, cause error) {
	d.send("critical", "Transcription failed", fmt.Sprintf("%s: %v", id, cause))
}

func (d Desktop) send(urgency, summary, body string) {
	args := []string{"-a", appName}
	if urgency != "" {
		args = append(args, "-u", urgency)
	}
	args = append(args, summary)
	if body != "" {
		args = append(args, body)
	}
	if err := exec.Command("notify-send", args...).Run(); err != nil {
		d.log.Debug().Err(err).Msg("notification not delivered")
	}
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) RecordingStarted()                          {}
func (Nop) RecordingStopped(id string, seconds int64)  {}
func (Nop) TranscriptionDone(id string)                {}
func (Nop) TranscriptionFailed(id string, cause error) {}

// Gated forwards events while Enabled reports true. The daemon wraps
// Desktop in it so the notifications toggle takes effect on config reload.
type Gated struct {
	Wrapped Notifier
	Enabled func() bool
}

func (g Gated) RecordingStarted() {
	if g.Enabled() {
		g.Wrapped.RecordingStarted()
	}
}

func (g Gated) RecordingStopped(id string, seconds int64) {
	if g.Enabled() {
		g.Wrapped.RecordingStopped(id, seconds)
	}
}

func (g Gated) TranscriptionDone(id string) {
	if g.Enabled() {
		g.Wrapped.TranscriptionDone(id)
	}
}

func (g Gated) TranscriptionFailed(id string, cause error) {
	if g.Enabled() {
		g.Wrapped.TranscriptionFailed(id, cause)
	}
}
