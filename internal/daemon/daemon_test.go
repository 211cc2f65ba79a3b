package daemon

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/bus"
	"github.com/fernandocchaves/tabtalk/internal/config"
	"github.com/fernandocchaves/tabtalk/internal/notify"
)

// startTestDaemon runs a daemon against throwaway cache, config and data
// directories, waits until its socket answers, and registers shutdown.
func startTestDaemon(t *testing.T) {
	t.Helper()

	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Server.Enabled = false
	cfg.Notifications.Enabled = false

	cfgm := config.NewManager(cfg, zerolog.Nop())
	d := New(cfgm, notify.Nop{}, "test", zerolog.Nop())

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run()
	}()

	// wait for the daemon to answer on the socket
	maxAttempts := 100
	for i := range maxAttempts {
		if _, err := bus.Send(bus.Command{Cmd: bus.CmdStatus}); err == nil {
			break
		}
		if i == maxAttempts-1 {
			t.Fatal("daemon failed to start within timeout")
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Cleanup(func() {
		bus.Send(bus.Command{Cmd: bus.CmdShutdown})
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("daemon exited with error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("daemon did not exit within timeout")
		}
	})
}

func TestDaemonStatusAndList(t *testing.T) {
	startTestDaemon(t)

	resp, err := bus.Send(bus.Command{Cmd: bus.CmdStatus})
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !resp.OK {
		t.Fatalf("status rejected: %s", resp.Error)
	}

	var status bus.StatusInfo
	if err := resp.Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Version != "test" {
		t.Errorf("version = %q, want test", status.Version)
	}
	if status.Recording != nil {
		t.Error("fresh daemon should have no active recording")
	}

	resp, err = bus.Send(bus.Command{Cmd: bus.CmdList})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !resp.OK {
		t.Fatalf("list rejected: %s", resp.Error)
	}
	var rows []bus.RecordingInfo
	if err := resp.Decode(&rows); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("fresh store should list no recordings, got %d", len(rows))
	}
}

func TestDaemonRejectsBadCommands(t *testing.T) {
	startTestDaemon(t)

	tests := []struct {
		name string
		cmd  bus.Command
	}{
		{"unknown verb", bus.Command{Cmd: "bogus"}},
		{"chunks without id", bus.Command{Cmd: bus.CmdChunks}},
		{"chunks of missing recording", bus.Command{Cmd: bus.CmdChunks, ID: "rec-0"}},
		{"stop without capture", bus.Command{Cmd: bus.CmdStop}},
		{"pause with nothing playing", bus.Command{Cmd: bus.CmdPause}},
		{"seek with nothing playing", bus.Command{Cmd: bus.CmdSeek, Seconds: 3}},
		{"resume with no state", bus.Command{Cmd: bus.CmdResume, ID: "rec-0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := bus.Send(tt.cmd)
			if err != nil {
				t.Fatalf("send failed: %v", err)
			}
			if resp.OK {
				t.Errorf("expected rejection, got ok")
			}
			if resp.Error == "" {
				t.Errorf("rejection should carry an error message")
			}
		})
	}
}

func TestDaemonRecoverOnEmptyStore(t *testing.T) {
	startTestDaemon(t)

	resp, err := bus.Send(bus.Command{Cmd: bus.CmdRecover})
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if !resp.OK {
		t.Fatalf("recover rejected: %s", resp.Error)
	}
	var info bus.RecoverInfo
	if err := resp.Decode(&info); err != nil {
		t.Fatalf("decode recover: %v", err)
	}
	if info.Recovered != 0 {
		t.Errorf("empty store recovered %d recordings, want 0", info.Recovered)
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	startTestDaemon(t)

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Server.Enabled = false

	second := New(config.NewManager(cfg, zerolog.Nop()), notify.Nop{}, "test", zerolog.Nop())
	if err := second.Run(); err == nil {
		t.Fatal("second daemon should refuse to start while the first holds the pid file")
	}
}
