// Package daemon runs the tabtalk background process: the unix-socket
// control loop, startup recovery, the config watcher, and the loopback
// HTTP server carrying metrics, health probes, and websocket ingest.
package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/bus"
	"github.com/fernandocchaves/tabtalk/internal/config"
	"github.com/fernandocchaves/tabtalk/internal/notify"
	"github.com/fernandocchaves/tabtalk/internal/observability"
	"github.com/fernandocchaves/tabtalk/internal/store"
)

type Daemon struct {
	cfg     *config.Manager
	notif   notify.Notifier
	version string
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool

	svc *Service
}

// New builds a daemon around an already validated configuration. A nil
// notifier gets the desktop notifier gated on the notifications toggle.
func New(cfgm *config.Manager, notifier notify.Notifier, version string, log zerolog.Logger) *Daemon {
	if notifier == nil {
		notifier = notify.Gated{
			Wrapped: notify.NewDesktop(log),
			Enabled: func() bool { return cfgm.GetConfig().Notifications.Enabled },
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		cfg:     cfgm,
		notif:   notifier,
		version: version,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Run owns the process: single-instance check, pid file, store, recovery
// pass, config watcher, HTTP server, and the accept loop. It returns after
// a signal or a shutdown command, with the active session finalized.
func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("create pid file: %w", err)
	}
	defer bus.RemovePidFile()

	cfg := d.cfg.GetConfig()

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	d.svc = NewService(d.ctx, st, d.cfg, d.notif, d.version, d.log)

	if info, err := d.svc.Recover(d.ctx); err != nil {
		d.log.Warn().Err(err).Msg("startup recovery pass failed")
	} else if info.Recovered > 0 {
		d.log.Info().Int("recovered", info.Recovered).Msg("recovered recordings from orphaned chunks")
	}

	if err := d.cfg.StartWatching(d.ctx); err != nil {
		d.log.Warn().Err(err).Msg("config watcher not started")
	}
	defer d.cfg.Stop()

	var srv *observability.Server
	if cfg.Server.Enabled {
		srv = observability.NewServer(cfg.Server.Listen, d.svc.IngestHandler(), d.ready.Load, d.log)
		srv.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			d.log.Info().Str("signal", sig.String()).Msg("shutting down")
			d.cancel()
		case <-d.ctx.Done():
		}
	}()

	// Close the listener when the context ends so Accept unblocks.
	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	sockPath, _ := bus.SockPath()
	d.ready.Store(true)
	d.log.Info().Str("socket", sockPath).Str("version", d.version).Msg("daemon listening")

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				break
			}
			return fmt.Errorf("accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.handle(conn)
		}()
	}

	d.ready.Store(false)
	wg.Wait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	d.svc.Shutdown(shutdownCtx)
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			d.log.Warn().Err(err).Msg("http server shutdown")
		}
	}

	d.log.Info().Msg("daemon stopped")
	return nil
}

// handle serves one client connection: one JSON command per line, one
// JSON response per line, until the client hangs up.
func (d *Daemon) handle(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var cmd bus.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			writeResponse(conn, bus.Failure(fmt.Errorf("bad command: %w", err)))
			return
		}

		d.log.Debug().Str("cmd", cmd.Cmd).Str("id", cmd.ID).Msg("command received")
		resp := d.dispatch(cmd)
		if err := writeResponse(conn, resp); err != nil {
			return
		}
		if cmd.Cmd == bus.CmdShutdown && resp.OK {
			d.cancel()
			return
		}
	}
}

func writeResponse(conn net.Conn, resp bus.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(bus.Failure(fmt.Errorf("encode response: %w", err)))
	}
	_, err = conn.Write(append(data, '\n'))
	return err
}

// dispatch routes one command to the service. Operations run on the
// daemon context so shutdown cancels whatever is in flight.
func (d *Daemon) dispatch(cmd bus.Command) bus.Response {
	ctx := d.ctx
	switch cmd.Cmd {
	case bus.CmdStart:
		return wrap(d.svc.StartCapture(ctx))
	case bus.CmdStop:
		return wrap(d.svc.StopCapture(ctx))
	case bus.CmdStatus:
		return wrap(d.svc.Status(ctx))
	case bus.CmdList:
		return wrap(d.svc.List(ctx))
	case bus.CmdChunks:
		return wrap(d.svc.Chunks(ctx, cmd.ID))
	case bus.CmdTranscribe:
		return wrap(d.svc.Transcribe(ctx, cmd.ID))
	case bus.CmdResume:
		return wrap(d.svc.Resume(ctx, cmd.ID))
	case bus.CmdTranscript:
		return wrap(d.svc.Transcript(ctx, cmd.ID))
	case bus.CmdClear:
		return ack(d.svc.ClearTranscription(ctx, cmd.ID))
	case bus.CmdExport:
		return wrap(d.svc.Export(ctx, cmd.ID, cmd.Rate, cmd.Out))
	case bus.CmdPlay:
		return wrap(d.svc.Play(ctx, cmd.ID))
	case bus.CmdPause:
		return wrap(d.svc.TogglePause(ctx))
	case bus.CmdSeek:
		return wrap(d.svc.Seek(ctx, cmd.Seconds))
	case bus.CmdPosition:
		return wrap(d.svc.Position(ctx))
	case bus.CmdDelete:
		return ack(d.svc.Delete(ctx, cmd.ID))
	case bus.CmdImport:
		return wrap(d.svc.Import(ctx, cmd.Path))
	case bus.CmdRecover:
		return wrap(d.svc.Recover(ctx))
	case bus.CmdPolish:
		return wrap(d.svc.Polish(ctx, cmd.ID, cmd.Prompt))
	case bus.CmdShutdown:
		return bus.Success(nil)
	default:
		return bus.Failure(fmt.Errorf("unknown command %q", cmd.Cmd))
	}
}

func wrap(v any, err error) bus.Response {
	if err != nil {
		return bus.Failure(err)
	}
	return bus.Success(v)
}

func ack(err error) bus.Response {
	if err != nil {
		return bus.Failure(err)
	}
	return bus.Success(nil)
}
