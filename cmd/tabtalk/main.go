package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fernandocchaves/tabtalk/internal/bus"
	"github.com/fernandocchaves/tabtalk/internal/config"
	"github.com/fernandocchaves/tabtalk/internal/daemon"
	"github.com/fernandocchaves/tabtalk/internal/deps"
	"github.com/fernandocchaves/tabtalk/internal/observability"
	"github.com/fernandocchaves/tabtalk/internal/tui"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	_ = rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "tabtalk",
	Short: "Long-form audio capture and chunked transcription daemon",
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		startCmd(),
		stopCmd(),
		statusCmd(),
		listCmd(),
		chunksCmd(),
		transcribeCmd(),
		resumeCmd(),
		transcriptCmd(),
		clearCmd(),
		exportCmd(),
		playCmd(),
		pauseCmd(),
		seekCmd(),
		positionCmd(),
		deleteCmd(),
		importCmd(),
		recoverCmd(),
		polishCmd(),
		shutdownCmd(),
		configureCmd(),
		doctorCmd(),
		versionCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			log := observability.InitLogger(cfg.Log.Level, cfg.Log.Pretty)
			cfgm := config.NewManager(cfg, log)

			return daemon.New(cfgm, nil, version, log).Run()
		},
	}
}

// send issues one command and decodes the payload into out, which may be
// nil for commands without a payload.
func send(cmd bus.Command, out any) error {
	resp, err := bus.Send(cmd)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%s", resp.Error)
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start a new capture session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var info bus.CaptureInfo
			if err := send(bus.Command{Cmd: bus.CmdStart}, &info); err != nil {
				return fmt.Errorf("failed to start capture: %w", err)
			}
			fmt.Printf("recording %s started (%d Hz)\n", info.ID, info.SampleRate)
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active capture session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var info bus.RecordingInfo
			if err := send(bus.Command{Cmd: bus.CmdStop}, &info); err != nil {
				return fmt.Errorf("failed to stop capture: %w", err)
			}
			fmt.Printf("recording %s finalized: %s, %d chunks\n",
				info.ID, formatDuration(info.DurationSecs), info.ChunkCount)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, capture and playback status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var info bus.StatusInfo
			if err := send(bus.Command{Cmd: bus.CmdStatus}, &info); err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			fmt.Printf("daemon %s, up %s, source %s\n",
				info.Version, formatDuration(int64(info.UptimeSecs)), info.AudioSource)
			if info.Recording != nil {
				fmt.Printf("recording %s: %s captured, %d chunks written\n",
					info.Recording.ID,
					formatDuration(int64(info.Recording.ElapsedSecs)),
					info.Recording.ChunksWritten)
			}
			if info.Playback != nil {
				state := "playing"
				if info.Playback.Paused {
					state = "paused"
				}
				fmt.Printf("%s %s at %.1fs / %.1fs (chunk %d/%d)\n",
					state, info.Playback.RecordingID,
					info.Playback.PositionSecs, info.Playback.DurationSecs,
					info.Playback.Chunk+1, info.Playback.ChunkCount)
			}
			for _, id := range info.IncompleteTranscriptions {
				fmt.Printf("incomplete transcription: %s (use 'tabtalk resume %s')\n", id, id)
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recordings and uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []bus.RecordingInfo
			if err := send(bus.Command{Cmd: bus.CmdList}, &rows); err != nil {
				return fmt.Errorf("failed to list recordings: %w", err)
			}
			if len(rows) == 0 {
				fmt.Println("no recordings")
				return nil
			}
			for _, r := range rows {
				var marks []string
				if r.InProgress {
					marks = append(marks, "recording")
				}
				if r.Recovered {
					marks = append(marks, "recovered")
				}
				if r.HasTranscript {
					marks = append(marks, "transcribed")
				}
				if r.IncompleteTranscription {
					marks = append(marks, "transcription incomplete")
				}
				suffix := ""
				if len(marks) > 0 {
					suffix = " [" + strings.Join(marks, ", ") + "]"
				}
				fmt.Printf("%s  %s  %s  %s  %d chunks%s\n",
					r.ID,
					r.CreatedAt.Local().Format(time.DateTime),
					r.Source,
					formatDuration(r.DurationSecs),
					r.ChunkCount,
					suffix)
			}
			return nil
		},
	}
}

func chunksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chunks <recording-id>",
		Short: "List the stored chunks of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []bus.ChunkInfo
			if err := send(bus.Command{Cmd: bus.CmdChunks, ID: args[0]}, &rows); err != nil {
				return fmt.Errorf("failed to list chunks: %w", err)
			}
			for _, c := range rows {
				fmt.Printf("#%d  %s  %d samples  %d bytes\n",
					c.ChunkNumber, c.CreatedAt.Local().Format(time.DateTime),
					c.SampleCount, c.SizeBytes)
			}
			return nil
		},
	}
}

func transcribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <recording-id>",
		Short: "Transcribe a recording segment by segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var info bus.TranscribeInfo
			if err := send(bus.Command{Cmd: bus.CmdTranscribe, ID: args[0]}, &info); err != nil {
				return fmt.Errorf("transcription failed: %w", err)
			}
			fmt.Printf("transcribed %s (%d segments)\n\n%s\n", info.ID, info.Segments, info.Transcript)
			return nil
		},
	}
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <recording-id>",
		Short: "Resume a halted transcription from its checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var info bus.TranscribeInfo
			if err := send(bus.Command{Cmd: bus.CmdResume, ID: args[0]}, &info); err != nil {
				return fmt.Errorf("resume failed: %w", err)
			}
			fmt.Printf("transcribed %s (%d segments)\n\n%s\n", info.ID, info.Segments, info.Transcript)
			return nil
		},
	}
}

func transcriptCmd() *cobra.Command {
	var variant string

	cmd := &cobra.Command{
		Use:   "transcript <recording-id>",
		Short: "Print the stored transcript of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var info bus.TranscriptInfo
			if err := send(bus.Command{Cmd: bus.CmdTranscript, ID: args[0]}, &info); err != nil {
				return err
			}
			if variant != "" {
				text, ok := info.Variants[variant]
				if !ok {
					return fmt.Errorf("recording %s has no %q variant", args[0], variant)
				}
				fmt.Println(text)
				return nil
			}
			fmt.Println(info.Transcript)
			return nil
		},
	}

	cmd.Flags().StringVar(&variant, "variant", "", "print a post-processed variant instead of the raw transcript")
	return cmd
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <recording-id>",
		Short: "Discard a partial transcription checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := send(bus.Command{Cmd: bus.CmdClear, ID: args[0]}, nil); err != nil {
				return fmt.Errorf("failed to clear transcription state: %w", err)
			}
			fmt.Printf("cleared transcription state of %s\n", args[0])
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var rate int
	var out string

	cmd := &cobra.Command{
		Use:   "export <recording-id>",
		Short: "Export a recording as a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = args[0] + ".wav"
			}
			var info bus.ExportInfo
			if err := send(bus.Command{Cmd: bus.CmdExport, ID: args[0], Rate: rate, Out: out}, &info); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			fmt.Printf("wrote %s (%d samples @ %d Hz)\n", info.Path, info.Samples, info.SampleRate)
			return nil
		},
	}

	cmd.Flags().IntVar(&rate, "rate", 0, "output sample rate, 0 keeps the recorded rate")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, defaults to <recording-id>.wav")
	return cmd
}

func playCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play <recording-id>",
		Short: "Play a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var info bus.PlayInfo
			if err := send(bus.Command{Cmd: bus.CmdPlay, ID: args[0]}, &info); err != nil {
				return fmt.Errorf("failed to start playback: %w", err)
			}
			fmt.Printf("playing %s (%.1fs, %d chunks)\n", info.RecordingID, info.DurationSecs, info.ChunkCount)
			return nil
		},
	}
}

func pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause or resume playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			var info bus.PlayInfo
			if err := send(bus.Command{Cmd: bus.CmdPause}, &info); err != nil {
				return err
			}
			if info.Paused {
				fmt.Printf("paused at %.1fs\n", info.PositionSecs)
			} else {
				fmt.Printf("resumed at %.1fs\n", info.PositionSecs)
			}
			return nil
		},
	}
}

func seekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seek <seconds>",
		Short: "Seek playback to an absolute position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid position %q: %w", args[0], err)
			}
			var info bus.PlayInfo
			if err := send(bus.Command{Cmd: bus.CmdSeek, Seconds: seconds}, &info); err != nil {
				return fmt.Errorf("seek failed: %w", err)
			}
			fmt.Printf("playing %s at %.1fs / %.1fs\n", info.RecordingID, info.PositionSecs, info.DurationSecs)
			return nil
		},
	}
}

func positionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "position",
		Short: "Show the current playback position",
		RunE: func(cmd *cobra.Command, args []string) error {
			var info bus.PlayInfo
			if err := send(bus.Command{Cmd: bus.CmdPosition}, &info); err != nil {
				return err
			}
			if !info.Playing && !info.Paused {
				fmt.Println("nothing playing")
				return nil
			}
			state := "playing"
			if info.Paused {
				state = "paused"
			}
			fmt.Printf("%s %s at %.1fs / %.1fs (chunk %d/%d)\n",
				state, info.RecordingID, info.PositionSecs, info.DurationSecs,
				info.Chunk+1, info.ChunkCount)
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <recording-id>",
		Short: "Delete a recording and all of its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := send(bus.Command{Cmd: bus.CmdDelete, ID: args[0]}, nil); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.wav>",
		Short: "Import a WAV file as an upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var info bus.RecordingInfo
			if err := send(bus.Command{Cmd: bus.CmdImport, Path: args[0]}, &info); err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Printf("imported %s (%s @ %d Hz)\n", info.ID, formatDuration(info.DurationSecs), info.SampleRate)
			return nil
		},
	}
}

func recoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Rebuild recordings from orphaned chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			var info bus.RecoverInfo
			if err := send(bus.Command{Cmd: bus.CmdRecover}, &info); err != nil {
				return fmt.Errorf("recovery failed: %w", err)
			}
			if info.Recovered == 0 {
				fmt.Println("nothing to recover")
			} else {
				fmt.Printf("recovered %d recording(s)\n", info.Recovered)
			}
			return nil
		},
	}
}

func polishCmd() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "polish <recording-id>",
		Short: "Produce a post-processed transcript variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var info bus.PolishInfo
			if err := send(bus.Command{Cmd: bus.CmdPolish, ID: args[0], Prompt: prompt}, &info); err != nil {
				return fmt.Errorf("polish failed: %w", err)
			}
			fmt.Printf("stored %q variant of %s\n\n%s\n", info.Prompt, info.ID, info.Variant)
			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "cleanup", "named prompt to apply")
	return cmd
}

func shutdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := send(bus.Command{Cmd: bus.CmdShutdown}, nil); err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			fmt.Println("daemon stopping")
			return nil
		},
	}
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration wizard for tabtalk.
This will guide you through setting up:
- Provider API keys (OpenAI, Groq, Deepgram)
- Transcription and segmentation settings
- Capture source and chunk cadence
- Transcript post-processing and notifications`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure()
		},
	}
}

func runConfigure() error {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.Run(cfg)
	if err != nil {
		return fmt.Errorf("configuration wizard error: %w", err)
	}

	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if err := result.Config.Validate(); err != nil {
		fmt.Printf("Configuration validation failed: %v\n", err)
		return err
	}

	if err := config.Save(result.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration saved successfully!")
	fmt.Println()

	configPath, _ := config.GetConfigPath()
	fmt.Printf("Config file location: %s\n", configPath)
	fmt.Println("Start the daemon with: tabtalk serve")

	return nil
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := []struct {
				name     string
				required string
				status   deps.Status
			}{
				{"pw-record", "capturing from PipeWire", deps.CheckPwRecord()},
				{"pw-cat", "playback", deps.CheckPwCat()},
				{"notify-send", "desktop notifications (optional)", deps.CheckNotifySend()},
			}

			for _, c := range checks {
				if c.status.Installed {
					detail := c.status.Version
					if detail == "" {
						detail = c.status.Path
					}
					fmt.Printf("ok       %-12s %s\n", c.name, detail)
				} else {
					fmt.Printf("missing  %-12s needed for %s\n", c.name, c.required)
				}
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func formatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm%02ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
