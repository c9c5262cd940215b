// Command vocalis is a terminal client for the Vocalis voice assistant. It
// captures microphone audio, detects speech, ships finished utterances to the
// backend, and plays the synthesized replies, all behind a small TUI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	pipeline "github.com/Electron910/Vocalis/core"
	"github.com/Electron910/Vocalis/core/audio/miniaudio"
	"github.com/Electron910/Vocalis/core/transport/backend"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (defaults to "+defaultConfigPath+" when present)")
	printSchema := flag.Bool("config-schema", false, "print the config file's JSON schema and exit")
	flag.Parse()

	if *printSchema {
		schema, err := configSchema()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(schema))
		return
	}

	config, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(config); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(config Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := checkBackend(ctx, config); err != nil {
		return err
	}

	devices, err := miniaudio.NewClient(
		miniaudio.WithSampleRate(config.Audio.SampleRate),
		miniaudio.WithCaptureFrameSize(config.Audio.FrameSize),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize audio devices: %w", err)
	}
	defer devices.Close()

	p, err := pipeline.NewPipeline(
		pipeline.WithFrameSource(devices.Source()),
		pipeline.WithFrameSink(devices.Sink()),
		pipeline.WithDetectionConfig(config.detectionConfig()),
	)
	if err != nil {
		return fmt.Errorf("failed to build audio pipeline: %w", err)
	}
	defer p.Close()

	dialCtx, cancelDial := context.WithTimeout(ctx, config.connectTimeout())
	sess, err := newSession(dialCtx, config, p)
	cancelDial()
	if err != nil {
		return fmt.Errorf("failed to connect to backend at %s: %w", config.Server.URL, err)
	}
	defer sess.Close()

	if err := sess.Start(ctx); err != nil {
		return err
	}

	program := tea.NewProgram(newUIModel(config, sess),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	sess.attachProgram(program)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer stop()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		// The program keeps running after a lost connection so the transcript
		// stays readable; only quitting tears the session down.
		select {
		case <-groupCtx.Done():
		case <-sess.Done():
			program.Send(disconnectedMsg{})
		}
		return nil
	})

	return group.Wait()
}

// checkBackend gates startup on the health endpoint so a wrong URL fails
// before any audio hardware is touched. Degraded services only warn; the
// websocket may still be usable for part of the conversation.
func checkBackend(ctx context.Context, config Config) error {
	healthCtx, cancel := context.WithTimeout(ctx, config.connectTimeout())
	defer cancel()

	report, err := backend.CheckHealth(healthCtx, config.Server.URL)
	if err != nil {
		return fmt.Errorf("failed to reach backend at %s: %w", config.Server.URL, err)
	}

	if !report.Ready() {
		logger.Warn("backend reports degraded services",
			"status", report.Status,
			"transcription", report.Services.Transcription,
			"llm", report.Services.LLM,
			"tts", report.Services.TTS,
		)
	}
	return nil
}
