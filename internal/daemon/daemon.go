package daemon

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/voxpipe/voxpipe/internal/audio"
	"github.com/voxpipe/voxpipe/internal/bus"
	"github.com/voxpipe/voxpipe/internal/command"
	"github.com/voxpipe/voxpipe/internal/config"
	"github.com/voxpipe/voxpipe/internal/history"
	"github.com/voxpipe/voxpipe/internal/injection"
	"github.com/voxpipe/voxpipe/internal/llm"
	"github.com/voxpipe/voxpipe/internal/logging"
	"github.com/voxpipe/voxpipe/internal/notify"
	"github.com/voxpipe/voxpipe/internal/pipeline"
	"github.com/voxpipe/voxpipe/internal/processing"
	"github.com/voxpipe/voxpipe/internal/transcriber"
)

// Daemon owns the control socket and drives one utterance pipeline at a
// time. Collaborators are rebuilt per utterance from the live config, so a
// hot-reloaded config applies on the next toggle.
type Daemon struct {
	log     zerolog.Logger
	manager *config.Manager

	devCtx audio.Context // nil when the audio backend is unavailable
	store  *history.Store

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	coord *pipeline.Coordinator
}

func New(manager *config.Manager) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		log:     logging.Component("daemon"),
		manager: manager,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	devCtx, err := audio.NewContext()
	if err != nil {
		d.log.Warn().Err(err).Msg("audio backend unavailable, capture disabled")
	} else {
		d.devCtx = devCtx
		defer devCtx.Close()
	}

	cfg := d.manager.GetConfig()
	if cfg.History.Enabled {
		path := cfg.History.Path
		if path == "" {
			path, err = history.DefaultPath()
			if err != nil {
				return fmt.Errorf("resolve history path: %w", err)
			}
		}
		store, err := history.Open(path)
		if err != nil {
			d.log.Warn().Err(err).Msg("history store unavailable")
		} else {
			d.store = store
			defer store.Close()
		}
	}

	if err := d.manager.StartWatching(d.ctx); err != nil {
		d.log.Warn().Err(err).Msg("config hot-reload unavailable")
	}
	defer d.manager.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		d.log.Info().Str("signal", sig.String()).Msg("shutting down")
		d.cancel()
	}()

	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	d.log.Info().Msg("daemon started, listening on control socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				d.log.Info().Msg("shutdown requested")
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		d.log.Warn().Err(err).Msg("client read error")
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	if len(line) == 0 {
		fmt.Fprint(c, "ERR empty\n")
		return
	}

	switch line[0] {
	case bus.CmdToggle:
		msg, err := d.toggle()
		if err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprintf(c, "OK %s\n", msg)

	case bus.CmdCancel:
		d.cancelUtterance()
		fmt.Fprint(c, "OK cancelled\n")

	case bus.CmdStatus:
		fmt.Fprintf(c, "STATUS state=%s\n", d.status())

	case bus.CmdVersion:
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)

	case bus.CmdDevices:
		fmt.Fprintf(c, "DEVICES %s\n", d.devices())

	case bus.CmdQuit:
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()

	default:
		d.log.Warn().Str("command", string(line[0])).Msg("unknown command")
		fmt.Fprintf(c, "ERR unknown=%q\n", line[0])
	}
}

func (d *Daemon) status() pipeline.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.coord == nil {
		return pipeline.StateIdle
	}
	return d.coord.State()
}

// toggle starts a capture when idle and finishes the utterance when
// capturing. Mid-flight utterances are left alone.
func (d *Daemon) toggle() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.coord != nil {
		switch state := d.coord.State(); {
		case state == pipeline.StateCapturing:
			if err := d.coord.Stop(); err != nil {
				return "", err
			}
			return "finishing", nil
		case state == pipeline.StateIdle || state.Terminal():
			// fall through to a fresh utterance
		default:
			return "busy", nil
		}
	}

	coord, err := d.buildCoordinator(d.manager.GetConfig())
	if err != nil {
		return "", err
	}
	if err := coord.Start(d.ctx); err != nil {
		return "", err
	}
	d.coord = coord
	return "capturing", nil
}

func (d *Daemon) cancelUtterance() {
	d.mu.Lock()
	coord := d.coord
	d.mu.Unlock()
	if coord != nil {
		coord.Cancel()
	}
}

func (d *Daemon) devices() string {
	if d.devCtx == nil {
		return "none"
	}
	devices, err := d.devCtx.Devices()
	if err != nil || len(devices) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(devices))
	for _, dev := range devices {
		parts = append(parts, fmt.Sprintf("%s=%s", dev.ID, dev.Name))
	}
	return strings.Join(parts, ";")
}

// buildCoordinator assembles a single-utterance pipeline from the config.
func (d *Daemon) buildCoordinator(cfg *config.Config) (*pipeline.Coordinator, error) {
	bridge := audio.New(cfg.ToAudioConfig(), d.devCtx)
	if cfg.Capture.Device != "" {
		if err := bridge.SelectDevice(cfg.Capture.Device); err != nil {
			d.log.Warn().Err(err).Str("device", cfg.Capture.Device).
				Msg("configured device unavailable, using default")
		}
	}

	svc, err := transcriber.New(cfg.ToTranscriberConfig())
	if err != nil {
		return nil, err
	}

	injector := injection.New(cfg.ToInjectionConfig(), injection.Deps{})

	detector := command.NewDetector(cfg.Detection.WakePhrase)
	registerBuiltins(detector, injector)

	chain := processing.NewChain()
	if cfg.IsLLMEnabled() {
		provider, err := llm.New(cfg.ToLLMConfig())
		if err != nil {
			return nil, err
		}
		var prompts map[processing.Mode]string
		if prompt := cfg.CustomLLMPrompt(); prompt != "" {
			prompts = map[processing.Mode]string{
				processing.Mode(cfg.Processing.Mode): prompt,
			}
		}
		chain.Register(processing.NewLLMStage(provider, prompts, nil))
	}

	deps := pipeline.Deps{
		Bridge:      bridge,
		Transcriber: svc,
		Detector:    detector,
		Chain:       chain,
		Injector:    injector,
		Notifier:    notify.ForType(cfg.NotifierType()),
	}
	if d.store != nil {
		deps.History = d.store
	}

	return pipeline.New(cfg.ToPipelineConfig(), deps)
}
