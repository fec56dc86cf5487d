package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/listener"
)

// healthCheckTimeout bounds the startup health check of the enabled backends.
const healthCheckTimeout = 5 * time.Second

// ListenOptions holds flags for the listen command.
type ListenOptions struct {
	*RootOptions
	Host string
	Port int
}

// NewListenCommand creates the listen command.
func NewListenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Serve the remote control listener",
		Long: `Serve the control listener until interrupted.

Remote clients start, pause, resume and cancel runs over HTTP, follow them
over the WebSocket event stream, and, when MQTT is enabled, through the
broker control topics. Interrupting the process cancels active runs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runListen(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "bind host (overrides settings)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "bind port (overrides settings)")

	return cmd
}

func runListen(ctx context.Context, opts *ListenOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return reportExit(out, CodeConfig, err)
	}
	if opts.Host != "" {
		env.cfg.Listener.Host = opts.Host
	}
	if cmd.Flags().Changed("port") {
		env.cfg.Listener.Port = opts.Port
	}

	svc, err := connectServices(ctx, env)
	if err != nil {
		return reportExit(out, CodeConfig, WrapExitError(ExitCommandError, "starting services", err))
	}
	defer svc.close()

	hcCtx, hcCancel := context.WithTimeout(ctx, healthCheckTimeout)
	if err := svc.healthCheck(hcCtx); err != nil {
		env.logger.Warn("initial health check failed", "error", err)
	}
	hcCancel()

	hub := listener.NewHub(env.logger)
	manager := automation.NewManager(env.settings, svc.options(hub))
	defer shutdownManager(manager, env)

	srv, stop, err := startControlServer(ctx, env, svc, manager, hub)
	if err != nil {
		return reportExit(out, CodeConfig, WrapExitError(ExitCommandError, "starting listener", err))
	}
	defer stop()

	if err := out.Success(listenReport{Address: srv.Addr().String(), MQTT: svc.mqtt != nil}); err != nil {
		return err
	}

	<-ctx.Done()
	env.logger.Info("shutdown signal received")
	return nil
}

// startControlServer starts the HTTP listener, runs the shared hub, and
// attaches the MQTT control channel when a broker is connected. stop
// undoes all of it.
func startControlServer(ctx context.Context, env *environment, svc *services, manager *automation.Manager, hub *listener.Hub) (*listener.Server, func(), error) {
	srv, err := listener.New(listener.Deps{
		Config:        env.cfg.Listener,
		Logger:        env.logger,
		Manager:       manager,
		Loader:        env.loader,
		ScriptsFolder: env.cfg.Client.ScriptsFolder,
		Repository:    svc.repo,
		Hub:           hub,
		Version:       env.version(),
	})
	if err != nil {
		return nil, nil, err
	}

	hubCtx, cancelHub := context.WithCancel(ctx)
	go hub.Run(hubCtx)

	if err := srv.Start(ctx); err != nil {
		cancelHub()
		return nil, nil, err
	}

	var mqttCtl *listener.MQTTControl
	if svc.mqtt != nil {
		mqttCtl = listener.NewMQTTControl(svc.mqtt, srv.Controller(), srv.Authenticator(), env.logger, svc.qos)
		if err := mqttCtl.Start(); err != nil {
			//nolint:errcheck // already failing
			srv.Close()
			cancelHub()
			return nil, nil, fmt.Errorf("subscribing to MQTT control: %w", err)
		}
	}

	stop := func() {
		if mqttCtl != nil {
			if err := mqttCtl.Stop(); err != nil {
				env.logger.Error("error stopping MQTT control", "error", err)
			}
		}
		if err := srv.Close(); err != nil {
			env.logger.Error("error closing listener", "error", err)
		}
		cancelHub()
	}
	return srv, stop, nil
}

type listenReport struct {
	Address string `json:"address"`
	MQTT    bool   `json:"mqtt_control"`
}

// RenderText writes the bound address.
func (r listenReport) RenderText(w io.Writer) {
	fmt.Fprintf(w, "listening on %s\n", r.Address)
	if r.MQTT {
		fmt.Fprintln(w, "MQTT control channel attached")
	}
}
