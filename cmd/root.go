// Package cmd wires AAEQ's daemon: configuration load, logging, the DSP
// pipeline's stage set, the sink manager and its backends, the
// resolver-driven worker, and the control API / ANP control channel that
// expose all of it over HTTP.
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aaeq-audio/aaeq/internal/anp"
	"github.com/aaeq-audio/aaeq/internal/conf"
	"github.com/aaeq-audio/aaeq/internal/control"
	"github.com/aaeq-audio/aaeq/internal/dsp"
	"github.com/aaeq-audio/aaeq/internal/logging"
	"github.com/aaeq-audio/aaeq/internal/media"
	"github.com/aaeq-audio/aaeq/internal/observability"
	"github.com/aaeq-audio/aaeq/internal/profile"
	"github.com/aaeq-audio/aaeq/internal/resolver"
	"github.com/aaeq-audio/aaeq/internal/sink"
	anpsink "github.com/aaeq-audio/aaeq/internal/sink/anp"
	"github.com/aaeq-audio/aaeq/internal/sink/dlna"
	"github.com/aaeq-audio/aaeq/internal/sink/localdac"
	"github.com/aaeq-audio/aaeq/internal/worker"
)

// RootCommand creates the aaeqd daemon's root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aaeqd",
		Short: "AAEQ adaptive audio equalizer node daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), settings)
		},
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Init()
		return nil
	}

	return rootCmd
}

// setupFlags binds the daemon's persistent flags to settings and viper, so
// either source can supply a value with flags taking precedence.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&settings.Main.NodeName, "node-name", viper.GetString("main.nodename"), "Friendly node name advertised over mDNS and in ANP capabilities")
	rootCmd.PersistentFlags().StringVar(&settings.Control.Listen, "control-listen", viper.GetString("control.listen"), "Bind address for the local control API")
	rootCmd.PersistentFlags().StringVar(&settings.ANP.Listen, "anp-listen", viper.GetString("anp.listen"), "Bind address for the ANP RTP/control listener")
	rootCmd.PersistentFlags().StringVar(&settings.DLNA.Listen, "dlna-listen", viper.GetString("dlna.listen"), "Bind address for the DLNA output sink's HTTP server")

	return viper.BindPFlags(rootCmd.PersistentFlags())
}

// runDaemon builds the DSP pipeline, registers every output sink, starts
// the resolver-driven worker, and serves the control API until ctx is
// cancelled (SIGINT/SIGTERM).
func runDaemon(ctx context.Context, settings *conf.Settings) error {
	logger := logging.ForService("daemon")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nodeID, err := anp.NodeIdentity(settings.ANP.NodeUUIDPath)
	if err != nil {
		return fmt.Errorf("loading node identity: %w", err)
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	// DSP pipeline. Channels/sample rate default to stereo/48kHz until a
	// sink is selected with a different negotiated OutputConfig; EQ.SetPreset
	// is driven by the worker below, independent of the sink's format.
	headroom := dsp.NewHeadroomStage(settings.DSP.HeadroomDB, settings.DSP.ClipDetection)
	eq := dsp.NewEQStage(48000, 2)
	dither := dsp.NewDitherStage(settings.DSP.TargetBitDepth, ditherModeFromString(settings.DSP.DitherMode), shapeModeFromString(settings.DSP.NoiseShapeMode), 2)
	pipeline := &dsp.Pipeline{Headroom: headroom, EQ: eq, Dither: dither}

	presetStore := profile.NewStore(settings.Profiles.StoragePath)
	reconfigurer := &profile.Reconfigurer{Store: presetStore, EQ: eq}

	rulesIndex := resolver.NewRulesIndex(settings.Profiles.Default)
	mediaSource := media.NewMultiplexer() // platform media backends register themselves externally

	w := worker.New(mediaSource, rulesIndex, reconfigurer)
	go w.Run(ctx)

	manager := sink.NewManager()
	manager.Register(localdac.New(-1))
	manager.Register(dlna.New(settings.DLNA.Listen, dlna.ModePull))
	manager.Register(anpsink.New(settings.ANP.Listen, settings.ANP.Listen, advertiseName(settings), settings.ANP.NodeUUIDPath))

	controller := control.NewController(manager, nodeID.String())
	controller.Pipeline = pipeline

	e := echo.New()
	e.HideBanner = true
	controller.Register(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	srv := &http.Server{Addr: settings.Control.Listen, Handler: e}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("control api server stopped", "error", err)
		}
	}()

	logger.Info("aaeq daemon started", "node_id", nodeID.String(), "control_listen", settings.Control.Listen, "anp_listen", settings.ANP.Listen)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("control api server shutdown error", "error", err)
	}
	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Warn("sink manager stop error", "error", err)
	}

	return nil
}

func advertiseName(settings *conf.Settings) string {
	if settings.ANP.AdvertiseName != "" {
		return settings.ANP.AdvertiseName
	}
	return settings.Main.NodeName
}

func ditherModeFromString(s string) dsp.DitherMode {
	switch s {
	case "rectangular":
		return dsp.DitherRectangular
	case "triangular":
		return dsp.DitherTriangular
	case "gaussian":
		return dsp.DitherGaussian
	default:
		return dsp.DitherNone
	}
}

func shapeModeFromString(s string) dsp.ShapeMode {
	switch s {
	case "first_order":
		return dsp.ShapeFirstOrder
	case "second_order":
		return dsp.ShapeSecondOrder
	case "gesemann":
		return dsp.ShapeGesemann
	default:
		return dsp.ShapeNone
	}
}
