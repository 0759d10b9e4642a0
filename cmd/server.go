package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/tikzstudio/internal/history"
	"github.com/ziadkadry99/tikzstudio/internal/server"
	"github.com/ziadkadry99/tikzstudio/internal/studio"
	"github.com/ziadkadry99/tikzstudio/internal/view"
	"github.com/ziadkadry99/tikzstudio/internal/web"
)

var (
	serverPort     int
	serverAllowAll bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the tikzstudio web interface",
	Long:  `Starts the web studio with its JSON API, live websocket updates, PNG/SVG export and generation history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = serverPort
		}
		if cmd.Flags().Changed("allow-all-origins") {
			cfg.AllowAllOrigins = serverAllowAll
		}

		policy, err := studio.ParseOverlapPolicy(cfg.OverlapPolicy)
		if err != nil {
			return err
		}

		database, store, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		resolver := newResolver(cfg)
		warnMissingCredential(cfg, resolver)
		gw := newGateway(cfg, resolver, store)

		renderer, err := view.NewRenderer()
		if err != nil {
			return err
		}
		registry := studio.NewRegistry(gw, cfg.MaxSessions, cfg.SessionTTL, policy)
		meta := func() view.Meta {
			return view.Meta{ModelName: gw.Model(), CredentialMissing: resolver.CredentialMissing()}
		}

		srv := server.New(server.Config{
			Port:     cfg.Port,
			AllowAll: cfg.AllowAllOrigins,
		})
		web.New(registry, renderer, meta, exportOptions(cfg)).RegisterRoutes(srv.Router())
		history.RegisterRoutes(srv.Router(), store)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "tikzstudio server %s starting on port %d\n", Version, cfg.Port)
		fmt.Fprintf(os.Stderr, "  Provider: %s (%s)\n", cfg.Provider, gw.Model())
		fmt.Fprintf(os.Stderr, "  History: %s\n", database.Path())
		fmt.Fprintf(os.Stderr, "  Open http://localhost:%d/\n", cfg.Port)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides config)")
	serverCmd.Flags().BoolVar(&serverAllowAll, "allow-all-origins", false, "Accept cross-origin requests from any origin")
	rootCmd.AddCommand(serverCmd)
}
