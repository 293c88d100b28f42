// spacetraveling serves, exports, and inspects a blog backed by a headless CMS.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/content"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configFile string
	envFile    string
	staticDir  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "spacetraveling",
		Short: "Blog front-end for a headless CMS",
		Long: `spacetraveling renders a blog whose posts live in a headless CMS.

Configuration comes from the environment (and a .env file), optionally
overlaid by a YAML file passed with --config.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file (ignored if missing)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(postsCmd())
	rootCmd.AddCommand(pathsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the .env file, the environment, and the YAML file, in
// that order of increasing precedence.
func loadConfig() (spacetraveling.SiteConfig, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return spacetraveling.SiteConfig{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg := spacetraveling.ConfigFromEnv()
	if configFile != "" {
		fileCfg, err := spacetraveling.LoadConfigFile(configFile)
		if err != nil {
			return cfg, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	return cfg, nil
}

func newApp() (*spacetraveling.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	var opts []spacetraveling.Option
	if staticDir != "" {
		opts = append(opts, spacetraveling.WithStaticDir(staticDir))
	}
	return spacetraveling.New(cfg, opts...), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Pre-render the site and serve it",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			if err := app.Setup(ctx); err != nil {
				return err
			}

			errc := make(chan error, 1)
			go func() {
				if err := app.Echo.Start(app.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				app.Close()
				return err
			case <-ctx.Done():
			}

			log.Println("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return app.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory of user static assets (default \"public\")")
	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write a static copy of the site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			n, err := app.Export(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Exported %d posts to %s\n", n, args[0])
			return nil
		},
	}
}

func postsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "posts",
		Short: "List every published post, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			if err := app.Init(); err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			posts, err := app.AllPosts(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tUID\tTITLE\tAUTHOR")
			for _, p := range posts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", content.FormatDate(p.FirstPublicationDate), p.UID, p.Title, p.Author)
			}
			return w.Flush()
		},
	}
}

func pathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the post paths pre-rendered at startup",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			if err := app.Init(); err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			paths, err := app.Builder.Paths(ctx)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the spacetraveling version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("spacetraveling %s\n", version)
		},
	}
}
