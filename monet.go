package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/handlers"
	"github.com/jmoiron/monet/admin"
	"github.com/jmoiron/monet/app"
	"github.com/jmoiron/monet/auth"
	"github.com/jmoiron/monet/conf"
	"github.com/jmoiron/monet/db"
	"github.com/jmoiron/monet/docs"
	"github.com/jmoiron/monet/pkg/autosave"
	"github.com/jmoiron/monet/pkg/passwd"
	"github.com/spf13/pflag"
)

type options struct {
	ConfigPath string
	Addr       string
	Database   string
	Debug      bool
}

func main() {
	var opts options
	pflag.StringVarP(&opts.ConfigPath, "config", "c", "", "path to a json config file (default $"+conf.ConfigPathEnv+")")
	pflag.StringVar(&opts.Addr, "addr", "", "listen address")
	pflag.StringVar(&opts.Database, "db", "", "sqlite database path")
	pflag.BoolVarP(&opts.Debug, "debug", "d", false, "debug logging")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] [serve | adduser NAME]\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	args := pflag.Args()
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
	}
	switch cmd {
	case "serve":
		err = serve(cfg)
	case "adduser":
		if len(args) != 2 {
			pflag.Usage()
			os.Exit(2)
		}
		err = addUser(cfg, args[1])
	default:
		pflag.Usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error(cmd, "err", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (*conf.Config, error) {
	cfg := conf.Default()
	if len(opts.ConfigPath) > 0 {
		if err := cfg.FromPath(opts.ConfigPath); err != nil {
			return nil, fmt.Errorf("loading %s: %w", opts.ConfigPath, err)
		}
	}
	if len(opts.Addr) > 0 {
		cfg.ListenAddr = opts.Addr
	}
	if len(opts.Database) > 0 {
		cfg.DatabaseURI = opts.Database
	}
	if opts.Debug {
		cfg.Debug = true
	}
	return cfg, cfg.Validate()
}

func setupLogging(cfg *conf.Config) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func serve(cfg *conf.Config) error {
	conn, err := db.Open(cfg.DatabaseURI)
	if err != nil {
		return err
	}
	defer conn.Close()

	sm := auth.NewSessionManager(cfg)
	authApp := auth.NewApp(conn, sm)
	docsApp := docs.NewApp(conn)
	autosaves := autosave.NewHandler(conn).
		WithBaseURL(cfg.Autosave.BasePath).
		WithKeep(cfg.Autosave.KeepVersions).
		WithFlasher(sm).
		Register(docs.ContentType, docs.NewService(conn))

	if err := app.Migrate(authApp, docsApp, autosaves); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}

	r := chi.NewRouter()
	r.Use(cfg.AddConfigMiddleware)
	r.Use(sm.AddSessionMiddleware)
	authApp.Bind(r)
	admin.NewApp(sm).Collect(docsApp, autosaves).Bind(r)

	slog.Info("listening", "addr", cfg.ListenAddr, "db", cfg.DatabaseURI)
	if cfg.Debug {
		fmt.Fprint(os.Stderr, cfg.String())
	}
	err = http.ListenAndServe(cfg.ListenAddr, handlers.LoggingHandler(os.Stderr, r))
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func addUser(cfg *conf.Config, name string) error {
	conn, err := db.Open(cfg.DatabaseURI)
	if err != nil {
		return err
	}
	defer conn.Close()

	sm := auth.NewSessionManager(cfg)
	if err := auth.NewApp(conn, sm).Migrate(); err != nil {
		return err
	}

	pw, err := passwd.GetPassword(fmt.Sprintf("password for %s:", name))
	if err != nil {
		return err
	}
	again, err := passwd.GetPassword("again:")
	if err != nil {
		return err
	}
	if pw != again {
		return fmt.Errorf("passwords do not match")
	}
	if err := auth.NewUserService(conn).CreateUser(name, pw); err != nil {
		return err
	}
	slog.Info("created user", "name", name)
	return nil
}
