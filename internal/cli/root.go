package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"piawg/internal/config"
	"piawg/internal/pia"
	"piawg/internal/prefs"
	"piawg/internal/provision"
	"piawg/internal/session"
	"piawg/internal/transport"
)

const (
	logFormatText = "text"
	logFormatJSON = "json"
)

type globalOptions struct {
	ConfigPath string
	Verbose    bool
	LogFormat  string
	Transport  string
}

// app holds what commands share once flags are parsed.
type app struct {
	settings config.Settings
	log      *logrus.Entry
	client   *pia.Client
	pipeline *provision.Pipeline
	sessions *session.Keyring
}

func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "piawg",
		Short:         "Generate WireGuard configurations for Private Internet Access",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML settings file")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&opts.LogFormat, "log-format", logFormatText, "log format: text or json")
	root.PersistentFlags().StringVar(&opts.Transport, "transport", "", "HTTP transport: http or curl (overrides PIA_TRANSPORT)")

	root.AddCommand(
		NewLoginCommand(opts),
		NewLogoutCommand(opts),
		NewRegionsCommand(opts),
		NewGenerateCommand(opts),
		NewKeygenCommand(),
		NewServeCommand(opts),
	)
	return root
}

// Execute runs the root command and reports a failure on stderr.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

func newLogger(w io.Writer, opts *globalOptions) (*logrus.Entry, error) {
	logger := logrus.New()
	logger.SetOutput(w)
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	switch opts.LogFormat {
	case "", logFormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case logFormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q (want %s or %s)", opts.LogFormat, logFormatText, logFormatJSON)
	}
	return logrus.NewEntry(logger), nil
}

func newApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	log, err := newLogger(cmd.ErrOrStderr(), opts)
	if err != nil {
		return nil, err
	}

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Transport != "" {
		settings.Transport = opts.Transport
		if err := settings.Validate(); err != nil {
			return nil, err
		}
	}

	tr, err := transport.New(settings.Transport, settings.CurlPath, settings.HTTPTimeout, log.WithField("component", "transport"))
	if err != nil {
		return nil, err
	}
	client := pia.New(tr,
		pia.WithEndpoints(settings.Endpoints()),
		pia.WithLogger(log.WithField("component", "pia")),
	)
	log.WithFields(logrus.Fields{"transport": settings.Transport, "data_dir": settings.DataDir}).Debug("settings loaded")

	return &app{
		settings: settings,
		log:      log,
		client:   client,
		pipeline: provision.New(client, log.WithField("component", "provision")),
		sessions: session.NewKeyring(""),
	}, nil
}

// openPrefs opens the preference store. A store that cannot be opened is
// logged and replaced by nil; remembered choices are a convenience.
func (a *app) openPrefs() (prefs.Store, func()) {
	store, err := prefs.Open(a.settings.PrefsPath())
	if err != nil {
		a.log.WithError(err).Warn("preferences unavailable")
		return nil, func() {}
	}
	return store, func() { store.Close() }
}

// token returns the session token: PIA_TOKEN when set, else the one saved
// by login.
func (a *app) token() (string, error) {
	if t := os.Getenv("PIA_TOKEN"); t != "" {
		return t, nil
	}
	s, err := a.sessions.Load()
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
