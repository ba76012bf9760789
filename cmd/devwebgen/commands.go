package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/devwebgen/internal/bundle"
	"github.com/unkn0wn-root/devwebgen/internal/config"
	"github.com/unkn0wn-root/devwebgen/internal/convert"
	"github.com/unkn0wn-root/devwebgen/internal/devweb"
	"github.com/unkn0wn-root/devwebgen/internal/scriptwriter"
	"github.com/unkn0wn-root/devwebgen/internal/telemetry"
)

// genFlags are the generation overrides shared by convert and analyze. They
// only apply when set on the command line.
type genFlags struct {
	env              string
	transactions     bool
	correlation      bool
	parameterization bool
	authentication   bool
	customScripts    bool
	classification   bool
	comments         bool
	thinkTime        int
	logLevel         string
	payloadMinLen    int
	sdk              string
	vusers           int
	duration         int
	otelEndpoint     string
	otelInsecure     bool
	otelService      string
}

func (f *genFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.env, "env", "e", "", "environment file (Postman, Bruno, JSON or dotenv)")
	fs.BoolVar(&f.transactions, "transactions", true, "group requests into folder transactions")
	fs.BoolVar(&f.correlation, "correlation", true, "extract dynamic values from responses")
	fs.BoolVar(&f.parameterization, "parameterization", true, "move static values to parameter files")
	fs.BoolVar(&f.authentication, "authentication", true, "wire collection and folder auth")
	fs.BoolVar(&f.customScripts, "custom-scripts", true, "convert pre-request and test scripts")
	fs.BoolVar(&f.classification, "classification", true, "classify variables before resolving them")
	fs.BoolVar(&f.comments, "comments", true, "annotate the generated script")
	fs.IntVar(&f.thinkTime, "think-time", config.ThinkTimeDefault, "seconds between requests, 0 disables")
	fs.StringVar(&f.logLevel, "log-level", "info", "DevWeb log level written to rts.yml")
	fs.IntVar(&f.payloadMinLen, "payload-min-len", config.PayloadMinLenDefault, "base64 length moved into side files")
	fs.StringVar(&f.sdk, "sdk", "", "DevWebSdk.d.ts file or DevWeb install directory")
	fs.IntVar(&f.vusers, "vusers", config.VusersDefault, "scenario virtual users")
	fs.IntVar(&f.duration, "duration", config.DurationDefault, "scenario duration in seconds")
	fs.StringVar(&f.otelEndpoint, "otel-endpoint", "", "OTLP collector endpoint for stage traces")
	fs.BoolVar(&f.otelInsecure, "otel-insecure", false, "disable TLS for OTLP export")
	fs.StringVar(&f.otelService, "otel-service", "", "service.name for exported spans")
}

// apply layers the flags that were set over the loaded settings.
func (f *genFlags) apply(cmd *cobra.Command, s config.Settings) config.Settings {
	fs := cmd.Flags()
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("transactions", func() { s.Features.Transactions = f.transactions })
	set("correlation", func() { s.Features.Correlation = f.correlation })
	set("parameterization", func() { s.Features.Parameterization = f.parameterization })
	set("authentication", func() { s.Features.Authentication = f.authentication })
	set("custom-scripts", func() { s.Features.CustomScripts = f.customScripts })
	set("classification", func() { s.Features.Classification = f.classification })
	set("comments", func() { s.Features.Comments = f.comments })
	set("think-time", func() { s.Generation.ThinkTime = f.thinkTime })
	set("log-level", func() { s.Generation.LogLevel = f.logLevel })
	set("payload-min-len", func() { s.Generation.PayloadMinLen = f.payloadMinLen })
	set("sdk", func() { s.Generation.SDKPath = f.sdk })
	set("vusers", func() { s.Scenario.Vusers = f.vusers })
	set("duration", func() { s.Scenario.Duration = f.duration })
	set("otel-endpoint", func() { s.Telemetry.Endpoint = f.otelEndpoint })
	set("otel-insecure", func() { s.Telemetry.Insecure = f.otelInsecure })
	set("otel-service", func() { s.Telemetry.ServiceName = f.otelService })
	return config.NormaliseSettings(s)
}

func request(s config.Settings, path, env string) convert.Request {
	opts := devweb.DefaultOptions()
	opts.Transactions = s.Features.Transactions
	opts.Correlation = s.Features.Correlation
	opts.Parameterization = s.Features.Parameterization
	opts.Authentication = s.Features.Authentication
	opts.CustomScripts = s.Features.CustomScripts
	opts.Comments = s.Features.Comments
	opts.ThinkTime = s.Generation.ThinkTime
	opts.LogLevel = s.Generation.LogLevel
	opts.PayloadMinLen = s.Generation.PayloadMinLen
	return convert.Request{
		Collection:     path,
		Environment:    env,
		Options:        opts,
		Classification: s.Features.Classification,
		Scenario: bundle.Scenario{
			Vusers:    s.Scenario.Vusers,
			RampUp:    s.Scenario.RampUp,
			Duration:  s.Scenario.Duration,
			PacingMin: s.Scenario.PacingMin,
			PacingMax: s.Scenario.PacingMax,
		},
		SDKPath: s.Generation.SDKPath,
	}
}

// session holds what a command needs to run the pipeline.
type session struct {
	log     *zap.Logger
	svc     *convert.Service
	req     convert.Request
	cleanup func()
}

func openSession(cmd *cobra.Command, g *globalFlags, f *genFlags, path string) (*session, error) {
	log, err := newLogger(g.verbose)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	settings, handle, err := config.LoadSettings(g.config)
	if err != nil {
		syncLogger(log)
		return nil, err
	}
	log.Debug("settings loaded", zap.String("path", handle.Path))
	settings = f.apply(cmd, settings)

	tcfg, err := telemetry.NewConfig(
		settings.Telemetry.Endpoint,
		settings.Telemetry.Insecure,
		settings.Telemetry.ServiceName,
		version,
		settings.Telemetry.DialTimeout,
		settings.Telemetry.Headers,
	)
	if err != nil {
		syncLogger(log)
		return nil, err
	}
	inst, err := telemetry.New(tcfg)
	if err != nil {
		log.Warn("telemetry disabled", zap.Error(err))
		inst = telemetry.Noop()
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := inst.Shutdown(ctx); err != nil {
			log.Warn("telemetry shutdown", zap.Error(err))
		}
		syncLogger(log)
	}
	return &session{
		log:     log,
		svc:     convert.NewService(log, inst),
		req:     request(settings, path, f.env),
		cleanup: cleanup,
	}, nil
}

func newConvertCmd(g *globalFlags) *cobra.Command {
	var (
		f         genFlags
		out       string
		overwrite bool
		printOut  bool
		diff      bool
	)
	cmd := &cobra.Command{
		Use:   "convert <collection>",
		Short: "Write a DevWeb script folder for a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g, &f, args[0])
			if err != nil {
				return err
			}
			defer s.cleanup()

			s.req.OutputDir = out
			if strings.TrimSpace(s.req.OutputDir) == "" {
				s.req.OutputDir = defaultOutputDir(args[0])
			}
			s.req.Overwrite = overwrite

			stdout := cmd.OutOrStdout()
			if diff {
				res, err := s.svc.Analyze(cmd.Context(), s.req)
				if err != nil {
					return err
				}
				d, err := scriptwriter.Diff(s.req.OutputDir, bundle.MainFile, []byte(res.Script.Text))
				if err != nil {
					return err
				}
				if d == "" {
					fmt.Fprintln(stdout, "main.js is up to date")
					return nil
				}
				_, err = fmt.Fprint(stdout, d)
				return err
			}

			res, err := s.svc.Run(cmd.Context(), s.req)
			if err != nil {
				return err
			}
			if printOut {
				if err := highlight(stdout, res.Script.Text); err != nil {
					return err
				}
			}
			_, err = fmt.Fprint(stdout, summary(res, s.req.OutputDir))
			return err
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default <collection>_devweb)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace files in an existing output directory")
	cmd.Flags().BoolVar(&printOut, "print", false, "print the highlighted main.js")
	cmd.Flags().BoolVar(&diff, "diff", false, "show the main.js diff against the output directory without writing")
	return cmd
}

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	var (
		f        genFlags
		asJSON   bool
		markdown bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <collection>",
		Short: "Report correlations, parameters and auth without writing files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && markdown {
				return fmt.Errorf("--json and --markdown are exclusive")
			}
			s, err := openSession(cmd, g, &f, args[0])
			if err != nil {
				return err
			}
			defer s.cleanup()

			res, err := s.svc.Analyze(cmd.Context(), s.req)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			switch {
			case asJSON:
				data, err := res.Report.JSON()
				if err != nil {
					return err
				}
				_, err = stdout.Write(data)
				return err
			case markdown:
				return renderMarkdown(stdout, res.Report.Markdown())
			default:
				_, err = fmt.Fprint(stdout, summary(res, ""))
				return err
			}
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the report as rendered markdown")
	return cmd
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the settings file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handle := config.SettingsHandle{
				Path:   filepath.Join(config.Dir(), "settings.toml"),
				Format: config.SettingsFormatTOML,
			}
			if strings.TrimSpace(g.config) != "" {
				handle.Path = g.config
				if strings.EqualFold(filepath.Ext(g.config), ".json") {
					handle.Format = config.SettingsFormatJSON
				}
			}
			if _, err := os.Stat(handle.Path); err == nil && !force {
				return fmt.Errorf("%s exists; use --force to replace it", handle.Path)
			}
			if err := config.SaveSettings(config.DefaultSettings(), handle); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", handle.Path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "replace an existing settings file")
	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the settings file that would be loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, handle, err := config.LoadSettings(g.config)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), handle.Path)
			return nil
		},
	}
	cmd.AddCommand(initCmd, pathCmd)
	return cmd
}

// defaultOutputDir names the output after the collection file or folder.
func defaultOutputDir(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "collection"
	}
	return base + "_devweb"
}
