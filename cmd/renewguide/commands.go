package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kart-io/logger/core"
	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"renewguide/internal/api"
	"renewguide/internal/chat"
	"renewguide/internal/config"
	"renewguide/internal/jsonx"
	"renewguide/internal/status"
)

const serviceName = "renewguide"

type app struct {
	cfg    config.Config
	client *api.Client
	log    core.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var panel string
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Terminal dashboard and chatbot for the Renewable Energy AI Guide",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			version.PrintAndExitIfRequested()
			return a.setup(cmd.Flags())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Flush()
			}
		},
		RunE: func(*cobra.Command, []string) error {
			return a.runTUI(panelFromKey(panel))
		},
	}
	config.AddFlags(cmd.PersistentFlags())
	version.AddFlags(cmd.PersistentFlags())
	cmd.Flags().StringVar(&panel, "panel", "dashboard",
		"Panel shown at startup (dashboard|chatbot|visualization|ml-prediction|policy|users)")
	cmd.AddCommand(newChatCmd(a), newStatusCmd(a), newSearchCmd(a))
	return cmd
}

func (a *app) setup(fs *pflag.FlagSet) error {
	cfg, err := config.Load(viper.New(), fs)
	if err != nil {
		return err
	}
	log, err := config.InitLogger(cfg.Log, serviceName, version.Get().GitVersion)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	a.client = api.New(api.Options{
		BaseURL: cfg.APIURL,
		Timeout: cfg.RequestTimeout,
		Headers: cfg.Headers,
		Logger:  log,
	})
	log.Infow("renewguide configured", "api_url", cfg.APIURL, "poll_interval", cfg.PollInterval.String())
	return nil
}

func (a *app) runTUI(initial tabID) error {
	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if a.cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(newModel(a.cfg, a.client, a.log, initial), opts...)
	final, err := p.Run()
	if m, ok := final.(model); ok {
		m.shutdown()
	}
	if err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// addOutputFlag registers --output on cmd and rejects unknown formats before
// the command reaches the backend.
func addOutputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", "text", "Output format (text|yaml|json)")
	cmd.PreRunE = func(*cobra.Command, []string) error {
		_, err := outputFormat(*target)
		return err
	}
}

func outputFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", "text":
		return "text", nil
	case "yaml", "json":
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, yaml or json)", format)
	}
}

func newChatCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "chat <message...>",
		Short: "Send one message to the chatbot and print the exchange",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session := chat.NewSession(a.client, chat.WithLogger(a.log))
			if !session.SendMessage(ctx, strings.Join(args, " ")) {
				return errors.New("message is empty")
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			err := writeOutput(cmd.OutOrStdout(), output, session.Transcript(), func(w io.Writer) error {
				return writeTranscript(w, session.Transcript())
			})
			if err != nil {
				return err
			}
			if errText := session.LastError(); errText != "" {
				return fmt.Errorf("chat failed: %s", errText)
			}
			return nil
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func writeTranscript(w io.Writer, entries []chat.Entry) error {
	for _, entry := range entries {
		label := "guide"
		if entry.Role == chat.RoleUser {
			label = "you"
		}
		if _, err := fmt.Fprintf(w, "%s [%s]\n%s\n\n", shortTime(entry.CreatedAt), label, entry.Content); err != nil {
			return err
		}
	}
	return nil
}

func newStatusCmd(a *app) *cobra.Command {
	var (
		output string
		watch  bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check backend health, chatbot status and system info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()

			opts := []status.Option{
				status.WithInterval(a.cfg.PollInterval),
				status.WithLogger(a.log),
			}
			if !watch {
				snap := status.NewPoller(a.client, opts...).CheckStatus(ctx)
				if err := ctx.Err(); err != nil {
					return err
				}
				return writeSnapshot(out, output, snap)
			}

			var (
				mu       sync.Mutex
				writeErr error
			)
			opts = append(opts, status.WithOnUpdate(func(snap status.Snapshot) {
				if snap.Loading {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if err := writeSnapshot(out, output, snap); err != nil && writeErr == nil {
					writeErr = err
					stop()
				}
			}))
			p := status.NewPoller(a.client, opts...)
			if err := p.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			p.Stop()
			return writeErr
		},
	}
	addOutputFlag(cmd, &output)
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling every poll-interval until interrupted")
	return cmd
}

func writeSnapshot(w io.Writer, format string, snap status.Snapshot) error {
	return writeOutput(w, format, snap, func(w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, "checked %s\n", shortTime(snap.CheckedAt))
		fmt.Fprintf(&b, "  %s %s\n", padRight("fastapi", 10), snap.Indicators.FastAPI)
		fmt.Fprintf(&b, "  %s %s\n", padRight("chroma", 10), snap.Indicators.Chroma)
		fmt.Fprintf(&b, "  %s %s\n", padRight("ml", 10), snap.Indicators.ML)
		if info := snap.SystemInfo; info != nil {
			fmt.Fprintf(&b, "  embedding model: %s\n", info.ModelLabel())
			fmt.Fprintf(&b, "  collection:      %s\n", info.CollectionName)
			fmt.Fprintf(&b, "  vector store:    %s\n", info.VectorstorePath)
		}
		if snap.Error != "" {
			fmt.Fprintf(&b, "  error: %s\n", snap.Error)
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		output string
		k      int
	)
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Query the backend's retrieval index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := a.client.RAGSearch(ctx, strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			if !env.OK() {
				return fmt.Errorf("search failed: %s", nullCoalesce(env.Error, chat.UnknownError))
			}
			var result api.RAGSearchResult
			if err := jsonx.Unmarshal(env.Raw, &result); err != nil {
				return fmt.Errorf("decode search result: %w", err)
			}
			return writeOutput(cmd.OutOrStdout(), output, result, func(w io.Writer) error {
				return writeSearchResult(w, result)
			})
		},
	}
	addOutputFlag(cmd, &output)
	cmd.Flags().IntVarP(&k, "top-k", "k", api.DefaultSearchK, "Number of documents to retrieve")
	return cmd
}

func writeSearchResult(w io.Writer, result api.RAGSearchResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "query: %s\n", result.Query)
	keys := make([]string, 0, len(result.Result))
	for key := range result.Result {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := result.Result[key]
		text, ok := value.(string)
		if !ok {
			encoded, err := jsonx.Marshal(value)
			if err != nil {
				return fmt.Errorf("encode %s: %w", key, err)
			}
			text = string(encoded)
		}
		fmt.Fprintf(&b, "%s:\n%s\n", key, text)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeOutput(w io.Writer, format string, v any, text func(io.Writer) error) error {
	f, err := outputFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case "text":
		return text(w)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		data, err := jsonx.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	return nil
}
