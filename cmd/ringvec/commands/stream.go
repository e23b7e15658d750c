package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/hupe1980/ringvec/ingest"
	"github.com/hupe1980/ringvec/observability"
	"github.com/hupe1980/ringvec/server"
)

var (
	streamServe   bool
	streamAddr    string
	streamWatches []string
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Ingest stdin line by line",
	Long: `Reads text lines from stdin, embeds them and inserts them into the store.

Each --watch registers a standing query as "text=threshold". Every ingested
line whose similarity to text reaches threshold is printed as an alert.

With --serve the HTTP API keeps running after stdin is exhausted until the
process is interrupted.`,
	Example: `  ringvec gen-logs | ringvec stream --watch "service unreachable=0.7"
  tail -f app.log | ringvec stream --serve --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runStream,
}

func init() {
	streamCmd.Flags().BoolVar(&streamServe, "serve", false, "serve the HTTP API while ingesting")
	streamCmd.Flags().StringVar(&streamAddr, "addr", "", "listen address (overrides server.addr)")
	streamCmd.Flags().StringArrayVarP(&streamWatches, "watch", "w", nil, `standing query "text=threshold" (repeatable)`)
	rootCmd.AddCommand(streamCmd)
}

type watchSpec struct {
	text      string
	threshold float32
}

// parseWatch splits "text=threshold" at the last '='.
func parseWatch(s string) (watchSpec, error) {
	i := strings.LastIndexByte(s, '=')
	if i <= 0 || i == len(s)-1 {
		return watchSpec{}, fmt.Errorf("watch %q: want text=threshold", s)
	}
	text := strings.TrimSpace(s[:i])
	th, err := strconv.ParseFloat(strings.TrimSpace(s[i+1:]), 32)
	if err != nil {
		return watchSpec{}, fmt.Errorf("watch %q: %w", s, err)
	}
	if text == "" {
		return watchSpec{}, fmt.Errorf("watch %q: empty text", s)
	}
	return watchSpec{text: text, threshold: float32(th)}, nil
}

func runStream(cmd *cobra.Command, _ []string) error {
	specs := make([]watchSpec, 0, len(streamWatches))
	for _, w := range streamWatches {
		spec, err := parseWatch(w)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := newStore(appConfig, observability.NewCollector(reg))
	if err != nil {
		return err
	}
	defer store.Close()
	if err := observability.RegisterStore(reg, store); err != nil {
		return err
	}

	embedder, err := newEmbedder(appConfig.Embedder)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var outMu sync.Mutex

	pipeline, err := ingest.New(store, embedder, func(o *ingest.Options) {
		o.BatchSize = appConfig.Ingest.BatchSize
		o.Workers = appConfig.Ingest.Workers
		o.IDPrefix = appConfig.Ingest.IDPrefix
		o.Logger = logger
		o.OnAlert = func(a ingest.Alert) {
			outMu.Lock()
			defer outMu.Unlock()
			fmt.Fprintf(out, "ALERT %s\n", a)
		}
	})
	if err != nil {
		return err
	}

	for _, spec := range specs {
		if err := pipeline.AddWatch(ctx, "", spec.text, spec.threshold); err != nil {
			return err
		}
	}

	serveErr := make(chan error, 1)
	if streamServe {
		addr := appConfig.Server.Addr
		if streamAddr != "" {
			addr = streamAddr
		}
		srv := server.New(store, func(o *server.Options) {
			o.Addr = addr
			o.Pipeline = pipeline
			o.Gatherer = reg
			o.Logger = logger
		})
		go func() { serveErr <- srv.ListenAndServe(ctx) }()
	}

	summary, err := pipeline.Run(ctx, cmd.InOrStdin())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	outMu.Lock()
	fmt.Fprintf(out, "summary: %s records=%d\n", summary, store.Len())
	outMu.Unlock()

	if !streamServe {
		return nil
	}

	logger.Info("stdin exhausted, serving until interrupted")
	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		return <-serveErr
	}
}
