package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"

	"voxmix/internal/config"
	"voxmix/internal/httpapi"
	"voxmix/internal/ingest"
	"voxmix/internal/source"
	"voxmix/internal/store"
)

func main() {
	// Check for CLI subcommands before parsing flags, exactly as the
	// teacher's server does.
	if len(os.Args) > 1 {
		cliDB := "voxmix.db"
		if RunCLI(os.Args[1:], cliDB) {
			return
		}
	}

	addr := flag.String("addr", ":8443", "WebTransport listen address")
	apiAddr := flag.String("api-addr", ":8080", "HTTP health/status API listen address (empty to disable)")
	dbPath := flag.String("db", "voxmix.db", "SQLite database path")
	certValidity := flag.Duration("cert-validity", 24*time.Hour, "self-signed TLS certificate validity")
	maxConnections := flag.Int("max-connections", 500, "maximum total WebTransport sessions")
	perIPLimit := flag.Int("per-ip-limit", 10, "maximum WebTransport sessions per IP address")
	testTone := flag.String("test-tone", "", "stream-id for a virtual injector emitting a synthesized tone (empty to disable)")
	testToneFreq := flag.Float64("test-tone-freq", 440, "virtual injector tone frequency in Hz")
	testToneAmp := flag.Float64("test-tone-amplitude", 8000, "virtual injector tone amplitude (0-32767)")
	metricsInterval := flag.Duration("metrics-interval", 5*time.Second, "metrics log interval")
	cfgFlag := config.RegisterFlags(flag.CommandLine)
	flag.Parse()
	cfg := *cfgFlag

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("[store] %v", err)
	}
	defer st.Close()
	seedDefaults(st, cfg)

	hostname := ""
	if host, _, err := net.SplitHostPort(*addr); err == nil && host != "" {
		hostname = host
	}
	tlsConfig, fingerprint, err := generateTLSConfig(*certValidity, hostname)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}
	log.Printf("[server] TLS certificate fingerprint: %s", fingerprint)

	reg := source.NewRegistry()
	ing := ingest.New(cfg.SourceParams())
	peers := newPeerRegistry()
	limiter := newConnLimiter(*maxConnections, *perIPLimit)
	events := make(chan sessionEvent, 4096)
	snap := &atomicSnapshot{}
	var frames atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("[server] shutting down...")
		cancel()
	}()

	go runMixLoop(ctx, reg, ing, peers, events, cfg, snap, &frames)
	go RunMetrics(ctx, snap, &frames, *metricsInterval)

	if *testTone != "" {
		go RunToneInjector(ctx, events, cfg, *testTone, *testToneFreq, *testToneAmp)
	}

	if *apiAddr != "" {
		api := httpapi.New(snap)
		go func() {
			if err := api.Run(ctx, *apiAddr); err != nil {
				log.Printf("[api] %v", err)
			}
		}()
		log.Printf("[api] listening on %s", *apiAddr)
	}

	wtServer := &webtransport.Server{
		H3:          http3.Server{Addr: *addr, TLSConfig: tlsConfig},
		CheckOrigin: func(_ *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/voice", func(w http.ResponseWriter, r *http.Request) {
		ip := remoteIP(r)
		if !limiter.Admit(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}
		sess, err := wtServer.Upgrade(w, r)
		if err != nil {
			limiter.Release(ip)
			slog.Warn("webtransport upgrade failed", "remote_ip", ip, "error", err)
			return
		}
		go handleSession(ctx, sess, ip, events, limiter)
	})
	wtServer.H3.Handler = mux

	go func() {
		<-ctx.Done()
		slog.Info("shutting down webtransport server")
		_ = wtServer.Close()
	}()

	log.Printf("[server] listening on %s", *addr)
	if err := wtServer.ListenAndServe(); err != nil {
		log.Fatalf("[server] %v", err)
	}
}

// remoteIP extracts the bare host from an HTTP request's RemoteAddr,
// used for per-IP connection accounting.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// seedDefaults persists the ten recognized tunables on first run so
// `settings list` always reflects the values actually in effect,
// mirroring the teacher's seedDefaults(st) first-run initialization.
func seedDefaults(st *store.Store, cfg config.Config) {
	ctx := context.Background()
	itoa := strconv.Itoa
	ftoa := func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
	defaults := map[string]string{
		"sample_rate":           itoa(cfg.SampleRate),
		"samples_per_frame":     itoa(cfg.SamplesPerFrame),
		"ring_frames":           itoa(cfg.RingFrames),
		"jitter_msecs":          ftoa(cfg.JitterMsecs),
		"gap_interval_samples":  itoa(cfg.GapIntervalSamples),
		"gap_window_intervals":  itoa(cfg.GapWindowIntervals),
		"distance_ratio":        ftoa(cfg.DistanceRatio),
		"max_off_axis_atten":    ftoa(cfg.MaxOffAxisAtten),
		"phase_amp_ratio_at_90": ftoa(cfg.PhaseAmpRatioAt90),
		"phase_delay_at_90":     ftoa(cfg.PhaseDelayAt90),
	}
	for key, value := range defaults {
		if _, ok, err := st.GetSetting(ctx, key); err == nil && !ok {
			if err := st.SetSetting(ctx, key, value); err != nil {
				log.Printf("[store] seed %q: %v", key, err)
			}
		}
	}
}
