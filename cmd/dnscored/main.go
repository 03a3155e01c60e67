package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dnscore/dnscored/internal/config"
	"github.com/dnscore/dnscored/internal/metrics"
	"github.com/dnscore/dnscored/internal/server"
	"github.com/dnscore/dnscored/internal/transport"
	"github.com/dnscore/dnscored/internal/zone"
)

var (
	cfgPath       = flag.String("config", "", "Path to YAML config file")
	udpAddr       = flag.String("udp", "", "UDP listen address (overrides config bind_host/bind_port)")
	tcpAddr       = flag.String("tcp", "", "TCP listen address (overrides config bind_host/bind_port)")
	zoneFile      = flag.String("zone", "", "DNS zone YAML file to load at startup (overrides config)")
	recursive     = flag.Bool("recursive", true, "Enable recursive resolver")
	authoritative = flag.Bool("authoritative", false, "Enable authoritative server")
	metricsListen = flag.String("metrics-listen", "", "Prometheus metrics listen address (overrides config)")
	printStats    = flag.Bool("stats", true, "Print statistics periodically")
)

func main() {
	flag.Parse()

	fmt.Println("dnscored — recursive and authoritative DNS engine")
	fmt.Println()

	var fileCfg *config.File
	if *cfgPath != "" {
		c, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		fileCfg = c
	}

	cfg := server.DefaultConfig()
	cfg.EnableRecursive = *recursive
	cfg.EnableAuthoritative = *authoritative

	eUDP := ":53"
	eTCP := ":53"
	eMetrics := ":9090"
	eZone := ""

	if fileCfg != nil {
		eUDP = fileCfg.BindAddr()
		eTCP = fileCfg.BindAddr()
		if fileCfg.MetricsListen != "" {
			eMetrics = fileCfg.MetricsListen
		}
		if fileCfg.ZoneFile != "" {
			eZone = fileCfg.ZoneFile
		}
		cfg.EnableRecursive = fileCfg.Recursive
		cfg.EnableAuthoritative = fileCfg.Authoritative

		if rc, err := fileCfg.Resolver(); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		} else {
			cfg.ResolverConfig = rc
		}
		if tc, err := fileCfg.Transport(); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		} else {
			cfg.Transport = transport.NewDual(tc)
		}
		if rl, err := fileCfg.RRL(); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		} else {
			cfg.RRLConfig = rl
		}
	}

	// Mode flags given explicitly on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "recursive":
			cfg.EnableRecursive = *recursive
		case "authoritative":
			cfg.EnableAuthoritative = *authoritative
		}
	})

	if *udpAddr != "" {
		eUDP = *udpAddr
	}
	if *tcpAddr != "" {
		eTCP = *tcpAddr
	}
	if *metricsListen != "" {
		eMetrics = *metricsListen
	}
	if *zoneFile != "" {
		eZone = *zoneFile
	}

	cfg.UDPAddr = eUDP
	cfg.TCPAddr = eTCP

	reg := metrics.New()
	cfg.Metrics = reg

	if cfg.EnableAuthoritative {
		cfg.Store = zone.NewStore()
		if eZone != "" {
			z, err := zone.LoadDNSZoneFile(eZone, zone.DefaultLoadConfig())
			if err != nil {
				fmt.Fprintf(os.Stderr, "load zone %s: %v\n", eZone, err)
				os.Exit(1)
			}
			cfg.Store.AddZone(z)
			fmt.Printf("Loaded zone %s (%d records)\n", z.Origin, len(z.AllRecords()))
		}
	}

	fmt.Printf("Configuration:\n")
	fmt.Printf("  UDP Address:    %s\n", cfg.UDPAddr)
	fmt.Printf("  TCP Address:    %s\n", cfg.TCPAddr)
	fmt.Printf("  Recursive:      %v\n", cfg.EnableRecursive)
	fmt.Printf("  Authoritative:  %v\n", cfg.EnableAuthoritative)
	fmt.Printf("  RRL:            %v\n", cfg.EnableRRL)
	fmt.Printf("  Metrics:        %s\n", eMetrics)
	fmt.Println()

	srv, err := server.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create server: %v\n", err)
		os.Exit(1)
	}

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	go func() {
		if err := metrics.Serve(metricsCtx, eMetrics, reg); err != nil {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "start server: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("dnscored started")
	fmt.Println()

	if *printStats {
		go printStatsLoop(srv)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println()

	stopMetrics()
	if err := srv.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "stop server: %v\n", err)
		os.Exit(1)
	}
}

func printStatsLoop(srv *server.Server) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	var lastQueries uint64
	lastTime := time.Now()

	for range ticker.C {
		stats := srv.Stats()
		now := time.Now()
		elapsed := now.Sub(lastTime).Seconds()
		qps := float64(stats.Queries-lastQueries) / elapsed

		fmt.Printf("queries=%d (%.0f qps) answers=%d errors=%d nxdomain=%d\n",
			stats.Queries, qps, stats.Answers, stats.Errors, stats.NXDomain)

		if stats.Resolver != nil {
			fmt.Printf("  cache: hits=%d misses=%d size=%d hit_rate=%.1f%%\n",
				stats.Resolver.Cache.Hits, stats.Resolver.Cache.Misses,
				stats.Resolver.Cache.Size, stats.Resolver.Cache.HitRate*100)
			fmt.Printf("  source ports: available=%d in_use=%d allocated=%d recycled=%d exhaustions=%d\n",
				stats.Resolver.Ports.Available, stats.Resolver.Ports.InUse,
				stats.Resolver.Ports.Allocated, stats.Resolver.Ports.Recycled, stats.Resolver.Ports.Exhaustions)
		}
		if stats.RRL != nil {
			fmt.Printf("  rrl: allowed=%d dropped=%d slipped=%d\n",
				stats.RRL.Allowed, stats.RRL.Dropped, stats.RRL.Slipped)
		}
		if stats.Admission != nil {
			fmt.Printf("  admission: allowed=%d rejected=%d tracked_clients=%d\n",
				stats.Admission.Allowed, stats.Admission.Rejected, stats.Admission.TrackedClients)
		}

		lastQueries = stats.Queries
		lastTime = now
	}
}
