// Package config loads the engine's YAML configuration file (spec §6, spec
// §4.11) onto the resolver/server/transport option tables, following the
// teacher's cmd/dnsscience-grpc/config.go pattern of a flat YAML struct
// loaded with gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dnscore/dnscored/internal/resolver"
	"github.com/dnscore/dnscored/internal/rrl"
	"github.com/dnscore/dnscored/internal/transport"
)

// File is the on-disk YAML shape.
type File struct {
	BindHost string `yaml:"bind_host"`
	BindPort int    `yaml:"bind_port"`

	Recursive    bool   `yaml:"recursive"`
	Authoritative bool  `yaml:"authoritative"`
	ZoneFile     string `yaml:"zone_file"`

	Resolver  ResolverSection  `yaml:"resolver"`
	Transport TransportSection `yaml:"transport"`
	RRL       RRLSection       `yaml:"rrl"`

	MetricsListen string `yaml:"metrics_listen"`
	LogLevel      string `yaml:"log_level"`
}

// ResolverSection maps spec §6's resolver configuration table.
type ResolverSection struct {
	Timeout     string   `yaml:"timeout"`
	RetryCount  int      `yaml:"retry_count"`
	UseCache    *bool    `yaml:"use_cache"`
	RootServers []string `yaml:"root_servers"`
}

// TransportSection maps spec §6's transport configuration table.
type TransportSection struct {
	Timeout    string `yaml:"timeout"`
	RetryCount int    `yaml:"retry_count"`
	UseTCP     *bool  `yaml:"use_tcp"`
	UseUDP     *bool  `yaml:"use_udp"`
}

// RRLSection maps the rate-limiting knobs from spec §4.8.
type RRLSection struct {
	Enabled            *bool    `yaml:"enabled"`
	ResponsesPerSecond int      `yaml:"responses_per_second"`
	ErrorsPerSecond    int      `yaml:"errors_per_second"`
	NXDomainsPerSecond int      `yaml:"nxdomains_per_second"`
	Window             int      `yaml:"window"`
	Slip               int      `yaml:"slip"`
	ExemptNets         []string `yaml:"exempt_nets"`
}

// Load reads and parses a YAML config file at path.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// Resolver builds a resolver.Config from the file, falling back to
// resolver.DefaultConfig for unset fields.
func (f *File) Resolver() (resolver.Config, error) {
	cfg := resolver.DefaultConfig()

	if f.Resolver.Timeout != "" {
		d, err := time.ParseDuration(f.Resolver.Timeout)
		if err != nil {
			return cfg, fmt.Errorf("config: resolver.timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if f.Resolver.RetryCount != 0 {
		cfg.RetryCount = f.Resolver.RetryCount
	}
	if f.Resolver.UseCache != nil {
		cfg.UseCache = *f.Resolver.UseCache
	}
	if len(f.Resolver.RootServers) > 0 {
		servers := make([]net.IP, 0, len(f.Resolver.RootServers))
		for _, s := range f.Resolver.RootServers {
			ip := net.ParseIP(s)
			if ip == nil {
				return cfg, fmt.Errorf("config: resolver.root_servers: invalid IP %q", s)
			}
			servers = append(servers, ip)
		}
		cfg.RootServers = servers
	}
	return cfg, nil
}

// Transport builds a transport.Config from the file.
func (f *File) Transport() (transport.Config, error) {
	cfg := transport.DefaultConfig()

	if f.Transport.Timeout != "" {
		d, err := time.ParseDuration(f.Transport.Timeout)
		if err != nil {
			return cfg, fmt.Errorf("config: transport.timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if f.Transport.RetryCount != 0 {
		cfg.RetryCount = f.Transport.RetryCount
	}
	if f.Transport.UseTCP != nil {
		cfg.UseTCP = *f.Transport.UseTCP
	}
	if f.Transport.UseUDP != nil {
		cfg.UseUDP = *f.Transport.UseUDP
	}
	return cfg, nil
}

// RRL builds an rrl.Config from the file.
func (f *File) RRL() (rrl.Config, error) {
	cfg := rrl.DefaultConfig()

	if f.RRL.Enabled != nil {
		cfg.Enabled = *f.RRL.Enabled
	}
	if f.RRL.ResponsesPerSecond != 0 {
		cfg.ResponsesPerSecond = f.RRL.ResponsesPerSecond
	}
	if f.RRL.ErrorsPerSecond != 0 {
		cfg.ErrorsPerSecond = f.RRL.ErrorsPerSecond
	}
	if f.RRL.NXDomainsPerSecond != 0 {
		cfg.NXDomainsPerSecond = f.RRL.NXDomainsPerSecond
	}
	if f.RRL.Window != 0 {
		cfg.Window = f.RRL.Window
	}
	if f.RRL.Slip != 0 {
		cfg.Slip = f.RRL.Slip
	}
	for _, cidr := range f.RRL.ExemptNets {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return cfg, fmt.Errorf("config: rrl.exempt_nets: invalid CIDR %q", cidr)
		}
		cfg.ExemptNets = append(cfg.ExemptNets, n)
	}
	return cfg, nil
}

// BindAddr joins BindHost/BindPort into a listen address, defaulting to
// "0.0.0.0:53" per spec §6's server configuration table.
func (f *File) BindAddr() string {
	host := f.BindHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := f.BindPort
	if port == 0 {
		port = 53
	}
	return fmt.Sprintf("%s:%d", host, port)
}
