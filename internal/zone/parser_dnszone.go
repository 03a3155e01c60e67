package zone

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dnscore/dnscored/internal/rrtype"
	"github.com/dnscore/dnscored/internal/wire"
)

// DNSZoneFile is the structure of a .dnszone YAML zone definition: a
// convenience format for operators who prefer data files to Go code; its
// loader adds records with Zone.AddRecord, the same path Builder uses. It is not the system of record for the wire
// protocol, only a loader into a Zone.
type DNSZoneFile struct {
	Zone    ZoneSection              `yaml:"zone"`
	SOA     SOASection               `yaml:"soa"`
	Records map[string]RecordSection `yaml:"records"`
}

// ZoneSection holds zone-wide metadata.
type ZoneSection struct {
	Name string `yaml:"name"`
	TTL  string `yaml:"ttl,omitempty"`
}

// SOASection holds the fields of the zone's SOA record.
type SOASection struct {
	PrimaryNS   string `yaml:"primary_ns"`
	Contact     string `yaml:"contact"`
	Serial      string `yaml:"serial"`
	Refresh     string `yaml:"refresh"`
	Retry       string `yaml:"retry"`
	Expire      string `yaml:"expire"`
	NegativeTTL string `yaml:"negative_ttl"`
}

// RecordSection holds the records defined at one owner name.
type RecordSection struct {
	A     interface{} `yaml:"A,omitempty"`
	AAAA  interface{} `yaml:"AAAA,omitempty"`
	CNAME string      `yaml:"CNAME,omitempty"`
	NS    interface{} `yaml:"NS,omitempty"`
	MX    interface{} `yaml:"MX,omitempty"`
	TXT   interface{} `yaml:"TXT,omitempty"`
	PTR   string      `yaml:"PTR,omitempty"`
	HINFO *hinfoYAML  `yaml:"HINFO,omitempty"`

	TTL int `yaml:"ttl,omitempty"`
}

type hinfoYAML struct {
	CPU string `yaml:"cpu"`
	OS  string `yaml:"os"`
}

type mxYAML struct {
	Preference int    `yaml:"preference"`
	Exchange   string `yaml:"exchange"`
}

// LoadConfig controls .dnszone parsing behavior.
type LoadConfig struct {
	DefaultTTL uint32
}

// DefaultLoadConfig returns the conventional default TTL used when a zone
// file does not specify one.
func DefaultLoadConfig() LoadConfig {
	return LoadConfig{DefaultTTL: 3600}
}

// LoadDNSZoneFile parses a .dnszone YAML file from disk into a Zone.
func LoadDNSZoneFile(path string, cfg LoadConfig) (*Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("zone: read %s: %w", path, err)
	}
	return ParseDNSZone(data, cfg)
}

// ParseDNSZone parses .dnszone YAML content into a Zone.
func ParseDNSZone(data []byte, cfg LoadConfig) (*Zone, error) {
	var zf DNSZoneFile
	if err := yaml.Unmarshal(data, &zf); err != nil {
		return nil, fmt.Errorf("zone: parse YAML: %w", err)
	}
	if zf.Zone.Name == "" {
		return nil, fmt.Errorf("zone: missing zone.name")
	}

	z := New(zf.Zone.Name)

	defaultTTL := cfg.DefaultTTL
	if zf.Zone.TTL != "" {
		ttl, err := parseTimeValue(zf.Zone.TTL)
		if err != nil {
			return nil, fmt.Errorf("zone: zone.ttl: %w", err)
		}
		defaultTTL = ttl
	}

	soa, err := buildSOA(zf.SOA, z.Origin, defaultTTL)
	if err != nil {
		return nil, fmt.Errorf("zone: soa: %w", err)
	}
	if err := z.AddRecord(Record{Name: z.Origin, Type: wire.TypeSOA, Class: wire.ClassIN, TTL: defaultTTL, RData: soa}); err != nil {
		return nil, err
	}

	for owner, section := range zf.Records {
		ttl := defaultTTL
		if section.TTL > 0 {
			ttl = uint32(section.TTL)
		}
		fqdn := fullyQualify(owner, z.Origin)

		if err := addAddresses(z, fqdn, section.A, ttl, wire.TypeA); err != nil {
			return nil, fmt.Errorf("zone: %s A: %w", owner, err)
		}
		if err := addAddresses(z, fqdn, section.AAAA, ttl, wire.TypeAAAA); err != nil {
			return nil, fmt.Errorf("zone: %s AAAA: %w", owner, err)
		}
		if section.CNAME != "" {
			if err := z.AddRecord(Record{Name: fqdn, Type: wire.TypeCNAME, Class: wire.ClassIN, TTL: ttl, RData: rrtype.CNAME{Target: fullyQualify(section.CNAME, z.Origin)}}); err != nil {
				return nil, fmt.Errorf("zone: %s CNAME: %w", owner, err)
			}
		}
		if err := addNames(z, fqdn, section.NS, ttl, wire.TypeNS, z.Origin); err != nil {
			return nil, fmt.Errorf("zone: %s NS: %w", owner, err)
		}
		if section.PTR != "" {
			if err := z.AddRecord(Record{Name: fqdn, Type: wire.TypePTR, Class: wire.ClassIN, TTL: ttl, RData: rrtype.PTR{Target: fullyQualify(section.PTR, z.Origin)}}); err != nil {
				return nil, fmt.Errorf("zone: %s PTR: %w", owner, err)
			}
		}
		if err := addMX(z, fqdn, section.MX, ttl, z.Origin); err != nil {
			return nil, fmt.Errorf("zone: %s MX: %w", owner, err)
		}
		if err := addTXT(z, fqdn, section.TXT, ttl); err != nil {
			return nil, fmt.Errorf("zone: %s TXT: %w", owner, err)
		}
		if section.HINFO != nil {
			if err := z.AddRecord(Record{Name: fqdn, Type: wire.TypeHINFO, Class: wire.ClassIN, TTL: ttl, RData: rrtype.HINFO{CPU: section.HINFO.CPU, OS: section.HINFO.OS}}); err != nil {
				return nil, fmt.Errorf("zone: %s HINFO: %w", owner, err)
			}
		}
	}

	return z, nil
}

func fullyQualify(name, origin string) string {
	if name == "" || name == "@" {
		return origin
	}
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "." + origin
}

func buildSOA(s SOASection, origin string, defaultTTL uint32) (rrtype.SOA, error) {
	serial, err := parseSerial(s.Serial)
	if err != nil {
		return rrtype.SOA{}, fmt.Errorf("serial: %w", err)
	}
	refresh, err := parseTimeValue(s.Refresh)
	if err != nil {
		return rrtype.SOA{}, fmt.Errorf("refresh: %w", err)
	}
	retry, err := parseTimeValue(s.Retry)
	if err != nil {
		return rrtype.SOA{}, fmt.Errorf("retry: %w", err)
	}
	expire, err := parseTimeValue(s.Expire)
	if err != nil {
		return rrtype.SOA{}, fmt.Errorf("expire: %w", err)
	}
	minimum, err := parseTimeValue(s.NegativeTTL)
	if err != nil {
		return rrtype.SOA{}, fmt.Errorf("negative_ttl: %w", err)
	}
	return rrtype.SOA{
		MName:   fullyQualify(s.PrimaryNS, origin),
		RName:   formatEmail(s.Contact, origin),
		Serial:  serial,
		Refresh: refresh,
		Retry:   retry,
		Expire:  expire,
		Minimum: minimum,
	}, nil
}

func formatEmail(email, origin string) string {
	if email == "" {
		return origin
	}
	return fullyQualify(strings.Replace(email, "@", ".", 1), origin)
}

func parseSerial(s string) (uint32, error) {
	if s == "auto" || s == "" {
		return 1, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid serial %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseTimeValue(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(v), nil
	}
	d, err := parseSuffixedDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return uint32(d.Seconds()), nil
}

func parseSuffixedDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "d"):
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	case strings.HasSuffix(s, "w"):
		n, err := strconv.Atoi(strings.TrimSuffix(s, "w"))
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return time.ParseDuration(s)
	}
}

func addAddresses(z *Zone, owner string, data interface{}, ttl uint32, rrType uint16) error {
	values, err := stringList(data)
	if err != nil {
		return err
	}
	for _, v := range values {
		ip := net.ParseIP(v)
		if ip == nil {
			return fmt.Errorf("invalid address %q", v)
		}
		if rrType == wire.TypeA {
			if ip.To4() == nil {
				return fmt.Errorf("%q is not an IPv4 address", v)
			}
			if err := z.AddRecord(Record{Name: owner, Type: rrType, Class: wire.ClassIN, TTL: ttl, RData: rrtype.A{Address: ip.To4()}}); err != nil {
				return err
			}
		} else {
			rec, err := rrtype.NewAAAAFromString(v)
			if err != nil {
				return err
			}
			if err := z.AddRecord(Record{Name: owner, Type: rrType, Class: wire.ClassIN, TTL: ttl, RData: rec}); err != nil {
				return err
			}
		}
	}
	return nil
}

func addNames(z *Zone, owner string, data interface{}, ttl uint32, rrType uint16, origin string) error {
	values, err := stringList(data)
	if err != nil {
		return err
	}
	for _, v := range values {
		target := fullyQualify(v, origin)
		if err := z.AddRecord(Record{Name: owner, Type: rrType, Class: wire.ClassIN, TTL: ttl, RData: rrtype.NS{Target: target}}); err != nil {
			return err
		}
	}
	return nil
}

func addTXT(z *Zone, owner string, data interface{}, ttl uint32) error {
	if data == nil {
		return nil
	}
	values, err := stringList(data)
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := z.AddRecord(Record{Name: owner, Type: wire.TypeTXT, Class: wire.ClassIN, TTL: ttl, RData: rrtype.TXT{Strings: []string{v}}}); err != nil {
			return err
		}
	}
	return nil
}

func addMX(z *Zone, owner string, data interface{}, ttl uint32, origin string) error {
	if data == nil {
		return nil
	}
	items, ok := data.([]interface{})
	if !ok {
		return fmt.Errorf("invalid MX format")
	}
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return fmt.Errorf("invalid MX entry")
		}
		mx := mxYAML{}
		if p, ok := m["preference"].(int); ok {
			mx.Preference = p
		}
		if t, ok := m["exchange"].(string); ok {
			mx.Exchange = t
		}
		if err := z.AddRecord(Record{
			Name:  owner,
			Type:  wire.TypeMX,
			Class: wire.ClassIN,
			TTL:   ttl,
			RData: rrtype.MX{Preference: uint16(mx.Preference), Exchange: fullyQualify(mx.Exchange, origin)},
		}); err != nil {
			return err
		}
	}
	return nil
}

func stringList(data interface{}) ([]string, error) {
	if data == nil {
		return nil, nil
	}
	switch v := data.(type) {
	case string:
		return []string{v}, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or list of strings, got %T", data)
	}
}
