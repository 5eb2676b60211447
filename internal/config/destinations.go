package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const mappingPrefix = "SENTRY_MAPPING_"

// Destination is one tenant: a drain token with its error-tracking project
// and optional metrics credentials.
type Destination struct {
	Token       string `yaml:"token"`
	Environment string `yaml:"environment"`
	SentryDSN   string `yaml:"sentry_dsn"`

	LibratoUser  string `yaml:"librato_user,omitempty"`
	LibratoToken string `yaml:"librato_token,omitempty"`

	GraphiteAPIKey string `yaml:"graphite_api_key,omitempty"`
	// GraphiteUDPAddr switches graphite delivery from HTTP to UDP.
	GraphiteUDPAddr string `yaml:"graphite_udp_addr,omitempty"`
}

func (d Destination) HasLibrato() bool {
	return d.LibratoUser != "" && d.LibratoToken != ""
}

func (d Destination) HasGraphite() bool {
	return d.GraphiteAPIKey != ""
}

// ShortToken is safe to log.
func (d Destination) ShortToken() string {
	if len(d.Token) <= 8 {
		return d.Token
	}
	return d.Token[:8] + "…"
}

func (d Destination) Validate() error {
	if d.Token == "" {
		return errors.New("destination without drain token")
	}
	if d.SentryDSN == "" {
		return fmt.Errorf("destination %s: sentry dsn is required", d.ShortToken())
	}
	if (d.LibratoUser == "") != (d.LibratoToken == "") {
		return fmt.Errorf("destination %s: librato needs both user and token", d.ShortToken())
	}
	if d.GraphiteUDPAddr != "" && d.GraphiteAPIKey == "" {
		return fmt.Errorf("destination %s: graphite udp address without api key", d.ShortToken())
	}
	return nil
}

// ParseMapping reads "token|environment|dsn[|librato_user|librato_token|graphite_api_key]".
func ParseMapping(value string) (Destination, error) {
	pieces := strings.Split(strings.TrimSpace(value), "|")
	if len(pieces) < 3 {
		return Destination{}, fmt.Errorf("mapping has %d fields, want at least 3", len(pieces))
	}
	for i := range pieces {
		pieces[i] = strings.TrimSpace(pieces[i])
	}
	d := Destination{
		Token:       pieces[0],
		Environment: pieces[1],
		SentryDSN:   pieces[2],
	}
	if len(pieces) > 3 {
		d.LibratoUser = pieces[3]
	}
	if len(pieces) > 4 {
		d.LibratoToken = pieces[4]
	}
	if len(pieces) > 5 {
		d.GraphiteAPIKey = pieces[5]
	}
	return d, nil
}

// DestinationsFromEnviron collects every SENTRY_MAPPING_* entry of environ,
// ordered by variable name.
func DestinationsFromEnviron(environ []string) ([]Destination, error) {
	var names []string
	values := make(map[string]string)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, mappingPrefix) {
			continue
		}
		names = append(names, name)
		values[name] = value
	}
	sort.Strings(names)

	out := make([]Destination, 0, len(names))
	for _, name := range names {
		d, err := ParseMapping(values[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, d)
	}
	return out, nil
}

type destinationsFile struct {
	Destinations []Destination `yaml:"destinations"`
}

func LoadDestinationsFile(path string) ([]Destination, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read destinations file: %w", err)
	}
	var f destinationsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse destinations file %s: %w", path, err)
	}
	return f.Destinations, nil
}
