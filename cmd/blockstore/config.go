package main

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type config struct {
	Title      string
	Log        logConfig
	Blocklists map[string]blocklist
	Resolvers  map[string]resolver
	Listeners  map[string]listener
	Admin      admin
}

type logConfig struct {
	Level  string
	Syslog *syslogConfig
}

type syslogConfig struct {
	Network string
	Address string
	Tag     string
}

type blocklist struct {
	Source       string // "file", "http" or "static"
	Location     string
	Rules        []string
	AllowFailure bool `toml:"allow-failure"`
}

type resolver struct {
	Address  string
	Protocol string
}

type listener struct {
	Address           string
	Protocol          string
	Resolver          string
	BlocklistResolver string   `toml:"blocklist-resolver"`
	AllowedNet        []string `toml:"allowed-net"`
}

type admin struct {
	Address    string
	CA         string
	ServerKey  string   `toml:"server-key"`
	ServerCrt  string   `toml:"server-crt"`
	MutualTLS  bool     `toml:"mutual-tls"`
	AllowedNet []string `toml:"allowed-net"`
	AllowLoad  bool     `toml:"allow-load"`
}

// loadConfig reads a config file and returns the decoded structure.
func loadConfig(name string) (config, error) {
	var c config
	md, err := toml.DecodeFile(name, &c)
	if err != nil {
		return c, errors.Wrapf(err, "failed to read config '%s'", name)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return c, errors.Errorf("unknown keys in config '%s': %v", name, undecoded)
	}
	return c, nil
}
