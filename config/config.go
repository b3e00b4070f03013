package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Structs

// Config holds all information parsed from
// supplied config file.
type Config struct {
	Server  Server
	Admin   Admin
	IMAP    IMAP
	Metrics Metrics
}

// Server describes how to reach the IMAP server that
// mailboxes are provisioned on.
type Server struct {
	Host        string
	Port        uint16
	Protocol    string
	Encryption  string
	PeerName    string
	RootCertLoc string
	TimeoutMs   int
}

// Admin carries the administrative IMAP account used
// for provisioning. The password is usually left empty
// here and supplied via the .env file instead.
type Admin struct {
	User      string
	Password  string
	Mechanism string
}

// IMAP bundles protocol level settings such as the
// hierarchy separator style and the folders created
// for every new account.
type IMAP struct {
	UnixHierarchySep bool
	DefaultFolders   []Folder
}

// Folder is one default folder to create below INBOX
// of a fresh account, optionally carrying a special-use
// attribute such as \Drafts or \Trash.
type Folder struct {
	Name       string
	SpecialUse string
}

// Metrics configures the optional exposure of
// prometheus metrics.
type Metrics struct {
	PrometheusAddr string
}

// Functions

// LoadConfig takes in the path to the main config file
// in TOML syntax, places the values from the file in the
// corresponding struct and validates them.
func LoadConfig(configFile string) (*Config, error) {

	conf := new(Config)

	// Parse values from TOML file into struct.
	if _, err := toml.DecodeFile(configFile, conf); err != nil {
		return nil, errors.Wrapf(err, "failed to read in TOML config file at '%s'", configFile)
	}

	if conf.Server.Host == "" {
		return nil, fmt.Errorf("config at '%s' does not name an IMAP server host", configFile)
	}

	if conf.Admin.User == "" {
		return nil, fmt.Errorf("config at '%s' does not name an administrative IMAP user", configFile)
	}

	conf.Server.Protocol = strings.ToLower(conf.Server.Protocol)
	switch conf.Server.Protocol {
	case "", "any":
		conf.Server.Protocol = "any"
	case "ipv4", "ipv6":
	default:
		return nil, fmt.Errorf("unknown network protocol preference '%s', use 'any', 'ipv4' or 'ipv6'", conf.Server.Protocol)
	}

	conf.Server.Encryption = strings.ToLower(conf.Server.Encryption)
	switch conf.Server.Encryption {
	case "", "starttls":
		conf.Server.Encryption = "starttls"
	case "none", "tls":
	default:
		return nil, fmt.Errorf("unknown encryption mode '%s', use 'none', 'starttls' or 'tls'", conf.Server.Encryption)
	}

	// Ports differ between the plain/STARTTLS and the
	// implicit TLS service.
	if conf.Server.Port == 0 {

		if conf.Server.Encryption == "tls" {
			conf.Server.Port = 993
		} else {
			conf.Server.Port = 143
		}
	}

	if conf.Server.TimeoutMs <= 0 {
		conf.Server.TimeoutMs = 30000
	}

	return conf, nil
}
