package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Structs

// Env holds information specific to the system this
// tool is deployed on. This enables host adaptions
// without needing to maintain two different config
// files. Use the .env file to keep the administrative
// credentials out of the main config.
type Env struct {
	AdminUser     string
	AdminPassword string
}

// Functions

// LoadEnv looks for an .env file at the supplied path
// and reads in all defined values.
func LoadEnv(envFile string) (*Env, error) {

	if err := godotenv.Load(envFile); err != nil {
		return nil, errors.Wrapf(err, "failed to read in .env file at '%s'", envFile)
	}

	env := new(Env)

	// Fill variables from .env into struct.
	env.AdminUser = os.Getenv("SKAFFARI_IMAP_ADMIN_USER")
	env.AdminPassword = os.Getenv("SKAFFARI_IMAP_ADMIN_PASSWORD")

	return env, nil
}

// Apply overlays non-empty values from the environment
// onto an already loaded config.
func (e *Env) Apply(conf *Config) {

	if e.AdminUser != "" {
		conf.Admin.User = e.AdminUser
	}

	if e.AdminPassword != "" {
		conf.Admin.Password = e.AdminPassword
	}
}
