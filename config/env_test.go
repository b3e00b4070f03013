package config_test

import (
	"testing"

	"github.com/huessenbergnetz/skaffari-imap/config"
)

// Functions

// TestLoadEnv executes a black-box test on the
// implemented functionalities to load a .env file.
func TestLoadEnv(t *testing.T) {

	env, err := config.LoadEnv("test.env")
	if err != nil {
		t.Fatalf("[config.TestLoadEnv] Expected success while loading test.env but received: '%s'\n", err.Error())
	}

	// Check for test success.
	if env.AdminPassword != "works" {
		t.Fatalf("[config.TestLoadEnv] Expected '%s' but received '%s'\n", "works", env.AdminPassword)
	}

	// Overlaying the environment onto a config must
	// replace the credentials.
	conf := &config.Config{}
	env.Apply(conf)

	if conf.Admin.User != "admin" || conf.Admin.Password != "works" {
		t.Fatalf("[config.TestLoadEnv] Environment overlay did not replace admin credentials: '%s'/'%s'\n", conf.Admin.User, conf.Admin.Password)
	}
}
