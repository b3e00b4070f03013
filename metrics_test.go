package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClientMetrics(t *testing.T) {
	metrics := NewClientMetrics("")
	assert.NotNil(t, metrics.Session.Logins)
	assert.NotNil(t, metrics.Session.Logouts)
	assert.NotNil(t, metrics.Session.Commands)

	metrics = NewClientMetrics(":9099")
	assert.NotNil(t, metrics.Session.Logins)
	assert.NotNil(t, metrics.Session.Logouts)
	assert.NotNil(t, metrics.Session.Commands)
}
