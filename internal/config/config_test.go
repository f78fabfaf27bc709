package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInit(t *testing.T) {
	Init("testdata/config.json")

	assert.Equal(t, "nats://localhost:4222", Keys.Nats.Address)
	assert.Equal(t, "telemetry.bdcl", Keys.Nats.BDCLSubject)
	assert.Equal(t, "ws://dcm.local", Keys.DCM.BaseURL)
	assert.Equal(t, 5000, Keys.DCM.OutboundQueueLimit)
	assert.Equal(t, "debug", Keys.LogLevel)
	// MetricsListenAddr isn't set in the fixture: the package-level
	// default must survive a Decode that never touches the field.
	assert.Equal(t, ":9090", Keys.MetricsListenAddr)
}

func TestDCMReconnectDuration(t *testing.T) {
	c := DCMConfig{ReconnectInterval: "2s"}
	assert.Equal(t, 2*time.Second, c.ReconnectDuration())

	bad := DCMConfig{ReconnectInterval: "not-a-duration"}
	assert.Equal(t, time.Second, bad.ReconnectDuration())

	empty := DCMConfig{}
	assert.Equal(t, time.Second, empty.ReconnectDuration())
}

func TestBLERTLSRereadDuration(t *testing.T) {
	c := BLERTLSConfig{RereadInterval: "10s"}
	assert.Equal(t, 10*time.Second, c.RereadDuration())

	empty := BLERTLSConfig{}
	assert.Equal(t, 5*time.Second, empty.RereadDuration())
}
