package mqtt

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"intercom/pkg/call"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/womat/debug"
)

func TestMain(m *testing.M) {
	debug.SetDebug(os.Stderr, debug.Standard)
	os.Exit(m.Run())
}

func TestObserver(t *testing.T) {
	m := New()
	m.Observer("intercom/state")(call.Idle, call.IncomingCall)

	require.Len(t, m.C, 1)
	msg := <-m.C
	assert.Equal(t, "intercom/state", msg.Topic)
	assert.True(t, msg.Retained)

	var e map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Payload, &e))
	assert.Equal(t, "Idle", e["from"])
	assert.Equal(t, "IncomingCall", e["state"])
	assert.Contains(t, e, "time")
}

func TestObserverWithoutTopic(t *testing.T) {
	m := New()
	m.Observer("")(call.Idle, call.OutgoingCall)
	assert.Empty(t, m.C)
}

func TestObserverDropsWhenFull(t *testing.T) {
	m := New()
	o := m.Observer("intercom/state")

	for i := 0; i < queueSize+5; i++ {
		o(call.Idle, call.OutgoingCall)
	}
	assert.Len(t, m.C, queueSize)
}

func TestConnectWithoutBroker(t *testing.T) {
	m := New()
	require.NoError(t, m.Connect("", "intercom"))
	assert.Nil(t, m.client)
}

func TestServiceWithoutClient(t *testing.T) {
	m := New()
	done := make(chan struct{})
	go func() {
		m.Service()
		close(done)
	}()

	m.Observer("intercom/state")(call.Idle, call.OutgoingCall)
	m.Disconnect()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("service didn't stop")
	}
}
