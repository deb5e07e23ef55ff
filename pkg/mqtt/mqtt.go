// Package mqtt publishes the call state of the intercom to a mqtt broker.
package mqtt

import (
	"encoding/json"
	"time"

	"intercom/pkg/call"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"
)

const (
	// quiesce is the number of milliseconds to wait for existing work to be completed on disconnect.
	quiesce = 250
	// queueSize is the number of messages which can wait for the service.
	queueSize = 16
	// connectTimeout limits a (re)connect to the broker.
	connectTimeout = 5 * time.Second
)

// Handler contains the client of the mqtt broker.
type Handler struct {
	client mqttlib.Client
	// C is the channel to service the mqtt messages,
	// sending a message to channel C will publish the message.
	C chan Message
}

// Message contains the properties of the mqtt message.
type Message struct {
	Topic    string
	Payload  []byte
	Qos      byte
	Retained bool
}

// Event is the payload of a state change message.
type Event struct {
	From  call.State `json:"from"`
	State call.State `json:"state"`
	Time  time.Time  `json:"time"`
}

// New returns a handler without connection, messages are dropped until Connect is called.
func New() *Handler {
	return &Handler{
		C: make(chan Message, queueSize),
	}
}

// Connect connects to the mqtt broker.
// If no broker is defined, no mqtt messages are sent.
func (m *Handler) Connect(broker, clientID string) error {
	if broker == "" {
		return nil
	}

	opts := mqttlib.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false)
	m.client = mqttlib.NewClient(opts)
	return m.reconnect()
}

func (m *Handler) reconnect() error {
	t := m.client.Connect()
	if !t.WaitTimeout(connectTimeout) {
		return mqttlib.ErrNotConnected
	}
	return t.Error()
}

// Disconnect ends the connection to the broker and stops the service.
func (m *Handler) Disconnect() {
	close(m.C)
	if m.client == nil {
		return
	}

	m.client.Disconnect(quiesce)
}

// Observer returns a function which publishes every change of the call state as retained Event to topic.
// The function never blocks, a message is dropped if the queue is full.
func (m *Handler) Observer(topic string) func(from, to call.State) {
	return func(from, to call.State) {
		if topic == "" {
			return
		}

		b, err := json.Marshal(Event{From: from, State: to, Time: time.Now()})
		if err != nil {
			debug.ErrorLog.Printf("mqtt event: %v", err)
			return
		}

		select {
		case m.C <- Message{Topic: topic, Payload: b, Qos: 1, Retained: true}:
		default:
			debug.ErrorLog.Printf("mqtt queue is full, drop state %v", to)
		}
	}
}

// Service listens to messages on the channel C and publishes them.
// If no client or topic is defined, the message is ignored. Service returns when C is closed.
func (m *Handler) Service() {
	for msg := range m.C {
		if m.client == nil || msg.Topic == "" {
			continue
		}

		if !m.client.IsConnected() {
			debug.DebugLog.Print("mqtt broker isn't connected, reconnect it")

			if err := m.reconnect(); err != nil {
				debug.ErrorLog.Printf("can't reconnect to mqtt broker: %v", err)
				continue
			}
		}

		debug.DebugLog.Printf("publishing %v bytes to topic %v", len(msg.Payload), msg.Topic)
		t := m.client.Publish(msg.Topic, msg.Qos, msg.Retained, msg.Payload)

		go func(topic string) {
			<-t.Done()
			if err := t.Error(); err != nil {
				debug.ErrorLog.Printf("publishing topic %v: %v", topic, err)
			}
		}(msg.Topic)
	}
}
