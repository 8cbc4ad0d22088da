package main

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MockToken satisfies mqtt.Token
type MockToken struct {
	mqtt.Token
}

func (t *MockToken) Wait() bool {
	return true
}

func (t *MockToken) WaitTimeout(d time.Duration) bool {
	return true
}

func (t *MockToken) Error() error {
	return nil
}

type publishedMessage struct {
	Topic   string
	Payload []byte
}

// MockClient satisfies mqtt.Client
type MockClient struct {
	mqtt.Client
	mu        sync.Mutex
	Published []publishedMessage
}

func (m *MockClient) IsConnectionOpen() bool {
	return true
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := publishedMessage{Topic: topic}
	switch v := payload.(type) {
	case []byte:
		msg.Payload = v
	case string:
		msg.Payload = []byte(v)
	}
	m.Published = append(m.Published, msg)
	return &MockToken{}
}

func (m *MockClient) published() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedMessage(nil), m.Published...)
}

func newTestAccessor() (*DeviceAccessor, *MockClient, *Models) {
	models := NewModels()
	client := &MockClient{}
	accessor := NewDeviceAccessor(client,
		NewDefaultCommandTopicRegistry(),
		NewDefaultEncoderRegistry(models),
		NewTimerManager(),
	)
	return accessor, client, models
}

func TestTriggerGetStateZ2M(t *testing.T) {
	accessor, client, models := newTestAccessor()

	if err := accessor.TriggerGetState("office_plug", ProtocolZ2M, models.SnSmartPlug); err != nil {
		t.Fatalf("TriggerGetState failed: %v", err)
	}

	published := client.published()
	if len(published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(published))
	}
	if published[0].Topic != "zigbee2mqtt/office_plug/get" {
		t.Fatalf("unexpected topic %s", published[0].Topic)
	}
	var payload map[string]any
	if err := json.Unmarshal(published[0].Payload, &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if val, ok := payload["state"]; !ok || val != "" {
		t.Fatalf("expected {'state': ''}, got %v", payload)
	}
}

func TestTriggerGetStateTasmota(t *testing.T) {
	accessor, client, models := newTestAccessor()

	if err := accessor.TriggerGetState("garage_uni", ProtocolTasmota, models.ShellyUni); err != nil {
		t.Fatalf("TriggerGetState failed: %v", err)
	}

	published := client.published()
	if len(published) != 2 {
		t.Fatalf("expected one publish per gettable field, got %d", len(published))
	}
	topics := map[string]bool{}
	for _, p := range published {
		topics[p.Topic] = true
		if len(p.Payload) != 0 {
			t.Fatalf("tasmota get uses empty payloads, got %q", p.Payload)
		}
	}
	if !topics["cmnd/garage_uni/Power1"] || !topics["cmnd/garage_uni/Power2"] {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func TestTriggerChangeStateTasmota(t *testing.T) {
	accessor, client, _ := newTestAccessor()

	err := accessor.TriggerChangeState("garage_uni", ProtocolTasmota, map[string]any{"Power1": "ON"})
	if err != nil {
		t.Fatalf("TriggerChangeState failed: %v", err)
	}

	published := client.published()
	if len(published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(published))
	}
	if published[0].Topic != "cmnd/garage_uni/Power1" || string(published[0].Payload) != "ON" {
		t.Fatalf("unexpected publish: %+v", published[0])
	}
}

func TestTriggerChangeStateUnknownProtocol(t *testing.T) {
	accessor, _, _ := newTestAccessor()

	if err := accessor.TriggerChangeState("dev", ProtocolHomie, map[string]any{}); err == nil {
		t.Fatal("unknown protocol should fail")
	}
}

func TestSwitchPowerChangePulse(t *testing.T) {
	accessor, client, models := newTestAccessor()

	// Turn on with a short on-time: the off command must follow by itself.
	accessor.SwitchPowerChange("office_plug", ProtocolZ2M, models.SnSmartPlug,
		true, 0, 30*time.Millisecond, 0)

	waitFor(t, time.Second, func() bool { return len(client.published()) == 2 })
	published := client.published()

	var first, second map[string]any
	json.Unmarshal(published[0].Payload, &first)
	json.Unmarshal(published[1].Payload, &second)
	if first["state"] != "ON" || second["state"] != "OFF" {
		t.Fatalf("expected ON then OFF, got %v then %v", first, second)
	}
}

func TestSwitchPowerChangeCountdownReplaced(t *testing.T) {
	accessor, client, models := newTestAccessor()

	// Two deferred commands for the same device: only the second survives.
	accessor.SwitchPowerChange("office_plug", ProtocolZ2M, models.SnSmartPlug,
		true, 40*time.Millisecond, 0, 0)
	accessor.SwitchPowerChange("office_plug", ProtocolZ2M, models.SnSmartPlug,
		false, 40*time.Millisecond, 0, 0)

	time.Sleep(150 * time.Millisecond)
	published := client.published()
	if len(published) != 1 {
		t.Fatalf("expected a single surviving command, got %d", len(published))
	}
	var payload map[string]any
	json.Unmarshal(published[0].Payload, &payload)
	if payload["state"] != "OFF" {
		t.Fatalf("the later command wins, got %v", payload)
	}
}

func TestSwitchPowerChangeMultipleDevices(t *testing.T) {
	accessor, client, models := newTestAccessor()

	accessor.SwitchPowerChange("plug_a,plug_b", ProtocolZ2M, models.SnSmartPlug,
		false, 0, 0, 0)

	published := client.published()
	if len(published) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(published))
	}
	if published[0].Topic != "zigbee2mqtt/plug_a/set" || published[1].Topic != "zigbee2mqtt/plug_b/set" {
		t.Fatalf("unexpected topics: %v %v", published[0].Topic, published[1].Topic)
	}
}

func TestSwitchPowerChangeByNameUnknownDevice(t *testing.T) {
	accessor, client, _ := newTestAccessor()
	directory := NewDeviceDirectory()

	accessor.SwitchPowerChangeByName(directory, "stranger", true, 0, 0, 0)

	if len(client.published()) != 0 {
		t.Fatal("unknown device must not publish")
	}
}

func TestSwitchPowerChangeByName(t *testing.T) {
	accessor, client, models := newTestAccessor()
	directory := NewDeviceDirectory()
	directory.UpdateDevices([]*Device{
		{Name: "office_plug", Protocol: ProtocolZ2M, Model: models.SnSmartPlug},
	})

	accessor.SwitchPowerChangeByName(directory, "office_plug", true, 0, 0, 0)

	published := client.published()
	if len(published) != 1 || published[0].Topic != "zigbee2mqtt/office_plug/set" {
		t.Fatalf("unexpected publishes: %+v", published)
	}
}
