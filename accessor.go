package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	DefaultOnTime  = 5 * time.Second
	DefaultOffTime = 0 * time.Second

	publishWait = 5 * time.Second
)

// DeviceAccessor encodes high-level commands into the per-vendor command
// dialect and publishes them. Timed power changes go through the timer
// manager so each device keeps a single pending action.
type DeviceAccessor struct {
	client   mqtt.Client
	commands *CommandTopicRegistry
	encoders *EncoderRegistry
	timers   *TimerManager
}

func NewDeviceAccessor(client mqtt.Client, commands *CommandTopicRegistry, encoders *EncoderRegistry, timers *TimerManager) *DeviceAccessor {
	return &DeviceAccessor{
		client:   client,
		commands: commands,
		encoders: encoders,
		timers:   timers,
	}
}

func (a *DeviceAccessor) publish(topic string, payload any) {
	token := a.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishWait) {
		log.Printf("[accessor] publish timeout on %s", topic)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("[accessor] publish failed on %s: %v", topic, err)
	}
}

// TriggerGetState publishes a state-retrieval command for the device. With no
// gettable fields for the model there is nothing to ask for.
func (a *DeviceAccessor) TriggerGetState(deviceName string, protocol Protocol, model *Model) error {
	base, err := a.commands.CommandBase(protocol)
	if err != nil {
		return err
	}
	enc, ok := a.encoders.GetEncoder(model)
	if !ok {
		log.Printf("[accessor] cannot get state for model %s", model)
		return nil
	}
	switch protocol {
	case ProtocolZ2M:
		payload := map[string]string{}
		for _, field := range enc.GettableFields {
			payload[field] = ""
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		topic := fmt.Sprintf("%s/%s/get", base, deviceName)
		log.Printf("[accessor] state retrieval on %s: %s", topic, body)
		a.publish(topic, body)
		return nil
	case ProtocolTasmota:
		for _, field := range enc.GettableFields {
			topic := fmt.Sprintf("%s/%s/%s", base, deviceName, field)
			log.Printf("[accessor] state retrieval on %s", topic)
			a.publish(topic, "")
		}
		return nil
	}
	return fmt.Errorf("get state: unknown protocol %s", protocol)
}

// TriggerChangeState publishes a state-change command built from an encoded
// state mapping.
func (a *DeviceAccessor) TriggerChangeState(deviceName string, protocol Protocol, state map[string]any) error {
	base, err := a.commands.CommandBase(protocol)
	if err != nil {
		return err
	}
	switch protocol {
	case ProtocolZ2M:
		body, err := json.Marshal(state)
		if err != nil {
			return err
		}
		topic := fmt.Sprintf("%s/%s/set", base, deviceName)
		log.Printf("[accessor] state change on %s: %s", topic, body)
		a.publish(topic, body)
		return nil
	case ProtocolTasmota:
		for key, value := range state {
			topic := fmt.Sprintf("%s/%s/%s", base, deviceName, key)
			log.Printf("[accessor] state change on %s: %v", topic, value)
			a.publish(topic, fmt.Sprintf("%v", value))
		}
		return nil
	}
	return fmt.Errorf("change state: unknown protocol %s", protocol)
}

func (a *DeviceAccessor) doSwitchPower(deviceName string, protocol Protocol, model *Model, powerOn bool) {
	log.Printf("[accessor] switching power of %s to %v", deviceName, powerOn)
	state := SwitchOff
	if powerOn {
		state = SwitchOn
	}
	if err := a.TriggerChangeState(deviceName, protocol, a.encoders.Encode(model, state)); err != nil {
		log.Printf("[accessor] switch power of %s failed: %v", deviceName, err)
	}
}

func (a *DeviceAccessor) doSwitchPowerChange(deviceName string, protocol Protocol, model *Model, powerOn bool, countdown, onTime, offTime time.Duration) {
	if countdown != 0 {
		a.timers.CreateTimer(deviceName, countdown, func() {
			a.doSwitchPowerChange(deviceName, protocol, model, powerOn, 0, onTime, offTime)
		})
		return
	}
	a.doSwitchPower(deviceName, protocol, model, powerOn)
	if powerOn && onTime > 0 {
		a.timers.CreateTimer(deviceName, onTime, func() {
			a.doSwitchPower(deviceName, protocol, model, false)
		})
	} else if !powerOn && offTime > 0 {
		a.timers.CreateTimer(deviceName, offTime, func() {
			a.doSwitchPower(deviceName, protocol, model, true)
		})
	}
}

// SwitchPowerChange changes the power state of one or more switches
// (comma-separated names). A non-zero countdown defers the whole change;
// onTime/offTime schedule the opposite transition afterwards, giving pulsed
// behavior.
func (a *DeviceAccessor) SwitchPowerChange(deviceNames string, protocol Protocol, model *Model, powerOn bool, countdown, onTime, offTime time.Duration) {
	for _, deviceName := range strings.Split(deviceNames, ",") {
		a.doSwitchPowerChange(deviceName, protocol, model, powerOn, countdown, onTime, offTime)
	}
}

// SwitchPowerChangeByName is the directory-backed variant: protocol and model
// are resolved from discovered devices. Unknown devices are logged, not an
// error; discovery must have run first.
func (a *DeviceAccessor) SwitchPowerChangeByName(directory *DeviceDirectory, deviceNames string, powerOn bool, countdown, onTime, offTime time.Duration) {
	for _, deviceName := range strings.Split(deviceNames, ",") {
		device, ok := directory.GetDevice(deviceName)
		if !ok {
			log.Printf("[accessor] device %s not found in %v", deviceName, directory.DeviceNames())
			return
		}
		a.doSwitchPowerChange(deviceName, device.Protocol, device.Model, powerOn, countdown, onTime, offTime)
	}
}
