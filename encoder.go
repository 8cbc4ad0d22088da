package main

import (
	"fmt"
	"log"
)

// Encoder maps a canonical device state to a vendor command payload: it dumps
// the non-empty canonical fields, applies per-field converters, then renames
// fields to their wire aliases.
type Encoder struct {
	SettableFields  []string
	GettableFields  []string
	FieldAliases    map[string]string
	FieldConverters map[string]func(any) any
}

// Transform renders state as a wire-ready mapping.
func (e *Encoder) Transform(state DeviceState) map[string]any {
	encoded := map[string]any{}
	for key, value := range state.Fields() {
		if converter, ok := e.FieldConverters[key]; ok {
			value = converter(value)
		}
		if alias, ok := e.FieldAliases[key]; ok {
			key = alias
		}
		encoded[key] = value
	}
	return encoded
}

// CheckCompliance verifies that every key of a state dump is settable for
// this encoder. Unknown keys are logged and make the dump non-compliant.
func (e *Encoder) CheckCompliance(stateDump map[string]any) bool {
	compliant := true
	for key := range stateDump {
		if !contains(e.SettableFields, key) {
			log.Printf("[encoder] cannot encode field %q", key)
			compliant = false
		}
	}
	return compliant
}

func contains(fields []string, key string) bool {
	for _, f := range fields {
		if f == key {
			return true
		}
	}
	return false
}

// EncoderRegistry maps device models to their encoders. Installing a second
// encoder for a model is a configuration error.
type EncoderRegistry struct {
	encoders map[*Model]*Encoder
}

func NewEncoderRegistry() *EncoderRegistry {
	return &EncoderRegistry{encoders: make(map[*Model]*Encoder)}
}

// Register installs enc for every given model.
func (r *EncoderRegistry) Register(models []*Model, enc *Encoder) error {
	for _, m := range models {
		if _, dup := r.encoders[m]; dup {
			return fmt.Errorf("encoder registry: model %s already registered", m)
		}
		r.encoders[m] = enc
	}
	return nil
}

// GetEncoder returns the encoder for model, if any.
func (r *EncoderRegistry) GetEncoder(model *Model) (*Encoder, bool) {
	enc, ok := r.encoders[model]
	return enc, ok
}

// Encode renders state through the model's encoder. Without an encoder the
// canonical dump is returned untransformed.
func (r *EncoderRegistry) Encode(model *Model, state DeviceState) map[string]any {
	enc, ok := r.GetEncoder(model)
	if !ok {
		log.Printf("[encoder] no encoder for model %s", model)
		return state.Fields()
	}
	return enc.Transform(state)
}

// CheckCompliance verifies a state dump against the model's encoder.
func (r *EncoderRegistry) CheckCompliance(model *Model, stateDump map[string]any) bool {
	enc, ok := r.GetEncoder(model)
	if !ok {
		log.Printf("[encoder] no encoder for model %s", model)
		return false
	}
	return enc.CheckCompliance(stateDump)
}

// NewDefaultEncoderRegistry installs the encoders of every supported model.
// The literal table cannot collide, so an error here is a programming mistake
// and panics.
func NewDefaultEncoderRegistry(models *Models) *EncoderRegistry {
	r := NewEncoderRegistry()
	mustRegister := func(ms []*Model, enc *Encoder) {
		if err := r.Register(ms, enc); err != nil {
			panic(err)
		}
	}
	mustRegister(
		[]*Model{models.SnMini, models.SnMiniL2, models.SnSmartPlug},
		&Encoder{
			SettableFields: []string{"state"},
			GettableFields: []string{"state"},
			FieldAliases:   map[string]string{"power": "state"},
		},
	)
	mustRegister(
		[]*Model{models.ShellyPlugS},
		&Encoder{
			SettableFields: []string{"Power"},
			GettableFields: []string{"Power"},
			FieldAliases:   map[string]string{"power": "Power"},
		},
	)
	mustRegister(
		[]*Model{models.ShellyUni},
		&Encoder{
			SettableFields: []string{"Power1", "Power2"},
			GettableFields: []string{"Power1", "Power2"},
			FieldAliases:   map[string]string{"power1": "Power1", "power2": "Power2"},
		},
	)
	mustRegister(
		[]*Model{models.NeoAlarm},
		&Encoder{
			SettableFields: []string{"alarm", "duration", "melody", "volume"},
			GettableFields: []string{},
		},
	)
	mustRegister(
		[]*Model{models.SrtsA01},
		&Encoder{
			SettableFields: []string{
				"child_lock",
				"external_temperature_input",
				"occupied_heating_setpoint",
				"preset",
				"schedule",
				"schedule_settings",
				"sensor",
				"system_mode",
				"valve_detection",
				"window_detection",
			},
			// Requesting any one field makes the thermostat dump all of them.
			GettableFields: []string{"child_lock"},
		},
	)
	return r
}
