package main

import "testing"

func TestEncoderTransformAliases(t *testing.T) {
	models := NewModels()
	r := NewDefaultEncoderRegistry(models)

	encoded := r.Encode(models.SnSmartPlug, SwitchOn)
	if len(encoded) != 1 || encoded["state"] != "ON" {
		t.Fatalf("expected {state: ON}, got %v", encoded)
	}

	encoded = r.Encode(models.ShellyPlugS, SwitchOff)
	if len(encoded) != 1 || encoded["Power"] != "OFF" {
		t.Fatalf("expected {Power: OFF}, got %v", encoded)
	}

	encoded = r.Encode(models.ShellyUni, &Switch2Channels{Power1: PowerOn, Power2: PowerOff})
	if encoded["Power1"] != "ON" || encoded["Power2"] != "OFF" {
		t.Fatalf("expected both channels aliased, got %v", encoded)
	}
}

func TestEncoderTransformConverters(t *testing.T) {
	enc := &Encoder{
		FieldConverters: map[string]func(any) any{
			"power": func(v any) any {
				if v == "ON" {
					return 1
				}
				return 0
			},
		},
	}
	encoded := enc.Transform(SwitchOn)
	if encoded["power"] != 1 {
		t.Fatalf("converter not applied: %v", encoded)
	}
}

func TestEncoderCompliance(t *testing.T) {
	models := NewModels()
	r := NewDefaultEncoderRegistry(models)

	duration := 30
	volume := VolumeHigh
	alarm := true
	dump := (&Alarm{Alarm: &alarm, Duration: &duration, Volume: volume}).Fields()
	if !r.CheckCompliance(models.NeoAlarm, dump) {
		t.Fatal("alarm fields should be settable")
	}

	batteryLow := true
	dump = (&Alarm{BatteryLow: &batteryLow}).Fields()
	if r.CheckCompliance(models.NeoAlarm, dump) {
		t.Fatal("battery_low is read-only and must fail compliance")
	}

	if r.CheckCompliance(models.Miflora, map[string]any{}) {
		t.Fatal("model without encoder must fail compliance")
	}
}

func TestEncoderRegistryFallback(t *testing.T) {
	models := NewModels()
	r := NewDefaultEncoderRegistry(models)

	// No encoder: the canonical dump passes through untransformed.
	encoded := r.Encode(models.Unknown, SwitchOn)
	if encoded["power"] != "ON" {
		t.Fatalf("expected raw canonical dump, got %v", encoded)
	}
}

func TestEncoderRegistryDuplicate(t *testing.T) {
	models := NewModels()
	r := NewEncoderRegistry()
	if err := r.Register([]*Model{models.SnMini}, &Encoder{}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.Register([]*Model{models.SnMini}, &Encoder{}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}
