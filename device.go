package main

import "sync"

// Protocol identifies the wire convention a device speaks.
type Protocol string

const (
	ProtocolDefault Protocol = "default"
	ProtocolHomie   Protocol = "Homie"
	ProtocolRing    Protocol = "Ring"
	ProtocolShelly  Protocol = "Shelly"
	ProtocolTasmota Protocol = "Tasmota"
	ProtocolZ2M     Protocol = "Zigbee2MQTT"
	ProtocolZ2T     Protocol = "Zigbee2Tasmota"
)

// Model is an interned device-type identifier. Two lookups of the same tag
// through a ModelRegistry return the same *Model, so identity comparison is
// safe everywhere models are used as map keys or table entries.
type Model struct {
	tag string
}

// Tag returns the raw model tag as it appears on the wire.
func (m *Model) Tag() string {
	if m == nil {
		return ""
	}
	return m.tag
}

func (m *Model) String() string {
	return m.Tag()
}

// ModelRegistry interns Model instances by tag (case-sensitive).
type ModelRegistry struct {
	mu     sync.Mutex
	models map[string]*Model
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{models: make(map[string]*Model)}
}

// Get returns the interned Model for tag, creating it on first use.
func (r *ModelRegistry) Get(tag string) *Model {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.models[tag]; ok {
		return m
	}
	m := &Model{tag: tag}
	r.models[tag] = m
	return m
}

// Wire tags of the recognised device models. The vendor strings come from the
// zigbee2mqtt device database and Tasmota discovery signatures.
const (
	TagMiflora     = "Miflora"
	TagNeoAlarm    = "NAS-AB02B2"
	TagRingCamera  = "RingCamera"
	TagShellyPlugS = "Shelly Plug S"
	TagShellyUni   = "Shelly Uni"
	TagSrtsA01     = "SRTS-A01"
	TagTuyaSoil    = "TS0601_soil"
	TagSnAirsensor = "SNZB-02"
	TagSnButton    = "SNZB-01"
	TagSnMotion    = "SNZB-03"
	TagSnMini      = "ZBMINI-L"
	TagSnMiniL2    = "ZBMINIL2"
	TagSnSmartPlug = "S26R2ZB"
	TagSnZbBridge  = "Sonoff ZbBridge"
)

// Models groups the interned instances of every recognised model plus the
// None/Unknown sentinels. One instance is created by the composition root and
// shared by the normalizer, the encoder registry and the discoverer.
type Models struct {
	Registry *ModelRegistry

	// None marks discovery messages, Unknown marks unmapped tags.
	None    *Model
	Unknown *Model

	Miflora     *Model
	NeoAlarm    *Model
	RingCamera  *Model
	ShellyPlugS *Model
	ShellyUni   *Model
	SrtsA01     *Model
	TuyaSoil    *Model
	SnAirsensor *Model
	SnButton    *Model
	SnMotion    *Model
	SnMini      *Model
	SnMiniL2    *Model
	SnSmartPlug *Model
	SnZbBridge  *Model
}

func NewModels() *Models {
	r := NewModelRegistry()
	return &Models{
		Registry:    r,
		None:        r.Get("NONE"),
		Unknown:     r.Get("UNKNOWN"),
		Miflora:     r.Get(TagMiflora),
		NeoAlarm:    r.Get(TagNeoAlarm),
		RingCamera:  r.Get(TagRingCamera),
		ShellyPlugS: r.Get(TagShellyPlugS),
		ShellyUni:   r.Get(TagShellyUni),
		SrtsA01:     r.Get(TagSrtsA01),
		TuyaSoil:    r.Get(TagTuyaSoil),
		SnAirsensor: r.Get(TagSnAirsensor),
		SnButton:    r.Get(TagSnButton),
		SnMotion:    r.Get(TagSnMotion),
		SnMini:      r.Get(TagSnMini),
		SnMiniL2:    r.Get(TagSnMiniL2),
		SnSmartPlug: r.Get(TagSnSmartPlug),
		SnZbBridge:  r.Get(TagSnZbBridge),
	}
}

// FromTag interns the given wire tag, or returns Unknown for an empty tag.
func (m *Models) FromTag(tag string) *Model {
	if tag == "" {
		return m.Unknown
	}
	return m.Registry.Get(tag)
}

// Device is a single entry of the device directory. Name and Protocol never
// change after discovery; Address and Model may be absent.
type Device struct {
	Name     string   `json:"name"`
	Protocol Protocol `json:"protocol"`
	Address  string   `json:"address,omitempty"`
	Model    *Model   `json:"-"`
}
