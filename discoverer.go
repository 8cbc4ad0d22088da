package main

import "log"

// Discoverer handles discovery messages: it registers the announced devices
// in the directory and refines the message into a DiscoveryRegistry listing
// their names.
type Discoverer struct {
	directory *DeviceDirectory
	models    *Models
}

func NewDiscoverer(directory *DeviceDirectory, models *Models) *Discoverer {
	return &Discoverer{directory: directory, models: models}
}

// Zigbee device roles included in discovery; the coordinator and bridges are
// not devices of interest.
var z2mDeviceTypes = map[string]bool{
	"EndDevice": true,
	"Router":    true,
}

// Process dispatches on the message's protocol. A malformed announcement is
// fatal for the message, not for the pipeline.
func (d *Discoverer) Process(msg *Message) (*Message, error) {
	if msg.Type != TypeDiscovery {
		return nil, decodingErrorf("not a discovery message: %s", msg.Type)
	}
	msg.Model = d.models.None
	switch msg.Protocol {
	case ProtocolZ2M:
		return d.discoverZ2M(msg)
	case ProtocolTasmota:
		return d.discoverTasmota(msg)
	default:
		log.Printf("[discoverer] unknown protocol %s for %s", msg.Protocol, msg.DeviceName)
		return msg, nil
	}
}

// discoverZ2M handles the zigbee2mqtt bridge/devices broadcast: a JSON array
// of device descriptors. End devices and routers are registered in one pass;
// the refined registry lists the same names.
func (d *Discoverer) discoverZ2M(msg *Message) (*Message, error) {
	entries, ok := msg.Raw.Data.([]any)
	if !ok {
		return nil, decodingErrorf("z2m discovery for %s: expected array, got %T", msg.DeviceName, msg.Raw.Data)
	}
	var devices []*Device
	var names []string
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, decodingErrorf("z2m discovery for %s: expected object entry, got %T", msg.DeviceName, raw)
		}
		entryType, _ := entry["type"].(string)
		if !z2mDeviceTypes[entryType] {
			continue
		}
		name, _ := entry["friendly_name"].(string)
		if name == "" {
			continue
		}
		address, _ := entry["ieee_address"].(string)
		modelTag := ""
		if definition, ok := entry["definition"].(map[string]any); ok {
			modelTag, _ = definition["model"].(string)
		}
		devices = append(devices, &Device{
			Name:     name,
			Protocol: ProtocolZ2M,
			Address:  address,
			Model:    d.models.FromTag(modelTag),
		})
		names = append(names, name)
	}
	d.directory.UpdateDevices(devices)
	msg.Refined = &DiscoveryRegistry{DeviceNames: names}
	return msg, nil
}

// discoverTasmota handles a tasmota/discovery/.../config object carrying the
// device name (t), host (hn) and model string (md).
func (d *Discoverer) discoverTasmota(msg *Message) (*Message, error) {
	data, ok := msg.Raw.Data.(map[string]any)
	if !ok {
		return nil, decodingErrorf("tasmota discovery for %s: expected object, got %T", msg.DeviceName, msg.Raw.Data)
	}
	name, nameOK := data["t"].(string)
	address, addrOK := data["hn"].(string)
	modelTag, modelOK := data["md"].(string)
	if !nameOK || !addrOK || !modelOK {
		return nil, decodingErrorf("tasmota discovery for %s: missing t/hn/md", msg.DeviceName)
	}
	d.directory.UpdateDevices([]*Device{{
		Name:     name,
		Protocol: ProtocolTasmota,
		Address:  address,
		Model:    d.models.FromTag(modelTag),
	}})
	msg.Refined = &DiscoveryRegistry{DeviceNames: []string{name}}
	return msg, nil
}
