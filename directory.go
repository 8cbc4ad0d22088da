package main

import "sync"

// DeviceDirectory is the process-wide name → Device map. The Discoverer is
// its only writer (the start-up restore path excepted); the resolver and the
// accessor read it.
type DeviceDirectory struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

func NewDeviceDirectory() *DeviceDirectory {
	return &DeviceDirectory{devices: make(map[string]*Device)}
}

// UpdateDevices inserts or overwrites directory entries. Re-discovery of a
// known device is an idempotent overwrite.
func (d *DeviceDirectory) UpdateDevices(devices []*Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, dev := range devices {
		if dev == nil || dev.Name == "" {
			continue
		}
		d.devices[dev.Name] = dev
	}
}

// GetDevice looks up a device by name.
func (d *DeviceDirectory) GetDevice(name string) (*Device, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dev, ok := d.devices[name]
	return dev, ok
}

// Devices returns a snapshot of all entries; the returned structs are copies
// and safe to mutate.
func (d *DeviceDirectory) Devices() []*Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Device, 0, len(d.devices))
	for _, dev := range d.devices {
		clone := *dev
		out = append(out, &clone)
	}
	return out
}

// DeviceNames returns the names of all known devices.
func (d *DeviceDirectory) DeviceNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.devices))
	for name := range d.devices {
		names = append(names, name)
	}
	return names
}

// Len reports the number of known devices.
func (d *DeviceDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.devices)
}
