// Copyright 2026 Tiler Labs. All rights reserved.

// Package driver defines the interfaces of a userspace driver
// for tile-based rasterizer GPUs.
// It is designed so that kernel-specific backends can be
// implemented in a mostly straightforward manner.
package driver

import (
	"errors"
	"log"
	"sync"
)

// Driver is the interface that provides methods for
// loading and unloading an underlying implementation.
type Driver interface {
	// Open initializes the driver.
	// If it succeeds, further calls with the same receiver
	// have no effect and must return the same GPU instance.
	// Callers should assume that Open is not safe for
	// parallel execution.
	Open() (GPU, error)

	// Name returns the name of the driver.
	// It must not cause the driver to be opened.
	Name() string

	// Close deinitializes the driver.
	// Closing a driver that is not open has no effect.
	// Callers should assume that Close is not safe for
	// parallel execution.
	Close()
}

// ErrNotInstalled means that a kernel interface required for
// the driver to work is not present in the system.
var ErrNotInstalled = errors.New("driver: missing required kernel interface")

// ErrNoDevice means that no suitable device could be
// found.
var ErrNoDevice = errors.New("driver: no suitable device found")

// ErrNoHostMemory means that host memory could not be
// allocated.
var ErrNoHostMemory = errors.New("driver: out of host memory")

// ErrNoDeviceMemory means that device memory could not
// be allocated.
var ErrNoDeviceMemory = errors.New("driver: out of device memory")

// ErrInitFailed means that a device-level object could not
// be initialized.
var ErrInitFailed = errors.New("driver: initialization failed")

// ErrDeviceLost means that the device has stopped consuming
// work. Upon encountering such an error, the application
// must destroy everything that it created using the driver's
// GPU and then call the Close method. It may call Open again
// to reinitialize the driver for further use.
var ErrDeviceLost = errors.New("driver: device lost")

// ErrMMapFailed means that device memory could not be
// mapped into the host address space.
var ErrMMapFailed = errors.New("driver: memory map failed")

// ErrTooManyObjects means that an object count limit was
// reached.
var ErrTooManyObjects = errors.New("driver: too many objects")

// ErrExternalHandle means that an imported or exported
// handle is not valid.
var ErrExternalHandle = errors.New("driver: invalid external handle")

// ErrNoFormat means that a pixel format is not supported
// for the requested use.
var ErrNoFormat = errors.New("driver: format not supported")

// ErrNoLayer means that a requested layer is not present.
var ErrNoLayer = errors.New("driver: layer not present")

// ErrNoExtension means that a requested extension is not
// present.
var ErrNoExtension = errors.New("driver: extension not present")

// ErrNotReady means that a non-blocking query completed
// before the queried operation did.
var ErrNotReady = errors.New("driver: not ready")

// ErrTimeout means that a wait expired before the awaited
// operation completed.
var ErrTimeout = errors.New("driver: timeout")

// ErrIncomplete means that a destination buffer was too
// small to receive the whole result.
var ErrIncomplete = errors.New("driver: incomplete")

// Drivers returns the registered Drivers.
// Client code imports specific driver packages, and then
// call this function from init. As such, drivers that do
// not register themselves on init will not be considered
// for selection.
func Drivers() []Driver {
	mu.Lock()
	defer mu.Unlock()
	drv := make([]Driver, len(drivers))
	copy(drv, drivers)
	return drv
}

// Register registers a Driver.
// Driver implementations are expected to call Register
// exactly once, from an init function.
// If a driver with the same name has already been
// registered, it will be replaced by drv.
func Register(drv Driver) {
	mu.Lock()
	defer mu.Unlock()
	for i := range drivers {
		if drivers[i].Name() == drv.Name() {
			drivers[i] = drv
			log.Printf("[!] driver '%s' replaced", drv.Name())
			return
		}
	}
	drivers = append(drivers, drv)
	log.Printf("driver '%s' registered", drv.Name())
}

// Variables used for driver registration.
var (
	// NOTE: Currently, this mutex is unnecessary.
	mu      sync.Mutex
	drivers []Driver = make([]Driver, 0, 1)
)
