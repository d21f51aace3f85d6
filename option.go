package bthost

import (
	"time"
)

// AdapterOption is the configuration surface an adapter implementation
// exposes to the option constructors below.
type AdapterOption interface {
	SetTransportHCISocket(id int) error
	SetTransportH4Socket(addr string, timeout time.Duration) error
	SetTransportH4Uart(path string) error
	SetBondStorePath(path string) error
	SetLocalName(name string) error
	SetDeviceClass(class DeviceClass) error
	SetErrorHandler(handler func(error)) error
}

// An Option is a configuration function, which configures the adapter.
type Option func(AdapterOption) error

// OptTransportHCISocket set hci socket transport
func OptTransportHCISocket(id int) Option {
	return func(opt AdapterOption) error {
		return opt.SetTransportHCISocket(id)
	}
}

// OptTransportH4Socket set h4 socket transport
func OptTransportH4Socket(addr string, timeout time.Duration) Option {
	return func(opt AdapterOption) error {
		return opt.SetTransportH4Socket(addr, timeout)
	}
}

// OptTransportH4Uart set h4 uart transport
func OptTransportH4Uart(path string) Option {
	return func(opt AdapterOption) error {
		return opt.SetTransportH4Uart(path)
	}
}

// OptBondStorePath sets the file backing the bond store.
func OptBondStorePath(path string) Option {
	return func(opt AdapterOption) error {
		return opt.SetBondStorePath(path)
	}
}

// OptLocalName sets the initial local name.
func OptLocalName(name string) Option {
	return func(opt AdapterOption) error {
		return opt.SetLocalName(name)
	}
}

// OptDeviceClass sets the initial class of device.
func OptDeviceClass(class DeviceClass) Option {
	return func(opt AdapterOption) error {
		return opt.SetDeviceClass(class)
	}
}

// OptErrorHandler sets error handler
func OptErrorHandler(handler func(error)) Option {
	return func(opt AdapterOption) error {
		return opt.SetErrorHandler(handler)
	}
}
