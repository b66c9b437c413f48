package hardware

import (
	"context"
	"time"
)

// handle binds an interface name to storage owned by the hardware system. Numeric handles
// point at a float64, opaque handles return whatever the system publishes on that channel.
type handle struct {
	prefix string
	name   string
	value  *float64
	opaque func() interface{}
}

// Name is the full interface identifier "<prefix>/<interface>".
func (h handle) Name() string {
	return h.prefix + "/" + h.name
}

// Prefix is the component the interface belongs to, usually a joint name.
func (h handle) Prefix() string {
	return h.prefix
}

// Interface is the interface name without the prefix.
func (h handle) Interface() string {
	return h.name
}

// Value returns the current numeric value, or 0 for opaque handles.
func (h handle) Value() float64 {
	if h.value == nil {
		return 0
	}
	return *h.value
}

// Opaque returns the published object of an opaque handle, or nil for numeric handles.
func (h handle) Opaque() interface{} {
	if h.opaque == nil {
		return nil
	}
	return h.opaque()
}

// IsOpaque reports whether the handle publishes an object instead of a number.
func (h handle) IsOpaque() bool {
	return h.opaque != nil
}

// StateInterface is a read-only view of a value owned by the hardware system.
type StateInterface struct {
	handle
}

// NewStateInterface binds a state interface to value.
func NewStateInterface(prefix, name string, value *float64) StateInterface {
	return StateInterface{handle{prefix: prefix, name: name, value: value}}
}

// NewOpaqueStateInterface publishes the result of get on a state interface.
func NewOpaqueStateInterface(prefix, name string, get func() interface{}) StateInterface {
	return StateInterface{handle{prefix: prefix, name: name, opaque: get}}
}

// CommandInterface is a writable view of a command owned by the hardware system. Several
// command interfaces may share the same storage.
type CommandInterface struct {
	handle
}

// NewCommandInterface binds a command interface to value.
func NewCommandInterface(prefix, name string, value *float64) CommandInterface {
	return CommandInterface{handle{prefix: prefix, name: name, value: value}}
}

// SetValue writes the command.
func (c CommandInterface) SetValue(v float64) {
	if c.value != nil {
		*c.value = v
	}
}

// SystemInterface is implemented by hardware systems driven by a control loop. Read, Write and
// the mode switch calls are made from a single goroutine.
type SystemInterface interface {
	Init(ctx context.Context, info *Info) error
	ExportStateInterfaces() []StateInterface
	ExportCommandInterfaces() []CommandInterface
	Activate(ctx context.Context) error
	Deactivate(ctx context.Context) error
	Read(ctx context.Context, now time.Time, period time.Duration) error
	Write(ctx context.Context, now time.Time, period time.Duration) error
	PrepareCommandModeSwitch(start, stop []string) error
	PerformCommandModeSwitch(ctx context.Context, start, stop []string) error
	Close(ctx context.Context) error
}
