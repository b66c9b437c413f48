package control

import (
	"sort"

	"github.com/samber/lo"

	"github.com/frankahw/frankahw/hardware"
)

// Interfaces indexes the exported interfaces of a system by full name and tracks which command
// interfaces are claimed. It is only used from the loop goroutine.
type Interfaces struct {
	states   map[string]hardware.StateInterface
	commands map[string]hardware.CommandInterface
	claimed  map[string]bool
}

func newInterfaces(states []hardware.StateInterface, commands []hardware.CommandInterface) *Interfaces {
	return &Interfaces{
		states:   lo.KeyBy(states, func(s hardware.StateInterface) string { return s.Name() }),
		commands: lo.KeyBy(commands, func(c hardware.CommandInterface) string { return c.Name() }),
		claimed:  map[string]bool{},
	}
}

// State returns the named state interface.
func (ifaces *Interfaces) State(name string) (hardware.StateInterface, bool) {
	s, ok := ifaces.states[name]
	return s, ok
}

// Command returns the named command interface.
func (ifaces *Interfaces) Command(name string) (hardware.CommandInterface, bool) {
	c, ok := ifaces.commands[name]
	return c, ok
}

// StateNames returns all state interface names, sorted.
func (ifaces *Interfaces) StateNames() []string {
	names := lo.Keys(ifaces.states)
	sort.Strings(names)
	return names
}

// CommandNames returns all command interface names, sorted.
func (ifaces *Interfaces) CommandNames() []string {
	names := lo.Keys(ifaces.commands)
	sort.Strings(names)
	return names
}

// IsClaimed reports whether the named command interface is claimed.
func (ifaces *Interfaces) IsClaimed(name string) bool {
	return ifaces.claimed[name]
}

// Claimed returns the claimed command interface names, sorted.
func (ifaces *Interfaces) Claimed() []string {
	names := lo.Keys(ifaces.claimed)
	sort.Strings(names)
	return names
}

func (ifaces *Interfaces) claim(names []string) {
	for _, name := range names {
		if _, ok := ifaces.commands[name]; ok {
			ifaces.claimed[name] = true
		}
	}
}

func (ifaces *Interfaces) release(names []string) {
	for _, name := range names {
		delete(ifaces.claimed, name)
	}
}
