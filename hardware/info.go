// Package hardware describes the contract between a motion control framework and a hardware
// system: the hardware description, the interface handles a system exports and the lifecycle
// a system goes through.
package hardware

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Standard interface names.
const (
	InterfacePosition = "position"
	InterfaceVelocity = "velocity"
	InterfaceEffort   = "effort"
)

// InterfaceInfo describes one state or command interface of a component.
type InterfaceInfo struct {
	Name         string `json:"name" yaml:"name"`
	Min          string `json:"min,omitempty" yaml:"min,omitempty"`
	Max          string `json:"max,omitempty" yaml:"max,omitempty"`
	InitialValue string `json:"initial_value,omitempty" yaml:"initial_value,omitempty"`
	DataType     string `json:"data_type,omitempty" yaml:"data_type,omitempty"`
	Size         int    `json:"size,omitempty" yaml:"size,omitempty"`
}

// ComponentInfo describes a joint, sensor or GPIO of a hardware system.
type ComponentInfo struct {
	Name              string            `json:"name" yaml:"name"`
	Type              string            `json:"type,omitempty" yaml:"type,omitempty"`
	CommandInterfaces []InterfaceInfo   `json:"command_interfaces" yaml:"command_interfaces"`
	StateInterfaces   []InterfaceInfo   `json:"state_interfaces" yaml:"state_interfaces"`
	Parameters        map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Info is the description of one hardware system.
type Info struct {
	Name       string                 `json:"name" yaml:"name"`
	Type       string                 `json:"type" yaml:"type"`
	Plugin     string                 `json:"plugin" yaml:"plugin"`
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Joints     []ComponentInfo        `json:"joints" yaml:"joints"`
	Sensors    []ComponentInfo        `json:"sensors,omitempty" yaml:"sensors,omitempty"`
}

// Parameter returns a system parameter rendered as a string.
func (info *Info) Parameter(name string) (string, bool) {
	v, ok := info.Parameters[name]
	if !ok || v == nil {
		return "", false
	}
	if s, isString := v.(string); isString {
		return s, true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// LoadInfo reads a hardware description from a JSON or YAML file. Environment variables in
// the file are expanded before decoding.
func LoadInfo(path string) (*Info, error) {
	//nolint:gosec
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "hardware description %q not found", path)
		}
		return nil, errors.Wrapf(err, "failed to read hardware description %q", path)
	}
	return ParseInfo(buf, filepath.Ext(path))
}

// ParseInfo decodes a hardware description. ext selects the format and defaults to JSON.
func ParseInfo(buf []byte, ext string) (*Info, error) {
	var info Info
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(buf, &info); err != nil {
			return nil, errors.Wrap(err, "failed to decode hardware description")
		}
	default:
		if err := json.Unmarshal(buf, &info); err != nil {
			return nil, errors.Wrap(err, "failed to decode hardware description")
		}
	}
	if info.Name == "" {
		return nil, errors.New("hardware description has no name")
	}
	return &info, nil
}
