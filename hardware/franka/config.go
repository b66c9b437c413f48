package franka

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// Config holds the system parameters of the hardware description.
type Config struct {
	RobotIP        string        `json:"robot_ip"`
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.RobotIP == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "robot_ip")
	}
	if conf.ConnectTimeout < 0 {
		return goutils.NewConfigValidationError(path, errors.New("connect_timeout must not be negative"))
	}
	return nil
}

// DecodeConfig converts system parameters into a Config. Durations may be given as strings
// such as "3s" and numbers are accepted where strings are expected.
func DecodeConfig(params map[string]interface{}) (*Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &conf,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(params); err != nil {
		return nil, err
	}
	return &conf, nil
}
