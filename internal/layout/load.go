package layout

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Load reads a layout from a JSON or YAML file. Semaphores without durations
// fall back to the default green/red durations.
func Load(path string) (*Layout, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("size", 24)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading layout file: %w", err)
	}

	l := &Layout{}
	err := v.Unmarshal(l, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("error decoding layout file: %w", err)
	}

	for i := range l.Semaphores {
		s := &l.Semaphores[i]
		if s.GreenDuration == 0 {
			s.GreenDuration = DefaultGreenDuration
		}
		if s.RedDuration == 0 {
			s.RedDuration = DefaultRedDuration
		}
	}
	return l, nil
}
