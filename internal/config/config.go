// Package config exposes the Viper configuration to modules as plugin.Config
// views scoped to a key prefix.
package config

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

var _ plugin.Config = (*Config)(nil)

// Config reads keys below prefix from a shared Viper instance. Scoping by
// prefix rather than viper.Sub keeps PM_* environment overrides visible to
// modules.
type Config struct {
	v      *viper.Viper
	prefix string
}

// New returns the root view of v. A nil instance yields an empty config.
func New(v *viper.Viper) *Config {
	if v == nil {
		v = viper.New()
	}
	return &Config{v: v}
}

func (c *Config) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + "." + k
}

// Module returns the view handed to a module at Init: plugins.<name>.
func (c *Config) Module(name string) plugin.Config {
	return c.Sub("plugins." + name)
}

// Unmarshal decodes the scoped section into target. Durations accept bare
// numbers as seconds.
func (c *Config) Unmarshal(target any) error {
	if c.prefix == "" {
		return c.v.Unmarshal(target, viper.DecodeHook(durationHook))
	}
	if !c.v.IsSet(c.prefix) {
		return nil
	}
	return c.v.UnmarshalKey(c.prefix, target, viper.DecodeHook(durationHook))
}

func (c *Config) Get(key string) any {
	return c.v.Get(c.key(key))
}

func (c *Config) GetString(key string) string {
	return c.v.GetString(c.key(key))
}

func (c *Config) GetInt(key string) int {
	return c.v.GetInt(c.key(key))
}

func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(c.key(key))
}

// GetDuration reads key with Duration semantics.
func (c *Config) GetDuration(key string) time.Duration {
	return Duration(c.v, c.key(key))
}

func (c *Config) IsSet(key string) bool {
	return c.v.IsSet(c.key(key))
}

// Sub narrows the view to key. Missing sections read as empty.
func (c *Config) Sub(key string) plugin.Config {
	return &Config{v: c.v, prefix: c.key(key)}
}

// Viper returns the underlying instance for top-level keys.
func (c *Config) Viper() *viper.Viper {
	return c.v
}

// Duration reads key as a duration. A bare number, from YAML or from the
// environment, counts as seconds: "timeout: 30" means 30s. Unparseable
// values read as zero.
func Duration(v *viper.Viper, key string) time.Duration {
	raw := v.Get(key)
	if raw == nil {
		return 0
	}
	d, err := toDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

func toDuration(raw any) (time.Duration, error) {
	switch x := raw.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return seconds(f), nil
		}
		return time.ParseDuration(s)
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return seconds(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return seconds(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return seconds(rv.Float()), nil
	}
	return 0, &strconv.NumError{Func: "Duration", Num: reflect.TypeOf(raw).String(), Err: strconv.ErrSyntax}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationHook replaces the default string-to-duration hook so that struct
// fields decode the same way Duration reads single keys.
var durationHook = mapstructure.ComposeDecodeHookFunc(
	func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		return toDuration(data)
	},
	mapstructure.StringToSliceHookFunc(","),
)
