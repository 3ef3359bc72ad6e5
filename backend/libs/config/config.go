// Package config fills service configuration structs from an optional YAML
// file and environment variables. Environment values win over the file.
//
// A field's variable is named by its `env` tag, or derived from the field path
// (Redis.Addr becomes REDIS_ADDR). `env:"-"` excludes a field. Embedded
// structs share their parent's prefix.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigPathEnv = "CONFIG_FILE"

var durationType = reflect.TypeOf(time.Duration(0))

// LookupFunc resolves an environment key.
type LookupFunc func(key string) (string, bool)

// Loader populates config structs.
type Loader struct {
	path   string
	lookup LookupFunc
}

// Option configures a Loader.
type Option func(*Loader)

// WithFile reads YAML from path before applying the environment. An empty path skips the file.
func WithFile(path string) Option {
	return func(l *Loader) { l.path = path }
}

// WithLookup replaces os.LookupEnv.
func WithLookup(fn LookupFunc) Option {
	return func(l *Loader) { l.lookup = fn }
}

// NewLoader returns a loader reading the process environment.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadConfig reads the YAML file named by CONFIG_FILE, if set, then the environment.
func LoadConfig(target interface{}) error {
	return NewLoader(WithFile(os.Getenv(defaultConfigPathEnv))).Load(target)
}

// LoadConfigFrom is LoadConfig with an explicit YAML path.
func LoadConfigFrom(path string, target interface{}) error {
	return NewLoader(WithFile(path)).Load(target)
}

// Load hydrates target, which must be a pointer to a struct. Every unparseable
// variable is reported, not just the first.
func (l *Loader) Load(target interface{}) error {
	if target == nil {
		return errors.New("config: target is nil")
	}
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return errors.New("config: target must be pointer to struct")
	}

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("config: decode yaml %s: %w", l.path, err)
		}
	}

	var errs []error
	l.walk(val.Elem(), "", &errs)
	return errors.Join(errs...)
}

func (l *Loader) walk(v reflect.Value, prefix string, errs *[]error) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		meta := t.Field(i)
		if !field.CanSet() {
			continue
		}
		if meta.Anonymous && field.Kind() == reflect.Struct {
			l.walk(field, prefix, errs)
			continue
		}

		tag := meta.Tag.Get("env")
		if tag == "-" {
			continue
		}
		key := envKey(prefix, meta.Name)
		if tag != "" {
			key = envKey("", tag)
		}

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			l.walk(field, key, errs)
			continue
		}

		raw, ok := l.lookup(key)
		if !ok {
			continue
		}
		if err := setValue(field, raw); err != nil {
			*errs = append(*errs, fmt.Errorf("config: parse %s: %w", key, err))
		}
	}
}

func envKey(prefix, name string) string {
	name = strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

func setValue(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}
