package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads KEY=value files into the process environment without
// overriding variables that are already set. With no arguments it reads .env
// from the working directory. Missing files are ignored.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// loadFromEnv overrides fields carrying an `env` tag with the matching
// variable when it is set and non-empty. Nested structs are walked.
func loadFromEnv(cfg *Config) error {
	return applyEnv(reflect.ValueOf(cfg).Elem())
}

func applyEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf, fv := t.Field(i), v.Field(i)
		if !sf.IsExported() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			if err := applyEnv(fv); err != nil {
				return err
			}
			continue
		}
		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok || raw == "" {
			continue
		}
		parsed, err := parseEnv(sf.Type, raw)
		if err != nil {
			return fmt.Errorf("%s (%s.%s): %w", name, t.Name(), sf.Name, err)
		}
		fv.Set(parsed)
	}
	return nil
}

// parseEnv converts raw into a value of type t. Lists are comma separated and
// maps use k=v pairs.
func parseEnv(t reflect.Type, raw string) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	switch {
	case t == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return out, fmt.Errorf("invalid duration %q", raw)
		}
		out.SetInt(int64(d))
	case t.Kind() == reflect.String:
		out.SetString(raw)
	case t.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return out, fmt.Errorf("invalid boolean %q", raw)
		}
		out.SetBool(b)
	case out.CanInt():
		n, err := strconv.ParseInt(raw, 10, t.Bits())
		if err != nil {
			return out, fmt.Errorf("invalid integer %q", raw)
		}
		out.SetInt(n)
	case out.CanUint():
		n, err := strconv.ParseUint(raw, 10, t.Bits())
		if err != nil {
			return out, fmt.Errorf("invalid unsigned integer %q", raw)
		}
		out.SetUint(n)
	case out.CanFloat():
		f, err := strconv.ParseFloat(raw, t.Bits())
		if err != nil {
			return out, fmt.Errorf("invalid float %q", raw)
		}
		out.SetFloat(f)
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.String:
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = reflect.Append(out, reflect.ValueOf(part).Convert(t.Elem()))
			}
		}
	case t.Kind() == reflect.Map && t.Key().Kind() == reflect.String && t.Elem().Kind() == reflect.String:
		out = reflect.MakeMap(t)
		for _, pair := range strings.Split(raw, ",") {
			k, val, found := strings.Cut(strings.TrimSpace(pair), "=")
			if !found || k == "" {
				return out, fmt.Errorf("invalid map entry %q, want key=value", pair)
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), reflect.ValueOf(val).Convert(t.Elem()))
		}
	default:
		return out, fmt.Errorf("unsupported type %s", t)
	}
	return out, nil
}
