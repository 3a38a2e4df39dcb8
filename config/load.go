// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads settings from a YAML document whose keys are setting names:
//
//	MICROSOFT_SSO_APPLICATION_ID: 00000000-0000-0000-0000-000000000000
//	MICROSOFT_SSO_ALLOWABLE_DOMAINS: [contoso.com]
//	MICROSOFT_SSO_TIMEOUT: 10s
//
// Unknown keys are rejected.  The returned settings start from the declared
// defaults.
func Load(path string) (*Settings, error) {
	const op = "config.Load"
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read %q: %w", op, path, err)
	}
	s := NewSettings()
	if err := s.LoadYAML(b); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// LoadYAML applies a YAML document to the settings.
func (s *Settings) LoadYAML(b []byte) error {
	const op = "config.(Settings).LoadYAML"
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%s: unable to parse yaml: %w", op, err)
	}
	for k, v := range raw {
		if err := s.setRaw(Name(k), v); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// LoadEnv overlays every declared setting found in the environment.  Lists
// are comma separated, durations accept either a Go duration ("10s") or a
// number of seconds.
func (s *Settings) LoadEnv() error {
	return s.loadEnv(os.LookupEnv)
}

func (s *Settings) loadEnv(lookup func(string) (string, bool)) error {
	const op = "config.(Settings).LoadEnv"
	for _, n := range Names() {
		v, ok := lookup(string(n))
		if !ok {
			continue
		}
		if err := s.setRaw(n, v); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// setRaw converts a decoded yaml or env value to the setting's declared type
func (s *Settings) setRaw(n Name, raw interface{}) error {
	d, ok := declarations[n]
	if !ok {
		return fmt.Errorf("unknown setting %q: %w", n, ErrInvalidParameter)
	}
	switch d.def.(type) {
	case Value[bool]:
		b, err := toBool(raw)
		if err != nil {
			return &ConfigValueError{Name: n, Value: raw, Reason: err.Error()}
		}
		return Set(s, n, Static(b))
	case Value[string]:
		if raw == nil {
			return Set(s, n, Static(""))
		}
		return Set(s, n, Static(fmt.Sprint(raw)))
	case Value[[]string]:
		l, err := toStrings(raw)
		if err != nil {
			return &ConfigValueError{Name: n, Value: raw, Reason: err.Error()}
		}
		return Set(s, n, Static(l))
	case Value[time.Duration]:
		dur, err := toDuration(raw)
		if err != nil {
			return &ConfigValueError{Name: n, Value: raw, Reason: err.Error()}
		}
		return Set(s, n, Static(dur))
	case Value[interface{}]:
		return Set(s, n, Static(raw))
	default:
		return &ConfigTypeError{Name: n, Reason: fmt.Sprintf("unsupported type %s", typeName(d.def))}
	}
}

func toBool(raw interface{}) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	default:
		return false, fmt.Errorf("not a bool")
	}
}

func toStrings(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return []string{}, nil
		}
		parts := strings.Split(v, ",")
		l := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				l = append(l, p)
			}
		}
		return l, nil
	case []interface{}:
		l := make([]string, 0, len(v))
		for _, e := range v {
			l = append(l, fmt.Sprint(e))
		}
		return l, nil
	case []string:
		return v, nil
	default:
		return nil, fmt.Errorf("not a list")
	}
}

func toDuration(raw interface{}) (time.Duration, error) {
	switch v := raw.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		v = strings.TrimSpace(v)
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return time.ParseDuration(v)
	default:
		return 0, fmt.Errorf("not a duration")
	}
}
