package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lexcodex/codebuddy/agents"
	"github.com/lexcodex/codebuddy/agents/parse"
)

var durationType = reflect.TypeOf(time.Duration(0))

// configKeys maps every settable dotted key of config.yaml to its Go type.
var configKeys = collectConfigKeys(reflect.TypeOf(agents.GlobalConfig{}), "", map[string]reflect.Type{})

func collectConfigKeys(t reflect.Type, prefix string, out map[string]reflect.Type) map[string]reflect.Type {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, opts, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" || !f.IsExported() {
			continue
		}
		if opts == "inline" {
			collectConfigKeys(f.Type, prefix, out)
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		if f.Type.Kind() == reflect.Struct {
			collectConfigKeys(f.Type, prefix+name+".", out)
			continue
		}
		out[prefix+name] = f.Type
	}
	return out
}

// lookupConfigKey accepts a leaf key or a section prefix such as "llm".
func lookupConfigKey(key string) error {
	if _, ok := configKeys[key]; ok {
		return nil
	}
	for k := range configKeys {
		if strings.HasPrefix(k, key+".") {
			return nil
		}
	}
	return fmt.Errorf("unknown config key %q (sections: %s)", key, strings.Join(configSections(), ", "))
}

func configSections() []string {
	seen := map[string]bool{}
	var out []string
	for k := range configKeys {
		section, _, _ := strings.Cut(k, ".")
		if !seen[section] {
			seen[section] = true
			out = append(out, section)
		}
	}
	sort.Strings(out)
	return out
}

// convertConfigValue turns CLI text into the YAML value the key's field
// expects, using the same coercion as plan parameters.
func convertConfigValue(key, raw string) (interface{}, error) {
	typ, ok := configKeys[key]
	if !ok {
		if err := lookupConfigKey(key); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s is a section; set one of its keys instead", key)
	}
	raw = strings.TrimSpace(raw)
	v := parse.Coerce(raw)
	switch {
	case typ == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects a duration such as 30s, got %q", key, raw)
		}
		return d.String(), nil
	case typ.Kind() == reflect.Bool:
		if b, ok := v.AsBool(); ok {
			return b, nil
		}
		return nil, fmt.Errorf("%s expects true or false, got %q", key, raw)
	case typ.Kind() == reflect.Int:
		if n, ok := v.AsInt(); ok {
			return n, nil
		}
		return nil, fmt.Errorf("%s expects an integer, got %q", key, raw)
	case typ.Kind() == reflect.Float64:
		if f, ok := v.AsFloat(); ok {
			return f, nil
		}
		return nil, fmt.Errorf("%s expects a number, got %q", key, raw)
	case typ.Kind() == reflect.Slice:
		if items, ok := v.AsList(); ok {
			return items, nil
		}
		if raw == "" {
			return []string{}, nil
		}
		return []string{raw}, nil
	default:
		return raw, nil
	}
}

// readConfigMap loads the raw config file so that `config set` only writes
// the keys the user touched. A missing file is an empty map.
func readConfigMap(path string) (map[string]interface{}, error) {
	data := map[string]interface{}{}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return data, nil
}

func writeConfigMap(path string, data map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// getConfigValue follows a dotted key through nested maps.
func getConfigValue(data map[string]interface{}, key string) (interface{}, bool) {
	var cur interface{} = data
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// setConfigValue stores a converted value under a known dotted key,
// creating the enclosing section when the file lacks it.
func setConfigValue(data map[string]interface{}, key, raw string) error {
	value, err := convertConfigValue(key, raw)
	if err != nil {
		return err
	}
	parts := strings.Split(key, ".")
	cur := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

// prettyValue prints scalars bare, lists inline and sections as YAML.
func prettyValue(v interface{}) string {
	switch value := v.(type) {
	case []interface{}:
		parts := make([]string, len(value))
		for i, item := range value {
			parts[i] = prettyValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		raw, _ := yaml.Marshal(value)
		return strings.TrimRight(string(raw), "\n")
	default:
		return fmt.Sprint(value)
	}
}
