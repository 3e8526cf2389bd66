package tts

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPersona is the key used by the bare /api/tts route.
const DefaultPersona = ""

// Voices maps a persona name to an ElevenLabs voice ID. Lookups are
// case-insensitive.
type Voices map[string]string

// DefaultVoices returns the built-in persona table.
func DefaultVoices() Voices {
	return Voices{
		DefaultPersona: "D38z5RcWu1voky8WS1ja", // owl
		"tusk":         "pNInz6obpgDQGcFmaJgB",
		"lion":         "pqHfZKP75CvOlQylNhV4",
	}
}

// Lookup returns the voice ID for persona.
func (v Voices) Lookup(persona string) (string, bool) {
	id, ok := v[strings.ToLower(strings.TrimSpace(persona))]
	return id, ok && id != ""
}

// Personas returns the named personas in sorted order, excluding the default.
func (v Voices) Personas() []string {
	out := make([]string, 0, len(v))
	for name := range v {
		if name != DefaultPersona {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

type voicesFile struct {
	Default string            `yaml:"default"`
	Voices  map[string]string `yaml:"voices"`
}

// LoadVoices reads a YAML persona table and merges it over the defaults:
//
//	default: D38z5RcWu1voky8WS1ja
//	voices:
//	  tusk: pNInz6obpgDQGcFmaJgB
//	  bear: 21m00Tcm4TlvDq8ikWAM
//
// An empty path returns the defaults unchanged.
func LoadVoices(path string) (Voices, error) {
	voices := DefaultVoices()
	if strings.TrimSpace(path) == "" {
		return voices, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read voices file: %w", err)
	}
	var f voicesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse voices file %s: %w", path, err)
	}

	if id := strings.TrimSpace(f.Default); id != "" {
		voices[DefaultPersona] = id
	}
	for name, id := range f.Voices {
		name = strings.ToLower(strings.TrimSpace(name))
		id = strings.TrimSpace(id)
		if name == "" {
			return nil, fmt.Errorf("voices file %s: persona name must not be empty", path)
		}
		if id == "" {
			return nil, fmt.Errorf("voices file %s: persona %q has no voice id", path, name)
		}
		voices[name] = id
	}
	return voices, nil
}
