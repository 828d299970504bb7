package story

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is a named bundle of editing preferences. Scene and tone weights
// express how well a clip with that profile fits the preset's style; the
// pacing bias stretches or tightens recommended durations.
type Preset struct {
	Name         string            `yaml:"name" json:"name"`
	SceneWeights map[Scene]float64 `yaml:"scene_weights" json:"scene_weights"`
	ToneWeights  map[Tone]float64  `yaml:"tone_weights" json:"tone_weights"`
	EnergyBias   float64           `yaml:"energy_bias" json:"energy_bias"` // [0,1]: how much excitement helps
	PacingBias   float64           `yaml:"pacing_bias" json:"pacing_bias"` // duration multiplier, ~[0.8, 1.2]
}

// BuiltinPresets returns the four stock style presets, keyed by name.
func BuiltinPresets() map[string]*Preset {
	return map[string]*Preset{
		"traditional": {
			Name: "traditional",
			SceneWeights: map[Scene]float64{
				SceneCeremony: 1.0, SceneReception: 0.8, ScenePreparation: 0.6,
				SceneParty: 0.5, SceneIntimate: 0.7, SceneScenic: 0.4,
			},
			ToneWeights: map[Tone]float64{
				ToneRomantic: 1.0, ToneJoyful: 0.7, ToneDramatic: 0.8,
				ToneIntimate: 0.7, ToneCelebratory: 0.5,
			},
			EnergyBias: 0.3,
			PacingBias: 1.1,
		},
		"modern": {
			Name: "modern",
			SceneWeights: map[Scene]float64{
				SceneParty: 1.0, SceneCeremony: 0.8, SceneReception: 0.8,
				ScenePreparation: 0.5, SceneIntimate: 0.5, SceneScenic: 0.7,
			},
			ToneWeights: map[Tone]float64{
				ToneCelebratory: 1.0, ToneJoyful: 0.9, ToneDramatic: 0.7,
				ToneRomantic: 0.5, ToneIntimate: 0.4,
			},
			EnergyBias: 0.8,
			PacingBias: 0.85,
		},
		"intimate": {
			Name: "intimate",
			SceneWeights: map[Scene]float64{
				SceneIntimate: 1.0, SceneCeremony: 0.9, ScenePreparation: 0.7,
				SceneReception: 0.6, SceneScenic: 0.6, SceneParty: 0.3,
			},
			ToneWeights: map[Tone]float64{
				ToneIntimate: 1.0, ToneRomantic: 0.9, ToneJoyful: 0.5,
				ToneDramatic: 0.4, ToneCelebratory: 0.3,
			},
			EnergyBias: 0.1,
			PacingBias: 1.2,
		},
		"destination": {
			Name: "destination",
			SceneWeights: map[Scene]float64{
				SceneScenic: 1.0, SceneCeremony: 0.8, SceneParty: 0.7,
				SceneReception: 0.6, ScenePreparation: 0.5, SceneIntimate: 0.6,
			},
			ToneWeights: map[Tone]float64{
				ToneJoyful: 0.9, ToneCelebratory: 0.8, ToneRomantic: 0.8,
				ToneDramatic: 0.6, ToneIntimate: 0.5,
			},
			EnergyBias: 0.5,
			PacingBias: 1.0,
		},
	}
}

// PresetByName resolves a preset, falling back to "traditional" for an
// empty name. Unknown names error.
func PresetByName(name string) (*Preset, error) {
	if name == "" {
		name = "traditional"
	}
	presets := BuiltinPresets()
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown style preset %q", name)
	}
	return p, nil
}

// LoadPresets reads preset overrides from a YAML file and merges them over
// the builtins. The file maps preset name to preset body; overrides
// replace the whole entry.
func LoadPresets(path string) (map[string]*Preset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preset file: %w", err)
	}

	var overrides map[string]*Preset
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parsing preset file %s: %w", path, err)
	}

	presets := BuiltinPresets()
	for name, p := range overrides {
		if p == nil {
			continue
		}
		if p.Name == "" {
			p.Name = name
		}
		presets[name] = p
	}
	return presets, nil
}

// Score rates how well a clip's arc fits the preset, in [0, 1].
func (p *Preset) Score(arc *Arc, excitement float64) float64 {
	if arc == nil {
		return 0
	}
	score := 0.5*p.SceneWeights[arc.Scene] +
		0.3*p.ToneWeights[arc.Tone] +
		0.2*(1-p.EnergyBias+2*p.EnergyBias*excitement)
	return clamp01(score)
}

// AdjustDuration applies the preset's pacing bias to a recommended
// duration, staying within the arc builder's bounds.
func (p *Preset) AdjustDuration(seconds float64) float64 {
	bias := p.PacingBias
	if bias == 0 {
		bias = 1
	}
	d := seconds * bias
	if d < minDuration {
		return minDuration
	}
	if d > maxDuration {
		return maxDuration
	}
	return d
}
