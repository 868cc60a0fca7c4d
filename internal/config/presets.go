package config

import "sort"

// Presets build fresh configs so callers can mutate the result.
var Presets = map[string]func() *Config{
	// 5 A for an hour in 1 s windows from 90% SOC on the default cell.
	"chen2020-5a": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "chen2020-5a"
		return cfg
	},
	"gentle": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "gentle"
		cfg.Run.Dt = 10
		cfg.Run.Duration = 7200
		cfg.Profile.Current = 1.0
		return cfg
	},
	"pulse": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "pulse"
		cfg.Run.Dt = 1
		cfg.Run.Duration = 1800
		cfg.Profile = ProfileConfig{Kind: "pulse", Current: 10, RestCurrent: 0, Period: 60, Duty: 0.5}
		return cfg
	},
	"drive": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "drive"
		cfg.Run.Dt = 5
		cfg.Run.Duration = 2400
		cfg.Profile = ProfileConfig{
			Kind: "steps",
			Steps: []StepConfig{
				{Until: 300, Current: 2},
				{Until: 600, Current: 8},
				{Until: 900, Current: -3},
				{Until: 1800, Current: 5},
				{Until: 2400, Current: 0},
			},
		}
		return cfg
	},
	"primed": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "primed"
		cfg.Run.Duration = 600
		cfg.Run.Bootstrap = "prime"
		return cfg
	},
}

func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
