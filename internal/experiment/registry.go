package experiment

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/batsim/internal/config"
)

// Registry builds profiles from their config section by kind.
type Registry struct {
	profiles map[string]func(config.ProfileConfig) (Profile, error)
}

func NewRegistry() *Registry {
	r := &Registry{
		profiles: make(map[string]func(config.ProfileConfig) (Profile, error)),
	}

	r.profiles["constant"] = func(pc config.ProfileConfig) (Profile, error) {
		if !finite(pc.Current) {
			return nil, fmt.Errorf("constant profile: current must be finite")
		}
		return Constant{I: pc.Current}, nil
	}
	r.profiles["pulse"] = func(pc config.ProfileConfig) (Profile, error) {
		if !(pc.Period > 0) || math.IsInf(pc.Period, 0) {
			return nil, fmt.Errorf("pulse profile: period must be positive, got %f", pc.Period)
		}
		if pc.Duty < 0 || pc.Duty > 1 {
			return nil, fmt.Errorf("pulse profile: duty must be in [0, 1], got %f", pc.Duty)
		}
		if !finite(pc.Current) || !finite(pc.RestCurrent) {
			return nil, fmt.Errorf("pulse profile: currents must be finite")
		}
		return Pulse{On: pc.Current, Off: pc.RestCurrent, Period: pc.Period, Duty: pc.Duty}, nil
	}
	r.profiles["steps"] = func(pc config.ProfileConfig) (Profile, error) {
		if len(pc.Steps) == 0 {
			return nil, fmt.Errorf("steps profile: no steps")
		}
		segs := make([]Segment, len(pc.Steps))
		for i, st := range pc.Steps {
			if !finite(st.Current) || !finite(st.Until) {
				return nil, fmt.Errorf("steps profile: step %d is not finite", i)
			}
			if i > 0 && st.Until <= pc.Steps[i-1].Until {
				return nil, fmt.Errorf("steps profile: step %d ends at %f, not after %f", i, st.Until, pc.Steps[i-1].Until)
			}
			segs[i] = Segment{Until: st.Until, Current: st.Current}
		}
		return Steps{Segments: segs}, nil
	}

	return r
}

// Register adds or replaces a profile kind.
func (r *Registry) Register(kind string, fn func(config.ProfileConfig) (Profile, error)) {
	r.profiles[kind] = fn
}

func (r *Registry) Build(pc config.ProfileConfig) (Profile, error) {
	fn, ok := r.profiles[pc.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown profile: %s", pc.Kind)
	}
	return fn(pc)
}

func (r *Registry) ListProfiles() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
