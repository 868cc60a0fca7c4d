package optim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/experiment"
)

// Setters are the config knobs a grid can vary.
var Setters = map[string]func(cfg *config.Config, v float64){
	"current": func(cfg *config.Config, v float64) {
		cfg.Profile = config.ProfileConfig{Kind: "constant", Current: v}
	},
	"soc":      func(cfg *config.Config, v float64) { cfg.Run.InitialSOC = v },
	"ambient":  func(cfg *config.Config, v float64) { cfg.Cell.AmbientTemperatureK = v },
	"capacity": func(cfg *config.Config, v float64) { cfg.Cell.NominalCapacityAh = v },
}

type Axis struct {
	Name   string
	Values []float64
}

// Point is one combination of axis values.
type Point map[string]float64

func (p Point) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, ",")
}

type GridSearch struct {
	axes []Axis
}

func NewGridSearch(axes ...Axis) (*GridSearch, error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("grid search: no axes")
	}
	for _, a := range axes {
		if _, ok := Setters[a.Name]; !ok {
			return nil, fmt.Errorf("grid search: unknown parameter %s", a.Name)
		}
		if len(a.Values) == 0 {
			return nil, fmt.Errorf("grid search: no values for %s", a.Name)
		}
	}
	return &GridSearch{axes: axes}, nil
}

// Points enumerates the cartesian product, the last axis varying fastest.
func (g *GridSearch) Points() []Point {
	points := make([]Point, 0)
	g.pointsRecursive(0, Point{}, &points)
	return points
}

func (g *GridSearch) pointsRecursive(depth int, current Point, out *[]Point) {
	if depth == len(g.axes) {
		*out = append(*out, current)
		return
	}

	axis := g.axes[depth]
	for _, val := range axis.Values {
		next := make(Point, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[axis.Name] = val

		g.pointsRecursive(depth+1, next, out)
	}
}

// Configs builds one config per point from fresh copies of base.
func (g *GridSearch) Configs(base func() (*config.Config, error)) ([]*config.Config, []Point, error) {
	points := g.Points()
	cfgs := make([]*config.Config, len(points))

	for i, p := range points {
		cfg, err := base()
		if err != nil {
			return nil, nil, err
		}
		for name, v := range p {
			Setters[name](cfg, v)
		}
		cfg.Name = fmt.Sprintf("%s[%s]", cfg.Name, p)
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", p, err)
		}
		cfgs[i] = cfg
	}
	return cfgs, points, nil
}

type Outcome struct {
	Configs []*config.Config
	Points  []Point
	Results []*experiment.Result
	// Best indexes the winning point, or -1 when no run reported the metric.
	Best  int
	Value float64
}

// Search runs every point concurrently and picks the best by metric.
func (g *GridSearch) Search(
	ctx context.Context,
	base func() (*config.Config, error),
	metricName string,
	maximize bool,
	opts ...experiment.Option,
) (*Outcome, error) {
	cfgs, points, err := g.Configs(base)
	if err != nil {
		return nil, err
	}

	results, err := experiment.Sweep(ctx, cfgs, opts...)
	out := &Outcome{Configs: cfgs, Points: points, Results: results, Best: -1}

	best := math.Inf(1)
	if maximize {
		best = math.Inf(-1)
	}
	for i, res := range results {
		if res == nil {
			continue
		}
		val, ok := res.Metrics[metricName]
		if !ok || math.IsNaN(val) {
			continue
		}
		if (maximize && val > best) || (!maximize && val < best) {
			best = val
			out.Best = i
		}
	}
	if out.Best >= 0 {
		out.Value = best
	}

	return out, err
}
