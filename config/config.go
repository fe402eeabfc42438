// Package config gathers every numeric tolerance and iteration cap of the collision
// and solver pipeline into explicit structures.
//
// Values can be loaded from YAML; missing keys keep their defaults:
//
//	geometry:
//	  margins: 0.03
//	solver:
//	  max_iterations: 10
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GeometryConfig drives GJK, EPA and the contact manifolds
type GeometryConfig struct {
	// Epsilon is the generic length tolerance
	Epsilon float64 `yaml:"epsilon"`
	// Margins is the distance under which GJK reports a shallow contact without EPA
	Margins float64 `yaml:"margins"`
	// ContactMargin is added to every penetration depth reported
	ContactMargin float64 `yaml:"contact_margin"`
	// EPACondition is the gap under which EPA considers the closest face final
	EPACondition     float64 `yaml:"epa_condition"`
	GJKMaxIterations int     `yaml:"gjk_max_iterations"`
	EPAMaxIterations int     `yaml:"epa_max_iterations"`

	// ContactDedupe rejects contacts closer than this to an existing manifold point
	ContactDedupe float64 `yaml:"contact_dedupe"`
	// ContactBreakDepth drops manifold points separated by more than this (negative)
	ContactBreakDepth float64 `yaml:"contact_break_depth"`
	// ContactDrift drops manifold points that slid tangentially further than this
	ContactDrift float64 `yaml:"contact_drift"`
}

// SolverConfig drives the sequential impulse solver
type SolverConfig struct {
	MaxIterations         int     `yaml:"max_iterations"`
	PenetrationIterations int     `yaml:"penetration_iterations"`
	ERP                   float64 `yaml:"erp"`
	SORWeight             float64 `yaml:"sor_weight"`
	WarmStartingFactor    float64 `yaml:"warmstarting_factor"`
	// Epsilon ends the penetration iterations once the largest normalized push delta is below it
	Epsilon float64 `yaml:"epsilon"`
	// Relaxation scales the position pass of the penetration solver, 0.1 to 0.5
	Relaxation float64 `yaml:"relaxation"`
	// Threshold ends the velocity iterations once the largest normalized impulse delta is below it
	Threshold float64 `yaml:"threshold"`
	// RestitutionThreshold is the closing speed under which contacts do not bounce
	RestitutionThreshold float64 `yaml:"restitution_threshold"`
}

type Config struct {
	Geometry GeometryConfig `yaml:"geometry"`
	Solver   SolverConfig   `yaml:"solver"`
}

func DefaultGeometry() GeometryConfig {
	return GeometryConfig{
		Epsilon:           1e-6,
		Margins:           0.03,
		ContactMargin:     0,
		EPACondition:      0.001,
		GJKMaxIterations:  20,
		EPAMaxIterations:  20,
		ContactDedupe:     0.02,
		ContactBreakDepth: -0.02,
		ContactDrift:      0.2,
	}
}

func DefaultSolver() SolverConfig {
	return SolverConfig{
		MaxIterations:         10,
		PenetrationIterations: 5,
		Epsilon:               1e-5,
		ERP:                   0.1,
		SORWeight:             0.85,
		WarmStartingFactor:    0.95,
		Relaxation:            0.1,
		Threshold:             0.1,
		RestitutionThreshold:  0.5,
	}
}

// Default returns the documented defaults of every field
func Default() Config {
	return Config{
		Geometry: DefaultGeometry(),
		Solver:   DefaultSolver(),
	}
}

// Load reads a YAML file over the defaults and validates the result
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every field and joins all violations
func (c Config) Validate() error {
	return errors.Join(c.Geometry.Validate(), c.Solver.Validate())
}

func (g GeometryConfig) Validate() error {
	var errs []error
	if g.Epsilon <= 0 {
		errs = append(errs, fieldError("geometry.epsilon", "must be > 0", g.Epsilon))
	}
	if g.Margins < 0 {
		errs = append(errs, fieldError("geometry.margins", "must be >= 0", g.Margins))
	}
	if g.EPACondition <= 0 {
		errs = append(errs, fieldError("geometry.epa_condition", "must be > 0", g.EPACondition))
	}
	if g.GJKMaxIterations < 1 {
		errs = append(errs, fieldError("geometry.gjk_max_iterations", "must be >= 1", g.GJKMaxIterations))
	}
	if g.EPAMaxIterations < 1 {
		errs = append(errs, fieldError("geometry.epa_max_iterations", "must be >= 1", g.EPAMaxIterations))
	}
	if g.ContactDedupe < 0 {
		errs = append(errs, fieldError("geometry.contact_dedupe", "must be >= 0", g.ContactDedupe))
	}
	if g.ContactBreakDepth > 0 {
		errs = append(errs, fieldError("geometry.contact_break_depth", "must be <= 0", g.ContactBreakDepth))
	}
	if g.ContactDrift <= 0 {
		errs = append(errs, fieldError("geometry.contact_drift", "must be > 0", g.ContactDrift))
	}
	return errors.Join(errs...)
}

func (s SolverConfig) Validate() error {
	var errs []error
	if s.MaxIterations < 1 {
		errs = append(errs, fieldError("solver.max_iterations", "must be >= 1", s.MaxIterations))
	}
	if s.PenetrationIterations < 0 {
		errs = append(errs, fieldError("solver.penetration_iterations", "must be >= 0", s.PenetrationIterations))
	}
	if s.Epsilon <= 0 {
		errs = append(errs, fieldError("solver.epsilon", "must be > 0", s.Epsilon))
	}
	if s.ERP < 0 || s.ERP > 1 {
		errs = append(errs, fieldError("solver.erp", "must be in [0, 1]", s.ERP))
	}
	if s.SORWeight <= 0 || s.SORWeight > 2 {
		errs = append(errs, fieldError("solver.sor_weight", "must be in (0, 2]", s.SORWeight))
	}
	if s.WarmStartingFactor < 0 || s.WarmStartingFactor > 1 {
		errs = append(errs, fieldError("solver.warmstarting_factor", "must be in [0, 1]", s.WarmStartingFactor))
	}
	if s.Relaxation < 0 || s.Relaxation > 1 {
		errs = append(errs, fieldError("solver.relaxation", "must be in [0, 1]", s.Relaxation))
	}
	if s.Threshold < 0 {
		errs = append(errs, fieldError("solver.threshold", "must be >= 0", s.Threshold))
	}
	if s.RestitutionThreshold < 0 {
		errs = append(errs, fieldError("solver.restitution_threshold", "must be >= 0", s.RestitutionThreshold))
	}
	return errors.Join(errs...)
}

func fieldError(field, rule string, value any) error {
	return fmt.Errorf("config: %s %s, got %v", field, rule, value)
}
