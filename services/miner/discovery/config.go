// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default threshold values. They favor precision: only strong dependencies
// survive, with the relative-to-best rescue keeping genuine low-frequency
// arcs alive next to a dominant sibling.
const (
	DefaultDependencyThreshold = 0.9
	DefaultANDThreshold        = 0.1
	DefaultLoopThreshold       = 0.5
	DefaultRescueMargin        = 0.05
)

// Config holds the heuristic thresholds for a discovery run.
type Config struct {
	// DependencyThreshold is the minimum dependency measure for an arc to
	// be accepted outright. In [0,1].
	DependencyThreshold float64 `json:"dependency_threshold" yaml:"dependency_threshold"`

	// ANDThreshold bounds |dep(b,c)| under which two siblings of a common
	// predecessor count as concurrent rather than ordered. In [0,1].
	ANDThreshold float64 `json:"and_threshold" yaml:"and_threshold"`

	// LoopThreshold is the minimum frequency-normalized loop measure for
	// self-loops and length-two loops. In [0,1].
	LoopThreshold float64 `json:"loop_threshold" yaml:"loop_threshold"`

	// RelativeToBest enables the rescue rule: an arc below the dependency
	// threshold is still accepted when it is within RescueMargin of the
	// best outgoing dependency of its source or the best incoming
	// dependency of its target.
	RelativeToBest bool `json:"relative_to_best" yaml:"relative_to_best"`

	// RescueMargin is the allowed distance to the best dependency when
	// RelativeToBest is set. Must be >= 0.
	RescueMargin float64 `json:"rescue_margin" yaml:"rescue_margin"`
}

// DefaultConfig returns the default discovery configuration.
func DefaultConfig() Config {
	return Config{
		DependencyThreshold: DefaultDependencyThreshold,
		ANDThreshold:        DefaultANDThreshold,
		LoopThreshold:       DefaultLoopThreshold,
		RelativeToBest:      true,
		RescueMargin:        DefaultRescueMargin,
	}
}

// Validate checks all thresholds are inside their documented ranges.
func (c Config) Validate() error {
	check := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s %g outside [0,1]", ErrInvalidConfig, name, v)
		}
		return nil
	}
	if err := check("dependency_threshold", c.DependencyThreshold); err != nil {
		return err
	}
	if err := check("and_threshold", c.ANDThreshold); err != nil {
		return err
	}
	if err := check("loop_threshold", c.LoopThreshold); err != nil {
		return err
	}
	if c.RescueMargin < 0 {
		return fmt.Errorf("%w: rescue_margin %g is negative", ErrInvalidConfig, c.RescueMargin)
	}
	return nil
}

// LoadConfig reads a YAML config file, filling unset fields from defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read discovery config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse discovery config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
