// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// strictBool is a flag that must be given explicitly as "true" or "false".
type strictBool struct {
	value, set bool
}

var _ pflag.Value = (*strictBool)(nil)

func (b *strictBool) String() string {
	if !b.set {
		return ""
	}
	return strconv.FormatBool(b.value)
}

func (b *strictBool) Set(s string) error {
	switch strings.ToLower(s) {
	case "true":
		b.value = true
	case "false":
		b.value = false
	default:
		return errors.Errorf("%q is not true or false", s)
	}
	b.set = true
	return nil
}

func (b *strictBool) Type() string { return "true|false" }

// floatList is a list of positive floats, given comma-separated or by repeating the flag.
// The first value given replaces the defaults.
type floatList struct {
	values  []float64
	changed bool
}

var _ pflag.Value = (*floatList)(nil)

func (l *floatList) String() string {
	parts := make([]string, len(l.values))
	for ii, v := range l.values {
		parts[ii] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func (l *floatList) Set(s string) error {
	values, err := parseFloats(strings.Split(s, ","))
	if err != nil {
		return err
	}
	if !l.changed {
		l.values = nil
		l.changed = true
	}
	l.values = append(l.values, values...)
	return nil
}

func (l *floatList) Type() string { return "floats" }

// Append adds the positional arguments to the list: "--lrs 0.01 0.001" leaves "0.001" as an argument.
func (l *floatList) Append(args []string) error {
	if len(args) == 0 {
		return nil
	}
	values, err := parseFloats(args)
	if err != nil {
		return errors.WithMessage(err, "positional arguments must be learning rates")
	}
	if !l.changed {
		l.values = nil
		l.changed = true
	}
	l.values = append(l.values, values...)
	return nil
}

func parseFloats(parts []string) ([]float64, error) {
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, errors.Errorf("invalid number %q", part)
		}
		if v <= 0 {
			return nil, errors.Errorf("learning rate must be positive, got %q", part)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, errors.New("empty list of learning rates")
	}
	return values, nil
}
