// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package plots records the training metrics of a trial as plot points, and draws them.
package plots

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// TrainingPlotFileName is the default file name within a trial directory to store
// plot points collected during training.
const TrainingPlotFileName = "training_plot_points.json"

// Point represents a training plot point. It is used to save/load plots.
type Point struct {
	// MetricName of this point.
	MetricName string

	// Short name
	Short string

	// MetricType typically will be "loss", "accuracy".
	// It's used in plotting to aggregate similar metric types in the same plot.
	MetricType string

	// Step is the batch number (counted from the start of training) the metric was measured.
	// Usually, this is an int value, stored as a float64.
	Step float64

	// Value is the metric captured.
	Value float64
}

// WritePoints appends points, one JSON object per line, to filePath. The file is created if needed.
func WritePoints(filePath string, points []Point) error {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
	if err != nil {
		return errors.Wrapf(err, "failed to open plots file %q for append", filePath)
	}
	enc := json.NewEncoder(f)
	for _, point := range points {
		if err = enc.Encode(point); err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "failed to encode point %v", point)
		}
	}
	return errors.Wrapf(f.Close(), "failed to close plots file %q", filePath)
}

// LoadPoints parses all plot points saved in the given file.
func LoadPoints(filePath string) ([]Point, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read plots file %q", filePath)
	}
	defer func() { _ = f.Close() }()

	dec := json.NewDecoder(f)
	var points []Point
	for {
		var point Point
		err := dec.Decode(&point)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "error while decoding plots file %q", filePath)
		}
		points = append(points, point)
	}
	return points, nil
}

// Series of values to draw as one line, indexed by their position.
type Series struct {
	Name   string
	Values []float64
}

// SeriesFromPoints collects, in order, the values of the points with the given short name.
// The series is named after the metric name of the points.
func SeriesFromPoints(points []Point, short string) Series {
	s := Series{Name: short}
	for _, point := range points {
		if point.Short != short {
			continue
		}
		if point.MetricName != "" {
			s.Name = point.MetricName
		}
		s.Values = append(s.Values, point.Value)
	}
	return s
}

// SavePNG draws the series as lines and saves the plot as a PNG image at filePath.
func SavePNG(filePath, title, xLabel, yLabel string, series ...Series) error {
	if filepath.Ext(filePath) != ".png" {
		return errors.Errorf("plot file %q must have a .png extension", filePath)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	for ii, s := range series {
		xys := make(plotter.XYs, len(s.Values))
		for step, value := range s.Values {
			xys[step].X = float64(step)
			xys[step].Y = value
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "failed to plot series %q", s.Name)
		}
		line.Color = plotutil.Color(ii)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	if err := p.Save(12*vg.Inch, 6*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", filePath)
	}
	return nil
}
