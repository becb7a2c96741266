// go-aip
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-aip.
//
// go-aip is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-aip is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-aip; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package sweep

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// Annotation labels written before a beam's samples.
const (
	LabelArray   = "AiP data"
	LabelTxArray = "AiP Tx data"
	LabelRxArray = "AiP Rx data"
	labelSamples = "USRP data"
)

// Annotation names the state of one array when a beam's samples start.
type Annotation struct {
	Label string
	Beam  Beam
}

// Recorder writes a capture file: text annotation blocks, each followed by
// the raw samples of that beam as little-endian complex64 pairs.
type Recorder struct {
	w       *bufio.Writer
	closer  io.Closer
	runID   uuid.UUID
	samples int64
	beams   int
	inBeam  bool
}

// RecorderOption configures a Recorder
type RecorderOption func(*recorderConfig)

type recorderConfig struct {
	runID  uuid.UUID
	header bool
}

// WithHeader starts the file with a line naming the run. Files meant for
// the existing post-processing scripts are written without it.
func WithHeader() RecorderOption {
	return func(c *recorderConfig) {
		c.header = true
	}
}

// WithRunID sets the run identifier instead of a random one
func WithRunID(id uuid.UUID) RecorderOption {
	return func(c *recorderConfig) {
		c.runID = id
	}
}

// NewRecorder writes a capture to w.
func NewRecorder(w io.Writer, opts ...RecorderOption) (*Recorder, error) {
	cfg := recorderConfig{runID: uuid.New()}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Recorder{w: bufio.NewWriterSize(w, 1<<16), runID: cfg.runID}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	if cfg.header {
		if _, err := fmt.Fprintf(r.w, "# aip capture run=%s started=%s\n",
			r.runID, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return r, nil
}

// CreateRecorder creates (or truncates) path and records into it.
func CreateRecorder(path string, opts ...RecorderOption) (*Recorder, error) {
	f, err := os.Create(path) //nolint:gosec // path is user-supplied on purpose
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	r, err := NewRecorder(f, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

// RunID identifies the capture.
func (r *Recorder) RunID() uuid.UUID {
	return r.runID
}

// BeginBeam writes the annotation block for a beam, stamped with device time
// t, and opens its sample section.
func (r *Recorder) BeginBeam(t time.Duration, annotations ...Annotation) error {
	if r.inBeam {
		if err := r.EndBeam(); err != nil {
			return err
		}
	}
	for _, a := range annotations {
		if _, err := fmt.Fprintf(r.w, "\n%s\n%s degrees at time %f", a.Label, a.Beam, t.Seconds()); err != nil {
			return fmt.Errorf("write annotation: %w", err)
		}
	}
	if _, err := fmt.Fprintf(r.w, "\n\n%s\n", labelSamples); err != nil {
		return fmt.Errorf("write annotation: %w", err)
	}
	r.inBeam = true
	r.beams++
	return nil
}

// WriteSamples appends raw samples to the open beam.
func (r *Recorder) WriteSamples(samples []complex64) error {
	if !r.inBeam {
		return errors.New("write samples: no beam open")
	}
	if err := binary.Write(r.w, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	r.samples += int64(len(samples))
	return nil
}

// EndBeam closes the sample section of the open beam.
func (r *Recorder) EndBeam() error {
	if !r.inBeam {
		return nil
	}
	r.inBeam = false
	if err := r.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("end beam: %w", err)
	}
	return nil
}

// Samples returns the number of samples written so far.
func (r *Recorder) Samples() int64 {
	return r.samples
}

// Beams returns the number of beams begun so far.
func (r *Recorder) Beams() int {
	return r.beams
}

// Close ends any open beam, flushes, and closes the underlying file if the
// recorder owns one.
func (r *Recorder) Close() error {
	err := r.EndBeam()
	if ferr := r.w.Flush(); err == nil && ferr != nil {
		err = fmt.Errorf("flush capture: %w", ferr)
	}
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close capture: %w", cerr)
		}
	}
	return err
}
