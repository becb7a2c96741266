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

package detection

import (
	"go.bug.st/serial/enumerator"
)

// serialPort is one enumerated port with its USB metadata
type serialPort struct {
	Path         string
	VIDPID       string
	Product      string
	SerialNumber string
	IsUSB        bool
}

func (p *serialPort) deviceInfo(confidence Confidence) DeviceInfo {
	info := DeviceInfo{
		Path:       p.Path,
		Name:       p.Product,
		Confidence: confidence,
		Metadata:   make(map[string]string),
	}
	if info.Name == "" {
		info.Name = p.Path
	}
	if p.VIDPID != "" {
		info.Metadata["vidpid"] = p.VIDPID
	}
	if p.Product != "" {
		info.Metadata["product"] = p.Product
	}
	if p.SerialNumber != "" {
		info.Metadata["serial"] = p.SerialNumber
	}
	return info
}

// listPorts is swapped out in tests.
var listPorts = enumeratePorts

func enumeratePorts() ([]serialPort, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by enumerate
	}

	ports := make([]serialPort, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		port := serialPort{
			Path:         d.Name,
			IsUSB:        d.IsUSB,
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
		}
		if d.IsUSB && d.VID != "" && d.PID != "" {
			port.VIDPID = NormalizeVIDPID(d.VID + ":" + d.PID)
		}
		ports = append(ports, port)
	}
	return ports, nil
}
