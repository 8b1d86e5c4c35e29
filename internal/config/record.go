// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Record is the session record saved by the UI. The port is deliberately
// not part of it.
type Record struct {
	BaudRate int `mapstructure:"baudRate" json:"baudRate"`
	DataSize int `mapstructure:"dataSize" json:"dataSize"`
	NumLines int `mapstructure:"numLines" json:"numLines"`
	YMin     int `mapstructure:"ymin" json:"ymin"`
	YMax     int `mapstructure:"ymax" json:"ymax"`
}

// LoadRecord reads a JSON session record.
func LoadRecord(path string) (*Record, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", path, err)
	}
	for _, key := range []string{"baudRate", "dataSize", "numLines", "ymin", "ymax"} {
		if !v.IsSet(key) {
			return nil, fmt.Errorf("record %s: missing %q", path, key)
		}
	}
	var rec Record
	if err := v.Unmarshal(&rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", path, err)
	}
	return &rec, nil
}

// SaveRecord writes rec as indented JSON, appending a .json extension when
// path has none. It returns the path written.
func SaveRecord(path string, rec Record) (string, error) {
	if filepath.Ext(path) != ".json" {
		path += ".json"
	}
	// viper lower-cases keys on write; the record keeps its camelCase names.
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write record: %w", err)
	}
	return path, nil
}

// ApplyRecord overrides the recorded fields.
func (s *ScopeConfig) ApplyRecord(rec *Record) {
	s.BaudRate = rec.BaudRate
	s.DataSize = rec.DataSize
	s.NumLines = rec.NumLines
	s.YMin = rec.YMin
	s.YMax = rec.YMax
}

// Record extracts the persistable fields.
func (s ScopeConfig) Record() Record {
	return Record{
		BaudRate: s.BaudRate,
		DataSize: s.DataSize,
		NumLines: s.NumLines,
		YMin:     s.YMin,
		YMax:     s.YMax,
	}
}
