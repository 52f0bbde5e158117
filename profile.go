package main

import (
	"fmt"

	"linear-axis/drive"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
)

// ProfileEntry is one parameter in a drive profile file:
//
//	parameters:
//	  - name: velocity-kp
//	    id: "0x4310:01"
//	    value: 100
//	    group: gains
type ProfileEntry struct {
	Name  string `koanf:"name"`
	ID    string `koanf:"id"`
	Value int64  `koanf:"value"`
	Group string `koanf:"group"`
}

type ProfileFile struct {
	Parameters []ProfileEntry `koanf:"parameters"`
}

// LoadProfile reads a drive profile from a YAML file. An empty path selects
// the built-in profile.
func LoadProfile(path string) (drive.DriveConfig, error) {
	if path == "" {
		return drive.DefaultConfig(), nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", path, err)
	}
	var f ProfileFile
	if err := k.Unmarshal("", &f); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", path, err)
	}

	config, err := f.Config()
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return config, nil
}

// Config converts the file entries and validates the result
func (f ProfileFile) Config() (drive.DriveConfig, error) {
	config := make(drive.DriveConfig, 0, len(f.Parameters))
	for i, e := range f.Parameters {
		id, err := drive.ParseParameterID(e.ID)
		if err != nil {
			return nil, fmt.Errorf("parameter %d (%s): %w", i, e.Name, err)
		}
		group, err := drive.ParseGroup(e.Group)
		if err != nil {
			return nil, fmt.Errorf("parameter %d (%s): %w", i, e.Name, err)
		}
		config = append(config, drive.Parameter{Name: e.Name, ID: id, Value: e.Value, Group: group})
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
