package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/celesta-db/celesta/ident"
	"github.com/celesta-db/celesta/model"
)

// The CelestaSQL grammar front end (spec.md §1's parser/compiler
// collaborator) isn't part of this exercise, so grain definitions are
// loaded from a directory of YAML manifests instead of compiled from
// CelestaSQL source text. This is a stand-in for that front end, not a
// reimplementation of it: one file per grain, named <grain>.grain.yaml,
// each describing tables in a shape that maps directly onto the
// model.Grain/model.Table/model.Column builders a real grammar would
// also end up calling.
type grainManifest struct {
	Version    string          `yaml:"version"`
	Autoupdate bool            `yaml:"autoupdate"`
	Tables     []tableManifest `yaml:"tables"`
}

type tableManifest struct {
	Name        string           `yaml:"name"`
	Autoupdate  bool             `yaml:"autoupdate"`
	Versioned   bool             `yaml:"versioned"`
	Columns     []columnManifest `yaml:"columns"`
	PK          []string         `yaml:"pk"`
	ForeignKeys []fkManifest     `yaml:"foreignKeys"`
}

type columnManifest struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"` // integer, float, string, binary, boolean, datetime
	Nullable bool    `yaml:"nullable"`
	Default  *string `yaml:"default"`
	Identity bool    `yaml:"identity"`
	Length   int     `yaml:"length"`
	Max      bool    `yaml:"max"`
}

type fkManifest struct {
	Columns           []string `yaml:"columns"`
	ReferencedGrain   string   `yaml:"referencedGrain"`
	ReferencedTable   string   `yaml:"referencedTable"`
	ReferencedColumns []string `yaml:"referencedColumns"`
}

// loadScore reads every *.yaml file in dir, builds a model.Score
// from them, designates sysGrainName as the system grain, and finalizes
// it (resolving cross-grain foreign key references and freezing every
// grain, per model.Score.Finalize).
func loadScore(dir, sysGrainName string) (*model.Score, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading score directory %q: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(filepath.Base(e.Name())) != ".yaml" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	score := model.NewScore()
	for _, name := range names {
		grainName := grainNameFromFile(name)
		if err := ident.Validate(grainName); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		var gm grainManifest
		if err := yaml.Unmarshal(raw, &gm); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		if err := buildGrain(score, grainName, string(raw), gm); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	if sysGrainName != "" {
		if _, ok := score.Grain(sysGrainName); !ok {
			sys, err := model.NewGrain(sysGrainName, "", nil, false)
			if err != nil {
				return nil, err
			}
			if err := score.AddGrain(sys); err != nil {
				return nil, err
			}
		}
		if err := score.SetSystemGrain(sysGrainName); err != nil {
			return nil, err
		}
	}

	if err := score.Finalize(); err != nil {
		return nil, err
	}
	return score, nil
}

func grainNameFromFile(fileName string) string {
	base := filepath.Base(fileName)
	for _, suffix := range []string{".grain.yaml", ".yaml"} {
		if len(base) > len(suffix) && base[len(base)-len(suffix):] == suffix {
			return base[:len(base)-len(suffix)]
		}
	}
	return base
}

func buildGrain(score *model.Score, grainName, source string, gm grainManifest) error {
	var version *ident.VersionString
	if gm.Version != "" {
		v, err := ident.Parse(gm.Version)
		if err != nil {
			return fmt.Errorf("version %q: %w", gm.Version, err)
		}
		version = v
	}

	grain, err := model.NewGrain(grainName, source, version, gm.Autoupdate)
	if err != nil {
		return err
	}
	if err := score.AddGrain(grain); err != nil {
		return err
	}

	for _, tm := range gm.Tables {
		table, err := model.NewTable(grain, tm.Name, tm.Autoupdate, tm.Versioned)
		if err != nil {
			return err
		}
		for _, cm := range tm.Columns {
			col, err := buildColumn(cm)
			if err != nil {
				return fmt.Errorf("table %q column %q: %w", tm.Name, cm.Name, err)
			}
			if err := table.AddColumn(col); err != nil {
				return err
			}
		}
		for _, pk := range tm.PK {
			if err := table.AddPKColumn(pk); err != nil {
				return err
			}
		}
		if err := table.FinalizePK(); err != nil {
			return err
		}
		for _, fkm := range tm.ForeignKeys {
			fk := table.NewForeignKey()
			for _, c := range fkm.Columns {
				if err := fk.AddColumn(c); err != nil {
					return err
				}
			}
			fk.SetReferencedTable(fkm.ReferencedGrain, fkm.ReferencedTable, fkm.ReferencedColumns)
		}
	}
	return nil
}

func buildColumn(cm columnManifest) (model.Column, error) {
	switch cm.Type {
	case "integer":
		return model.NewIntegerColumn(cm.Name, cm.Nullable, cm.Default, cm.Identity), nil
	case "float":
		return model.NewFloatingColumn(cm.Name, cm.Nullable, cm.Default), nil
	case "string":
		return model.NewStringColumn(cm.Name, cm.Nullable, cm.Default, cm.Length, cm.Max), nil
	case "binary":
		return model.NewBinaryColumn(cm.Name, cm.Nullable, cm.Default), nil
	case "boolean":
		return model.NewBooleanColumn(cm.Name, cm.Nullable, cm.Default), nil
	case "datetime":
		return model.NewDateTimeColumn(cm.Name, cm.Nullable, cm.Default), nil
	default:
		return nil, fmt.Errorf("unknown column type %q", cm.Type)
	}
}
