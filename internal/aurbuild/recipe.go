// SPDX-License-Identifier: MPL-2.0

package aurbuild

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// RecipeFile is the build script every AUR repository carries.
const RecipeFile = "PKGBUILD"

// ErrNoRecipe is returned when a cloned repository has no PKGBUILD.
var ErrNoRecipe = errors.New("no " + RecipeFile + " in repository")

// Recipe holds the identifying fields of a PKGBUILD.
type Recipe struct {
	PkgBase  string
	PkgNames []string
	PkgVer   string
	PkgRel   string
	Epoch    string
}

// Version formats [epoch:]pkgver-pkgrel.
func (r *Recipe) Version() string {
	v := r.PkgVer
	if r.PkgRel != "" {
		v += "-" + r.PkgRel
	}
	if r.Epoch != "" && r.Epoch != "0" {
		v = r.Epoch + ":" + v
	}
	return v
}

// ParseRecipe reads dir/PKGBUILD without executing it. Top-level variable
// assignments are expanded in order, so pkgver=${_ver} resolves against
// earlier assignments; values needing command substitution are left empty.
func ParseRecipe(dir string) (*Recipe, error) {
	f, err := os.Open(filepath.Join(dir, RecipeFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoRecipe
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", RecipeFile, err)
	}
	defer func() { _ = f.Close() }() // read-only

	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(f, RecipeFile)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", RecipeFile, err)
	}

	vars := make(map[string]expand.Variable)
	cfg := &expand.Config{Env: mapEnviron(vars)}
	r := &Recipe{}

	for _, stmt := range file.Stmts {
		call, ok := stmt.Cmd.(*syntax.CallExpr)
		if !ok || len(call.Args) > 0 {
			continue
		}
		for _, as := range call.Assigns {
			name := as.Name.Value
			var values []string
			switch {
			case as.Array != nil:
				for _, el := range as.Array.Elems {
					if s, err := expand.Literal(cfg, el.Value); err == nil {
						values = append(values, s)
					}
				}
				vars[name] = expand.Variable{Set: true, Kind: expand.Indexed, List: values}
			case as.Value != nil:
				s, err := expand.Literal(cfg, as.Value)
				if err != nil {
					continue
				}
				values = []string{s}
				vars[name] = expand.Variable{Set: true, Kind: expand.String, Str: s}
			default:
				continue
			}
			r.set(name, values)
		}
	}

	if len(r.PkgNames) == 0 {
		return nil, fmt.Errorf("parse %s: pkgname is not set", RecipeFile)
	}
	if r.PkgBase == "" {
		r.PkgBase = r.PkgNames[0]
	}
	return r, nil
}

func (r *Recipe) set(name string, values []string) {
	first := ""
	if len(values) > 0 {
		first = values[0]
	}
	switch name {
	case "pkgbase":
		r.PkgBase = first
	case "pkgname":
		r.PkgNames = values
	case "pkgver":
		r.PkgVer = first
	case "pkgrel":
		r.PkgRel = first
	case "epoch":
		r.Epoch = first
	}
}

// mapEnviron exposes the assignments seen so far to the expander.
type mapEnviron map[string]expand.Variable

func (m mapEnviron) Get(name string) expand.Variable {
	return m[name]
}

func (m mapEnviron) Each(fn func(name string, vr expand.Variable) bool) {
	for name, vr := range m {
		if !fn(name, vr) {
			return
		}
	}
}
