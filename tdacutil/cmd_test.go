/*
Copyright © 2026 the TDAC authors.
This file is part of TDAC.

TDAC is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

TDAC is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with TDAC.  If not, see <http://www.gnu.org/licenses/>.
*/


package tdacutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(b.String(), "TDAC v") {
		t.Errorf("version = %q", b.String())
	}
}

func TestMechanismCommand(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"mechanism", "--Mechanism=h2-air"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"Mechanism h2-air: 8 species, 12 reactions", "HO2", "H + O2 <=> O + OH"} {
		if !strings.Contains(b.String(), s) {
			t.Errorf("output is missing %q", s)
		}
	}
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	outputFile := filepath.Join(dir, "case.nc")
	plotFile := filepath.Join(dir, "case.svg")
	Cfg.Set("OutputFile", outputFile)
	Cfg.Set("PlotFile", plotFile)
	defer Cfg.Set("PlotFile", "")
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"run", "--config=testdata/case.toml", "--Mechanism=fuel-inert", "--Cells.N=2"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(outputFile); err != nil {
		t.Error(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "case.log")); err != nil {
		t.Error(err)
	}
	if fi, err := os.Stat(plotFile); err != nil || fi.Size() == 0 {
		t.Errorf("plot was not saved: %v", err)
	}
	if n := strings.Count(b.String(), "step complete"); n != 3 {
		t.Errorf("%d steps; want 3", n)
	}
}
