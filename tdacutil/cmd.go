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

// Package tdacutil contains the command-line interface of the TDAC
// chemistry model.
package tdacutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/tdac"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to TDAC.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Mechanism",
			usage: `
              Mechanism specifies the chemical mechanism. It can be the name
              of a built-in mechanism (` + strings.Join(builtinNames(), ", ") + `)
              or the path to a mechanism file in TOML format.`,
			shorthand:  "m",
			defaultVal: "fuel-inert",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), mechanismCmd.Flags()},
		},
		{
			name: "InitialComposition",
			usage: `
              InitialComposition maps species names to their initial mass
              fractions. Species that are not specified start at zero.
              If empty, the default composition of a built-in mechanism
              is used.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Cells.N",
			usage: `
              Cells.N is the number of cells to simulate.`,
			defaultVal: 16,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Cells.TMin",
			usage: `
              Cells.TMin is the temperature of the first cell [K]. Cell
              temperatures are evenly spaced between Cells.TMin and Cells.TMax.`,
			defaultVal: 1000.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Cells.TMax",
			usage: `
              Cells.TMax is the temperature of the last cell [K].`,
			defaultVal: 1500.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Cells.P",
			usage: `
              Cells.P is the pressure in every cell [Pa].`,
			defaultVal: 101325.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Cells.Volume",
			usage: `
              Cells.Volume is the volume of every cell [m³].`,
			defaultVal: 1e-6,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Cells.Kappa",
			usage: `
              Cells.Kappa is the reacting fraction of every cell, used by the
              EDC combustion model.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Cells.MaxSubStep",
			usage: `
              Cells.MaxSubStep is the largest allowed initial chemistry
              sub-step [s]. Zero means no limit.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep",
			usage: `
              TimeStep is the flow time step [s].`,
			shorthand:  "t",
			defaultVal: 1e-5,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "NumSteps",
			usage: `
              NumSteps is the number of time steps to run.`,
			shorthand:  "n",
			defaultVal: 100,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile specifies the path to the desired output NetCDF file
              location. It can include environment variables.`,
			shorthand:  "o",
			defaultVal: "tdac_output.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which model variables should be
              included in the output file. Each output variable is defined
              by the desired name and an expression that can be used to
              calculate it (in the form VariableName:expression). These
              expressions can utilize variables built into the model,
              species mass fractions, species reaction rates (RR_species),
              functions, and other output variables.`,
			defaultVal: map[string]string{"T": "T", "Qdot": "Qdot", "Tc": "Tc", "NumActive": "NumActive"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile specifies the path to the desired logfile location. It
              can include environment variables. If LogFile is left blank,
              the logfile will be saved in the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile specifies the path to an image file (for example .png or
              .svg) where a plot of the total heat release over time is saved.
              It can include environment variables. If empty, no plot is made.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "NormalizeProfile",
			usage: `
              NormalizeProfile specifies whether the execution profile printed
              at the end of a run is shown as fractions of the total run time
              instead of absolute times.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Reduction.Enabled",
			usage: `
              Reduction.Enabled specifies whether the mechanism is reduced in
              each cell before integration.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Reduction.Tolerance",
			usage: `
              Reduction.Tolerance is the importance threshold below which
              species are removed from the mechanism.`,
			defaultVal: 1e-4,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Reduction.SearchInitThreshold",
			usage: `
              Reduction.SearchInitThreshold is the mass fraction above which
              species start the importance search.`,
			defaultVal: 1e-3,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Reduction.InitialSet",
			usage: `
              Reduction.InitialSet lists species that always start the
              importance search.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Reduction.IncludeOnTie",
			usage: `
              Reduction.IncludeOnTie specifies whether species with
              importance exactly equal to Reduction.Tolerance are kept.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Integrator.RelTol",
			usage: `
              Integrator.RelTol is the relative error tolerance of the stiff
              integrator.`,
			defaultVal: 1e-4,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Integrator.AbsTol",
			usage: `
              Integrator.AbsTol is the absolute error tolerance of the stiff
              integrator.`,
			defaultVal: 1e-8,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Integrator.MaxSubSteps",
			usage: `
              Integrator.MaxSubSteps is the maximum number of sub-step
              attempts in one time step.`,
			defaultVal: 10000,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TabulationEnabled",
			usage: `
              TabulationEnabled specifies whether integration results are
              tabulated and reused.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Tabulation.Tolerance",
			usage: `
              Tabulation.Tolerance is the allowed error of a retrieved
              result.`,
			defaultVal: 1e-3,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Tabulation.MaxEntries",
			usage: `
              Tabulation.MaxEntries is the maximum number of stored results.
              Zero means no limit.`,
			defaultVal: 5000,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Tabulation.MaxRadius",
			usage: `
              Tabulation.MaxRadius is the largest allowed radius of the
              region of accuracy of a stored result.`,
			defaultVal: 0.1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Tabulation.MaxFailures",
			usage: `
              Tabulation.MaxFailures is the number of failed accuracy checks
              after which a stored result is removed.`,
			defaultVal: 3,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Tabulation.CheckFactor",
			usage: `
              Tabulation.CheckFactor is the multiple of the tolerance above
              which an accuracy check counts as failed.`,
			defaultVal: 2.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Tabulation.ScaleT",
			usage: `
              Tabulation.ScaleT is the temperature scale [K] of the query
              descriptor.`,
			defaultVal: 1000.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Tabulation.ScaleP",
			usage: `
              Tabulation.ScaleP is the pressure scale [Pa] of the query
              descriptor.`,
			defaultVal: 1e5,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Tabulation.ScaleDt",
			usage: `
              Tabulation.ScaleDt is the time step scale [s] of the query
              descriptor.`,
			defaultVal: 1e-3,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "VariableTimeStep",
			usage: `
              VariableTimeStep specifies whether each cell starts integration
              from the sub-step it last used.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of cells processed concurrently. Zero
              means one per processor.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "FallbackToLastGood",
			usage: `
              FallbackToLastGood specifies whether a cell whose state is
              outside of the valid domain keeps its previous state instead
              of stopping the simulation.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Combustion",
			usage: `
              Combustion is the combustion model: "laminar" or "EDC".`,
			defaultVal: "laminar",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogDir",
			usage: `
              LogDir is the directory where reduction and tabulation
              statistics are written, in a TDAC subdirectory. It can include
              environment variables. If empty, statistics are not written.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("TDAC")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(mechanismCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("tdac: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "tdac",
	Short: "A chemistry solver with mechanism reduction and tabulation.",
	Long: `TDAC integrates stiff chemical kinetics in a set of cells, accelerated by
dynamic mechanism reduction and by tabulation of previous results.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'TDAC_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of TDAC.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("TDAC v%s\n", tdac.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that runs a batch reactor simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a batch reactor simulation.",
	Long: `run advances the chemistry in a set of independent constant-pressure
cells with evenly spaced temperatures, and writes the requested output
variables after every time step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := ChemistryConfig(Cfg)
		if err != nil {
			return err
		}
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		m, err := LoadMechanism(context.Background(), Cfg.GetString("Mechanism"))
		if err != nil {
			return err
		}
		cells, err := CaseCells(Cfg, m)
		if err != nil {
			return err
		}
		vars, err := GetStringMapString("OutputVariables", Cfg)
		if err != nil {
			return err
		}
		return Run(context.Background(), cmd.OutOrStdout(),
			checkLogFile(Cfg.GetString("LogFile"), outputFile),
			outputFile,
			os.ExpandEnv(Cfg.GetString("PlotFile")),
			vars,
			m, c, cells,
			Cfg.GetFloat64("TimeStep"),
			Cfg.GetInt("NumSteps"),
			Cfg.GetBool("NormalizeProfile"),
		)
	},
	DisableAutoGenTag: true,
}

// mechanismCmd is a command that prints a summary of a mechanism.
var mechanismCmd = &cobra.Command{
	Use:   "mechanism",
	Short: "Print a chemical mechanism.",
	Long: `mechanism prints the species and reactions of the mechanism specified
by the Mechanism configuration variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := LoadMechanism(context.Background(), Cfg.GetString("Mechanism"))
		if err != nil {
			return err
		}
		return PrintMechanism(cmd.OutOrStdout(), m)
	},
	DisableAutoGenTag: true,
}
