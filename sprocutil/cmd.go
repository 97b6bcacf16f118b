/*
Copyright © 2025 the sproc authors.
This file is part of sproc.

sproc is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

sproc is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with sproc.  If not, see <http://www.gnu.org/licenses/>.
*/

package sprocutil

import (
	"fmt"
	"math"
	"os"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sproc"
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
	// Options are the configuration options available to sproc.
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
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages. Acceptable values
              are 'debug', 'info', 'warning' and 'error'.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "flowsheet",
			usage: `
              flowsheet is the path to the TOML (.toml) or YAML (.yaml, .yml)
              file describing the plant. It can include environment variables.`,
			shorthand:  "f",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{resolveCmd.Flags(), optimizeCmd.Flags(), simulateCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired output spreadsheet (.xlsx). It can
              include environment variables. If OutputFile is left blank, results
              are only printed.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{resolveCmd.Flags(), optimizeCmd.Flags(), simulateCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left blank, the logfile will be saved in
              the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{resolveCmd.Flags(), optimizeCmd.Flags(), simulateCmd.Flags()},
		},
		{
			name: "method",
			usage: `
              method is the optimization method, either 'neldermead' or 'bfgs'.
              If left blank, the method in the flowsheet objective is used.`,
			shorthand:  "m",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{optimizeCmd.Flags()},
		},
		{
			name: "target",
			usage: `
              target is the desired production. If it is NaN, the target in the
              flowsheet objective is used.`,
			defaultVal: math.NaN(),
			flagsets:   []*pflag.FlagSet{optimizeCmd.Flags()},
		},
		{
			name: "unit",
			usage: `
              unit is the name of the unit whose dynamics are simulated.`,
			shorthand:  "u",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{simulateCmd.Flags()},
		},
		{
			name: "state",
			usage: `
              state is the initial state of the simulated unit, as a comma-separated
              list of numbers in the order given by 'sproc describe'.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{simulateCmd.Flags()},
		},
		{
			name: "duration",
			usage: `
              duration is the simulated time span in seconds.`,
			defaultVal: 100.0,
			flagsets:   []*pflag.FlagSet{simulateCmd.Flags()},
		},
		{
			name: "Integrator.RelTol",
			usage: `
              Integrator.RelTol is the relative error tolerance of the integrator.`,
			defaultVal: 1e-6,
			flagsets:   []*pflag.FlagSet{simulateCmd.Flags()},
		},
		{
			name: "Integrator.AbsTol",
			usage: `
              Integrator.AbsTol is the absolute error tolerance of the integrator.`,
			defaultVal: 1e-9,
			flagsets:   []*pflag.FlagSet{simulateCmd.Flags()},
		},
		{
			name: "Integrator.MaxSteps",
			usage: `
              Integrator.MaxSteps is the maximum number of integrator steps. The
              simulation stops early, with a partial trajectory, when it is reached.`,
			defaultVal: 100000,
			flagsets:   []*pflag.FlagSet{simulateCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("SPROC")
	Cfg.AutomaticEnv()

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
	Root.AddCommand(describeCmd)
	Root.AddCommand(resolveCmd)
	Root.AddCommand(optimizeCmd)
	Root.AddCommand(simulateCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("sproc: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "sproc",
	Short: "A steady-state and dynamic chemical process plant toolkit.",
	Long: `sproc resolves, optimizes and simulates chemical process plants built
from connected unit operations. Plants are described in flowsheet files.
Use the subcommands specified below to access the toolkit functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SPROC_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of sproc.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("sproc v%s\n", sproc.Version)
	},
	DisableAutoGenTag: true,
}

var describeCmd = &cobra.Command{
	Use:   "describe [type]",
	Short: "Describe a unit type.",
	Long: `describe prints the metadata of a unit type with its default parameters:
algorithms, parameters, ports, state variables, valid ranges, applications
and limitations. Without an argument it lists the available unit types.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var typ string
		if len(args) == 1 {
			typ = args[0]
		}
		return Describe(typ, cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a plant at steady state.",
	Long: `resolve computes the steady state of every unit and stream in a
flowsheet, iterating recycle loops to convergence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, out, log, closeLog, err := load(cmd)
		if err != nil {
			return err
		}
		defer closeLog()
		_, err = Resolve(fs, log, cmd.OutOrStdout(), out)
		return err
	},
	DisableAutoGenTag: true,
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize the free variables of a plant.",
	Long: `optimize adjusts the free variables of a flowsheet to bring production
to the target while keeping every unit within its valid operating ranges.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, out, log, closeLog, err := load(cmd)
		if err != nil {
			return err
		}
		defer closeLog()
		_, err = Optimize(fs, Cfg.GetString("method"), Cfg.GetFloat64("target"), log, cmd.OutOrStdout(), out)
		return err
	},
	DisableAutoGenTag: true,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate the dynamics of one unit.",
	Long: `simulate integrates the dynamic model of one unit of a flowsheet, with
its inputs held at their steady-state values, from the given initial state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		x0, err := parseFloats(Cfg.GetStringSlice("state"))
		if err != nil {
			return err
		}
		fs, out, log, closeLog, err := load(cmd)
		if err != nil {
			return err
		}
		defer closeLog()
		in := sproc.DefaultIntegrator()
		in.RelTol = Cfg.GetFloat64("Integrator.RelTol")
		in.AbsTol = Cfg.GetFloat64("Integrator.AbsTol")
		in.MaxSteps = Cfg.GetInt("Integrator.MaxSteps")
		_, err = Simulate(fs, Cfg.GetString("unit"), x0, Cfg.GetFloat64("duration"), in,
			log, cmd.OutOrStdout(), out)
		return err
	},
	DisableAutoGenTag: true,
}

// load reads the flowsheet and sets up the output and log files.
func load(cmd *cobra.Command) (fs *Flowsheet, outputFile string, log *logrus.Logger, closeLog func() error, err error) {
	path := Cfg.GetString("flowsheet")
	if path == "" {
		return nil, "", nil, nil, fmt.Errorf("sproc: you need to specify a flowsheet file (for example: --flowsheet=plant.toml)")
	}
	if fs, err = LoadFlowsheet(path); err != nil {
		return nil, "", nil, nil, err
	}
	if outputFile, err = checkOutputFile(Cfg.GetString("OutputFile")); err != nil {
		return nil, "", nil, nil, err
	}
	log, closeLog, err = newLogger(cmd.OutOrStdout(), checkLogFile(Cfg.GetString("LogFile"), outputFile),
		Cfg.GetString("LogLevel"))
	if err != nil {
		return nil, "", nil, nil, err
	}
	return fs, outputFile, log, closeLog, nil
}
