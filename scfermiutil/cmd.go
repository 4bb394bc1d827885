/*
Copyright © 2025 the SCFermi authors.
This file is part of SCFermi.

SCFermi is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SCFermi is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SCFermi.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package scfermiutil holds the configuration and command-line interface
// of the scfermi program.
package scfermiutil

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/materialsmodel/scfermi"
	_ "github.com/materialsmodel/scfermi/backend/scfermi"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to SCFermi.
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
			name: "InputFile",
			usage: `
              InputFile is the path to the TOML file describing the defect
              system: the bulk density of states, the defect entries and the
              chemical potential limits.`,
			shorthand:  "i",
			defaultVal: "scfermi.toml",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path of the CSV file to write the results to.
              If empty, results are written to standard output.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Backend",
			usage: `
              Backend selects the charge-neutrality solving strategy. If
              empty, the sc-fermi backend is used when available, otherwise
              the native one.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Limit",
			usage: `
              Limit selects the chemical potential limit to solve at: a limit
              label from the input file, or "X-rich"/"X-poor" where X is an
              element. If empty, a single limit is used as-is, or the
              alphabetically first one.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Temperature",
			usage: `
              Temperature is the temperature [K] for equilibrium solves.`,
			defaultVal: 300.0,
			flagsets: []*pflag.FlagSet{solveCmd.Flags(), scanDopantCmd.Flags(),
				scanGridCmd.Flags(), interpolateCmd.Flags(), minmaxCmd.Flags()},
		},
		{
			name: "AnnealingTemperature",
			usage: `
              AnnealingTemperature is the temperature [K] at which defect
              concentrations equilibrate before quenching. Setting it switches
              the solve to pseudo-equilibrium; QuenchingTemperature must then
              also be set.`,
			defaultVal: 0.0,
			flagsets: []*pflag.FlagSet{solveCmd.Flags(), scanDopantCmd.Flags(),
				scanGridCmd.Flags(), interpolateCmd.Flags(), minmaxCmd.Flags()},
		},
		{
			name: "QuenchingTemperature",
			usage: `
              QuenchingTemperature is the temperature [K] the system is
              quenched to under the frozen-defect approximation.`,
			defaultVal: 0.0,
			flagsets: []*pflag.FlagSet{solveCmd.Flags(), scanDopantCmd.Flags(),
				scanGridCmd.Flags(), interpolateCmd.Flags(), minmaxCmd.Flags()},
		},
		{
			name: "Dopant",
			usage: `
              Dopant is a fixed effective dopant concentration [cm^-3]
              included in the charge neutrality condition: positive for
              donors, negative for acceptors.`,
			defaultVal: 0.0,
			flagsets: []*pflag.FlagSet{solveCmd.Flags(), scanTempCmd.Flags(),
				scanGridCmd.Flags(), interpolateCmd.Flags(), minmaxCmd.Flags()},
		},
		{
			name: "FixChargeStates",
			usage: `
              FixChargeStates freezes individual charge-state concentrations
              on quenching rather than per-species totals. Only meaningful
              with the sc-fermi backend.`,
			defaultVal: false,
			flagsets: []*pflag.FlagSet{solveCmd.Flags(), scanTempCmd.Flags(),
				scanDopantCmd.Flags(), scanGridCmd.Flags(), interpolateCmd.Flags(), minmaxCmd.Flags()},
		},
		{
			name: "FreeDefects",
			usage: `
              FreeDefects lists defect species exempt from the frozen-defect
              constraint, e.g. highly mobile species. Only meaningful with the
              sc-fermi backend.`,
			defaultVal: []string{},
			flagsets: []*pflag.FlagSet{solveCmd.Flags(), scanTempCmd.Flags(),
				scanDopantCmd.Flags(), scanGridCmd.Flags(), interpolateCmd.Flags(), minmaxCmd.Flags()},
		},
		{
			name: "Processes",
			usage: `
              Processes is the number of concurrent solves used by the scan
              commands.`,
			defaultVal: 1,
			flagsets: []*pflag.FlagSet{scanCmd.PersistentFlags(), minmaxCmd.Flags()},
		},
		{
			name: "Temperatures",
			usage: `
              Temperatures is the list of temperatures [K] for an equilibrium
              temperature scan.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{scanTempCmd.Flags()},
		},
		{
			name: "AnnealingTemperatures",
			usage: `
              AnnealingTemperatures is the list of annealing temperatures [K]
              for a pseudo-equilibrium temperature scan. Requires
              QuenchingTemperatures.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{scanTempCmd.Flags()},
		},
		{
			name: "QuenchingTemperatures",
			usage: `
              QuenchingTemperatures is the list of quenching temperatures [K]
              for a pseudo-equilibrium temperature scan. Requires
              AnnealingTemperatures.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{scanTempCmd.Flags()},
		},
		{
			name: "Dopants",
			usage: `
              Dopants is the list of effective dopant concentrations [cm^-3]
              for a dopant scan.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{scanDopantCmd.Flags()},
		},
		{
			name: "NPoints",
			usage: `
              NPoints is the number of points per axis for grid scans, or the
              number of interpolated sets for chemical-potential
              interpolation.`,
			defaultVal: 10,
			flagsets: []*pflag.FlagSet{scanGridCmd.Flags(), interpolateCmd.Flags(),
				minmaxCmd.Flags()},
		},
		{
			name: "StartLimit",
			usage: `
              StartLimit is the chemical potential limit at the start of an
              interpolation.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{interpolateCmd.Flags()},
		},
		{
			name: "EndLimit",
			usage: `
              EndLimit is the chemical potential limit at the end of an
              interpolation.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{interpolateCmd.Flags()},
		},
		{
			name: "Target",
			usage: `
              Target is the quantity optimized by minmax: a result column
              such as "Electrons (cm^-3)" or "Fermi Level", or a defect
              species name, in which case its concentration is optimized.`,
			defaultVal: "Electrons (cm^-3)",
			flagsets:   []*pflag.FlagSet{minmaxCmd.Flags()},
		},
		{
			name: "Sense",
			usage: `
              Sense specifies whether to "min"imize or "max"imize the target.`,
			defaultVal: "min",
			flagsets:   []*pflag.FlagSet{minmaxCmd.Flags()},
		},
		{
			name: "Tolerance",
			usage: `
              Tolerance is the relative change in the target below which the
              minmax search stops.`,
			defaultVal: 0.01,
			flagsets:   []*pflag.FlagSet{minmaxCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("SCFERMI")

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
	Root.AddCommand(solveCmd)
	Root.AddCommand(scanCmd)
	scanCmd.AddCommand(scanTempCmd)
	scanCmd.AddCommand(scanDopantCmd)
	scanCmd.AddCommand(scanGridCmd)
	scanCmd.AddCommand(interpolateCmd)
	Root.AddCommand(minmaxCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("scfermi: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "scfermi",
	Short: "A self-consistent Fermi level and defect concentration solver.",
	Long: `SCFermi solves for the self-consistent Fermi level and the defect and
carrier concentrations of a semiconductor under the constraint of charge
neutrality, at thermodynamic equilibrium or under the frozen-defect
(pseudo-equilibrium) approximation. Use the subcommands specified below
to access the solver functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SCFERMI_var' where 'var' is
the name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of SCFermi.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("SCFermi v%s\n", scfermi.Version)
	},
	DisableAutoGenTag: true,
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve for the self-consistent Fermi level.",
	Long: `solve performs a single charge-neutrality solve at one chemical
potential limit: at thermodynamic equilibrium when only Temperature is
given, or under the frozen-defect approximation when AnnealingTemperature
and QuenchingTemperature are both given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := solver()
		if err != nil {
			return err
		}
		set, err := limitChempots(s)
		if err != nil {
			return err
		}
		opts := solveOptions()
		var table *scfermi.Table
		if anneal, quench := Cfg.GetFloat64("AnnealingTemperature"), Cfg.GetFloat64("QuenchingTemperature"); anneal != 0 || quench != 0 {
			if anneal == 0 || quench == 0 {
				return fmt.Errorf("scfermi: you must specify both annealing and quenching temperature, or just temperature")
			}
			table, err = s.PseudoEquilibriumSolve(set, anneal, quench, opts)
		} else {
			table, err = s.EquilibriumSolve(set, Cfg.GetFloat64("Temperature"), opts)
		}
		if err != nil {
			return err
		}
		return writeResults(table)
	},
	DisableAutoGenTag: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a parameter space.",
	Long: `scan solves for the Fermi level and concentrations over a parameter
range. Use the subcommands specified below to choose the scanned
parameter.`,
	DisableAutoGenTag: true,
}

var scanTempCmd = &cobra.Command{
	Use:   "temperature",
	Short: "Scan over temperatures.",
	Long: `temperature solves at each temperature in Temperatures, or at each
annealing/quenching combination when AnnealingTemperatures and
QuenchingTemperatures are both given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := solver()
		if err != nil {
			return err
		}
		ranges := scfermi.TemperatureRanges{}
		if ranges.Temperatures, err = toFloats(Cfg.GetStringSlice("Temperatures")); err != nil {
			return err
		}
		if ranges.Annealing, err = toFloats(Cfg.GetStringSlice("AnnealingTemperatures")); err != nil {
			return err
		}
		if ranges.Quenched, err = toFloats(Cfg.GetStringSlice("QuenchingTemperatures")); err != nil {
			return err
		}
		table, err := s.ScanTemperature(ranges, scanOptions())
		if err != nil {
			return err
		}
		return writeResults(table)
	},
	DisableAutoGenTag: true,
}

var scanDopantCmd = &cobra.Command{
	Use:   "dopant",
	Short: "Scan over effective dopant concentrations.",
	Long: `dopant solves at each effective dopant concentration in Dopants, at
the temperature (or annealing/quenching pair) given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := solver()
		if err != nil {
			return err
		}
		dopants, err := toFloats(Cfg.GetStringSlice("Dopants"))
		if err != nil {
			return err
		}
		table, err := s.ScanDopantConcentration(dopants, scanOptions())
		if err != nil {
			return err
		}
		return writeResults(table)
	},
	DisableAutoGenTag: true,
}

var scanGridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Scan a chemical-potential grid.",
	Long: `grid solves at every point of a grid spanning the stability region
bounded by the chemical potential limits of the input file, with NPoints
points along each independent axis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := solver()
		if err != nil {
			return err
		}
		table, err := s.ScanChemicalPotentialGrid(Cfg.GetInt("NPoints"), scanOptions())
		if err != nil {
			return err
		}
		return writeResults(table)
	},
	DisableAutoGenTag: true,
}

var interpolateCmd = &cobra.Command{
	Use:   "interpolate",
	Short: "Scan between two chemical-potential limits.",
	Long: `interpolate solves at NPoints chemical-potential sets linearly
interpolated between StartLimit and EndLimit, endpoints included.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := solver()
		if err != nil {
			return err
		}
		endpoints := scfermi.ChempotEndpoints{
			StartLimit: Cfg.GetString("StartLimit"),
			EndLimit:   Cfg.GetString("EndLimit"),
		}
		table, err := s.InterpolateChempots(Cfg.GetInt("NPoints"), endpoints, scanOptions())
		if err != nil {
			return err
		}
		return writeResults(table)
	},
	DisableAutoGenTag: true,
}

var minmaxCmd = &cobra.Command{
	Use:   "minmax",
	Short: "Search for extremal chemical potentials.",
	Long: `minmax searches the chemical-potential space for the point that
minimizes or maximizes the target quantity, by repeatedly solving on a
grid and contracting it toward the best point.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := solver()
		if err != nil {
			return err
		}
		opts := scfermi.MinMaxOptions{
			Tolerance:            Cfg.GetFloat64("Tolerance"),
			NPoints:              Cfg.GetInt("NPoints"),
			Temperature:          Cfg.GetFloat64("Temperature"),
			AnnealingTemperature: Cfg.GetFloat64("AnnealingTemperature"),
			QuenchedTemperature:  Cfg.GetFloat64("QuenchingTemperature"),
			Processes:            Cfg.GetInt("Processes"),
			Solve:                solveOptions(),
		}
		table, err := s.MinMax(Cfg.GetString("Target"), Cfg.GetString("Sense"), opts)
		if err != nil {
			return err
		}
		return writeResults(table)
	},
	DisableAutoGenTag: true,
}

// solver builds a FermiSolver from the input file and backend choice.
func solver() (*scfermi.FermiSolver, error) {
	input, err := ReadInput(Cfg.GetString("InputFile"))
	if err != nil {
		return nil, err
	}
	s, err := input.Solver(Cfg.GetString("Backend"))
	if err != nil {
		return nil, err
	}
	logrus.WithField("backend", s.BackendName()).Info("solver ready")
	return s, nil
}

// limitChempots resolves the Limit option against the solver's
// chemical-potential limits.
func limitChempots(s *scfermi.FermiSolver) (map[string]float64, error) {
	limit := Cfg.GetString("Limit")
	if limit != "" {
		return s.Chempots().Limit(limit)
	}
	return s.Chempots().FirstLimit(), nil
}

func solveOptions() scfermi.SolveOptions {
	return scfermi.SolveOptions{
		EffectiveDopantConcentration: Cfg.GetFloat64("Dopant"),
		FixChargeStates:              Cfg.GetBool("FixChargeStates"),
		FreeDefects:                  Cfg.GetStringSlice("FreeDefects"),
	}
}

func scanOptions() scfermi.ScanOptions {
	return scfermi.ScanOptions{
		Limit:                Cfg.GetString("Limit"),
		Temperature:          Cfg.GetFloat64("Temperature"),
		AnnealingTemperature: Cfg.GetFloat64("AnnealingTemperature"),
		QuenchedTemperature:  Cfg.GetFloat64("QuenchingTemperature"),
		Processes:            Cfg.GetInt("Processes"),
		Solve:                solveOptions(),
	}
}

// toFloats converts the string values of a slice flag to numbers.
func toFloats(ss []string) ([]float64, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	out := make([]float64, len(ss))
	for i, s := range ss {
		v, err := cast.ToFloat64E(s)
		if err != nil {
			return nil, fmt.Errorf("scfermi: invalid number %q: %v", s, err)
		}
		out[i] = v
	}
	return out, nil
}

// writeResults writes a result table to OutputFile, or to standard
// output when it is empty.
func writeResults(t *scfermi.Table) error {
	if path := Cfg.GetString("OutputFile"); path != "" {
		logrus.WithFields(logrus.Fields{"rows": t.Len(), "file": path}).Info("writing results")
		return WriteTableFile(path, t)
	}
	return WriteTable(Root.OutOrStdout(), t)
}
