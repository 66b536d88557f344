// Package synthpoputil wires the synthpop engine and builder up to a
// cobra command tree, mirroring inmaputil's role for InMAP: the cmd
// package itself stays a thin main() while this package owns flag
// definitions, config loading, and the actual stage invocations.
package synthpoputil

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dsnet-sim/synthpop"
	"github.com/dsnet-sim/synthpop/census"
	"github.com/dsnet-sim/synthpop/config"
)

// Cfg bundles the cobra commands and shared flag state, the way
// inmaputil.Cfg bundles Root alongside its subcommands.
type Cfg struct {
	Root *cobra.Command

	configPath string
	log        *logrus.Logger

	populationFile string
	ageFile        string
	occupationFile string
	odFile         string
	shapeFile      string
	osmFile        string
	worldFile      string
	outFile        string
	maxHours       int
}

// Root builds the command tree: synthpop build|run|bench.
func Root() *cobra.Command {
	cfg := &Cfg{log: logrus.New()}

	cfg.Root = &cobra.Command{
		Use:   "synthpop",
		Short: "Synthetic-population epidemic simulator.",
		Long: `synthpop builds a census-and-map-derived synthetic population and
steps an SEIR-with-interventions epidemic model over it hour by hour.
Use the subcommands below: "build" joins the census tables and OSM
building extract into a World file, "run" steps a built World and
writes per-step statistics, "bench" times a fixed number of steps
without writing output.`,
		DisableAutoGenTag: true,
	}
	cfg.Root.PersistentFlags().StringVar(&cfg.configPath, "config", "", "path to a TOML configuration file")

	cfg.Root.AddCommand(cfg.buildCmd(), cfg.runCmd(), cfg.benchCmd())
	return cfg.Root
}

func (cfg *Cfg) buildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Join census tables and the OSM building extract into a World file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.runBuild()
		},
		DisableAutoGenTag: true,
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.populationFile, "population", "", "population/density CSV")
	flags.StringVar(&cfg.ageFile, "age", "", "age-structure CSV")
	flags.StringVar(&cfg.occupationFile, "occupation", "", "occupation-count CSV")
	flags.StringVar(&cfg.odFile, "od", "", "residence-workplace OD CSV")
	flags.StringVar(&cfg.shapeFile, "shapes", "", "output-area boundary shapefile, without .shp suffix")
	flags.StringVar(&cfg.osmFile, "osm", "", "OSM PBF building extract")
	flags.StringVar(&cfg.outFile, "out", "world.gob", "path to write the built World")
	return cmd
}

func (cfg *Cfg) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Step a built World through the epidemic model.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.runSimulation(false)
		},
		DisableAutoGenTag: true,
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.worldFile, "world", "world.gob", "path to a World file written by \"build\"")
	flags.StringVar(&cfg.outFile, "out", "statistics.csv", "path to write per-step statistics CSV")
	flags.IntVar(&cfg.maxHours, "hours", 0, "maximum hours to simulate (0 means disease.max_time_step_hours); stops early once no one is susceptible/exposed/infected")
	return cmd
}

func (cfg *Cfg) benchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time a fixed number of simulation steps without writing output.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.runSimulation(true)
		},
		DisableAutoGenTag: true,
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.worldFile, "world", "world.gob", "path to a World file written by \"build\"")
	flags.IntVar(&cfg.maxHours, "hours", 168, "number of hours to simulate")
	return cmd
}

func (cfg *Cfg) loadConfig() (config.Config, error) {
	if cfg.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(cfg.configPath)
}

func (cfg *Cfg) runBuild() error {
	c, err := cfg.loadConfig()
	if err != nil {
		return err
	}

	inputs, closeAll, err := cfg.openCensusInputs()
	if err != nil {
		return err
	}
	defer closeAll()

	tables, err := census.Load(inputs, cfg.log)
	if err != nil {
		return errors.Wrap(err, "synthpop: loading census tables")
	}
	if len(tables.Codes) == 0 {
		return errors.New("synthpop: no output area survived the census join")
	}

	buildings, err := census.LoadOSMBuildings(cfg.osmFile)
	if err != nil {
		return errors.Wrap(err, "synthpop: loading OSM building extract")
	}

	world, report, err := synthpop.Build(tables, buildings, c, cfg.log)
	if err != nil {
		return errors.Wrap(err, "synthpop: building world")
	}
	for _, dropped := range report.DroppedAreas {
		cfg.log.Warn("synthpop: dropped area during build: " + dropped)
	}

	if err := synthpop.SaveWorld(world, cfg.outFile); err != nil {
		return err
	}
	cfg.log.WithField("citizens", len(world.Citizens)).Info("synthpop: build complete")
	return nil
}

func (cfg *Cfg) openCensusInputs() (census.Inputs, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	open := func(path string) (*os.File, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "synthpop: opening %s", path)
		}
		files = append(files, f)
		return f, nil
	}

	pop, err := open(cfg.populationFile)
	if err != nil {
		closeAll()
		return census.Inputs{}, func() {}, err
	}
	age, err := open(cfg.ageFile)
	if err != nil {
		closeAll()
		return census.Inputs{}, func() {}, err
	}
	occ, err := open(cfg.occupationFile)
	if err != nil {
		closeAll()
		return census.Inputs{}, func() {}, err
	}
	od, err := open(cfg.odFile)
	if err != nil {
		closeAll()
		return census.Inputs{}, func() {}, err
	}

	return census.Inputs{
		Population: pop,
		Age:        age,
		Occupation: occ,
		OD:         od,
		ShapeFile:  cfg.shapeFile,
	}, closeAll, nil
}

func (cfg *Cfg) runSimulation(bench bool) error {
	c, err := cfg.loadConfig()
	if err != nil {
		return err
	}

	world, err := synthpop.LoadWorld(cfg.worldFile)
	if err != nil {
		return err
	}

	engine := synthpop.NewEngine(world, c, cfg.log)

	if bench {
		start := time.Now()
		steps := 0
		for i := 0; i < cfg.maxHours; i++ {
			if !engine.Running() {
				break
			}
			if _, err := engine.Step(); err != nil {
				return err
			}
			steps++
		}
		elapsed := time.Since(start)
		fmt.Printf("synthpop: ran %d steps over %d citizens in %s (%s/step)\n",
			steps, len(world.Citizens), elapsed, elapsed/time.Duration(max(steps, 1)))
		return nil
	}

	out, err := os.Create(cfg.outFile)
	if err != nil {
		return errors.Wrapf(err, "synthpop: creating output file %s", cfg.outFile)
	}
	defer out.Close()

	w := synthpop.NewCSVWriter(out)
	defer w.Flush()
	if err := w.Write(synthpop.CSVHeader); err != nil {
		return err
	}

	var sink *synthpop.SQLiteSink
	if c.Output.SQLitePath != "" {
		sink, err = synthpop.OpenSQLiteSink(c.Output.SQLitePath)
		if err != nil {
			return err
		}
		defer sink.Close()
	}

	maxHours := cfg.maxHours
	if maxHours <= 0 {
		maxHours = c.Disease.MaxTimeStepHours
	}
	return engine.Run(maxHours, func(stats synthpop.Statistics) {
		if err := synthpop.WriteCSVRow(w, stats); err != nil {
			cfg.log.WithError(err).Error("synthpop: writing statistics row")
		}
		if c.Output.PerAreaBreakdown {
			if err := synthpop.WritePerAreaCSVRows(w, stats); err != nil {
				cfg.log.WithError(err).Error("synthpop: writing per-area statistics rows")
			}
		}
		if sink != nil {
			if err := sink.Write(stats); err != nil {
				cfg.log.WithError(err).Error("synthpop: writing sqlite statistics row")
			}
		}
	})
}
