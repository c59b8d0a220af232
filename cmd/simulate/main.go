// Command simulate packs an order-line spreadsheet offline and writes the box
// report next to it.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/box-simulator/internal/logging"
	"github.com/eugenenazirov/box-simulator/internal/packer"
	"github.com/eugenenazirov/box-simulator/internal/sheet"
	"github.com/eugenenazirov/box-simulator/internal/simulation"
	"github.com/eugenenazirov/box-simulator/internal/storage"
)

type options struct {
	input                string
	output               string
	sheet                string
	encoding             string
	volumeMax            float64
	weightMax            float64
	ignoreArm            bool
	convertPackageToUnit bool
	logLevel             string
}

func main() {
	app := kingpin.New("simulate", "Pack an order-line spreadsheet into boxes and write the report workbook")
	opts := registerFlags(app)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger, err := logging.NewConsole(opts.logLevel)
	if err != nil {
		app.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *opts, os.Stdout, logger); err != nil {
		logger.Error("simulation failed", zap.Error(err))
		os.Exit(1)
	}
}

func registerFlags(app *kingpin.Application) *options {
	opts := &options{}
	app.Arg("input", "Order lines as .xlsx or .csv").Required().ExistingFileVar(&opts.input)
	app.Flag("output", "Report path; defaults to <input>_caixas.xlsx").Short('o').StringVar(&opts.output)
	app.Flag("sheet", "Worksheet holding the order lines").Default(sheet.DefaultSheet).StringVar(&opts.sheet)
	app.Flag("encoding", "CSV encoding (utf-8, windows-1252, iso-8859-1)").Default("utf-8").StringVar(&opts.encoding)
	app.Flag("volume-max", "Box volume limit in litres").Default("37").Float64Var(&opts.volumeMax)
	app.Flag("weight-max", "Box weight limit in kilograms").Default("20").Float64Var(&opts.weightMax)
	app.Flag("ignore-arm", "Group demand by store only").BoolVar(&opts.ignoreArm)
	app.Flag("convert-package-to-unit", "Replace PAC quantities with the units requested").BoolVar(&opts.convertPackageToUnit)
	app.Flag("log-level", "Log level (debug, info, warn, error)").Default("info").StringVar(&opts.logLevel)
	return opts
}

func run(ctx context.Context, opts options, out io.Writer, logger *zap.Logger) error {
	in, err := os.Open(opts.input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer func() {
		_ = in.Close()
	}()

	table, err := sheet.Read(in, opts.input, sheet.ReadOptions{Sheet: opts.sheet, Encoding: opts.encoding})
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.input, err)
	}
	logger.Debug("order lines loaded",
		zap.Int("lines", len(table.Lines)),
		zap.Bool("has_arm", table.HasArm),
		zap.Bool("has_history", table.HasHistory),
	)

	service := simulation.New(packer.New(), storage.NewMemoryStorage(1), logger)
	req := simulation.FromTable(table, filepath.Base(opts.input))
	req.VolumeMax = &opts.volumeMax
	req.WeightMax = &opts.weightMax
	req.IgnoreArm = &opts.ignoreArm
	req.ConvertPackageToUnit = &opts.convertPackageToUnit

	result, err := service.Run(ctx, req)
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = defaultOutput(opts.input)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := sheet.WriteReport(f, result.Report); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}

	printSummary(out, result.Report, output)
	return nil
}

func defaultOutput(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_caixas.xlsx"
}

func printSummary(w io.Writer, report packer.Report, output string) {
	sel := report.Selection
	fmt.Fprintf(w, "Method:            %s\n", sel.Policy)
	fmt.Fprintf(w, "Boxes:             %d (FFD %d, BFD %d)\n", sel.BoxCount, sel.FirstFitBoxes, sel.BestFitBoxes)
	if sel.OversizedBoxes > 0 {
		fmt.Fprintf(w, "Oversized boxes:   %d\n", sel.OversizedBoxes)
	}
	fmt.Fprintf(w, "Volume efficiency: %.1f%%\n", report.Efficiency.VolumePercent)
	fmt.Fprintf(w, "Weight efficiency: %.1f%%\n", report.Efficiency.WeightPercent)
	if report.Comparison != nil {
		historical, generated := 0, 0
		for _, row := range report.Comparison {
			historical += row.HistoricalBoxes
			generated += row.GeneratedBoxes
		}
		fmt.Fprintf(w, "Historical boxes:  %d (difference %+d)\n", historical, generated-historical)
	}
	fmt.Fprintf(w, "Report:            %s\n", output)
}
