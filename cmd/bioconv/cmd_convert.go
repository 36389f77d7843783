package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bioconv/internal/converter"
	"bioconv/internal/item"
	"bioconv/internal/logging"
	"bioconv/internal/metrics"
	"bioconv/internal/model"
	"bioconv/internal/source"
	"bioconv/internal/store"
	"bioconv/internal/task"
	"bioconv/resources"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	convertName    string
	convertDir     string
	convertInclude []string
	convertExclude []string
	convertS3      bool
	convertDryRun  bool
	convertXML     string
	convertPost    bool
	convertClean   bool
	convertModel   string
	convertOSName  string
	convertMetrics string
)

// convertCmd runs a converter over the input files.
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert identifier files into items",
	Long: `Finds input files (a local directory or an S3 bucket), runs the converter
over them in path order and stores the items.

Examples:
  bioconv convert --dir /data/vectorbase
  bioconv convert --s3 --include '**/*Genes*.gz'
  bioconv convert --dir . --dry-run --xml items.xml`,
	Args: cobra.NoArgs,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertName, "converter", converter.IdentifiersName, "Converter to run")
	convertCmd.Flags().StringVar(&convertDir, "dir", "", "Input directory (default: source.dir)")
	convertCmd.Flags().StringSliceVar(&convertInclude, "include", nil, "Include pattern, doublestar syntax (repeatable)")
	convertCmd.Flags().StringSliceVar(&convertExclude, "exclude", nil, "Exclude pattern, doublestar syntax (repeatable)")
	convertCmd.Flags().BoolVar(&convertS3, "s3", false, "Read input files from the configured S3 bucket")
	convertCmd.Flags().BoolVar(&convertDryRun, "dry-run", false, "Convert in memory without writing the items database")
	convertCmd.Flags().StringVar(&convertXML, "xml", "", "Also write items as XML to this file")
	convertCmd.Flags().BoolVar(&convertPost, "post-process", false, "Run post-load SQL maintenance after converting")
	convertCmd.Flags().BoolVar(&convertClean, "clean", true, "Delete previously loaded items before loading")
	convertCmd.Flags().StringVar(&convertModel, "model", "", "Model name or YAML file (default: converter model)")
	convertCmd.Flags().StringVar(&convertOSName, "os-name", "", "Named object store from config (default: store)")
	convertCmd.Flags().StringVar(&convertMetrics, "metrics-file", "", "Write Prometheus textfile metrics here")
}

func runConvert(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := commandContext()
	defer cancel()

	m := metrics.New()
	cc := cfg.Converter(convertName)

	modelName := convertModel
	if modelName == "" {
		modelName = cc.Model
	}
	mdl, err := loadModel(modelName)
	if err != nil {
		return err
	}

	var (
		sqlStore *store.SQLStore
		mem      *store.MemoryStore
		primary  store.ItemWriter
	)
	if convertDryRun {
		mem = store.NewMemoryStore()
		primary = mem
	} else {
		sqlStore, err = openStore(ctx, convertOSName)
		if err != nil {
			return err
		}
		primary = sqlStore
	}

	var xmlWriter store.ItemWriter
	if convertXML != "" {
		if err := os.MkdirAll(filepath.Dir(convertXML), 0755); err != nil {
			return fmt.Errorf("failed to create xml directory: %w", err)
		}
		f, err := os.Create(convertXML)
		if err != nil {
			primary.Close()
			return fmt.Errorf("failed to create xml output: %w", err)
		}
		xmlWriter = store.NewXMLWriter(f, mdl)
	}

	writer := store.NewMultiWriter(primary, xmlWriter)
	defer writer.Close()

	var (
		runID    string
		finished bool
	)
	if sqlStore != nil {
		if convertClean {
			if err := sqlStore.Clear(ctx); err != nil {
				return err
			}
		}
		if runID, err = sqlStore.BeginRun(ctx, convertName); err != nil {
			return err
		}
		// Runs before the deferred Close so a failed run commits nothing more.
		defer func() {
			if err != nil && !finished {
				if ferr := sqlStore.FailRun(context.Background(), runID, err); ferr != nil {
					logger.Warn("Could not record failed run", zap.Error(ferr))
				}
			}
		}()
	}

	conv, err := converter.New(ctx, convertName, converter.Options{
		Writer:     writer,
		Model:      mdl,
		Metrics:    m,
		Encoding:   cfg.Source.Encoding,
		DataSource: cc.DataSource,
		DataSet:    cc.DataSet,
		TaxonID:    cc.TaxonID,
	})
	if err != nil {
		return err
	}

	lister, err := buildLister()
	if err != nil {
		return err
	}
	found, err := lister.List(ctx)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		logger.Warn("No input files matched")
	}
	files := make([]converter.File, len(found))
	for i, f := range found {
		files[i] = f
	}

	timer := logging.StartTimer(logging.CategoryConvert, "convert run")
	if err := converter.ConvertFiles(ctx, conv, files, m); err != nil {
		return err
	}
	if err := conv.Close(ctx); err != nil {
		return err
	}
	elapsed := timer.Stop()

	var counts []store.ClassCount
	if sqlStore != nil {
		if err := sqlStore.FinishRun(ctx, runID); err != nil {
			return err
		}
		finished = true
		if counts, err = sqlStore.CountByClass(ctx); err != nil {
			return err
		}
		if convertPost || cfg.PostProcess.Enabled {
			if err := postProcess(ctx, sqlStore, m, convertOSName, postProcessModel(modelName), cfg.PostProcess.SQLDir); err != nil {
				return err
			}
		}
	} else {
		counts = countItems(mem.Items())
	}

	if err := writer.Close(); err != nil {
		return err
	}

	if path := firstNonEmpty(convertMetrics, cfg.Metrics.Textfile); path != "" {
		if err := m.WriteTextfile(path); err != nil {
			return err
		}
	}

	logger.Info("Conversion finished",
		zap.String("converter", convertName),
		zap.Int("files", len(files)),
		zap.Duration("elapsed", elapsed),
		zap.String("run_id", runID))
	printSummary(cmd.OutOrStdout(), len(files), counts)
	return nil
}

func loadModel(name string) (*model.Model, error) {
	if isModelFile(name) {
		return model.LoadFile(name)
	}
	return model.Load(resources.FS, name)
}

// postProcessModel picks the SQL resource model for the model a load used.
// A model given as a YAML file falls back to the configured post_process.model.
func postProcessModel(loadModel string) string {
	if loadModel != "" && !isModelFile(loadModel) {
		return loadModel
	}
	return cfg.PostProcess.Model
}

func isModelFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func openStore(ctx context.Context, osName string) (*store.SQLStore, error) {
	sc, err := cfg.ObjectStore(osName)
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, store.Options{Driver: sc.Driver, DSN: sc.DSN, BatchSize: sc.BatchSize})
}

func buildLister() (source.Lister, error) {
	includes := convertInclude
	if len(includes) == 0 {
		includes = cfg.Source.Includes
	}
	excludes := convertExclude
	if len(excludes) == 0 {
		excludes = cfg.Source.Excludes
	}

	if convertS3 || cfg.Source.Type == "s3" {
		s3 := cfg.Source.S3
		return source.NewS3(source.S3Config{
			Endpoint:    s3.Endpoint,
			Region:      s3.Region,
			AccessKey:   s3.AccessKey,
			SecretKey:   s3.SecretKey,
			Bucket:      s3.Bucket,
			Prefix:      s3.Prefix,
			UseSSL:      s3.UseSSL,
			Includes:    includes,
			Excludes:    excludes,
			CacheDir:    s3.CacheDir,
			Parallelism: s3.Parallelism,
		})
	}
	return &source.Local{
		Dir:      firstNonEmpty(convertDir, cfg.Source.Dir),
		Includes: includes,
		Excludes: excludes,
	}, nil
}

func postProcess(ctx context.Context, target task.Target, m *metrics.Metrics, osName, modelName, sqlDir string) error {
	p := &task.PostProcessor{
		Model:   firstNonEmpty(modelName, model.DefaultName),
		OSName:  osName,
		Metrics: m,
	}
	if sqlDir != "" {
		p.Resources = os.DirFS(sqlDir)
	}
	return p.DoSQL(ctx, target)
}

func countItems(items []*item.Item) []store.ClassCount {
	byClass := make(map[string]int)
	for _, it := range items {
		byClass[it.ClassName]++
	}
	counts := make([]store.ClassCount, 0, len(byClass))
	for class, n := range byClass {
		counts = append(counts, store.ClassCount{ClassName: class, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].ClassName < counts[j].ClassName })
	return counts
}

func printSummary(w io.Writer, files int, counts []store.ClassCount) {
	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(w, "Converted %d files\n", files)
	printCounts(w, counts)
}

func printCounts(w io.Writer, counts []store.ClassCount) {
	total := 0
	for _, c := range counts {
		fmt.Fprintf(w, "  %-14s %8d\n", c.ClassName, c.Count)
		total += c.Count
	}
	color.New(color.FgGreen).Fprintf(w, "  %-14s %8d\n", "total", total)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
