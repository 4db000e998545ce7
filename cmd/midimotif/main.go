// Package main is the entry point for the midimotif CLI
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/james-see/midimotif/pkg/analysis"
	"github.com/james-see/midimotif/pkg/api"
	"github.com/james-see/midimotif/pkg/codec"
	"github.com/james-see/midimotif/pkg/midifile"
	"github.com/james-see/midimotif/pkg/model"
	"github.com/james-see/midimotif/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	outputFile    string
	noMotifs      bool
	noDilation    bool
	minOccurrence int
	minLength     int
	maxLength     int
	similarity    float64
	minConfidence float64
	serverPort    int
	batchWorkers  int
	batchReport   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midimotif",
	Short: "Lossless motif-aware compression for MIDI note sequences",
	Long: `midimotif converts MIDI files into a compact, music-theory-aware
document format and back, deduplicating repeated melodic shapes (motifs)
while guaranteeing tick-exact, pitch-exact reconstruction.

Examples:
  midimotif encode song.mid -o song.mmz
  midimotif decode song.mmz -o song.mid
  midimotif verify song.mid
  midimotif analyze song.mid
  midimotif batch ./midi-library
  midimotif tui
  midimotif serve --port 8080`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var encodeCmd = &cobra.Command{
	Use:   "encode <input.mid>",
	Short: "Compress a MIDI file into a motif document",
	Args:  cobra.ExactArgs(1),
	RunE:  runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <input.mmz>",
	Short: "Expand a motif document back into a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <input.mid>",
	Short: "Encode, decode and check exact reconstruction",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <input.mid>",
	Short: "Report estimated keys and motif statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var batchCmd = &cobra.Command{
	Use:   "batch <directory>",
	Short: "Encode every MIDI file under a directory",
	Long:  `Walks the directory, encodes each .mid file alongside its source and writes an aggregate compression report. Files are independent and processed in parallel.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global codec flags
	rootCmd.PersistentFlags().BoolVar(&noMotifs, "no-motifs", false, "Disable the motif library, emit literals only")
	rootCmd.PersistentFlags().BoolVar(&noDilation, "no-dilation", false, "Disable the tempo-dilation search")
	rootCmd.PersistentFlags().IntVar(&minOccurrence, "min-occurrences", model.DefaultMinOccurrences, "Repeats beyond the original required to keep a motif")
	rootCmd.PersistentFlags().IntVar(&minLength, "min-length", model.DefaultMinMotifLength, "Minimum motif length in notes")
	rootCmd.PersistentFlags().IntVar(&maxLength, "max-length", model.DefaultMaxMotifLength, "Maximum motif length in notes")
	rootCmd.PersistentFlags().Float64Var(&similarity, "similarity", model.DefaultSimilarityThreshold, "Minimum pitch similarity for a match")
	rootCmd.PersistentFlags().Float64Var(&minConfidence, "min-confidence", model.DefaultMinConfidence, "Minimum average match confidence per motif")

	encodeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mmz file path")
	decodeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")

	batchCmd.Flags().IntVar(&batchWorkers, "workers", 4, "Parallel encode workers")
	batchCmd.Flags().StringVar(&batchReport, "report-dir", ".", "Directory for the aggregate report")

	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func getOptions() model.Options {
	opts := model.DefaultOptions()
	opts.NoMotifs = noMotifs
	opts.AllowDilation = !noDilation
	opts.MinOccurrences = minOccurrence
	opts.MinMotifLength = minLength
	opts.MaxMotifLength = maxLength
	opts.SimilarityThreshold = similarity
	opts.MinConfidence = minConfidence
	return opts
}

func getOutputPath(input, defaultExt string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + defaultExt
}

func encodeFile(input, output string) (*codec.Document, error) {
	piece, err := midifile.ReadFile(input)
	if err != nil {
		return nil, err
	}
	doc, err := codec.Encode(piece, getOptions())
	if err != nil {
		return nil, err
	}
	data, err := doc.Marshal()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return nil, err
	}
	return doc, nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".mmz")

	doc, err := encodeFile(input, output)
	if err != nil {
		return err
	}

	fmt.Printf("Encoded %s -> %s (%d voices, %d motifs, key %s %s)\n",
		input, output, len(doc.Voices), len(doc.Motifs), doc.Key.Tonic, doc.Key.Mode)
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".mid")

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	doc, err := codec.ParseDocument(data)
	if err != nil {
		return err
	}
	piece, err := codec.Decode(doc)
	if err != nil {
		return err
	}
	if err := midifile.WriteFile(piece, output); err != nil {
		return err
	}

	fmt.Printf("Decoded %s -> %s (%d voices)\n", input, output, len(piece.Voices))
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	input := args[0]

	piece, err := midifile.ReadFile(input)
	if err != nil {
		return err
	}
	if err := codec.VerifyRoundTrip(piece, getOptions()); err != nil {
		return err
	}

	fmt.Printf("Round trip is exact for %s\n", input)
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	input := args[0]

	piece, err := midifile.ReadFile(input)
	if err != nil {
		return err
	}
	opts := getOptions()

	segments := make([][]analysis.KeySegment, len(piece.Voices))
	for v, voice := range piece.Voices {
		segments[v] = analysis.EstimateKeys(voice, opts)
	}
	key, confidence := analysis.GlobalKey(segments)
	fmt.Printf("Global key: %s (confidence %.2f)\n", key.Name(), confidence)

	for v, segs := range segments {
		for _, seg := range segs {
			fmt.Printf("  voice %d notes %d-%d: %s (%.2f)\n", v, seg.Start, seg.End, seg.Key.Name(), seg.Confidence)
		}
	}

	doc, err := codec.Encode(piece, opts)
	if err != nil {
		return err
	}

	totalNotes := 0
	for _, voice := range piece.Voices {
		totalNotes += len(voice.Notes)
	}
	literals, refs := 0, 0
	for _, items := range doc.Voices {
		for _, item := range items {
			if item.Ref != nil {
				refs++
			} else {
				literals++
			}
		}
	}
	var segConfidences []float64
	for _, segs := range segments {
		for _, seg := range segs {
			segConfidences = append(segConfidences, seg.Confidence)
		}
	}
	meanConfidence := 0.0
	if len(segConfidences) > 0 {
		meanConfidence = stat.Mean(segConfidences, nil)
	}

	fmt.Printf("Motif library: %d entries\n", len(doc.Motifs))
	fmt.Printf("Voices: %d, notes: %d, literals: %d, references: %d\n",
		len(doc.Voices), totalNotes, literals, refs)
	fmt.Printf("Mean key confidence: %.2f\n", meanConfidence)
	return nil
}

// batchResult is one file's outcome in a batch run
type batchResult struct {
	File       string  `json:"file"`
	Error      string  `json:"error,omitempty"`
	Voices     int     `json:"voices"`
	Motifs     int     `json:"motifs"`
	Notes      int     `json:"notes"`
	Items      int     `json:"items"`
	Savings    float64 `json:"savings"`
	GlobalKey  string  `json:"globalKey"`
	OutputFile string  `json:"outputFile"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	root := args[0]

	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".mid" || ext == ".midi" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no MIDI files found under %s", root)
	}

	workers := batchWorkers
	if workers < 1 {
		workers = 1
	}

	results := make([]batchResult, len(files))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = encodeOne(files[i])
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	ok := 0
	for _, r := range results {
		if r.Error == "" {
			ok++
			fmt.Printf("Encoded %s (%d motifs, %.0f%% items saved)\n", r.File, r.Motifs, r.Savings*100)
		} else {
			fmt.Printf("Failed %s: %s\n", r.File, r.Error)
		}
	}

	reportPath := filepath.Join(batchReport, "report-"+uuid.New().String()+".json")
	reportData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(reportPath, reportData, 0644); err != nil {
		return err
	}

	fmt.Printf("Batch complete: %d/%d files encoded, report at %s\n", ok, len(files), reportPath)
	return nil
}

func encodeOne(input string) batchResult {
	res := batchResult{File: input}
	output := strings.TrimSuffix(input, filepath.Ext(input)) + ".mmz"

	piece, err := midifile.ReadFile(input)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	doc, err := codec.Encode(piece, getOptions())
	if err != nil {
		res.Error = err.Error()
		return res
	}
	data, err := doc.Marshal()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		res.Error = err.Error()
		return res
	}

	for _, voice := range piece.Voices {
		res.Notes += len(voice.Notes)
	}
	for _, items := range doc.Voices {
		res.Items += len(items)
	}
	res.Voices = len(doc.Voices)
	res.Motifs = len(doc.Motifs)
	if res.Notes > 0 {
		res.Savings = 1 - float64(res.Items)/float64(res.Notes)
	}
	res.GlobalKey = doc.Key.Tonic + " " + doc.Key.Mode
	res.OutputFile = output
	return res
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run()
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting API server on port %d...\n", serverPort)
	return api.StartServer(serverPort)
}
