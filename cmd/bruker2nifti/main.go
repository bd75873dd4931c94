package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"bruker2nifti/pkg/config"
	"bruker2nifti/pkg/study"
)

const usage = `Usage: bruker2nifti [command] [flags]

Commands:
  convert   convert a ParaVision study to NIfTI (default)
  list      list the scans of a study and exit
  scan      convert a single scan folder
  init      write a default configuration file

Run "bruker2nifti <command> -h" for the flags of a command.
`

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	args := os.Args[1:]
	command := "convert"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	var err error
	switch command {
	case "convert":
		err = runConvert(args)
	case "list":
		err = runList(args)
	case "scan":
		err = runScan(args)
	case "init":
		err = runInit(args)
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// conversionFlags holds the flags shared by convert and scan. They
// override the values of the configuration file.
type conversionFlags struct {
	configPath       *string
	niftiVersion     *int
	qformCode        *int
	sformCode        *int
	noHumanReadable  *bool
	correctSlope     *bool
	correctOffset    *bool
	sampleUpsideDown *bool
	bodyAsHead       *bool
	noCompress       *bool
	previews         *bool
	verbose          *int
	getAcqp          *bool
	getMethod        *bool
	getReco          *bool
}

func registerConversionFlags(fs *flag.FlagSet) *conversionFlags {
	return &conversionFlags{
		configPath:       fs.String("config", "bruker2nifti.yaml", "Configuration file (defaults are used if absent)"),
		niftiVersion:     fs.Int("nifti-version", 0, "NIfTI version, 1 or 2"),
		qformCode:        fs.Int("qform-code", -1, "qform code of the written headers"),
		sformCode:        fs.Int("sform-code", -1, "sform code of the written headers"),
		noHumanReadable:  fs.Bool("no-human-readable", false, "Do not write parameter dumps and summaries"),
		correctSlope:     fs.Bool("correct-slope", false, "Multiply the data by VisuCoreDataSlope"),
		correctOffset:    fs.Bool("correct-offset", false, "Add VisuCoreDataOffs to the data"),
		sampleUpsideDown: fs.Bool("sample-upside-down", false, "Flip prone subjects along the anterior-posterior axis"),
		bodyAsHead:       fs.Bool("frame-body-as-frame-head", false, "Remap a quadruped body frame onto the head frame"),
		noCompress:       fs.Bool("no-compress", false, "Write .nii instead of .nii.gz"),
		previews:         fs.Bool("previews", false, "Write mid-slice JPEG previews"),
		verbose:          fs.Int("verbose", -1, "Verbosity 0..3"),
		getAcqp:          fs.Bool("get-acqp", false, "Keep and dump the acqp parameters"),
		getMethod:        fs.Bool("get-method", false, "Keep and dump the method parameters"),
		getReco:          fs.Bool("get-reco", false, "Keep and dump the reco parameters"),
	}
}

// load reads the configuration file and applies the flags that were set.
func (f *conversionFlags) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(*f.configPath)
	if err != nil {
		return nil, err
	}

	if *f.niftiVersion != 0 {
		cfg.Conversion.NiftiVersion = *f.niftiVersion
	}
	if *f.qformCode >= 0 {
		cfg.Conversion.QFormCode = *f.qformCode
	}
	if *f.sformCode >= 0 {
		cfg.Conversion.SFormCode = *f.sformCode
	}
	if *f.noHumanReadable {
		cfg.Output.SaveHumanReadable = false
	}
	if *f.correctSlope {
		cfg.Conversion.CorrectSlope = true
	}
	if *f.correctOffset {
		cfg.Conversion.CorrectOffset = true
	}
	if *f.sampleUpsideDown {
		cfg.Geometry.ConsiderSubjectPosition = true
	}
	if *f.bodyAsHead {
		cfg.Geometry.Profile = "body-as-head"
	}
	if *f.noCompress {
		cfg.Conversion.Compress = false
	}
	if *f.previews {
		cfg.Output.SavePreviews = true
	}
	if *f.verbose >= 0 {
		cfg.Output.Verbose = *f.verbose
	}
	cfg.Output.GetAcqp = cfg.Output.GetAcqp || *f.getAcqp
	cfg.Output.GetMethod = cfg.Output.GetMethod || *f.getMethod
	cfg.Output.GetReco = cfg.Output.GetReco || *f.getReco

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.SetLevel(cfg.LogLevel())
	return cfg, nil
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	input := fs.String("i", "", "Bruker study folder")
	output := fs.String("o", "", "Output folder where the study will be saved")
	studyName := fs.String("study-name", "", "Name of the converted study (default: subject name)")
	scans := fs.String("scans", "", "Comma or space separated list of scans to convert (default: all)")
	cores := fs.Int("cores", -1, "Number of scans converted in parallel, 0 for all CPUs (default: from config)")
	cf := registerConversionFlags(fs)
	fs.Parse(args)

	if *input == "" || *output == "" {
		fs.Usage()
		return fmt.Errorf("input bruker study [-i] and output folder [-o] required")
	}
	cfg, err := cf.load()
	if err != nil {
		return err
	}
	if *cores >= 0 {
		cfg.Conversion.NumCores = *cores
	}

	conv, err := study.NewConverter(*input, *output, *studyName, cfg)
	if err != nil {
		return err
	}
	conv.SelectScans(study.ParseScanList(*scans))

	fmt.Println("================================")
	fmt.Println("BRUKER PARAVISION TO NIFTI CONVERTER")
	fmt.Println("================================")
	fmt.Printf("Study name           : %s\n", conv.StudyName)
	fmt.Printf("List of scans        : %v\n", conv.Scans)
	fmt.Printf("Output NIfTI version : %d\n", cfg.Conversion.NiftiVersion)
	fmt.Printf("Output NIfTI q-form  : %d\n", cfg.Conversion.QFormCode)
	fmt.Printf("Output NIfTI s-form  : %d\n", cfg.Conversion.SFormCode)
	fmt.Printf("Save human readable  : %t\n", cfg.Output.SaveHumanReadable)
	fmt.Printf("Correct the slope    : %t\n", cfg.Conversion.CorrectSlope)
	fmt.Printf("Correct the offset   : %t\n", cfg.Conversion.CorrectOffset)
	fmt.Println("--------------------------------")
	fmt.Printf("Sample upside down   : %t\n", cfg.Geometry.ConsiderSubjectPosition)
	fmt.Printf("Acquisition profile  : %s\n", cfg.Geometry.Profile)
	fmt.Println("--------------------------------")

	report := conv.Convert()

	p := message.NewPrinter(language.English)
	files := 0
	for _, r := range report.Results {
		files += len(r.Files)
	}
	p.Printf("\nConverted %d of %d scans (%d files) in %.2f seconds\n",
		len(report.Results)-len(report.Failed()), len(report.Results), files, report.Elapsed.Seconds())
	fmt.Printf("Study saved in: %s\n", report.OutputDir)

	if failed := report.Failed(); len(failed) > 0 {
		fmt.Println("\nScans that could not be converted:")
		for _, r := range failed {
			fmt.Printf("- %s: %v\n", r.Scan, r.Err)
		}
	}
	for _, r := range report.Results {
		for _, skipped := range r.SkippedRecons {
			fmt.Printf("Scan %s, reconstruction %s skipped: %v\n", r.Scan, skipped.ID, skipped.Err)
		}
	}
	return nil
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	input := fs.String("i", "", "Bruker scan folder")
	output := fs.String("o", "", "Output folder for the converted scan")
	name := fs.String("name", "", "File name of the converted scan (default: scan)")
	cf := registerConversionFlags(fs)
	fs.Parse(args)

	if *input == "" || *output == "" {
		fs.Usage()
		return fmt.Errorf("input scan folder [-i] and output folder [-o] required")
	}
	cfg, err := cf.load()
	if err != nil {
		return err
	}

	start := time.Now()
	files, err := study.ConvertScan(*input, *output, *name, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Scan converted in %.2f seconds, %d files written to %s\n",
		time.Since(start).Seconds(), len(files), *output)
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	input := fs.String("i", "", "Bruker study folder")
	fs.Parse(args)

	if *input == "" {
		fs.Usage()
		return fmt.Errorf("input bruker study [-i] required")
	}

	md := study.NewMetadata(*input)
	if err := md.ParseSubject(); err != nil {
		return err
	}
	if err := md.ParseScans(); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Subject: %s\n", study.SubjectName(md.Subject))
	fmt.Printf("Study Date: %s\n", study.StudyDate(md.Subject))
	fmt.Println("--------------------------------------------------------")
	fmt.Println()
	for _, s := range md.Listing() {
		fmt.Printf("Scan %s\n", s.ID)
		fmt.Printf("%-30s%-30s%-30s\n",
			"Protocol: "+s.Protocol, "Method: "+s.Method, "Scan Time: "+s.ScanTime)
		fmt.Println()
	}
	return nil
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "bruker2nifti.yaml", "Path of the configuration file to create")
	fs.Parse(args)

	if err := config.CreateDefaultConfigFile(*path); err != nil {
		return err
	}
	abs, _ := filepath.Abs(*path)
	fmt.Printf("Default configuration written to: %s\n", abs)
	return nil
}
