package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"sync"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/phil-mansfield/phgbin/bin"
	"github.com/phil-mansfield/phgbin/io"
)

type FileGroup struct {
	log, prof *os.File
}

func (fg *FileGroup) Close() {
	if fg.log != nil {
		err := fg.log.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}

	if fg.prof != nil {
		pprof.StopCPUProfile()
		err := fg.prof.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}
}

func main() {
	var (
		binFile, header, plot string
		exampleConfig        string
		dimName, out         string
	)
	vars := map[string]*string{
		"Bin":           &binFile,
		"Header":        &header,
		"Plot":          &plot,
		"ExampleConfig": &exampleConfig,
	}

	flag.StringVar(
		&binFile, "Bin", "",
		"Configuration file for [Bin] mode. Event tables are given as "+
			"arguments.",
	)
	flag.StringVar(
		&header, "Header", "",
		"Prints the header of the given image file to stdout as YAML.",
	)
	flag.StringVar(
		&plot, "Plot", "",
		"Plots the marginal distribution of the given image file along "+
			"the dimension given by -Dim.",
	)
	flag.StringVar(&dimName, "Dim", "AA", "Dimension used by -Plot.")
	flag.StringVar(&out, "Out", "marginal.png", "Output file used by -Plot.")
	flag.StringVar(
		&exampleConfig,
		"ExampleConfig", "", "Prints an example configuration file of the "+
			"specified type to stdout. The only accepted argument is 'Bin'.",
	)

	flag.Parse()

	modeName, err := getModeName(vars)
	if err != nil {
		log.Fatal(err.Error())
	}

	switch modeName {
	case "Bin":
		raw, err := io.ReadBinConfig(binFile)
		if err != nil {
			log.Fatal(err.Error())
		}

		if !raw.ValidMode() {
			log.Fatal("Invalid/non-existent 'Mode' value.")
		} else if !raw.ValidOrder() {
			log.Fatal("Invalid/non-existent 'Order' value.")
		} else if !raw.ValidImages() {
			log.Fatal("At least one of 'CountImage', 'WeightImage', and " +
				"'WeightSquaredImage' must be set.")
		} else if !raw.ValidEventsToSimulate() {
			log.Fatal("Invalid/non-existent 'EventsToSimulate' value.")
		}

		fg := setupFiles(&raw.SharedConfig)
		defer fg.Close()

		tables := flag.Args()
		if len(tables) < 1 {
			log.Fatal("Must supply at least one event table.")
		}
		binMain(raw, tables)

	case "Header":
		hd, err := io.ReadImageHeader(header)
		if err != nil {
			log.Fatal(err.Error())
		}
		text, err := hd.YAML()
		if err != nil {
			log.Fatal(err.Error())
		}
		fmt.Print(string(text))

	case "Plot":
		d, err := bin.ParseDim(dimName)
		if err != nil {
			log.Fatal(err.Error())
		}
		plotMain(plot, d, out)

	case "ExampleConfig":
		switch exampleConfig {
		case "Bin":
			fmt.Println(io.ExampleBinFile)
		default:
			log.Fatal(
				"Unrecognized 'ExampleConfig' argument. The only recognized " +
					"argument is 'Bin'.",
			)
		}
	default:
		panic("Impossible")
	}
}

func getModeName(vars map[string]*string) (string, error) {
	setNames := []string{}

	for name, varPtr := range vars {
		if *varPtr != "" {
			setNames = append(setNames, name)
		}
	}

	if len(setNames) == 0 {
		return "", fmt.Errorf("No flags have been set.")
	}

	if len(setNames) > 1 {
		return "", fmt.Errorf(
			"The following flags were set: %s, but phgbin "+
				"only accepts one flag at a time.",
			strings.Join(setNames, ", "),
		)
	}

	return setNames[0], nil
}

func setupFiles(con *io.SharedConfig) *FileGroup {
	fg := &FileGroup{}
	var err error

	if con.ValidLogFile() {
		fg.log, err = os.Create(con.LogFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		log.SetOutput(fg.log)
	}

	if con.ValidProfileFile() {
		fg.prof, err = os.Create(con.ProfileFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		pprof.StartCPUProfile(fg.prof)
	}

	return fg
}

// binMain bins every event in the given tables. Tables are read and binned
// concurrently.
func binMain(raw *io.BinConfig, tables []string) {
	con, err := bin.NewConfig(raw)
	if err != nil {
		log.Fatal(err.Error())
	}
	if text, err := raw.YAML(); err == nil {
		log.Printf("Binning with configuration:\n%s", text)
	}

	var hist bin.HistoryWriter
	if raw.HistoryFile != "" {
		hf, err := io.CreateHistoryFile(raw.HistoryFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		defer func() {
			if err := hf.Close(); err != nil {
				log.Fatal(err.Error())
			}
		}()
		hist = hf
	}

	store := &io.FileStore{Compress: raw.Compress}
	e, err := bin.NewEngine(con, store, nil, hist)
	if err != nil {
		log.Fatal(err.Error())
	}
	le := bin.NewLockedEngine(e)

	workers := runtime.NumCPU()
	if workers > len(tables) {
		workers = len(tables)
	}
	jobs := make(chan string, len(tables))
	errs := make(chan error, len(tables))
	for _, table := range tables {
		jobs <- table
	}
	close(jobs)

	wg := &sync.WaitGroup{}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for table := range jobs {
				errs <- binTable(le, table, con.PET)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			log.Fatal(err.Error())
		}
	}

	stats := le.Stats()
	if stats.Decays != raw.EventsToSimulate {
		log.Printf(
			"Warning: read %d decays, but EventsToSimulate is %d. Weights "+
				"are normalized to EventsToSimulate.",
			stats.Decays, raw.EventsToSimulate,
		)
	}

	if err := le.Close(); err != nil {
		log.Fatal(err.Error())
	}
}

func binTable(le *bin.LockedEngine, fname string, pet bool) error {
	et, err := io.ReadEventTable(fname, pet)
	if err != nil {
		return err
	}
	log.Printf("Read %d events from %s", et.Len(), fname)

	for i := range et.Decays {
		if pet {
			err = le.BinPET(
				&et.Decays[i], et.Photons[0][i:i+1], et.Photons[1][i:i+1],
			)
		} else {
			err = le.BinSPECT(&et.Decays[i], et.Photons[0][i:i+1])
		}
		if err != nil {
			return fmt.Errorf("Could not bin event %d of %s: %w", i, fname, err)
		}
	}
	return nil
}

// plotMain plots the marginal distribution of an image along d.
func plotMain(fname string, d bin.Dim, out string) {
	img, err := io.ReadImage(fname)
	if err != nil {
		log.Fatal(err.Error())
	}
	vals, err := bin.ImageValues(img)
	if err != nil {
		log.Fatal(err.Error())
	}
	l := &img.Header.Layout
	marg, err := bin.Marginal(vals, l, d)
	if err != nil {
		log.Fatal(err.Error())
	}
	centers := bin.Centers(l, d)

	plt.Figure()
	plt.Plot(centers, marg, "k", plt.LW(2))
	plt.Title(fmt.Sprintf("%s (%s image)", fname, img.Header.Type.Kind))
	plt.XLabel(d.String(), plt.FontSize(16))
	plt.YLabel("Total", plt.FontSize(16))
	plt.SaveFig(out)
	plt.Execute()
}
