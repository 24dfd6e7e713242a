package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/fumin/hydride"
	"github.com/fumin/hydride/figure"
	"github.com/fumin/hydride/lindblad"
	"github.com/fumin/hydride/store"
)

const (
	fnameResults       = "results.db"
	dirnameHamiltonian = "hamiltonian"
)

var (
	runDir   = flag.String("d", filepath.Join("runs", "hydride"), "run directory")
	tmax     = flag.Float64("tmax", 200, "time horizon")
	numTimes = flag.Int("n", 500, "number of time points")
	maxRate  = flag.Float64("vmax", 0.05, "largest decoherence rate")
	numRates = flag.Int("nv", 6, "number of decoherence rates")
	plotName = flag.String("plot", "population.png", "plot file in the run directory, empty to skip")
)

func writeHamiltonian(dir string, m hydride.Model) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}
	if err := m.Hamiltonian.WriteCOO(dir); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	m, err := hydride.NewModel(hydride.DefaultParams())
	if err != nil {
		return errors.Wrap(err, "")
	}
	log.Printf("site hamiltonian\n%s", hydride.SiteHamiltonian(m.Params))
	if err := writeHamiltonian(filepath.Join(*runDir, dirnameHamiltonian), m); err != nil {
		return errors.Wrap(err, "")
	}
	times, err := hydride.TimeGrid(*tmax, *numTimes)
	if err != nil {
		return errors.Wrap(err, "")
	}
	rates, err := hydride.Rates(0, *maxRate, *numRates)
	if err != nil {
		return errors.Wrap(err, "")
	}

	st, err := store.Open(filepath.Join(*runDir, fnameResults))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer st.Close()

	fig := figure.New("Vibrationally Assisted Hydride Tunneling in Alcohol Dehydrogenase", "Time", "Population")
	record := func(tr hydride.Trajectory) error {
		if err := fig.AddLine(tr.Label(), tr.Times, tr.Population); err != nil {
			return errors.Wrap(err, "")
		}
		fmt.Println(tr.Summary())
		if err := st.Write(tr.Rate, tr.Times, tr.Population); err != nil {
			return errors.Wrap(err, "")
		}
		log.Printf("v %s sites %.3f", hydride.FormatRate(tr.Rate), tr.Sites)
		return nil
	}
	opt := lindblad.NewOptions().Progress(10 * time.Second)
	if _, err := hydride.Sweep(m, rates, times, record, opt); err != nil {
		return errors.Wrap(err, "")
	}

	if *plotName == "" {
		return nil
	}
	plotPath := filepath.Join(*runDir, *plotName)
	if err := fig.Save(plotPath); err != nil {
		return errors.Wrap(err, "")
	}
	log.Printf("plot %s", plotPath)
	return nil
}
