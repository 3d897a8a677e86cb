package main

import (
	"flag"
	"log"
	"os"
	"runtime/pprof"

	"github.com/go-logr/stdr"

	"github.com/Gideonrgb101/underflaw-engine/internal/engine"
	"github.com/Gideonrgb101/underflaw-engine/internal/storage"
	"github.com/Gideonrgb101/underflaw-engine/internal/uci"
)

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")

func main() {
	flag.Parse()

	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
		log.Printf("CPU profiling enabled, writing to %s", profilePath)
	}

	logger := stdr.New(log.Default())

	hashMB := 64
	store, err := storage.NewStorage()
	if err != nil {
		logger.Error(err, "failed to open persistent storage, starting with defaults")
	} else if cfg, err := store.LoadConfig(); err == nil {
		hashMB = cfg.HashMB
	}

	// Lazy-SMP search across GOMAXPROCS threads, hash table sized from the
	// last saved configuration (or 64MB on first run).
	eng := engine.NewEngine(hashMB)

	protocol := uci.New(eng)
	protocol.SetLogger(logger)
	if store != nil {
		defer store.Close()
		protocol.SetStorage(store)
	}
	protocol.Run()
}
