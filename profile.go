package main

import (
	"fmt"
	"os"
	"path"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// Profile start/stop follows github.com/zeromicro/go-zero, @copyright original authors.

const (
	// DefaultMemProfileRate is the default memory profiling rate.
	// See also http://golang.org/pkg/runtime/#pkg-variables
	DefaultMemProfileRate = 4096

	timeFormat = "20060102_150405"
	debugLevel = 2
)

// profileStarters maps a profile kind to the function that starts it.
var profileStarters = map[string]func(f *os.File) (stop func(), err error){
	"cpu": func(f *os.File) (func(), error) {
		if err := pprof.StartCPUProfile(f); err != nil {
			return nil, err
		}
		return pprof.StopCPUProfile, nil
	},
	"mem": func(f *os.File) (func(), error) {
		old := runtime.MemProfileRate
		runtime.MemProfileRate = DefaultMemProfileRate
		return func() {
			_ = pprof.Lookup("heap").WriteTo(f, 0)
			runtime.MemProfileRate = old
		}, nil
	},
	"mutex": func(f *os.File) (func(), error) {
		runtime.SetMutexProfileFraction(1)
		return func() {
			_ = pprof.Lookup("mutex").WriteTo(f, 0)
			runtime.SetMutexProfileFraction(0)
		}, nil
	},
	"block": func(f *os.File) (func(), error) {
		runtime.SetBlockProfileRate(1)
		return func() {
			_ = pprof.Lookup("block").WriteTo(f, 0)
			runtime.SetBlockProfileRate(0)
		}, nil
	},
	"threadcreate": func(f *os.File) (func(), error) {
		return func() {
			_ = pprof.Lookup("threadcreate").WriteTo(f, 0)
		}, nil
	},
	"trace": func(f *os.File) (func(), error) {
		if err := trace.Start(f); err != nil {
			return nil, err
		}
		return trace.Stop, nil
	},
}

// parseProfiles parses a comma separated list of profile kinds.
func parseProfiles(s string) ([]string, error) {
	var kinds []string
	seen := map[string]bool{}
	for _, k := range strings.Split(s, ",") {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		if _, ok := profileStarters[k]; !ok {
			known := make([]string, 0, len(profileStarters))
			for name := range profileStarters {
				known = append(known, name)
			}
			sort.Strings(known)
			return nil, fmt.Errorf("unknown profile `%s`, expect one of %s", k, strings.Join(known, ","))
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no profile")
	}
	return kinds, nil
}

// Profiler represents an active profiling session.
type Profiler struct {
	dataDir string

	// closers holds cleanup functions that run after each profile
	closers []func()

	// stopped records if a call to profile.Stop has been made
	stopped uint32
}

// StartProfiler starts the given profile kinds, writing one file per kind into dataDir.
// The caller should call Stop to flush the files.
func StartProfiler(dataDir string, kinds ...string) *Profiler {
	p := &Profiler{dataDir: dataDir}
	for _, kind := range kinds {
		p.start(kind)
	}
	return p
}

func (p *Profiler) start(kind string) {
	starter, ok := profileStarters[kind]
	if !ok {
		glog.Errorf("pprof: unknown profile %q", kind)
		return
	}

	fn := p.createDumpFile(kind)
	f, err := os.Create(fn)
	if err != nil {
		glog.Errorf("pprof: could not create %s profile %q: %v", kind, fn, err)
		return
	}

	stop, err := starter(f)
	if err != nil {
		f.Close()
		glog.Errorf("pprof: could not start %s profile: %v", kind, err)
		return
	}

	glog.Infof("pprof: %s profiling enabled, %s", kind, fn)
	p.closers = append(p.closers, func() {
		stop()
		f.Close()
		glog.Infof("pprof: %s profiling disabled, %s", kind, fn)
	})
}

// Stop stops the profile and flushes any unwritten data.
func (p *Profiler) Stop() {
	if !atomic.CompareAndSwapUint32(&p.stopped, 0, 1) {
		return
	}
	for _, closer := range p.closers {
		closer()
	}
}

func (p *Profiler) createDumpFile(kind string) string {
	return path.Join(p.dataDir, fmt.Sprintf("%s-%s.pprof", kind, time.Now().Format(timeFormat)))
}

func dumpGoroutines(dataDir string) {
	dumpFile := path.Join(dataDir, fmt.Sprintf("goroutines-%s.dump", time.Now().Format(timeFormat)))
	glog.Infof("Got dump goroutine signal, dumping goroutine profile to %s", dumpFile)
	f, err := os.Create(dumpFile)
	if err != nil {
		glog.Errorf("Failed to dump goroutine profile, error: %v", err)
		return
	}
	defer f.Close()
	if err := pprof.Lookup("goroutine").WriteTo(f, debugLevel); err != nil {
		glog.Errorf("Failed to write goroutine profile to %s, error: %v", dumpFile, err)
	}
}
