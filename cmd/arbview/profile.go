package main

import (
	"arbview/internal/ops"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
)

type pyroscopeLogger struct{}

func (pyroscopeLogger) Infof(format string, args ...interface{})  { logs.Infof(format, args...) }
func (pyroscopeLogger) Debugf(string, ...interface{})              {}
func (pyroscopeLogger) Errorf(format string, args ...interface{}) { logs.Errorf(format, args...) }

// startProfiler returns a stop func; it is a no-op when profiling is off.
func startProfiler(cfg ops.PyroscopeConfig) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Tags: map[string]string{
			"service": "arbview",
		},
		Logger: pyroscopeLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = profiler.Stop() }, nil
}
