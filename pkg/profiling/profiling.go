package profiling

import (
	"fmt"
	"strings"
	"time"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"

	"github.com/nitj-alumni/alumni-erp-api/pkg/config"
)

var defaultProfileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
}

var profileTypes = map[string][]pyroscope.ProfileType{
	"cpu":         {pyroscope.ProfileCPU},
	"alloc_space": {pyroscope.ProfileAllocSpace},
	"inuse_space": {pyroscope.ProfileInuseSpace},
	"goroutines":  {pyroscope.ProfileGoroutines},
	"mutex":       {pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration},
	"block":       {pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration},
}

// Start pushes continuous profiles when cfg.Profiling.Endpoint is set. The
// returned stop function is always safe to call.
func Start(cfg *config.Config, logger *zap.Logger) (func(), error) {
	pcfg := cfg.Profiling
	endpoint := strings.TrimSpace(pcfg.Endpoint)
	if endpoint == "" {
		return func() {}, nil
	}

	types, err := parseProfileTypes(pcfg.SampleTypes)
	if err != nil {
		return nil, err
	}
	interval := pcfg.UploadInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	name := applicationName(cfg.Tracing.ServiceName, cfg.Env)
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   endpoint,
		UploadRate:      interval,
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("start profiler: %w", err)
	}

	logger.Info("continuous profiling enabled",
		zap.String("application", name),
		zap.String("endpoint", endpoint),
		zap.Duration("upload_interval", interval))

	return func() {
		if err := profiler.Stop(); err != nil {
			logger.Warn("failed to stop profiler", zap.Error(err))
		}
	}, nil
}

func parseProfileTypes(value string) ([]pyroscope.ProfileType, error) {
	if strings.TrimSpace(value) == "" {
		return defaultProfileTypes, nil
	}
	out := make([]pyroscope.ProfileType, 0, len(profileTypes))
	seen := make(map[pyroscope.ProfileType]bool)
	for _, raw := range strings.Split(value, ",") {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" {
			continue
		}
		mapped, ok := profileTypes[key]
		if !ok {
			return nil, fmt.Errorf("unsupported PROFILING_SAMPLE_TYPES value %q", key)
		}
		for _, t := range mapped {
			if !seen[t] {
				out = append(out, t)
				seen[t] = true
			}
		}
	}
	if len(out) == 0 {
		return defaultProfileTypes, nil
	}
	return out, nil
}

func applicationName(service, env string) string {
	if service == "" {
		service = "alumni-api"
	}
	return fmt.Sprintf("%s{environment=%s}", service, env)
}
