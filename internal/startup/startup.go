package startup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"thumbcrafter/internal/candidates"
	"thumbcrafter/internal/logging"
	"thumbcrafter/internal/memory"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	Port            string `env:"PORT"              envDefault:"8080"`
	MetricsPort     string `env:"METRICS_PORT"      envDefault:"9090"`
	MetricsEnabled  bool   `env:"METRICS_ENABLED"   envDefault:"true"`
	LogStaticFiles  bool   `env:"LOG_STATIC_FILES"  envDefault:"false"`
	LogHealthChecks bool   `env:"LOG_HEALTH_CHECKS" envDefault:"true"`

	TempDir       string        `env:"TEMP_DIR"`
	MaxCandidates int           `env:"MAX_CANDIDATES" envDefault:"12"`
	MaxFrames     int           `env:"MAX_FRAMES"     envDefault:"12"`
	SeekTimeout   time.Duration `env:"SEEK_TIMEOUT"   envDefault:"10s"`
	PreviewWidth  int           `env:"PREVIEW_WIDTH"  envDefault:"400"`
	PreviewHeight int           `env:"PREVIEW_HEIGHT" envDefault:"225"`
	LoadWorkers   int           `env:"LOAD_WORKERS"   envDefault:"0"`

	FFmpegPath  string `env:"FFMPEG_PATH"   envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH"  envDefault:"ffprobe"`
	VipsEnabled bool   `env:"VIPS_ENABLED"  envDefault:"true"`
	MaxUploadMB int64  `env:"MAX_UPLOAD_MB" envDefault:"100"`

	MemoryLimit int64   `env:"MEMORY_LIMIT" envDefault:"0"`
	MemoryRatio float64 `env:"MEMORY_RATIO" envDefault:"0"`

	// Set by LoadConfig after probing the environment
	FFmpegAvailable  bool `env:"-"`
	FFprobeAvailable bool `env:"-"`
}

// ParseConfig reads the configuration from environment variables and
// validates it. It has no side effects.
func ParseConfig() (*Config, error) {
	config, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks value ranges. MAX_CANDIDATES above the hard cap is
// clamped rather than rejected.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxCandidates <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CANDIDATES must be positive, got %d", c.MaxCandidates))
	}
	if c.MaxCandidates > candidates.MaxCandidates {
		c.MaxCandidates = candidates.MaxCandidates
	}
	if c.MaxFrames <= 0 {
		errs = append(errs, fmt.Errorf("MAX_FRAMES must be positive, got %d", c.MaxFrames))
	}
	if c.SeekTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SEEK_TIMEOUT must be positive, got %v", c.SeekTimeout))
	}
	if c.PreviewWidth <= 0 || c.PreviewHeight <= 0 {
		errs = append(errs, fmt.Errorf("preview size must be positive, got %dx%d", c.PreviewWidth, c.PreviewHeight))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB))
	}
	if c.LoadWorkers < 0 {
		errs = append(errs, fmt.Errorf("LOAD_WORKERS must not be negative, got %d", c.LoadWorkers))
	}
	return errors.Join(errs...)
}

// LoadConfig prints the banner, loads configuration from environment
// variables and prepares the temp directory
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config, err := ParseConfig()
	if err != nil {
		return nil, err
	}

	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	config.TempDir, err = filepath.Abs(config.TempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve temp directory path: %w", err)
	}

	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  TEMP_DIR:            %s", config.TempDir)
	logging.Info("  MAX_CANDIDATES:      %d", config.MaxCandidates)
	logging.Info("  MAX_FRAMES:          %d", config.MaxFrames)
	logging.Info("  SEEK_TIMEOUT:        %v", config.SeekTimeout)
	logging.Info("  PREVIEW:             %dx%d", config.PreviewWidth, config.PreviewHeight)
	logging.Info("  LOAD_WORKERS:        %s", workersString(config.LoadWorkers))
	logging.Info("  MAX_UPLOAD_MB:       %d", config.MaxUploadMB)
	logging.Info("  VIPS_ENABLED:        %v", config.VipsEnabled)
	logging.Info("  LOG_STATIC_FILES:    %v", config.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := ensureDirectory(config.TempDir, "temp"); err != nil {
		return nil, fmt.Errorf("temp directory error: %w", err)
	}
	logging.Debug("  Testing temp directory write access...")
	if err := testWriteAccess(config.TempDir); err != nil {
		return nil, fmt.Errorf("temp directory is not writable (required for video decoding): %w", err)
	}
	logging.Info("  [OK] Temp directory is writable")

	return config, nil
}

func workersString(n int) string {
	if n == 0 {
		return "auto"
	}
	return fmt.Sprintf("%d", n)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogMediaToolsInit checks ffmpeg and ffprobe and records their
// availability in config
func LogMediaToolsInit(config *Config, vipsAvailable bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEDIA TOOLS")
	logging.Info("------------------------------------------------------------")

	if version, err := checkTool(config.FFmpegPath, "-version"); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Video uploads will produce no candidates")
	} else {
		config.FFmpegAvailable = true
		logging.Info("  [OK] FFmpeg is available")
		logging.Debug("  FFmpeg version: %s", version)
	}

	if version, err := checkTool(config.FFprobePath, "-version"); err != nil {
		logging.Warn("  FFprobe check failed: %v", err)
	} else {
		config.FFprobeAvailable = true
		logging.Info("  [OK] FFprobe is available")
		logging.Debug("  FFprobe version: %s", version)
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Image candidates: ENABLED")
	logging.Info("    Video candidates: %s", enabledString(config.FFmpegAvailable && config.FFprobeAvailable))
	logging.Info("    libvips shrink:   %s", enabledString(vipsAvailable))
	logging.Info("    Metrics:          %s", enabledString(config.MetricsEnabled))
}

// LogMemoryConfig logs how the Go memory limit was configured
func LogMemoryConfig(result memory.LimitResult) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY")
	logging.Info("------------------------------------------------------------")

	if !result.Configured {
		logging.Info("  GOMEMLIMIT: not configured (set MEMORY_LIMIT to enable)")
		return
	}

	switch result.Source {
	case memory.SourceGOMEMLIMIT:
		logging.Info("  GOMEMLIMIT: %s (from environment)", memory.FormatBytes(result.GoMemLimit))
	default:
		logging.Info("  Container limit: %s", memory.FormatBytes(result.ContainerLimit))
		logging.Info("  GOMEMLIMIT:      %s (%.0f%%)", memory.FormatBytes(result.GoMemLimit), result.Ratio*100)
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes, grouped by prefix
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			label := group
			if label == "" {
				label = "root"
			}
			logging.Debug("  [%s]", label)
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Static file logging: ON")
	} else {
		logging.Info("    Static file logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Generate:      http://0.0.0.0:%s/api/generate", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
  _____ _                 _                     __ _
 |_   _| |__  _   _ _ __ | |__   ___ _ __ __ _ / _| |_ ___ _ __
   | | | '_ \| | | | '_ \| '_ \ / __| '__/ _' | |_| __/ _ \ '__|
   | | | | | | |_| | | | | |_) | (__| | | (_| |  _| ||  __/ |
   |_| |_| |_|\__,_|_| |_|_.__/ \___|_|  \__,_|_|  \__\___|_|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	f, err := os.CreateTemp(dir, ".write-test-")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove write test file %s: %v", name, err)
	}
	return nil
}

// checkTool runs "<path> <versionFlag>" and returns the first output line.
func checkTool(path, versionFlag string) (string, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", path)
	}
	logging.Debug("  %s path: %s", filepath.Base(path), resolved)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, resolved, versionFlag).Output()
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", path, err)
	}

	first, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(first), nil
}
