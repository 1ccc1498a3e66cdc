package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sonroyaalmerol/presenter/internal/protocol"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	listen = configVar[string]{
		envKey:       "PROJECTOR_LISTEN",
		flagKey:      "listen",
		defaultValue: "127.0.0.1:8765",
		usage:        "Address the projector listens on",
	}
	dataDir = configVar[string]{
		envKey:       "DATA_DIR",
		flagKey:      "data-dir",
		defaultValue: "./data",
		usage:        "Directory for the journal database",
	}
	fps = configVar[int]{
		envKey:       "PROJECTOR_FPS",
		flagKey:      "fps",
		defaultValue: 60,
		usage:        "Render loop frequency",
	}
	probeTimeout = configVar[time.Duration]{
		envKey:       "PROJECTOR_PROBE_TIMEOUT",
		flagKey:      "probe-timeout",
		defaultValue: 5 * time.Second,
		usage:        "Maximum time spent probing a media file",
	}
	minRate = configVar[float64]{
		envKey:       "PROJECTOR_MIN_RATE",
		flagKey:      "min-rate",
		defaultValue: 0.01,
		usage:        "Lowest playback rate accepted",
	}
	journal = configVar[bool]{
		envKey:       "PROJECTOR_JOURNAL",
		flagKey:      "journal",
		defaultValue: true,
		usage:        "Record sessions and cache probe results in SQLite",
	}
	probeCacheLimit = configVar[int]{
		envKey:       "PROJECTOR_PROBE_CACHE_LIMIT",
		flagKey:      "probe-cache-limit",
		defaultValue: 256,
		usage:        "Number of probe results kept, 0 disables the cache",
	}
	projectorLogLevel = configVar[string]{
		envKey:       "PROJECTOR_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level (DEBUG, INFO, WARN, ERROR)",
	}

	url = configVar[string]{
		envKey:       "PRESENTER_URL",
		flagKey:      "url",
		defaultValue: "ws://127.0.0.1:8765",
		usage:        "Projector URL",
	}
	defaultSkip = configVar[string]{
		envKey:       "PRESENTER_DEFAULT_SKIP",
		flagKey:      "default-skip",
		defaultValue: protocol.SkipVideoEnd.String(),
		usage:        "Skip policy for added sources (VideoEnd, Input, Time(n))",
	}
	presenterLogLevel = configVar[string]{
		envKey:       "PRESENTER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level (DEBUG, INFO, WARN, ERROR)",
	}
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func bind[T any](v *viper.Viper, fs *pflag.FlagSet, cv configVar[T]) {
	switch d := any(cv.defaultValue).(type) {
	case string:
		fs.String(cv.flagKey, d, cv.usage)
	case int:
		fs.Int(cv.flagKey, d, cv.usage)
	case bool:
		fs.Bool(cv.flagKey, d, cv.usage)
	case float64:
		fs.Float64(cv.flagKey, d, cv.usage)
	case time.Duration:
		fs.Duration(cv.flagKey, d, cv.usage)
	default:
		panic(fmt.Sprintf("config: unsupported type %T for %s", d, cv.flagKey))
	}
	_ = v.BindPFlag(cv.flagKey, fs.Lookup(cv.flagKey))
	_ = v.BindEnv(cv.flagKey, cv.envKey)
	v.SetDefault(cv.flagKey, cv.defaultValue)
}

func BindProjectorFlags(v *viper.Viper, fs *pflag.FlagSet) {
	bind(v, fs, listen)
	bind(v, fs, dataDir)
	bind(v, fs, fps)
	bind(v, fs, probeTimeout)
	bind(v, fs, minRate)
	bind(v, fs, journal)
	bind(v, fs, probeCacheLimit)
	bind(v, fs, projectorLogLevel)
}

func BindPresenterFlags(v *viper.Viper, fs *pflag.FlagSet) {
	bind(v, fs, url)
	bind(v, fs, defaultSkip)
	bind(v, fs, presenterLogLevel)
}

func LoadProjector(v *viper.Viper) (*Projector, error) {
	cfg := &Projector{
		Listen:          v.GetString(listen.flagKey),
		DataDir:         v.GetString(dataDir.flagKey),
		FPS:             v.GetInt(fps.flagKey),
		ProbeTimeout:    v.GetDuration(probeTimeout.flagKey),
		MinRate:         v.GetFloat64(minRate.flagKey),
		Journal:         v.GetBool(journal.flagKey),
		ProbeCacheLimit: v.GetInt(probeCacheLimit.flagKey),
		LogLevel:        strings.ToUpper(v.GetString(projectorLogLevel.flagKey)),
	}
	if err := check(cfg); err != nil {
		return nil, err
	}
	if cfg.Journal {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, ErrConfig(fmt.Sprintf("data-dir: %v", err))
		}
	}
	return cfg, nil
}

func LoadPresenter(v *viper.Viper) (*Presenter, error) {
	cfg := &Presenter{
		URL:         v.GetString(url.flagKey),
		DefaultSkip: v.GetString(defaultSkip.flagKey),
		LogLevel:    strings.ToUpper(v.GetString(presenterLogLevel.flagKey)),
	}
	if err := check(cfg); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(cfg.URL, "ws://") && !strings.HasPrefix(cfg.URL, "wss://") {
		return nil, ErrConfig("url: must use the ws:// or wss:// scheme")
	}
	if _, err := protocol.ParseSkipPolicy(cfg.DefaultSkip); err != nil {
		return nil, ErrConfig(fmt.Sprintf("default-skip: %v", err))
	}
	return cfg, nil
}

func check(cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q (%v)", fe.Field(), fe.Tag(), fe.Value()))
		}
		return ErrConfig(strings.Join(msgs, "; "))
	}
	return ErrConfig(err.Error())
}
