package config

import "time"

type Projector struct {
	Listen          string        `json:"listen" validate:"required,hostname_port"`
	DataDir         string        `json:"data_dir" validate:"required"`
	FPS             int           `json:"fps" validate:"min=1,max=240"`
	ProbeTimeout    time.Duration `json:"probe_timeout" validate:"gt=0"`
	MinRate         float64       `json:"min_rate" validate:"gt=0"`
	Journal         bool          `json:"journal"`
	ProbeCacheLimit int           `json:"probe_cache_limit" validate:"min=0"`
	LogLevel        string        `json:"log_level" validate:"oneof=DEBUG INFO WARN ERROR"`
}

type Presenter struct {
	URL         string `json:"url" validate:"required,url"`
	DefaultSkip string `json:"default_skip" validate:"required"`
	LogLevel    string `json:"log_level" validate:"oneof=DEBUG INFO WARN ERROR"`
}
