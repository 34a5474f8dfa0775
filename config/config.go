package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kr/pretty"
	"github.com/spf13/viper"

	"github.com/ilhamfadhil14/load-test-rtsp-stream/log"
)

type RTSPServer struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
}

// Video is the single-source shape: one file fanned out over
// load_test.concurrent_streams publishers.
type Video struct {
	Path string `json:"path" mapstructure:"path"`
	Loop bool   `json:"loop" mapstructure:"loop"`
	FPS  int    `json:"fps" mapstructure:"fps"`
}

// VideoSource is one entry of the explicit video_sources list.
type VideoSource struct {
	Name      string `json:"name" mapstructure:"name"`
	VideoPath string `json:"video_path" mapstructure:"video_path"`
	Loop      bool   `json:"loop" mapstructure:"loop"`
	FPS       int    `json:"fps" mapstructure:"fps"`
}

// Publisher holds the encoding options passed through to ffmpeg.
type Publisher struct {
	Codec       string `json:"codec" mapstructure:"codec"`
	Preset      string `json:"preset" mapstructure:"preset"`
	Bitrate     string `json:"bitrate" mapstructure:"bitrate"`
	PixelFormat string `json:"pixel_format" mapstructure:"pixel_format"`
}

type LoadTest struct {
	ConcurrentStreams int `json:"concurrent_streams" mapstructure:"concurrent_streams"`
	Duration          int `json:"duration" mapstructure:"duration"`
	ReportInterval    int `json:"report_interval" mapstructure:"report_interval"`
}

type Limits struct {
	MaxStreams       int     `json:"max_streams" mapstructure:"max_streams"`
	MaxMemoryPercent float64 `json:"max_memory_percent" mapstructure:"max_memory_percent"`
	MaxCPUPercent    float64 `json:"max_cpu_percent" mapstructure:"max_cpu_percent"`
}

type Monitoring struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	LogLevel    string `json:"log_level" mapstructure:"log_level"`
	LogDir      string `json:"log_dir" mapstructure:"log_dir"`
	MetricsFile string `json:"metrics_file" mapstructure:"metrics_file"`
}

type API struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	Port    int  `json:"port" mapstructure:"port"`
	Debug   bool `json:"debug" mapstructure:"debug"`
}

type History struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	DBFile  string `json:"db_file" mapstructure:"db_file"`
}

type Config struct {
	RTSPServer   RTSPServer    `json:"rtsp_server,omitempty" mapstructure:"rtsp_server"`
	Video        *Video        `json:"video,omitempty" mapstructure:"video"`
	VideoSources []VideoSource `json:"video_sources,omitempty" mapstructure:"video_sources"`
	Publisher    Publisher     `json:"publisher" mapstructure:"publisher"`
	LoadTest     LoadTest      `json:"load_test" mapstructure:"load_test"`
	Limits       Limits        `json:"limits" mapstructure:"limits"`
	Monitoring   Monitoring    `json:"monitoring" mapstructure:"monitoring"`
	API          API           `json:"api" mapstructure:"api"`
	History      History       `json:"history" mapstructure:"history"`
}

// Defaults cover the optional knobs only. Required sections (the RTSP
// endpoint and the video sources) deliberately have no default so
// validation can tell when they are missing.
var defaultConf = Config{
	Publisher: Publisher{
		Codec:       "libx264",
		Preset:      "ultrafast",
		Bitrate:     "2M",
		PixelFormat: "yuv420p",
	},
	LoadTest: LoadTest{
		ReportInterval: 10,
	},
	Limits: Limits{
		MaxStreams:       50,
		MaxMemoryPercent: 80,
		MaxCPUPercent:    90,
	},
	Monitoring: Monitoring{
		Enabled:     true,
		LogLevel:    "info",
		LogDir:      "logs",
		MetricsFile: "logs/metrics.json",
	},
	API: API{
		Enabled: true,
		Port:    10008,
	},
	History: History{
		DBFile: "logs/loadtest.db",
	},
}

// Load reads the YAML file at path on top of the defaults, applies
// LOADTEST_* environment overrides and unmarshals the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Default config
	b, _ := json.Marshal(defaultConf)
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(b)); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// Environment
	v.SetEnvPrefix("LOADTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	log.Debug(fmt.Sprintf("Current configurations: \n%# v", pretty.Formatter(c)))
	return c, nil
}
