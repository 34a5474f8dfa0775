package orchestrator

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilhamfadhil14/load-test-rtsp-stream/config"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/publisher"
)

// ValidateConfig rejects configurations that cannot produce a run:
// missing RTSP endpoint, no video source, more streams than the
// configured limit, video files that do not exist, duplicate stream
// names. It runs before any process is spawned.
func ValidateConfig(cfg *config.Config) error {
	if strings.TrimSpace(cfg.RTSPServer.BaseURL) == "" {
		return configErrorf("rtsp_server.base_url is not set")
	}

	if len(cfg.VideoSources) > 0 {
		return validateSources(cfg)
	}
	if cfg.Video == nil || strings.TrimSpace(cfg.Video.Path) == "" {
		return configErrorf("neither video nor video_sources is configured")
	}

	count := cfg.LoadTest.ConcurrentStreams
	if count <= 0 {
		count = 1
	}
	if max := cfg.Limits.MaxStreams; max > 0 && count > max {
		return configErrorf("%d concurrent streams requested, limits.max_streams is %d", count, max)
	}
	if _, err := os.Stat(cfg.Video.Path); err != nil {
		return configErrorf("video file %s is not readable: %v", cfg.Video.Path, err)
	}
	return nil
}

func validateSources(cfg *config.Config) error {
	if max := cfg.Limits.MaxStreams; max > 0 && len(cfg.VideoSources) > max {
		return configErrorf("%d video sources configured, limits.max_streams is %d", len(cfg.VideoSources), max)
	}
	seen := make(map[string]bool, len(cfg.VideoSources))
	for i, src := range cfg.VideoSources {
		name := strings.TrimSpace(src.Name)
		if name == "" {
			return configErrorf("video_sources[%d] has no name", i)
		}
		if seen[name] {
			return configErrorf("duplicate stream name %q", name)
		}
		seen[name] = true
		if strings.TrimSpace(src.VideoPath) == "" {
			return configErrorf("video_sources[%d] (%s) has no video_path", i, name)
		}
		if _, err := os.Stat(src.VideoPath); err != nil {
			return configErrorf("video file %s is not readable: %v", src.VideoPath, err)
		}
	}
	return nil
}

// BuildSpecs turns the configuration into one publisher spec per
// stream. An explicit video_sources list wins over the single-video
// fan-out; with a single video the streams are named stream1..streamN.
// Callers validate first.
func BuildSpecs(cfg *config.Config) []publisher.Spec {
	base := strings.TrimRight(cfg.RTSPServer.BaseURL, "/")
	enc := cfg.Publisher

	if len(cfg.VideoSources) > 0 {
		specs := make([]publisher.Spec, 0, len(cfg.VideoSources))
		for _, src := range cfg.VideoSources {
			name := strings.TrimSpace(src.Name)
			specs = append(specs, publisher.Spec{
				Name:        name,
				URL:         base + "/" + name,
				VideoPath:   src.VideoPath,
				Loop:        src.Loop,
				FPS:         src.FPS,
				Codec:       enc.Codec,
				Preset:      enc.Preset,
				Bitrate:     enc.Bitrate,
				PixelFormat: enc.PixelFormat,
			})
		}
		return specs
	}

	count := cfg.LoadTest.ConcurrentStreams
	if count <= 0 {
		count = 1
	}
	specs := make([]publisher.Spec, 0, count)
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("stream%d", i)
		specs = append(specs, publisher.Spec{
			Name:        name,
			URL:         base + "/" + name,
			VideoPath:   cfg.Video.Path,
			Loop:        cfg.Video.Loop,
			FPS:         cfg.Video.FPS,
			Codec:       enc.Codec,
			Preset:      enc.Preset,
			Bitrate:     enc.Bitrate,
			PixelFormat: enc.PixelFormat,
		})
	}
	return specs
}
