package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const defaultFPS = 30

// MediaInfo is what ffprobe reports about a source file.
type MediaInfo struct {
	Width    int
	Height   int
	FPS      float64
	Duration float64
}

func (m MediaInfo) Resolution() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

type commandFactory func(spec Spec) *exec.Cmd

type probeFunc func(path string) (MediaInfo, error)

// buildStream assembles the ffmpeg pipeline that pushes the source file
// to the publisher's RTSP endpoint. -re paces reading at native speed so
// the stream behaves like a live camera.
func buildStream(spec Spec) *ffmpeg.Stream {
	inputArgs := ffmpeg.KwArgs{"re": ""}
	if spec.Loop {
		inputArgs["stream_loop"] = "-1"
	}

	fps := spec.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	// keyframe cadence pinned to the frame rate keeps players joining fast
	outputArgs := ffmpeg.KwArgs{
		"r":              fps,
		"g":              fps * 2,
		"keyint_min":     fps,
		"sc_threshold":   0,
		"f":              "rtsp",
		"rtsp_transport": "tcp",
	}
	if spec.Codec != "" {
		outputArgs["c:v"] = spec.Codec
	}
	if spec.Preset != "" {
		outputArgs["preset"] = spec.Preset
	}
	if spec.Bitrate != "" {
		outputArgs["b:v"] = spec.Bitrate
	}
	if spec.PixelFormat != "" {
		outputArgs["pix_fmt"] = spec.PixelFormat
	}

	return ffmpeg.Input(spec.VideoPath, inputArgs).
		Output(spec.URL, outputArgs).
		GlobalArgs("-hide_banner", "-nostats", "-nostdin", "-loglevel", "error")
}

// ffmpegCommand is the default command factory.
func ffmpegCommand(spec Spec) *exec.Cmd {
	return buildStream(spec).Compile()
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// probeMediaInfo asks ffprobe about the source file.
func probeMediaInfo(path string) (MediaInfo, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return MediaInfo{}, err
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(out string) (MediaInfo, error) {
	var probed probeOutput
	if err := json.Unmarshal([]byte(out), &probed); err != nil {
		return MediaInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	info := MediaInfo{}
	if d, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	for _, s := range probed.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.Width = s.Width
		info.Height = s.Height
		info.FPS = parseFrameRate(s.RFrameRate)
		return info, nil
	}
	return info, errors.New("no video stream found")
}

// parseFrameRate turns ffprobe's "30000/1001" form into a float.
func parseFrameRate(r string) float64 {
	parts := strings.SplitN(r, "/", 2)
	if len(parts) == 2 {
		num, err1 := strconv.ParseFloat(parts[0], 64)
		den, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 == nil && err2 == nil && den != 0 {
			return num / den
		}
		return 0
	}
	f, _ := strconv.ParseFloat(r, 64)
	return f
}
