package generator

import (
	"fmt"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ilhamfadhil14/load-test-rtsp-stream/log"
	"github.com/ilhamfadhil14/load-test-rtsp-stream/utils"
)

// Clip describes one synthetic source file.
type Clip struct {
	FileName string
	Source   string
	Seconds  int
}

// Clips are the stock test sources: a moving test pattern, SMPTE bars
// and a gradient sweep, in ascending resolutions. Looped by the
// publishers, thirty seconds of each is plenty.
var Clips = []Clip{
	{FileName: "testsrc_640x480_30fps.mp4", Source: "testsrc=size=640x480:rate=30", Seconds: 30},
	{FileName: "smptebars_1280x720_25fps.mp4", Source: "smptebars=size=1280x720:rate=25", Seconds: 30},
	{FileName: "gradients_1920x1080_30fps.mp4", Source: "gradients=size=1920x1080:rate=30", Seconds: 30},
}

// Generate renders every stock clip into dir, overwriting stale ones.
func Generate(dir string) error {
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}
	for _, clip := range Clips {
		path := filepath.Join(dir, clip.FileName)
		log.Info(fmt.Sprintf("generating %s from %s", path, clip.Source))
		if err := render(clip, path); err != nil {
			return fmt.Errorf("generate %s: %w", clip.FileName, err)
		}
	}
	log.Info(fmt.Sprintf("%d clips ready under %s", len(Clips), dir))
	return nil
}

func renderStream(clip Clip, path string) *ffmpeg.Stream {
	return ffmpeg.Input(clip.Source, ffmpeg.KwArgs{"f": "lavfi", "t": clip.Seconds}).
		Output(path, ffmpeg.KwArgs{"c:v": "libx264", "pix_fmt": "yuv420p"}).
		OverWriteOutput().
		ErrorToStdOut()
}

func render(clip Clip, path string) error {
	return renderStream(clip, path).Run()
}
