package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

type ffmpegCapturer struct {
	*streamCapturer
	cancel context.CancelFunc
	cmd    *exec.Cmd
}

func newFFmpegCapturer(width, height int) (Capturer, string, error) {
	if !hasExecutable("ffmpeg") {
		return nil, "", fmt.Errorf("ffmpeg not found")
	}

	display := os.Getenv("DISPLAY")
	if display == "" {
		return nil, "", fmt.Errorf("DISPLAY not set")
	}

	w, h, err := screenSize()
	if err != nil {
		return nil, "", err
	}

	ctx, cancel := context.WithCancel(context.Background())

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-nostdin",
		"-loglevel", "error",
		"-f", "x11grab",
		"-framerate", "30",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-i", display+".0",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, "", fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, "", fmt.Errorf("starting ffmpeg: %w", err)
	}

	c := &ffmpegCapturer{
		streamCapturer: newStreamCapturer(width, height),
		cancel:         cancel,
		cmd:            cmd,
	}

	go c.readFrames(stdout)

	if err := c.waitFirstFrame(); err != nil {
		_ = c.Close()
		return nil, "", fmt.Errorf("ffmpeg: %w", err)
	}

	return c, "FFmpeg", nil
}

func (c *ffmpegCapturer) Close() error {
	c.cancel()
	<-c.done
	return c.cmd.Wait()
}
