// Package registry fetches the human-readable chain configs from a remote or
// local source before the pipeline loads them.
package registry

import (
	"context"
	"fmt"
	"os"
	"time"

	getter "github.com/hashicorp/go-getter"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "registry").Logger()
}

// DefaultTimeout bounds a single download
const DefaultTimeout = 120 * time.Second

// Download copies the chain config directory at src into dst.
//
// src can be anything go-getter detects: a GitHub shorthand such as
// "github.com/org/repo//configs/chains", a git URL, an http(s) archive or a
// local directory. dst is removed first so stale chain files never survive a
// refresh.
func Download(ctx context.Context, src, dst string) error {
	if src == "" {
		return fmt.Errorf("empty registry source")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to clear registry destination: %w", err)
	}

	pwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	client := getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeDir,
		Detectors: []getter.Detector{
			&getter.GitHubDetector{},
			&getter.GitDetector{},
			&getter.FileDetector{},
		},
		Getters: map[string]getter.Getter{
			"git":   &getter.GitGetter{},
			"http":  &getter.HttpGetter{},
			"https": &getter.HttpGetter{},
			"file":  &getter.FileGetter{Copy: true},
		},
	}

	log.Info().Str("src", src).Str("dst", dst).Msg("Downloading chain configs")
	if err := client.Get(); err != nil {
		return fmt.Errorf("failed to download registry: %w", err)
	}
	return nil
}
