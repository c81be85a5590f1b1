// Package run sequences one posting cycle: pick an unposted image, fit it
// under the upload ceiling, publish it, and record it in the post log.
package run

import (
	"context"
	"errors"

	"github.com/blacktop/imgpost/internal/imgpost"
	"github.com/blacktop/imgpost/internal/imgpost/imagefit"
	"github.com/blacktop/imgpost/internal/imgpost/postlog"
	"github.com/blacktop/imgpost/internal/imgpost/selector"
	"github.com/blacktop/imgpost/internal/logutil"
)

// Runner holds the wired pipeline for a single invocation. There is no
// internal looping or retry; an external scheduler drives repetition.
type Runner struct {
	Dir       string
	Log       *postlog.Log
	Selector  *selector.Selector
	Fitter    imagefit.Fitter
	Publisher imgpost.Publisher

	Text string
	Tag  string
	Alt  string
}

// New wires a Runner around the given log and publisher.
func New(dir string, log *postlog.Log, pub imgpost.Publisher) *Runner {
	return &Runner{
		Dir:       dir,
		Log:       log,
		Selector:  &selector.Selector{Posted: log.IsPosted},
		Fitter:    imagefit.New(),
		Publisher: pub,
	}
}

// Run performs one posting cycle. Running out of unposted images is a normal
// outcome and returns nil. A log-append failure after a successful publish
// is only warned about: re-posting on a later run is an acceptable degraded
// outcome, losing the post is not.
func (r *Runner) Run(ctx context.Context) error {
	imagePath, err := r.Selector.Next(r.Dir)
	if err != nil {
		if errors.Is(err, selector.ErrExhausted) {
			logutil.Infof("no images to post, exiting")
			return nil
		}
		return err
	}
	logutil.Infof("selected image: %s", imagePath)

	uploadPath, err := r.Fitter.Fit(imagePath)
	if err != nil {
		return err
	}

	id, err := r.Publisher.Publish(ctx, imgpost.Request{
		ImagePath: uploadPath,
		Text:      r.Text,
		Tag:       r.Tag,
		Alt:       r.Alt,
	})
	if err != nil {
		return err
	}
	logutil.Infof("posted %s to %s (%s)", imagePath, r.Publisher.Name(), id)

	// The log records the original path, not the derived copy, so the same
	// source image is never picked again.
	if err := r.Log.Append(imagePath); err != nil {
		logutil.Warnf("post succeeded but could not be logged: %v", err)
	}

	imagefit.Cleanup(imagePath)
	return nil
}
