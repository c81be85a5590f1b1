/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/blacktop/imgpost/internal/imgpost"
	"github.com/blacktop/imgpost/internal/imgpost/bluesky"
	"github.com/blacktop/imgpost/internal/imgpost/mastodon"
	"github.com/blacktop/imgpost/internal/imgpost/postlog"
	"github.com/blacktop/imgpost/internal/imgpost/run"
	"github.com/blacktop/imgpost/internal/imgpost/selector"
	"github.com/blacktop/imgpost/internal/imgpost/twitter"
	"github.com/blacktop/imgpost/internal/logutil"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	imageDir    string
	logFile     string
	messageFlag string
	tagFlag     string
	imageAlt    string
	targetFlag  string
	dryRun      bool
	verbose     bool
)

var supportedTargets = map[string]struct{}{
	"bluesky":  {},
	"mastodon": {},
	"twitter":  {},
}

const (
	defaultImageDir      = "images"
	defaultLogFile       = "posted_images.log"
	defaultBlueskyPDSURL = "https://bsky.social"

	envTag             = "IMGPOST_TAG"
	envBlueskyPassword = "IMGPOST_BLUESKY_APP_PASSWORD"
)

// Execute runs the root command.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imgpost",
		Short: "Post the next unposted image from a directory",
		Long: "imgpost picks a random image that has not been posted yet, shrinks it " +
			"under the service's upload size limit if needed, publishes it, and records " +
			"it in a log so it is never posted twice.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
		Example: `  imgpost --dir ./images --tag photography
  imgpost --target mastodon --message "daily picture"
  imgpost --dry-run`,
	}

	cmd.Flags().StringVar(&imageDir, "dir", defaultImageDir, "Directory to pick images from")
	cmd.Flags().StringVar(&logFile, "log-file", defaultLogFile, "Path of the posted-image log")
	cmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Post text (empty by default)")
	cmd.Flags().StringVar(&tagFlag, "tag", "", "Hashtag to attach (defaults to $IMGPOST_TAG)")
	cmd.Flags().StringVar(&imageAlt, "alt-text", "", "Alternative text to describe the image")
	cmd.Flags().StringVar(&targetFlag, "target", "bluesky", "Target to post to (bluesky, mastodon, twitter)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print actions without posting")
	cmd.Flags().BoolVarP(&verbose, "verbose", "V", false, "Enable debug logging")
	cmd.Flags().SortFlags = false

	cmd.AddCommand(newCompletionCommand())

	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logutil.SetVerbose(verbose)

	// Credentials live in the environment; a local .env is honored when present.
	if err := godotenv.Load(); err == nil {
		logutil.Debugf("loaded .env")
	}

	target, err := normalizeTarget(targetFlag)
	if err != nil {
		return err
	}

	tag := tagFlag
	if tag == "" {
		tag = strings.TrimSpace(os.Getenv(envTag))
	}

	log := postlog.New(logFile)

	if dryRun {
		return describeRun(cmd, log, target)
	}

	publisher, err := buildPublisher(ctx, target)
	if err != nil {
		return err
	}

	runner := run.New(imageDir, log, publisher)
	runner.Text = strings.TrimSpace(messageFlag)
	runner.Tag = tag
	runner.Alt = strings.TrimSpace(imageAlt)

	return runner.Run(ctx)
}

func describeRun(cmd *cobra.Command, log *postlog.Log, target string) error {
	sel := &selector.Selector{Posted: log.IsPosted}
	imagePath, err := sel.Next(imageDir)
	if err != nil {
		if errors.Is(err, selector.ErrExhausted) {
			fmt.Fprintln(cmd.OutOrStdout(), "[dry-run] no unposted images")
			return nil
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[dry-run] would post %s to %s\n", imagePath, target)
	return nil
}

func normalizeTarget(value string) (string, error) {
	target := strings.TrimSpace(strings.ToLower(value))
	if target == "" {
		return "bluesky", nil
	}
	if _, ok := supportedTargets[target]; !ok {
		return "", fmt.Errorf("unsupported target %q", target)
	}
	return target, nil
}

func buildPublisher(ctx context.Context, target string) (imgpost.Publisher, error) {
	switch target {
	case "bluesky":
		cfg := bluesky.Config{PDSURL: defaultBlueskyPDSURL}
		if os.Getenv(envBlueskyPassword) == "" {
			cfg.AppPassword = promptSecret("Bluesky app password: ")
		}
		return bluesky.New(ctx, cfg)
	case "mastodon":
		return mastodon.New(ctx)
	case "twitter":
		return twitter.New(ctx)
	}
	return nil, fmt.Errorf("target %q is not implemented", target)
}

// promptSecret asks for a secret on the terminal. Returns empty when stdin is
// not a TTY so the provider's own missing-env error surfaces instead.
func promptSecret(prompt string) string {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return ""
	}
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(secret))
}
