package mastodon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blacktop/imgpost/internal/imgpost"
	mastodonapi "github.com/mattn/go-mastodon"
)

const (
	envServer       = "IMGPOST_MASTODON_SERVER"
	envAccessToken  = "IMGPOST_MASTODON_ACCESS_TOKEN"
	envClientID     = "IMGPOST_MASTODON_CLIENT_ID"
	envClientSecret = "IMGPOST_MASTODON_CLIENT_SECRET"

	providerName   = "mastodon"
	requestTimeout = 30 * time.Second
)

// Config contains the settings needed to reach a Mastodon server.
type Config struct {
	Server       string
	AccessToken  string
	ClientID     string
	ClientSecret string
}

// Client wraps the Mastodon API client as an image publisher.
type Client struct {
	client *mastodonapi.Client
}

// New constructs a Mastodon publisher based on environment configuration.
func New(ctx context.Context) (imgpost.Publisher, error) {
	cfg, err := loadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	mastodonClient := mastodonapi.NewClient(&mastodonapi.Config{
		Server:       cfg.Server,
		AccessToken:  cfg.AccessToken,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	})
	mastodonClient.Timeout = requestTimeout

	return &Client{client: mastodonClient}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Publish uploads the image and posts a status referencing it. Mastodon has
// no facet concept, so the tag is rendered inline as a hashtag.
func (c *Client) Publish(ctx context.Context, req imgpost.Request) (string, error) {
	attachment, err := c.uploadMedia(ctx, req.ImagePath, req.Alt)
	if err != nil {
		return "", err
	}

	status, err := c.client.PostStatus(ctx, &mastodonapi.Toot{
		Status:   imgpost.TextWithHashtag(req.Text, req.Tag),
		MediaIDs: []mastodonapi.ID{attachment.ID},
	})
	if err != nil {
		return "", imgpost.SubmitError{Provider: providerName, Err: err}
	}

	return string(status.ID), nil
}

func (c *Client) uploadMedia(ctx context.Context, path, alt string) (*mastodonapi.Attachment, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, imgpost.ValidationError{Provider: providerName, Reason: fmt.Sprintf("image %q not found", path)}
		}
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	attachment, err := c.client.UploadMediaFromMedia(ctx, &mastodonapi.Media{
		File:        file,
		Description: alt,
	})
	if err != nil {
		return nil, imgpost.UploadError{Provider: providerName, Err: err}
	}

	return attachment, nil
}

func loadConfigFromEnv() (Config, error) {
	cfg := Config{
		Server:       strings.TrimSpace(os.Getenv(envServer)),
		AccessToken:  strings.TrimSpace(os.Getenv(envAccessToken)),
		ClientID:     strings.TrimSpace(os.Getenv(envClientID)),
		ClientSecret: strings.TrimSpace(os.Getenv(envClientSecret)),
	}

	var missing []string
	if cfg.Server == "" {
		missing = append(missing, envServer)
	}
	if cfg.AccessToken == "" {
		missing = append(missing, envAccessToken)
	}

	if len(missing) > 0 {
		return Config{}, imgpost.MissingEnvError{Provider: providerName, Variables: missing}
	}

	return cfg, nil
}
