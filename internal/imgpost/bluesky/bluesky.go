package bluesky

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/blacktop/imgpost/internal/imgpost"
	"github.com/blacktop/imgpost/internal/logutil"
	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
)

const (
	envHandle      = "IMGPOST_BLUESKY_HANDLE"
	envAppPassword = "IMGPOST_BLUESKY_APP_PASSWORD"
	envPDSURL      = "IMGPOST_BLUESKY_PDS_URL"

	providerName   = "bluesky"
	requestTimeout = 30 * time.Second

	feedPostCollection = "app.bsky.feed.post"
	tagFeatureType     = "app.bsky.richtext.facet#tag"
)

// Config allows the caller to supply values prior to reading environment
// variables; anything left blank falls back to the environment.
type Config struct {
	Handle      string
	AppPassword string
	PDSURL      string
}

// Client holds an authenticated xrpc session with a PDS. The session is
// established once at construction and passed along explicitly; there is no
// package-level client state.
type Client struct {
	client *xrpc.Client
}

// New logs in to the PDS and returns a Publisher bound to that session.
func New(ctx context.Context, base Config) (imgpost.Publisher, error) {
	cfg, err := loadConfig(base)
	if err != nil {
		return nil, err
	}

	userAgent := "imgpost/1"
	xrpcClient := &xrpc.Client{
		Client:    &http.Client{Timeout: requestTimeout},
		Host:      cfg.PDSURL,
		UserAgent: &userAgent,
	}

	session, err := atproto.ServerCreateSession(ctx, xrpcClient, &atproto.ServerCreateSession_Input{
		Identifier: cfg.Handle,
		Password:   cfg.AppPassword,
	})
	if err != nil {
		return nil, imgpost.AuthError{Provider: providerName, Err: err}
	}

	xrpcClient.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}

	return &Client{client: xrpcClient}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Publish uploads the image as a blob and creates a feed post embedding it.
// When a tag is configured it is attached as a richtext facet spanning the
// whole post text; with the default empty text that span is zero-length.
func (c *Client) Publish(ctx context.Context, req imgpost.Request) (string, error) {
	blob, err := c.uploadImage(ctx, req.ImagePath)
	if err != nil {
		return "", err
	}

	post := &bsky.FeedPost{
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Text:      req.Text,
		Embed: &bsky.FeedPost_Embed{
			EmbedImages: &bsky.EmbedImages{
				Images: []*bsky.EmbedImages_Image{
					{
						Alt:   req.Alt,
						Image: blob,
					},
				},
			},
		},
	}

	if req.Tag != "" {
		post.Facets = []*bsky.RichtextFacet{
			{
				Index: &bsky.RichtextFacet_ByteSlice{
					ByteStart: 0,
					ByteEnd:   int64(len(req.Text)),
				},
				Features: []*bsky.RichtextFacet_Features_Elem{
					{
						RichtextFacet_Tag: &bsky.RichtextFacet_Tag{
							LexiconTypeID: tagFeatureType,
							Tag:           req.Tag,
						},
					},
				},
			},
		}
	}

	out, err := atproto.RepoCreateRecord(ctx, c.client, &atproto.RepoCreateRecord_Input{
		Collection: feedPostCollection,
		Repo:       c.client.Auth.Did,
		Record: &util.LexiconTypeDecoder{
			Val: post,
		},
	})
	if err != nil {
		return "", imgpost.SubmitError{Provider: providerName, Err: err}
	}

	logutil.Debugf("record created: uri=%s", out.Uri)
	return out.Uri, nil
}

func (c *Client) uploadImage(ctx context.Context, path string) (*util.LexBlob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, imgpost.ValidationError{Provider: providerName, Reason: fmt.Sprintf("image %q not found", path)}
		}
		return nil, fmt.Errorf("read image: %w", err)
	}

	resp, err := atproto.RepoUploadBlob(ctx, c.client, bytes.NewReader(data))
	if err != nil {
		return nil, imgpost.UploadError{Provider: providerName, Err: err}
	}

	if resp.Blob == nil {
		return nil, imgpost.UploadError{Provider: providerName, Err: fmt.Errorf("empty blob response")}
	}

	return resp.Blob, nil
}

func loadConfig(base Config) (Config, error) {
	cfg := Config{
		Handle:      strings.TrimSpace(base.Handle),
		AppPassword: strings.TrimSpace(base.AppPassword),
		PDSURL:      strings.TrimSpace(base.PDSURL),
	}

	if cfg.Handle == "" {
		cfg.Handle = strings.TrimSpace(os.Getenv(envHandle))
	}
	if cfg.AppPassword == "" {
		cfg.AppPassword = strings.TrimSpace(os.Getenv(envAppPassword))
	}
	if cfg.PDSURL == "" {
		cfg.PDSURL = strings.TrimSpace(os.Getenv(envPDSURL))
	}
	if cfg.PDSURL == "" {
		cfg.PDSURL = "https://bsky.social"
	}

	var missing []string
	if cfg.Handle == "" {
		missing = append(missing, envHandle)
	}
	if cfg.AppPassword == "" {
		missing = append(missing, envAppPassword)
	}

	if len(missing) > 0 {
		return Config{}, imgpost.MissingEnvError{Provider: providerName, Variables: missing}
	}

	return cfg, nil
}
