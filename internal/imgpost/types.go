package imgpost

import "context"

// Request describes one post: the image to attach plus its text decoration.
type Request struct {
	ImagePath string
	Text      string
	Tag       string
	Alt       string
}

// TextWithHashtag renders the post text for services that carry hashtags
// inline rather than as annotations.
func TextWithHashtag(text, tag string) string {
	if tag == "" {
		return text
	}
	if text == "" {
		return "#" + tag
	}
	return text + " #" + tag
}

// Publisher abstracts a social network that can publish an image post.
// Publish returns a provider-specific post identifier (URI, status ID, ...).
type Publisher interface {
	Name() string
	Publish(ctx context.Context, req Request) (string, error)
}
