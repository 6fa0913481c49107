package firehose

import (
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
)

// EmbedKind is the closed set of embed shapes a post record can take.
type EmbedKind int

const (
	EmbedNone EmbedKind = iota
	// EmbedDirectImages is an embed exposing images directly.
	EmbedDirectImages
	// EmbedMediaImages is an embed exposing images nested under media.
	EmbedMediaImages
	// EmbedOther is any other embed shape (external link, quote, video).
	EmbedOther
)

// RecordImage is the image metadata carried inside a post record.
type RecordImage struct {
	Alt    string
	Height *int64
	Width  *int64
}

// Embed is the decoded embed variant of a post record.
type Embed struct {
	Kind   EmbedKind
	Images []RecordImage
}

// Post is the decoded subset of an app.bsky.feed.post record used by
// admission and persistence.
type Post struct {
	Langs     []string
	Text      string
	CreatedAt time.Time
	Embed     Embed
}

// PostFromRecord converts a decoded feed post record into a Post. Timestamps
// that fail to parse fall back to the current time.
func PostFromRecord(fp *appbsky.FeedPost) Post {
	p := Post{
		Langs: fp.Langs,
		Text:  fp.Text,
	}

	createdAt, err := time.Parse(time.RFC3339, fp.CreatedAt)
	if err != nil {
		createdAt = time.Now().UTC()
	}
	p.CreatedAt = createdAt

	p.Embed = embedFromRecord(fp.Embed)
	return p
}

func embedFromRecord(embed *appbsky.FeedPost_Embed) Embed {
	if embed == nil {
		return Embed{Kind: EmbedNone}
	}

	if embed.EmbedImages != nil {
		return Embed{
			Kind:   EmbedDirectImages,
			Images: recordImages(embed.EmbedImages),
		}
	}

	if rwm := embed.EmbedRecordWithMedia; rwm != nil && rwm.Media != nil && rwm.Media.EmbedImages != nil {
		return Embed{
			Kind:   EmbedMediaImages,
			Images: recordImages(rwm.Media.EmbedImages),
		}
	}

	return Embed{Kind: EmbedOther}
}

func recordImages(images *appbsky.EmbedImages) []RecordImage {
	out := make([]RecordImage, 0, len(images.Images))
	for _, img := range images.Images {
		if img == nil {
			continue
		}
		ri := RecordImage{Alt: img.Alt}
		if ar := img.AspectRatio; ar != nil {
			h, w := ar.Height, ar.Width
			ri.Height = &h
			ri.Width = &w
		}
		out = append(out, ri)
	}
	return out
}
