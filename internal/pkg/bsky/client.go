// Package bsky wraps the AT Protocol client surface the services need:
// session login, post thread lookup and the firehose subscription.
package bsky

import (
	"context"
	"fmt"
	"net/http"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/rs/zerolog/log"
)

// ImageRef describes one image attached to a post view.
type ImageRef struct {
	URL    string
	Alt    string
	Height *int64
	Width  *int64
}

// Client is an authenticated XRPC client against a PDS.
type Client struct {
	xrpc *xrpc.Client
}

// NewClient creates an unauthenticated client for the given PDS host.
func NewClient(host string) *Client {
	return &Client{
		xrpc: &xrpc.Client{
			Host: host,
			Client: &http.Client{
				Timeout: 30 * time.Second,
			},
		},
	}
}

// Login creates a session and attaches its tokens to the client.
func (c *Client) Login(ctx context.Context, identifier, password string) error {
	out, err := comatproto.ServerCreateSession(ctx, c.xrpc, &comatproto.ServerCreateSession_Input{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	c.xrpc.Auth = &xrpc.AuthInfo{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		Handle:     out.Handle,
		Did:        out.Did,
	}

	log.Info().Str("handle", out.Handle).Msg("Logged in to Bluesky")
	return nil
}

// PostThreadImages fetches the thread for uri at depth 0 and returns the
// images attached to the thread's root post. Both direct image embeds and
// images nested under a record-with-media embed are merged into one list.
func (c *Client) PostThreadImages(ctx context.Context, uri string) ([]ImageRef, error) {
	out, err := appbsky.FeedGetPostThread(ctx, c.xrpc, 0, 0, uri)
	if err != nil {
		return nil, fmt.Errorf("get post thread: %w", err)
	}

	if out.Thread == nil || out.Thread.FeedDefs_ThreadViewPost == nil {
		return nil, nil
	}
	post := out.Thread.FeedDefs_ThreadViewPost.Post
	if post == nil || post.Embed == nil {
		return nil, nil
	}

	var refs []ImageRef
	if view := post.Embed.EmbedImages_View; view != nil {
		refs = append(refs, viewImages(view)...)
	}
	if rwm := post.Embed.EmbedRecordWithMedia_View; rwm != nil && rwm.Media != nil {
		if view := rwm.Media.EmbedImages_View; view != nil {
			refs = append(refs, viewImages(view)...)
		}
	}
	return refs, nil
}

func viewImages(view *appbsky.EmbedImages_View) []ImageRef {
	refs := make([]ImageRef, 0, len(view.Images))
	for _, img := range view.Images {
		if img == nil || img.Fullsize == "" {
			continue
		}
		ref := ImageRef{
			URL: img.Fullsize,
			Alt: img.Alt,
		}
		if ar := img.AspectRatio; ar != nil {
			h, w := ar.Height, ar.Width
			ref.Height = &h
			ref.Width = &w
		}
		refs = append(refs, ref)
	}
	return refs
}
