package photo

import (
	"context"
	"net/url"
)

const (
	OrientationLandscape = "landscape"
	OrientationPortrait  = "portrait"
	OrientationSquarish  = "squarish"
)

type Client interface {
	RandomImage(ctx context.Context, prompt string) (*Image, error)
}

// SearchRequest is built fresh for every call and never mutated afterwards.
type SearchRequest struct {
	Query       string
	Orientation string
	ClientID    string
}

func NewSearchRequest(prompt, orientation, clientID string) SearchRequest {
	if orientation == "" {
		orientation = OrientationSquarish
	}
	return SearchRequest{
		Query:       prompt,
		Orientation: orientation,
		ClientID:    clientID,
	}
}

func (r SearchRequest) Values() url.Values {
	v := url.Values{}
	v.Set("query", r.Query)
	v.Set("orientation", r.Orientation)
	v.Set("client_id", r.ClientID)
	return v
}

// URL joins the request onto base, e.g. https://api.unsplash.com/photos/random.
func (r SearchRequest) URL(base string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &url.Error{Op: "parse", URL: base, Err: errMissingHost}
	}
	u.RawQuery = r.Values().Encode()
	return u, nil
}

func IsValidOrientation(o string) bool {
	switch o {
	case OrientationLandscape, OrientationPortrait, OrientationSquarish:
		return true
	default:
		return false
	}
}

type Image struct {
	Data      []byte
	Format    string
	Width     int
	Height    int
	SourceURL string
}

func (i *Image) Size() int {
	return len(i.Data)
}
