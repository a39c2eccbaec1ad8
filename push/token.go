package push

import (
	"context"

	"github.com/quanluon/gitgafit-web-sub000/errors"
	"github.com/quanluon/gitgafit-web-sub000/internal/apiclient"
)

// endpointTokenSource obtains delivery tokens from the push service's
// token endpoint.
type endpointTokenSource struct {
	client *apiclient.Client
	path   string
}

// NewEndpointTokenSource returns a TokenSource that fetches tokens from
// path on the given client.
func NewEndpointTokenSource(client *apiclient.Client, path string) TokenSource {
	return &endpointTokenSource{client: client, path: path}
}

func (s *endpointTokenSource) Token(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := s.client.GetJSON(ctx, s.path, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("push service returned an empty token")
	}
	return out.Token, nil
}
