package push

import (
	"context"

	"github.com/quanluon/gitgafit-web-sub000/internal/apiclient"
)

// RegisterPath is the backend endpoint that binds a delivery token to a
// device.
const RegisterPath = "/api/push/register"

// Registrar registers a device's delivery token with the backend.
type Registrar interface {
	Register(ctx context.Context, deviceID, token string, platform Platform) error
}

// TokenSource obtains a delivery token from the push service. The token is
// scoped to the background worker so delivery keeps working while the
// agent UI is closed.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type apiRegistrar struct {
	client *apiclient.Client
}

// NewRegistrar returns a Registrar backed by the backend API.
func NewRegistrar(client *apiclient.Client) Registrar {
	return &apiRegistrar{client: client}
}

type registerRequest struct {
	DeviceID string `json:"deviceId"`
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (r *apiRegistrar) Register(ctx context.Context, deviceID, token string, platform Platform) error {
	req := registerRequest{
		DeviceID: deviceID,
		Token:    token,
		Platform: string(platform),
	}
	return r.client.PostJSON(ctx, RegisterPath, req, nil)
}
