package bridgeapi

import (
	"context"
	"fmt"

	"github.com/rschio/huestream/model"
)

// ListLights fetches every light resource, used only to resolve a
// light's owning device rid to a human-readable name (spec §3: lights
// are never driven directly while streaming).
func (c *EntertainmentClient) ListLights(ctx context.Context) ([]model.Light, error) {
	var env resourceEnvelope[model.Light]
	if err := c.http.GetJSON(ctx, "/clip/v2/resource/light", &env); err != nil {
		return nil, err
	}
	if len(env.Errors) > 0 {
		return nil, fmt.Errorf("bridgeapi: %s", env.Errors[0].Description)
	}
	return env.Data, nil
}

// ListEntertainments fetches every /resource/entertainment service,
// used to map a channel member's service rid to the device that owns
// it.
func (c *EntertainmentClient) ListEntertainments(ctx context.Context) ([]model.Entertainment, error) {
	var env resourceEnvelope[model.Entertainment]
	if err := c.http.GetJSON(ctx, "/clip/v2/resource/entertainment", &env); err != nil {
		return nil, err
	}
	if len(env.Errors) > 0 {
		return nil, fmt.Errorf("bridgeapi: %s", env.Errors[0].Description)
	}
	return env.Data, nil
}
