package bridgeapi

import (
	"context"
	"fmt"

	"github.com/rschio/huestream/httpclient"
	"github.com/rschio/huestream/model"
)

const entertainmentConfigPath = "/clip/v2/resource/entertainment_configuration"

// EntertainmentClient is the C6 REST resource client: entertainment
// configuration CRUD plus the light/entertainment lookups needed to
// resolve channel IDs to physical lights.
type EntertainmentClient struct {
	http *httpclient.Client
}

// NewEntertainmentClient wraps an already-authenticated httpclient.Client.
func NewEntertainmentClient(client *httpclient.Client) *EntertainmentClient {
	return &EntertainmentClient{http: client}
}

type resourceEnvelope[T any] struct {
	Errors []struct {
		Description string `json:"description"`
	} `json:"errors"`
	Data []T `json:"data"`
}

// ListConfigurations fetches every entertainment configuration on the
// bridge, keyed by id.
func (c *EntertainmentClient) ListConfigurations(ctx context.Context) (map[string]model.EntertainmentConfiguration, error) {
	var env resourceEnvelope[model.EntertainmentConfiguration]
	if err := c.http.GetJSON(ctx, entertainmentConfigPath, &env); err != nil {
		return nil, err
	}
	if len(env.Errors) > 0 {
		return nil, fmt.Errorf("bridgeapi: %s", env.Errors[0].Description)
	}
	out := make(map[string]model.EntertainmentConfiguration, len(env.Data))
	for _, cfg := range env.Data {
		out[cfg.ID] = cfg
	}
	return out, nil
}

// GetConfiguration fetches a single entertainment configuration.
func (c *EntertainmentClient) GetConfiguration(ctx context.Context, id string) (model.EntertainmentConfiguration, error) {
	var env resourceEnvelope[model.EntertainmentConfiguration]
	if err := c.http.GetJSON(ctx, entertainmentConfigPath+"/"+id, &env); err != nil {
		return model.EntertainmentConfiguration{}, err
	}
	if len(env.Errors) > 0 {
		return model.EntertainmentConfiguration{}, fmt.Errorf("bridgeapi: %s", env.Errors[0].Description)
	}
	if len(env.Data) == 0 {
		return model.EntertainmentConfiguration{}, fmt.Errorf("bridgeapi: configuration %s not found", id)
	}
	return env.Data[0], nil
}

// PutConfiguration issues the PUT transition to a configuration. The
// body must not carry the "id" field (the bridge rejects it); callers
// pass only the fields they intend to change.
func (c *EntertainmentClient) PutConfiguration(ctx context.Context, id string, body map[string]any) error {
	delete(body, "id")
	return c.http.PutJSON(ctx, entertainmentConfigPath+"/"+id, body)
}

// StartConfiguration issues {"action": "start"}.
func (c *EntertainmentClient) StartConfiguration(ctx context.Context, id string) error {
	return c.PutConfiguration(ctx, id, map[string]any{"action": "start"})
}

// StopConfiguration issues {"action": "stop"}.
func (c *EntertainmentClient) StopConfiguration(ctx context.Context, id string) error {
	return c.PutConfiguration(ctx, id, map[string]any{"action": "stop"})
}
