// Package bridgeapi implements the bridge-facing REST operations: app
// registration and identity bootstrap (C5), and the entertainment
// configuration / light resource client (C6).
package bridgeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/rschio/huestream/errs"
	"github.com/rschio/huestream/httpclient"
	"github.com/rschio/huestream/model"
	"github.com/rschio/huestream/persist"
)

// AppNamePattern is the devicetype format the bridge requires:
// "<app>#<instance>", each half non-empty and hash-free.
var AppNamePattern = regexp.MustCompile(`^[^#]+#[^#]+$`)

// ValidAppName reports whether name matches AppNamePattern.
func ValidAppName(name string) bool {
	return AppNamePattern.MatchString(name)
}

type registerResponse struct {
	Success *registerSuccess `json:"success"`
	Error   *registerError   `json:"error"`
}

type registerSuccess struct {
	Username  string `json:"username"`
	ClientKey string `json:"clientkey"`
}

type registerError struct {
	Type        int    `json:"type"`
	Description string `json:"description"`
}

// Onboard runs spec §4.3 steps a-f against a single candidate address:
// load or create credentials, then fetch bridge id/rid, name,
// swversion and application id. It returns a fully populated
// model.Bridge regardless of whether it meets MinSWVersion; callers
// filter on Bridge.SupportsStreaming().
func Onboard(ctx context.Context, store *persist.Store, appName, ip string) (model.Bridge, error) {
	if !ValidAppName(appName) {
		return model.Bridge{}, fmt.Errorf("bridgeapi: invalid app name %q, want pattern %s", appName, AppNamePattern.String())
	}

	client := httpclient.New(ip)

	username, clientKey, err := loadOrRegister(ctx, store, client, appName)
	if err != nil {
		return model.Bridge{}, err
	}
	client.SetUsername(username)

	idStr, ridStr, err := fetchBridgeIdentity(ctx, client)
	if err != nil {
		return model.Bridge{}, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return model.Bridge{}, fmt.Errorf("bridgeapi: bridge id %q: %w", idStr, err)
	}
	rid, err := uuid.Parse(ridStr)
	if err != nil {
		return model.Bridge{}, fmt.Errorf("bridgeapi: owner rid %q: %w", ridStr, err)
	}

	name, err := fetchDeviceName(ctx, client, ridStr)
	if err != nil {
		return model.Bridge{}, err
	}

	swversion, err := fetchSWVersion(ctx, client)
	if err != nil {
		return model.Bridge{}, err
	}

	appID, err := client.HeaderValue(ctx, "/auth/v1", "hue-application-id")
	if err != nil {
		return model.Bridge{}, err
	}

	return model.Bridge{
		ID:               id,
		Rid:              rid,
		IPAddress:        ip,
		SWVersion:        swversion,
		Username:         username,
		HueApplicationID: appID,
		ClientKey:        clientKey,
		Name:             name,
	}, nil
}

// loadOrRegister implements spec §4.3 steps a-b and the "auth caching"
// testable property (§8): a pre-existing auth.json short-circuits
// registration entirely, performing no network call.
func loadOrRegister(ctx context.Context, store *persist.Store, client *httpclient.Client, appName string) (username, clientKey string, err error) {
	if rec, err := store.ReadAuth(); err == nil {
		return rec.Username, rec.ClientKey, nil
	}

	body := strings.NewReader(fmt.Sprintf(`{"devicetype":%q,"generateclientkey":true}`, appName))
	resp, err := client.Do(ctx, "POST", "/api", body)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var results []registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", "", err
	}
	if len(results) == 0 {
		return "", "", fmt.Errorf("bridgeapi: empty registration response")
	}

	r := results[0]
	if r.Error != nil {
		if strings.Contains(r.Error.Description, "link button not pressed") {
			return "", "", errs.ErrLinkButtonNotPressed
		}
		return "", "", &errs.RegistrationError{Description: r.Error.Description}
	}
	if r.Success == nil {
		return "", "", fmt.Errorf("bridgeapi: registration response has neither success nor error")
	}

	if err := store.WriteAuth(persist.AuthRecord{
		Username:  r.Success.Username,
		ClientKey: r.Success.ClientKey,
	}); err != nil {
		return "", "", err
	}

	return r.Success.Username, r.Success.ClientKey, nil
}

func fetchBridgeIdentity(ctx context.Context, client *httpclient.Client) (id, rid string, err error) {
	var resp struct {
		Data []struct {
			ID    string `json:"id"`
			Owner struct {
				Rid string `json:"rid"`
			} `json:"owner"`
		} `json:"data"`
	}
	if err := client.GetJSON(ctx, "/clip/v2/resource/bridge", &resp); err != nil {
		return "", "", err
	}
	if len(resp.Data) == 0 {
		return "", "", fmt.Errorf("bridgeapi: empty bridge resource response")
	}
	return resp.Data[0].ID, resp.Data[0].Owner.Rid, nil
}

func fetchDeviceName(ctx context.Context, client *httpclient.Client, rid string) (string, error) {
	var resp struct {
		Data []struct {
			Metadata struct {
				Name string `json:"name"`
			} `json:"metadata"`
		} `json:"data"`
	}
	if err := client.GetJSON(ctx, "/clip/v2/resource/device/"+rid, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("bridgeapi: empty device resource response")
	}
	return resp.Data[0].Metadata.Name, nil
}

func fetchSWVersion(ctx context.Context, client *httpclient.Client) (int, error) {
	var resp struct {
		SWVersion int `json:"swversion"`
	}
	if err := client.GetJSON(ctx, "/api/config", &resp); err != nil {
		return 0, err
	}
	return resp.SWVersion, nil
}
