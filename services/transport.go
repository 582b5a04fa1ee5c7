package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
	"github.com/keywheel/go-keywheel-server/global"
	"github.com/keywheel/go-keywheel-server/types"
	cache "github.com/patrickmn/go-cache"
	"golang.org/x/net/idna"
)

// Transport delivers an opaque rotation payload to a peer. Delivery is
// delivered-or-failed exactly once per call; retry policy belongs to callers.
type Transport interface {
	Deliver(ctx context.Context, recipient string, payload []byte) error
}

// RelayTransport resolves a peer's server endpoint through a directory
// service and POSTs the KTP envelope to it. Resolved endpoints are cached
// for a few minutes to keep sweeps from hammering the directory.
type RelayTransport struct {
	client        *resty.Client
	directoryURL  string
	endpointCache *cache.Cache
}

type endpointLookupResponse struct {
	Endpoint string `json:"endpoint"`
}

func NewRelayTransport(conf global.RelayConfig) *RelayTransport {
	timeout := conf.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	client := resty.New().SetTimeout(time.Duration(timeout) * time.Second)
	client.SetHeader("Content-Type", "application/json")
	return &RelayTransport{
		client:        client,
		directoryURL:  conf.DirectoryURL,
		endpointCache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (rt *RelayTransport) Deliver(ctx context.Context, recipient string, payload []byte) error {
	endpoint, err := rt.resolveEndpoint(ctx, recipient)
	if err != nil {
		return fmt.Errorf("%w: %s", types.ErrTransport, err.Error())
	}

	response, rErr := rt.client.R().SetContext(ctx).
		SetBody(payload).Post(endpoint + "/api/v1/ktp/rotation")
	if rErr != nil {
		return fmt.Errorf("%w: %s", types.ErrTransport, rErr.Error())
	}
	if response.IsError() {
		return fmt.Errorf("%w: peer responded with status %d", types.ErrTransport, response.StatusCode())
	}
	return nil
}

// resolveEndpoint asks the directory where the recipient's server lives
func (rt *RelayTransport) resolveEndpoint(ctx context.Context, recipient string) (string, error) {
	if cached, found := rt.endpointCache.Get(recipient); found {
		return cached.(string), nil
	}

	var lookup endpointLookupResponse
	response, err := rt.client.R().SetContext(ctx).SetResult(&lookup).
		Get(rt.directoryURL + "/api/v1/endpoint/" + url.PathEscape(recipient))
	if err != nil {
		return "", err
	}
	if response.IsError() || lookup.Endpoint == "" {
		return "", fmt.Errorf("no endpoint known for recipient")
	}

	if vErr := validateEndpointHost(lookup.Endpoint); vErr != nil {
		level.Error(global.Logger).Log("msg", "directory returned invalid endpoint", "endpoint", lookup.Endpoint, "err", vErr)
		return "", vErr
	}

	rt.endpointCache.Set(recipient, lookup.Endpoint, cache.DefaultExpiration)
	return lookup.Endpoint, nil
}

// validateEndpointHost rejects endpoints whose hostname is not a valid IDNA
// lookup name
func validateEndpointHost(endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("endpoint has no host: %s", endpoint)
	}
	if _, err := idna.Lookup.ToASCII(host); err != nil {
		return fmt.Errorf("invalid endpoint host %s: %w", host, err)
	}
	return nil
}
