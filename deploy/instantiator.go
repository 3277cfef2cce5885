package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"sfcplacement/traffic"
)

const DefaultBaseURL = "http://localhost:9000"

var (
	// ErrNoPort is returned when the instantiation service does not report a usable port
	ErrNoPort = errors.New("vnf instantiation returned no port")
	ErrRemove = errors.New("vnf removal failed")
)

// Instantiator attaches VNF instances to devices
type Instantiator interface {
	Instantiate(ctx context.Context, vnf traffic.VnfType, device string, hwAccelerated bool) (int, error)
	Remove(ctx context.Context, vnf traffic.VnfType, device string, hwAccelerated bool) error
}

// HTTPInstantiator talks to the VNF instantiation service
// PUT {baseURL}/{device}/{VNF}[_accelerated] answers with the port number as plain text
type HTTPInstantiator struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPInstantiator(baseURL string) *HTTPInstantiator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPInstantiator{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPInstantiator) requestURL(vnf traffic.VnfType, device string, hwAccelerated bool) string {
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, device, vnf)
	if hwAccelerated {
		url += "_accelerated"
	}
	return url
}

// Instantiate returns the device port the new instance is attached to
func (c *HTTPInstantiator) Instantiate(ctx context.Context, vnf traffic.VnfType, device string, hwAccelerated bool) (int, error) {
	url := c.requestURL(vnf, device, hwAccelerated)
	log.Infof("instantiator: sending request to %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build instantiation request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to instantiate %s at %s: %w", vnf, device, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read instantiation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s at %s, status code %d: %s", ErrNoPort, vnf, device, resp.StatusCode, string(body))
	}

	text := strings.TrimSpace(string(body))
	port, err := strconv.Atoi(text)
	if err != nil || port < 0 {
		return 0, fmt.Errorf("%w: %s at %s, body %q", ErrNoPort, vnf, device, text)
	}

	log.Infof("instantiator: VNF %s instantiated at %s port %d", vnf, device, port)
	return port, nil
}

// Remove tears down the instance of vnf at device
func (c *HTTPInstantiator) Remove(ctx context.Context, vnf traffic.VnfType, device string, hwAccelerated bool) error {
	url := c.requestURL(vnf, device, hwAccelerated)
	log.Infof("instantiator: sending delete to %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build removal request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to remove %s at %s: %w", vnf, device, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s at %s, status code %d: %s", ErrRemove, vnf, device, resp.StatusCode, string(body))
	}
	log.Infof("instantiator: VNF %s removed from %s", vnf, device)
	return nil
}
