// Package spinnaker is a small client for the Spinnaker Gate API.
package spinnaker

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/foremast/foremast/config"
	"github.com/foremast/foremast/util"
)

var gateLog = util.NewContextLogger("spinnaker")

// APIError is returned for Gate responses with an error status.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gate returned %d: %s", e.Code, e.Message)
}

// Client talks to Gate at Host.
type Client struct {
	Host       string
	HTTPClient *http.Client

	TaskTimeout      time.Duration
	TaskPollInterval time.Duration
}

// NewClient builds a Gate client from the tool configuration, loading the
// CA bundle and client certificate when configured.
func NewClient(cfg *config.Config) (*Client, error) {
	tlsCfg := &tls.Config{}

	if cfg.GateCABundle != "" {
		capem, err := ioutil.ReadFile(cfg.GateCABundle)
		if err != nil {
			return nil, errors.Wrap(err, "reading gate CA bundle")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(capem) {
			return nil, errors.New("unable to load gate certificate authority")
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.GateClientCert != "" && cfg.GateClientKey != "" {
		c, err := tls.LoadX509KeyPair(cfg.GateClientCert, cfg.GateClientKey)
		if err != nil {
			return nil, errors.Wrap(err, "loading gate client certificate")
		}
		tlsCfg.Certificates = []tls.Certificate{c}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg

	return &Client{
		Host:             cfg.GateURL,
		HTTPClient:       &http.Client{Transport: transport, Timeout: 60 * time.Second},
		TaskTimeout:      cfg.TaskTimeout,
		TaskPollInterval: cfg.TaskPollInterval,
	}, nil
}

// GetPipelines returns the pipeline configs of an application.
func (c *Client) GetPipelines(ctx context.Context, app string) ([]map[string]interface{}, error) {
	endpoint := fmt.Sprintf("/applications/%s/pipelineConfigs", url.PathEscape(app))
	body, err := c.sendAPIRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	list := []map[string]interface{}{}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, errors.Wrap(err, "decoding pipeline configs")
	}
	return list, nil
}

// GetPipelineID returns the id of the application's pipeline called name,
// or "" when no such pipeline exists yet.
func (c *Client) GetPipelineID(ctx context.Context, app, name string) (string, error) {
	pipelines, err := c.GetPipelines(ctx, app)
	if err != nil {
		return "", err
	}
	for _, p := range pipelines {
		if p["name"] == name {
			id, _ := p["id"].(string)
			return id, nil
		}
	}
	return "", nil
}

// PostPipeline creates or updates a pipeline config.
func (c *Client) PostPipeline(ctx context.Context, pipeline map[string]interface{}) error {
	data, err := json.Marshal(pipeline)
	if err != nil {
		return errors.Wrap(err, "encoding pipeline")
	}
	_, err = c.sendAPIRequest(ctx, http.MethodPost, "/pipelines", data)
	return err
}

// Application is the subset of Gate application attributes foremast uses.
type Application struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	RepoProjectKey string `json:"repoProjectKey"`
	RepoSlug       string `json:"repoSlug"`
	RepoType       string `json:"repoType"`
}

// GetApplications lists all applications known to Spinnaker.
func (c *Client) GetApplications(ctx context.Context) ([]*Application, error) {
	body, err := c.sendAPIRequest(ctx, http.MethodGet, "/applications", nil)
	if err != nil {
		return nil, err
	}
	list := []*Application{}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, errors.Wrap(err, "decoding applications")
	}
	return list, nil
}

// GetApplication returns a single application. Gate nests the attributes
// under "attributes".
func (c *Client) GetApplication(ctx context.Context, app string) (*Application, error) {
	body, err := c.sendAPIRequest(ctx, http.MethodGet, "/applications/"+url.PathEscape(app), nil)
	if err != nil {
		return nil, err
	}
	application := &Application{}
	attributes := gjson.GetBytes(body, "attributes")
	if !attributes.Exists() {
		return nil, errors.Errorf("application %s has no attributes", app)
	}
	if err := json.Unmarshal([]byte(attributes.Raw), application); err != nil {
		return nil, errors.Wrap(err, "decoding application")
	}
	return application, nil
}

// ServerGroup is a deployed server group of an application.
type ServerGroup struct {
	Name        string `json:"name"`
	Account     string `json:"account"`
	Region      string `json:"region"`
	Cluster     string `json:"cluster"`
	CreatedTime int64  `json:"createdTime"`
	Disabled    bool   `json:"isDisabled"`
}

// GetServerGroups lists the application's server groups.
func (c *Client) GetServerGroups(ctx context.Context, app string) ([]*ServerGroup, error) {
	endpoint := fmt.Sprintf("/applications/%s/serverGroups", url.PathEscape(app))
	body, err := c.sendAPIRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	list := []*ServerGroup{}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, errors.Wrap(err, "decoding server groups")
	}
	return list, nil
}

// GetCredentials returns the names of the accounts configured in Spinnaker.
func (c *Client) GetCredentials(ctx context.Context) ([]string, error) {
	body, err := c.sendAPIRequest(ctx, http.MethodGet, "/credentials", nil)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, n := range gjson.GetBytes(body, "#.name").Array() {
		names = append(names, n.String())
	}
	return names, nil
}

// Health checks that Gate is up.
func (c *Client) Health(ctx context.Context) error {
	body, err := c.sendAPIRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	if status := gjson.GetBytes(body, "status").String(); status != "" && status != "UP" {
		return errors.Errorf("gate status is %s", status)
	}
	return nil
}

func (c *Client) sendAPIRequest(ctx context.Context, method, endpoint string, data []byte) ([]byte, error) {
	log := gateLog.InFunc("sendAPIRequest")

	req, err := http.NewRequestWithContext(ctx, method, c.Host+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "building gate request")
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	log.Debugf("%s %s", method, req.URL)
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, endpoint)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading gate response")
	}

	if resp.StatusCode >= 400 {
		message := gjson.GetBytes(body, "message").String()
		if message == "" {
			message = resp.Status
		}
		log.WithField("status", resp.StatusCode).Debugf("gate error: %s", body)
		return nil, &APIError{Code: resp.StatusCode, Message: message}
	}

	return body, nil
}
