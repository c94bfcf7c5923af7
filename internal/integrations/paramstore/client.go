// Package paramstore reads service secrets from AWS SSM Parameter Store.
// Every token this service needs (LLM key, gateway token, provider tokens)
// lives under one parameter prefix; parameters are stable for the life of
// the process, and several clients across tenants share the same names, so
// values are cached after the first decrypted read.
package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the slice of the AWS SSM surface the client touches;
// *ssm.Client satisfies it.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is what the integration clients (llm, transport, provider) depend
// on instead of *Client, keeping them testable without AWS calls.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client reads decrypted SSM parameters and caches values per name.
type Client struct {
	api ssmAPI

	mu     sync.Mutex
	values map[string]string
}

// New creates a Client on top of the given SSM API.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api, values: make(map[string]string)}, nil
}

// GetParameter returns the parameter's decrypted value, from cache after the
// first successful read. Errors are never cached; a failed fetch retries on
// the next call.
func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	c.mu.Lock()
	v, ok := c.values[name]
	c.mu.Unlock()
	if ok {
		return v, nil
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}

	v = *out.Parameter.Value
	c.mu.Lock()
	if c.values == nil {
		c.values = make(map[string]string)
	}
	c.values[name] = v
	c.mu.Unlock()
	return v, nil
}
