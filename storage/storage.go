// Package storage provides bucket file operations against the backend
// storage API. It is thin request plumbing over the endpoint client; all
// storage semantics live on the server.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/markb/sblite-go/endpoint"
)

// Client issues storage requests.
type Client struct {
	ep *endpoint.Client
}

// New creates a storage client over the given endpoint client.
func New(ep *endpoint.Client) *Client {
	return &Client{ep: ep}
}

// Object describes an uploaded object.
type Object struct {
	Key string `json:"Key"`
}

// Bucket describes a storage bucket.
type Bucket struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

// CreateBucket creates a bucket.
func (c *Client) CreateBucket(ctx context.Context, name string, public bool) (*Bucket, error) {
	data, err := c.ep.Post(ctx, "/storage/v1/bucket", map[string]any{
		"name":   name,
		"public": public,
	})
	if err != nil {
		return nil, err
	}
	var bucket Bucket
	if err := json.Unmarshal(data, &bucket); err != nil {
		return nil, fmt.Errorf("decode bucket: %w", err)
	}
	return &bucket, nil
}

// Upload streams an object into a bucket.
func (c *Client) Upload(ctx context.Context, bucket, name string, r io.Reader, contentType string) (*Object, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := http.Header{}
	header.Set("Content-Type", contentType)

	data, err := c.ep.Do(ctx, http.MethodPost, objectPath(bucket, name), r, header)
	if err != nil {
		return nil, err
	}
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &obj, nil
}

// Remove deletes an object from a bucket.
func (c *Client) Remove(ctx context.Context, bucket, name string) error {
	_, err := c.ep.Delete(ctx, objectPath(bucket, name))
	return err
}

func objectPath(bucket, name string) string {
	return "/storage/v1/object/" + url.PathEscape(bucket) + "/" + url.PathEscape(name)
}
