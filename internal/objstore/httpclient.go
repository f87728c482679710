package objstore

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coldkeep/coldkeep/internal/config"
)

// defaultRegion is the region name placed in signatures when talking to
// S3-compatible backends that do not care about regions.
const defaultRegion = "us-east-1"

// HTTPClient speaks the S3 REST dialect to a single bucket using
// path-style addressing and SigV4 signing.
type HTTPClient struct {
	base   url.URL // scheme://host[:port], standard port elided
	bucket string
	signer signer
	client *http.Client
	now    func() time.Time
}

// NewHTTPClient builds a client bound to the bucket and credentials of a
// resolved tier configuration.
func NewHTTPClient(tc config.TierConfig) *HTTPClient {
	scheme := "http"
	if tc.UseSSL {
		scheme = "https"
	}
	host := strings.TrimPrefix(strings.TrimPrefix(tc.Endpoint, "https://"), "http://")
	if !standardPort(scheme, tc.Port) {
		host = fmt.Sprintf("%s:%d", host, tc.Port)
	}
	return &HTTPClient{
		base:   url.URL{Scheme: scheme, Host: host},
		bucket: tc.Bucket,
		signer: signer{accessKey: tc.AccessKey, secretKey: tc.SecretKey, region: defaultRegion},
		client: &http.Client{Timeout: 5 * time.Minute},
		now:    time.Now,
	}
}

func standardPort(scheme string, port int) bool {
	return port == 0 || (scheme == "https" && port == 443) || (scheme == "http" && port == 80)
}

// objectURL returns the path-style URL for key, with the encoded form
// pinned so the wire path matches the signed canonical path.
func (c *HTTPClient) objectURL(key string) url.URL {
	u := c.base
	u.Path = "/" + c.bucket + "/" + key
	u.RawPath = "/" + awsURIEncode(c.bucket, false) + "/" + awsURIEncode(key, false)
	return u
}

// do signs and issues one request. body may be nil.
func (c *HTTPClient) do(ctx context.Context, method string, u url.URL, body []byte) (*http.Response, error) {
	payloadHash := emptyPayloadHash
	var reader io.Reader
	if body != nil {
		payloadHash = sha256Hex(body)
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	c.signer.SignRequest(req, payloadHash, c.now())
	return c.client.Do(req)
}

// s3Error is the XML error envelope S3-compatible backends return.
type s3Error struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// apiError converts a non-2xx response into an error. A NoSuchKey code or
// bare 404 becomes ErrObjectNotFound; everything else keeps the backend's
// code and message.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	var e s3Error
	if xml.Unmarshal(body, &e) == nil && e.Code != "" {
		if e.Code == "NoSuchKey" {
			return ErrObjectNotFound
		}
		return fmt.Errorf("%s: %s", e.Code, e.Message)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrObjectNotFound
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}

// Put uploads data under key.
func (c *HTTPClient) Put(ctx context.Context, key string, data []byte) error {
	resp, err := c.do(ctx, http.MethodPut, c.objectURL(key), data)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("put %q: %w", key, apiError(resp))
	}
	return nil
}

// Get downloads the object at key.
func (c *HTTPClient) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, c.objectURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		apiErr := apiError(resp)
		if errors.Is(apiErr, ErrObjectNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get %q: %w", key, apiErr)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("get %q: read body: %w", key, err)
	}
	return data, nil
}

// Delete removes the object at key. An absent key is not an error.
func (c *HTTPClient) Delete(ctx context.Context, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	}
	if apiErr := apiError(resp); !errors.Is(apiErr, ErrObjectNotFound) {
		return fmt.Errorf("delete %q: %w", key, apiErr)
	}
	return nil
}

// Head fetches object metadata without the body.
func (c *HTTPClient) Head(ctx context.Context, key string) (RemoteObject, error) {
	resp, err := c.do(ctx, http.MethodHead, c.objectURL(key), nil)
	if err != nil {
		return RemoteObject{}, fmt.Errorf("head %q: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// HEAD responses carry no error body; the status is all there is.
		if resp.StatusCode == http.StatusNotFound {
			return RemoteObject{}, ErrObjectNotFound
		}
		return RemoteObject{}, fmt.Errorf("head %q: unexpected status %s", key, resp.Status)
	}

	obj := RemoteObject{
		Key:          key,
		Size:         resp.ContentLength,
		ETag:         strings.Trim(resp.Header.Get("ETag"), `"`),
		StorageClass: resp.Header.Get("X-Amz-Storage-Class"),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			obj.LastModified = t
		}
	}
	return obj, nil
}

// listObjectsResult is the ListObjectsV2 response envelope.
type listObjectsResult struct {
	XMLName               xml.Name `xml:"ListBucketResult"`
	IsTruncated           bool     `xml:"IsTruncated"`
	NextContinuationToken string   `xml:"NextContinuationToken"`
	Contents              []struct {
		Key          string `xml:"Key"`
		LastModified string `xml:"LastModified"`
		ETag         string `xml:"ETag"`
		Size         int64  `xml:"Size"`
		StorageClass string `xml:"StorageClass"`
	} `xml:"Contents"`
}

// List returns every object under prefix, following continuation tokens
// until the listing is exhausted.
func (c *HTTPClient) List(ctx context.Context, prefix string) ([]RemoteObject, error) {
	var objects []RemoteObject
	token := ""

	for {
		q := url.Values{}
		q.Set("list-type", "2")
		if prefix != "" {
			q.Set("prefix", prefix)
		}
		if token != "" {
			q.Set("continuation-token", token)
		}
		u := c.base
		u.Path = "/" + c.bucket
		u.RawQuery = canonicalQuery(q)

		resp, err := c.do(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, err)
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := apiError(resp)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("list %q: %w", prefix, apiErr)
		}

		var result listObjectsResult
		err = xml.NewDecoder(resp.Body).Decode(&result)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("list %q: parse response: %w", prefix, err)
		}

		for _, item := range result.Contents {
			obj := RemoteObject{
				Key:          item.Key,
				Size:         item.Size,
				ETag:         strings.Trim(item.ETag, `"`),
				StorageClass: item.StorageClass,
			}
			if t, err := time.Parse(time.RFC3339, item.LastModified); err == nil {
				obj.LastModified = t
			}
			objects = append(objects, obj)
		}

		if !result.IsTruncated || result.NextContinuationToken == "" {
			break
		}
		token = result.NextContinuationToken
	}

	return objects, nil
}

// PresignGet returns a signed GET URL for key, valid for expires from at.
func (c *HTTPClient) PresignGet(key string, expires time.Duration, at time.Time) (string, error) {
	if expires <= 0 {
		return "", fmt.Errorf("presign %q: expiry must be positive", key)
	}
	return c.signer.PresignURL(http.MethodGet, c.objectURL(key), expires, at), nil
}

// PublicURL returns the deterministic unauthenticated URL for key, with
// path segments percent-encoded and the standard port elided.
func (c *HTTPClient) PublicURL(key string) string {
	u := c.objectURL(key)
	return u.String()
}
