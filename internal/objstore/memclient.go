package objstore

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemClient is an in-memory Client for tests and embedded use. It follows
// the same translation rules as the HTTP client: bare ErrObjectNotFound on
// missing keys, idempotent deletes, and lexicographic prefix listing.
type MemClient struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]memObject
	signer  signer
	now     func() time.Time

	// Fault, when set, runs before every operation; a non-nil return fails
	// that operation. Tests use it to simulate transport errors.
	Fault func(op, key string) error
}

type memObject struct {
	data    []byte
	modTime time.Time
}

// NewMemClient creates an empty in-memory client for the named bucket.
func NewMemClient(bucket string) *MemClient {
	return &MemClient{
		bucket:  bucket,
		objects: make(map[string]memObject),
		signer:  signer{accessKey: "mem", secretKey: "mem-secret-" + bucket, region: defaultRegion},
		now:     time.Now,
	}
}

func (m *MemClient) fail(op, key string) error {
	if m.Fault != nil {
		return m.Fault(op, key)
	}
	return nil
}

func (m *MemClient) objectURL(key string) url.URL {
	return url.URL{
		Scheme:  "https",
		Host:    "mem.invalid",
		Path:    "/" + m.bucket + "/" + key,
		RawPath: "/" + awsURIEncode(m.bucket, false) + "/" + awsURIEncode(key, false),
	}
}

// Put stores a copy of data under key.
func (m *MemClient) Put(_ context.Context, key string, data []byte) error {
	if err := m.fail("put", key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: append([]byte(nil), data...), modTime: m.now()}
	return nil
}

// Get returns a copy of the object at key.
func (m *MemClient) Get(_ context.Context, key string) ([]byte, error) {
	if err := m.fail("get", key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

// Delete removes the object at key. An absent key is not an error.
func (m *MemClient) Delete(_ context.Context, key string) error {
	if err := m.fail("delete", key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Head returns metadata for the object at key.
func (m *MemClient) Head(_ context.Context, key string) (RemoteObject, error) {
	if err := m.fail("head", key); err != nil {
		return RemoteObject{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return RemoteObject{}, ErrObjectNotFound
	}
	return RemoteObject{
		Key:          key,
		LastModified: obj.modTime,
		Size:         int64(len(obj.data)),
		ETag:         fmt.Sprintf("%x", md5.Sum(obj.data)),
	}, nil
}

// List returns every object whose key starts with prefix, in key order.
func (m *MemClient) List(_ context.Context, prefix string) ([]RemoteObject, error) {
	if err := m.fail("list", prefix); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	objects := make([]RemoteObject, 0, len(keys))
	for _, key := range keys {
		obj := m.objects[key]
		objects = append(objects, RemoteObject{
			Key:          key,
			LastModified: obj.modTime,
			Size:         int64(len(obj.data)),
			ETag:         fmt.Sprintf("%x", md5.Sum(obj.data)),
		})
	}
	return objects, nil
}

// PresignGet returns a SigV4-style signed URL built with the client's
// synthetic credentials. The URL changes whenever at or expires change.
func (m *MemClient) PresignGet(key string, expires time.Duration, at time.Time) (string, error) {
	if err := m.fail("presign", key); err != nil {
		return "", err
	}
	if expires <= 0 {
		return "", fmt.Errorf("presign %q: expiry must be positive", key)
	}
	return m.signer.PresignURL(http.MethodGet, m.objectURL(key), expires, at), nil
}

// PublicURL returns a deterministic URL for key under a synthetic host.
func (m *MemClient) PublicURL(key string) string {
	u := m.objectURL(key)
	return u.String()
}

// Len reports how many objects the client holds.
func (m *MemClient) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
