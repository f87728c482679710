package objstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AWS Signature Version 4 constants.
const (
	signingAlgorithm = "AWS4-HMAC-SHA256"
	unsignedPayload  = "UNSIGNED-PAYLOAD"
	amzDateFormat    = "20060102T150405Z"
	shortDateFormat  = "20060102"

	// emptyPayloadHash is the SHA-256 of a zero-length body.
	emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// signer computes AWS Signature Version 4 request signatures for one set of
// credentials. S3-compatible backends that ignore the region accept any
// value; the conventional default is us-east-1.
type signer struct {
	accessKey string
	secretKey string
	region    string
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s signer) scope(shortDate string) string {
	return shortDate + "/" + s.region + "/s3/aws4_request"
}

// signingKey derives the per-day signing key:
// HMAC(HMAC(HMAC(HMAC("AWS4"+secret, date), region), "s3"), "aws4_request").
func (s signer) signingKey(shortDate string) []byte {
	k := hmacSHA256([]byte("AWS4"+s.secretKey), []byte(shortDate))
	k = hmacSHA256(k, []byte(s.region))
	k = hmacSHA256(k, []byte("s3"))
	return hmacSHA256(k, []byte("aws4_request"))
}

// SignRequest adds SigV4 authorization headers to req. payloadHash is the
// hex SHA-256 of the request body (emptyPayloadHash for bodyless requests).
// The signed header set is host, Date and Range when present, and every
// x-amz-* header on the request.
func (s signer) SignRequest(req *http.Request, payloadHash string, now time.Time) {
	now = now.UTC()
	amzDate := now.Format(amzDateFormat)
	shortDate := now.Format(shortDateFormat)

	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}

	type header struct{ name, value string }
	headers := []header{{"host", host}}
	if v := req.Header.Get("Range"); v != "" {
		headers = append(headers, header{"range", strings.TrimSpace(v)})
	}
	if v := req.Header.Get("Date"); v != "" {
		headers = append(headers, header{"date", strings.TrimSpace(v)})
	}
	for name, vals := range req.Header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "x-amz-") && len(vals) > 0 {
			headers = append(headers, header{lower, strings.TrimSpace(vals[0])})
		}
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i].name < headers[j].name })

	var canonHeaders strings.Builder
	names := make([]string, 0, len(headers))
	for _, h := range headers {
		canonHeaders.WriteString(h.name)
		canonHeaders.WriteByte(':')
		canonHeaders.WriteString(h.value)
		canonHeaders.WriteByte('\n')
		names = append(names, h.name)
	}
	signedHeaders := strings.Join(names, ";")

	canonical := strings.Join([]string{
		req.Method,
		awsURIEncode(req.URL.Path, false),
		canonicalQuery(req.URL.Query()),
		canonHeaders.String(),
		signedHeaders,
		payloadHash,
	}, "\n")

	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		s.scope(shortDate),
		sha256Hex([]byte(canonical)),
	}, "\n")

	signature := hex.EncodeToString(hmacSHA256(s.signingKey(shortDate), []byte(stringToSign)))
	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		signingAlgorithm, s.accessKey, s.scope(shortDate), signedHeaders, signature))
}

// PresignURL returns a copy of u carrying SigV4 query-string authentication,
// valid for expires from now. Only the host header is signed; the payload is
// declared unsigned, per the S3 presigned GET convention.
func (s signer) PresignURL(method string, u url.URL, expires time.Duration, now time.Time) string {
	now = now.UTC()
	amzDate := now.Format(amzDateFormat)
	shortDate := now.Format(shortDateFormat)

	q := u.Query()
	q.Set("X-Amz-Algorithm", signingAlgorithm)
	q.Set("X-Amz-Credential", s.accessKey+"/"+s.scope(shortDate))
	q.Set("X-Amz-Date", amzDate)
	q.Set("X-Amz-Expires", strconv.Itoa(int(expires/time.Second)))
	q.Set("X-Amz-SignedHeaders", "host")

	canonical := strings.Join([]string{
		method,
		awsURIEncode(u.Path, false),
		canonicalQuery(q),
		"host:" + u.Host + "\n",
		"host",
		unsignedPayload,
	}, "\n")

	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		s.scope(shortDate),
		sha256Hex([]byte(canonical)),
	}, "\n")

	q.Set("X-Amz-Signature", hex.EncodeToString(hmacSHA256(s.signingKey(shortDate), []byte(stringToSign))))
	u.RawQuery = canonicalQuery(q)
	return u.String()
}

// awsURIEncode percent-encodes s per the SigV4 canonicalization rules:
// every byte except unreserved characters, with '/' kept as a separator
// unless encodeSlash is set.
func awsURIEncode(s string, encodeSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// canonicalQuery renders query parameters in SigV4 canonical form: keys and
// values URI-encoded and sorted.
func canonicalQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, awsURIEncode(k, true)+"="+awsURIEncode(v, true))
		}
	}
	return strings.Join(parts, "&")
}
