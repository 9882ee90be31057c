package storage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrUnavailable reports that the blob provider rejected an operation even
// after one re-authorization and retry.
var ErrUnavailable = errors.New("blob storage unavailable")

const authPath = "/b2api/v2/b2_authorize_account"

// B2Gateway implements ObjectStore against a Backblaze-B2-style provider.
// The provider hands out an authorization session (account token, API and
// download base URLs) plus a separate upload URL/token pair; both expire and
// are refreshed lazily. Refreshing is single-flight so two concurrent
// expired-session discoveries share one re-authorization.
type B2Gateway struct {
	httpClient *http.Client
	authURL    string
	keyID      string
	appKey     string
	bucketID   string
	bucketName string

	mu      sync.RWMutex
	session *b2Session

	refresh singleflight.Group
}

type b2Session struct {
	AccountToken string
	APIBaseURL   string
	DownloadURL  string
	UploadURL    string
	UploadToken  string
}

// B2Config configures the gateway against one bucket.
type B2Config struct {
	AuthBaseURL string // provider auth endpoint base, e.g. https://api.backblazeb2.com
	KeyID       string
	AppKey      string
	BucketID    string
	BucketName  string
	HTTPClient  *http.Client
}

// NewB2Gateway constructs the gateway. No network call is made; the
// authorization session is established lazily on first use.
func NewB2Gateway(cfg B2Config) (*B2Gateway, error) {
	if strings.TrimSpace(cfg.AuthBaseURL) == "" {
		return nil, errors.New("blob auth base URL required")
	}
	if cfg.KeyID == "" || cfg.AppKey == "" {
		return nil, errors.New("blob credentials required")
	}
	if cfg.BucketID == "" || cfg.BucketName == "" {
		return nil, errors.New("blob bucket required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &B2Gateway{
		httpClient: client,
		authURL:    strings.TrimRight(cfg.AuthBaseURL, "/") + authPath,
		keyID:      cfg.KeyID,
		appKey:     cfg.AppKey,
		bucketID:   cfg.BucketID,
		bucketName: cfg.BucketName,
	}, nil
}

// Put uploads an object and returns the provider's file identifier. The
// payload is buffered to compute the content SHA-1 the provider requires for
// integrity metadata.
func (g *B2Gateway) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload payload: %w", err)
	}
	if size >= 0 && int64(len(payload)) != size {
		return "", fmt.Errorf("upload payload is %d bytes, expected %d", len(payload), size)
	}
	sum := sha1.Sum(payload)
	contentSHA1 := hex.EncodeToString(sum[:])
	if contentType == "" {
		contentType = "b2/x-auto"
	}

	var result struct {
		FileID string `json:"fileId"`
	}
	err = g.withSession(ctx, func(s *b2Session) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.UploadURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", s.UploadToken)
		req.Header.Set("X-Bz-File-Name", encodeKey(key))
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Bz-Content-Sha1", contentSHA1)
		req.ContentLength = int64(len(payload))
		return g.doJSON(req, &result)
	})
	if err != nil {
		return "", err
	}
	return result.FileID, nil
}

// SignedDownloadURL mints a scoped, time-boxed download authorization and
// composes the capability URL embedding it.
func (g *B2Gateway) SignedDownloadURL(ctx context.Context, key, _ string) (string, error) {
	var result struct {
		AuthorizationToken string `json:"authorizationToken"`
	}
	err := g.withSession(ctx, func(s *b2Session) error {
		body := map[string]any{
			"bucketId":               g.bucketID,
			"fileNamePrefix":         key,
			"validDurationInSeconds": int(DownloadURLTTL.Seconds()),
		}
		req, err := g.apiRequest(ctx, s, "b2_get_download_authorization", body)
		if err != nil {
			return err
		}
		return g.doJSON(req, &result)
	})
	if err != nil {
		return "", err
	}
	g.mu.RLock()
	downloadBase := ""
	if g.session != nil {
		downloadBase = g.session.DownloadURL
	}
	g.mu.RUnlock()
	return fmt.Sprintf("%s/file/%s/%s?Authorization=%s",
		strings.TrimRight(downloadBase, "/"),
		url.PathEscape(g.bucketName),
		encodeKey(key),
		url.QueryEscape(result.AuthorizationToken),
	), nil
}

// Delete removes a file version. Failures surface to the caller, who treats
// them as eventually consistent cleanup.
func (g *B2Gateway) Delete(ctx context.Context, key, blobID string) error {
	return g.withSession(ctx, func(s *b2Session) error {
		body := map[string]any{
			"fileName": key,
			"fileId":   blobID,
		}
		req, err := g.apiRequest(ctx, s, "b2_delete_file_version", body)
		if err != nil {
			return err
		}
		return g.doJSON(req, nil)
	})
}

// withSession runs op with a valid session, re-authorizing once when the
// session is absent or rejected.
func (g *B2Gateway) withSession(ctx context.Context, op func(*b2Session) error) error {
	s, err := g.currentSession(ctx, false)
	if err != nil {
		return err
	}
	err = op(s)
	if !isAuthRejection(err) {
		return err
	}
	s, err = g.currentSession(ctx, true)
	if err != nil {
		return err
	}
	if err := op(s); err != nil {
		if isAuthRejection(err) {
			return fmt.Errorf("%w: %s", ErrUnavailable, err)
		}
		return err
	}
	return nil
}

func (g *B2Gateway) currentSession(ctx context.Context, force bool) (*b2Session, error) {
	if !force {
		g.mu.RLock()
		s := g.session
		g.mu.RUnlock()
		if s != nil {
			return s, nil
		}
	}
	v, err, _ := g.refresh.Do("session", func() (any, error) {
		if !force {
			// A concurrent caller may have refreshed between our check and
			// acquiring the flight.
			g.mu.RLock()
			s := g.session
			g.mu.RUnlock()
			if s != nil {
				return s, nil
			}
		}
		s, err := g.authorize(ctx)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.session = s
		g.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	return v.(*b2Session), nil
}

// authorize performs the account authorization and fetches a fresh upload
// URL/token pair for the bucket.
func (g *B2Gateway) authorize(ctx context.Context) (*b2Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.authURL, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.keyID, g.appKey)
	var auth struct {
		AuthorizationToken string `json:"authorizationToken"`
		APIURL             string `json:"apiUrl"`
		DownloadURL        string `json:"downloadUrl"`
	}
	if err := g.doJSON(req, &auth); err != nil {
		return nil, fmt.Errorf("authorize account: %w", err)
	}

	s := &b2Session{
		AccountToken: auth.AuthorizationToken,
		APIBaseURL:   strings.TrimRight(auth.APIURL, "/"),
		DownloadURL:  auth.DownloadURL,
	}
	uploadReq, err := g.apiRequest(ctx, s, "b2_get_upload_url", map[string]any{"bucketId": g.bucketID})
	if err != nil {
		return nil, err
	}
	var upload struct {
		UploadURL          string `json:"uploadUrl"`
		AuthorizationToken string `json:"authorizationToken"`
	}
	if err := g.doJSON(uploadReq, &upload); err != nil {
		return nil, fmt.Errorf("get upload url: %w", err)
	}
	s.UploadURL = upload.UploadURL
	s.UploadToken = upload.AuthorizationToken
	return s, nil
}

func (g *B2Gateway) apiRequest(ctx context.Context, s *b2Session, operation string, body map[string]any) (*http.Request, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	endpoint := s.APIBaseURL + "/b2api/v2/" + operation
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", s.AccountToken)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

type providerError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *providerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("blob provider: %s (%d %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("blob provider: status %d", e.StatusCode)
}

func (g *B2Gateway) doJSON(req *http.Request, out any) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %s", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := &providerError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, perr)
		return perr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

// isAuthRejection reports whether the provider rejected our session token.
func isAuthRejection(err error) bool {
	var perr *providerError
	if !errors.As(err, &perr) {
		return false
	}
	return perr.StatusCode == http.StatusUnauthorized || perr.Code == "expired_auth_token" || perr.Code == "bad_auth_token"
}
