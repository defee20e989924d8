package authhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/brokerd/brokerd/acl"
)

// response is the normalized outcome of an HTTP auth/ACL round trip,
// matching ResponseResult in the original plugin: a permission verdict
// plus optional superuser/cacheable/expiry metadata.
type response struct {
	Allow     bool
	Superuser bool
	Ignore    bool
	Cacheable bool
	// ExpireMillis mirrors the original's "tm": negative means
	// never-expires, otherwise an offset in milliseconds from now.
	ExpireMillis int64
	ACL          []aclRule
}

type aclRule struct {
	Allow       bool     `json:"allow"`
	TopicFilter string   `json:"topic"`
	QoS         []int    `json:"qos"`
	Access      string   `json:"access"` // "sub" | "pub" | "all"
}

// doRequest issues req (already placeholder-substituted) and interprets
// the response the same way response_result() does: status code,
// Content-Type, X-Superuser/X-Cache headers, then a JSON-object body, a
// bare JSON-string body, or a plain-text fallback.
func doRequest(ctx context.Context, client *http.Client, rc *ReqConfig, p acl.Placeholders) (response, error) {
	if rc == nil {
		return response{Ignore: true}, nil
	}

	req, err := buildRequest(ctx, rc, p)
	if err != nil {
		return response{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return response{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response{Ignore: true}, nil
	}

	return interpretBody(resp.Header, body), nil
}

func buildRequest(ctx context.Context, rc *ReqConfig, p acl.Placeholders) (*http.Request, error) {
	substituted := make(map[string]string, len(rc.Params))
	for k, v := range rc.Params {
		substituted[k] = acl.SubstituteHTTP(v, p)
	}

	method := strings.ToUpper(rc.Method)
	targetURL := acl.SubstituteHTTP(rc.URL, p)

	var req *http.Request
	var err error

	switch method {
	case "", "GET":
		q := url.Values{}
		for k, v := range substituted {
			q.Set(k, v)
		}
		full := targetURL
		if len(q) > 0 {
			full += "?" + q.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	case "POST-FORM":
		form := url.Values{}
		for k, v := range substituted {
			form.Set(k, v)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, targetURL, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	case "POST-JSON", "POST":
		raw, jerr := json.Marshal(substituted)
		if jerr != nil {
			return nil, jerr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, targetURL, strings.NewReader(string(raw)))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	default:
		return nil, fmt.Errorf("authhttp: unsupported method %q", rc.Method)
	}
	if err != nil {
		return nil, err
	}

	for k, v := range rc.Headers {
		req.Header.Set(k, acl.SubstituteHTTP(v, p))
	}
	return req, nil
}

func interpretBody(header http.Header, body []byte) response {
	r := response{}
	if v := header.Get("X-Superuser"); v != "" {
		r.Superuser = true
	}
	if v := header.Get("X-Cache"); v != "" {
		if tm, err := strconv.ParseInt(v, 10, 64); err == nil {
			r.Cacheable = true
			r.ExpireMillis = tm
		}
	}

	contentType := header.Get("Content-Type")
	trimmed := strings.TrimSpace(string(body))

	if strings.Contains(contentType, "application/json") || looksLikeJSONObject(trimmed) {
		var obj struct {
			Result    string    `json:"result"`
			Superuser bool      `json:"superuser"`
			ExpireAt  int64     `json:"expire_at"`
			ACL       []aclRule `json:"acl"`
		}
		if err := json.Unmarshal(body, &obj); err == nil && obj.Result != "" {
			if isIgnoreString(obj.Result) {
				r.Ignore = true
				return r
			}
			r.Allow = obj.Result == "allow" || obj.Result == "ok" || obj.Result == "true"
			r.Superuser = r.Superuser || obj.Superuser
			if obj.ExpireAt != 0 {
				r.Cacheable = true
				r.ExpireMillis = obj.ExpireAt * 1000
			}
			r.ACL = obj.ACL
			return r
		}

		var str string
		if err := json.Unmarshal(body, &str); err == nil {
			if isIgnoreString(str) {
				r.Ignore = true
				return r
			}
			r.Allow = isAllowString(str)
			return r
		}
	}

	if isIgnoreString(trimmed) {
		r.Ignore = true
		return r
	}
	r.Allow = isAllowString(trimmed)
	return r
}

func looksLikeJSONObject(s string) bool {
	return strings.HasPrefix(s, "{")
}

func isAllowString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ok", "allow", "true", "1", "granted", "permit":
		return true
	default:
		return false
	}
}

// isIgnoreString matches Permission::try_from's "ignore" arm
// (rmqtt-auth-http/src/lib.rs:70-77): the backend explicitly declines to
// rule and wants the chain to continue to the next handler, as distinct
// from an affirmative allow/deny.
func isIgnoreString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ignore":
		return true
	default:
		return false
	}
}
