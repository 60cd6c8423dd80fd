package route

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/rest"
	"github.com/evergreen-ci/utility"
)

const (
	originHeader         = "Origin"
	requestHeadersHeader = "Access-Control-Request-Headers"
	allowMethodsHeader   = "Access-Control-Allow-Methods"
	allowOriginHeader    = "Access-Control-Allow-Origin"
	allowHeadersHeader   = "Access-Control-Allow-Headers"
	maxAgeHeader         = "Access-Control-Max-Age"
)

// corsPolicy is the cross origin configuration of a resource. A nil
// origins list accepts any origin that is not blocked and a nil headers
// list echoes the headers the client asks for.
type corsPolicy struct {
	enabled bool
	methods []string
	maxAge  int
	origins []string
	blocked []string
	headers []string
}

func newCORSPolicy(conf slither.CORSConfig, methods []string) corsPolicy {
	p := corsPolicy{
		enabled: conf.Enabled,
		methods: upperAll(conf.Methods),
		maxAge:  int(durationOrDefault(conf.MaxAge, slither.DefaultCORSMaxAge).Seconds()),
		origins: copyNilable(conf.Origins),
		blocked: append([]string(nil), conf.Blocked...),
		headers: copyNilable(conf.Headers),
	}
	if len(p.methods) == 0 {
		p.methods = append([]string(nil), methods...)
	}
	return p
}

// negotiate decides a cross origin request. It returns the headers to
// add to the response, or an error when the request is rejected.
func (p corsPolicy) negotiate(r *http.Request) (http.Header, error) {
	if !p.enabled {
		return nil, rest.Errorf(rest.MethodNotAllowed, "CORS request rejected")
	}

	host := originHost(r)
	if utility.StringSliceContains(p.blocked, host) {
		return nil, rest.Errorf(rest.MethodNotAllowed, "CORS request blocked")
	}
	if p.origins != nil && !utility.StringSliceContains(p.origins, host) {
		return nil, rest.Errorf(rest.MethodNotAllowed, "CORS request refused")
	}

	h := http.Header{}
	h.Set(allowMethodsHeader, strings.Join(append(append([]string{}, p.methods...), slither.MethodOptions), ", "))
	h.Set(maxAgeHeader, strconv.Itoa(p.maxAge))
	h.Set(allowOriginHeader, requestScheme(r)+"://"+host)
	h.Add("Vary", originHeader)

	if requested := r.Header.Get(requestHeadersHeader); requested != "" {
		if p.headers == nil {
			h.Set(allowHeadersHeader, requested)
		} else {
			allowed := []string{}
			for _, name := range strings.Split(requested, ",") {
				name = strings.TrimSpace(name)
				if containsFold(p.headers, name) {
					allowed = append(allowed, name)
				}
			}
			h.Set(allowHeadersHeader, strings.Join(allowed, ", "))
		}
	}

	return h, nil
}

// originHost is the host the request claims to come from: the host of
// the Origin header, or the request host without one.
func originHost(r *http.Request) string {
	if origin := r.Header.Get(originHeader); origin != "" {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			return u.Host
		}
		return origin
	}
	return r.Host
}

func requestScheme(r *http.Request) string {
	switch {
	case r.URL != nil && r.URL.Scheme != "":
		return r.URL.Scheme
	case r.TLS != nil:
		return "https"
	default:
		return "http"
	}
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
