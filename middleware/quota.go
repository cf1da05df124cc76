/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/vasayxtx/go-glob"

	"github.com/acronis/go-usagekit/admission"
	"github.com/acronis/go-usagekit/log"
	"github.com/acronis/go-usagekit/restapi"
)

// QuotaLogFieldKey is the name of the logged field that contains a key of the client quota.
const QuotaLogFieldKey = "quota_key"

// QuotaParams contains data that relates to the admission procedure
// and could be used for rejecting or handling an occurred error.
type QuotaParams struct {
	ErrDomain           string
	ResponseStatusCode  int
	Key                 string
	Weight              uint64
	RequestBacklogged   bool
	EstimatedRetryAfter time.Duration
}

// QuotaOnRejectFunc is a function that is called for rejecting HTTP request when the quota is exceeded.
type QuotaOnRejectFunc func(
	rw http.ResponseWriter, r *http.Request, params QuotaParams, next http.Handler, logger log.FieldLogger)

// QuotaOnErrorFunc is a function that is called when an error occurs during the admission.
type QuotaOnErrorFunc func(
	rw http.ResponseWriter, r *http.Request, params QuotaParams, err error, next http.Handler, logger log.FieldLogger)

// QuotaGetKeyFunc is a function that is called for getting the client key.
type QuotaGetKeyFunc func(r *http.Request) (key string, bypass bool, err error)

// QuotaGetWeightFunc is a function that is called for getting the weight of the request.
type QuotaGetWeightFunc func(r *http.Request) (uint64, error)

// QuotaOpts represents an options for the Quota middleware.
type QuotaOpts struct {
	// GetKey returns the client key. Remote address host is used by default.
	GetKey QuotaGetKeyFunc

	// GetWeight returns the request weight. Every request weighs 1 by default.
	GetWeight QuotaGetWeightFunc

	// ExcludedKeys are glob patterns of keys which bypass the quota.
	ExcludedKeys []string

	// ResponseStatusCode is used for rejected requests. 429 is used by default.
	ResponseStatusCode int

	// BacklogParams configure queuing of rejected requests. Backlogging is disabled by default.
	BacklogParams admission.BacklogParams

	// DryRun makes the middleware only log rejections while requests are served.
	DryRun bool

	OnReject         QuotaOnRejectFunc
	OnRejectInDryRun QuotaOnRejectFunc
	OnError          QuotaOnErrorFunc
}

type quotaHandler struct {
	next           http.Handler
	processor      *admission.RequestProcessor
	getKey         QuotaGetKeyFunc
	getWeight      QuotaGetWeightFunc
	errDomain      string
	respStatusCode int

	onReject QuotaOnRejectFunc
	onError  QuotaOnErrorFunc
}

// Quota is a middleware that admits HTTP requests within per-client quotas.
func Quota(limiter admission.WeightedLimiter, errDomain string) (func(next http.Handler) http.Handler, error) {
	return QuotaWithOpts(limiter, errDomain, QuotaOpts{})
}

// MustQuota is a version of Quota that panics if an error occurs.
func MustQuota(limiter admission.WeightedLimiter, errDomain string) func(next http.Handler) http.Handler {
	mw, err := Quota(limiter, errDomain)
	if err != nil {
		panic(err)
	}
	return mw
}

// QuotaWithOpts is a configurable version of a middleware that admits HTTP requests within per-client quotas.
func QuotaWithOpts(
	limiter admission.WeightedLimiter, errDomain string, opts QuotaOpts,
) (func(next http.Handler) http.Handler, error) {
	respStatusCode := opts.ResponseStatusCode
	if respStatusCode == 0 {
		respStatusCode = http.StatusTooManyRequests
	}

	getKey := opts.GetKey
	if getKey == nil {
		getKey = GetQuotaKeyByRemoteAddr
	}
	if len(opts.ExcludedKeys) != 0 {
		getKey = makeQuotaGetKeyWithExcludedKeys(getKey, opts.ExcludedKeys)
	}

	getWeight := opts.GetWeight
	if getWeight == nil {
		getWeight = func(*http.Request) (uint64, error) { return 1, nil }
	}

	backlogParams := opts.BacklogParams
	if opts.DryRun {
		backlogParams.Limit = 0 // Backlogging should be disabled in dry-run mode to avoid blocking requests.
	}
	processor, err := admission.NewRequestProcessor(limiter, backlogParams)
	if err != nil {
		return nil, fmt.Errorf("new admission request processor: %w", err)
	}

	return func(next http.Handler) http.Handler {
		return &quotaHandler{
			next:           next,
			processor:      processor,
			getKey:         getKey,
			getWeight:      getWeight,
			errDomain:      errDomain,
			respStatusCode: respStatusCode,
			onReject:       makeQuotaOnRejectFunc(opts),
			onError:        makeQuotaOnErrorFunc(opts),
		}
	}, nil
}

// MustQuotaWithOpts is a version of QuotaWithOpts that panics if an error occurs.
func MustQuotaWithOpts(limiter admission.WeightedLimiter, errDomain string, opts QuotaOpts) func(next http.Handler) http.Handler {
	mw, err := QuotaWithOpts(limiter, errDomain, opts)
	if err != nil {
		panic(err)
	}
	return mw
}

func (h *quotaHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	requestHandler := &quotaRequestHandler{rw: rw, r: r, parent: h}
	_ = h.processor.ProcessRequest(requestHandler) // Error is always nil, as it is handled in the quotaRequestHandler methods.
}

// quotaRequestHandler implements admission.RequestHandler for HTTP requests.
type quotaRequestHandler struct {
	rw     http.ResponseWriter
	r      *http.Request
	parent *quotaHandler
}

func (h *quotaRequestHandler) GetContext() context.Context {
	return h.r.Context()
}

func (h *quotaRequestHandler) GetKey() (key string, bypass bool, err error) {
	return h.parent.getKey(h.r)
}

func (h *quotaRequestHandler) GetWeight() (uint64, error) {
	return h.parent.getWeight(h.r)
}

func (h *quotaRequestHandler) Execute() error {
	h.parent.next.ServeHTTP(h.rw, h.r)
	return nil
}

func (h *quotaRequestHandler) OnReject(params admission.Params) error {
	h.parent.onReject(h.rw, h.r, h.convertParams(params), h.parent.next, GetLoggerFromContext(h.r.Context()))
	return nil
}

func (h *quotaRequestHandler) OnError(params admission.Params, err error) error {
	h.parent.onError(h.rw, h.r, h.convertParams(params), err, h.parent.next, GetLoggerFromContext(h.r.Context()))
	return nil
}

func (h *quotaRequestHandler) convertParams(params admission.Params) QuotaParams {
	return QuotaParams{
		ErrDomain:           h.parent.errDomain,
		ResponseStatusCode:  h.parent.respStatusCode,
		Key:                 params.Key,
		Weight:              params.Weight,
		RequestBacklogged:   params.RequestBacklogged,
		EstimatedRetryAfter: params.EstimatedRetryAfter,
	}
}

// GetQuotaKeyByRemoteAddr returns the host part of the request's remote address.
func GetQuotaKeyByRemoteAddr(r *http.Request) (key string, bypass bool, err error) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr, false, nil // RemoteAddr without port
	}
	return host, false, nil
}

// MakeGetQuotaKeyByHeader returns a function that uses the value of the request header as a client key.
// Requests with empty header value bypass the quota if bypassEmpty is true.
func MakeGetQuotaKeyByHeader(headerName string, bypassEmpty bool) QuotaGetKeyFunc {
	return func(r *http.Request) (string, bool, error) {
		key := r.Header.Get(headerName)
		return key, key == "" && bypassEmpty, nil
	}
}

func makeQuotaGetKeyWithExcludedKeys(getKey QuotaGetKeyFunc, excludedKeys []string) QuotaGetKeyFunc {
	compiledKeys := make([]func(s string) bool, 0, len(excludedKeys))
	for _, key := range excludedKeys {
		compiledKeys = append(compiledKeys, glob.Compile(key))
	}
	return func(r *http.Request) (string, bool, error) {
		key, bypass, err := getKey(r)
		if err != nil || bypass {
			return key, bypass, err
		}
		for i := range compiledKeys {
			if compiledKeys[i](key) {
				return key, true, nil
			}
		}
		return key, false, nil
	}
}

// DefaultQuotaOnReject sends HTTP response with 429 status code (by default), Retry-After header
// and error in JSON format when the quota is exceeded.
// Retry-After is omitted when the request can never be admitted.
func DefaultQuotaOnReject(
	rw http.ResponseWriter, r *http.Request, params QuotaParams, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger = logger.With(
			log.String(QuotaLogFieldKey, params.Key),
			log.Uint64("quota_weight", params.Weight),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}
	if params.EstimatedRetryAfter > 0 {
		rw.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(params.EstimatedRetryAfter.Seconds()))))
	}
	restapi.RespondError(rw, params.ResponseStatusCode, restapi.NewTooManyRequestsError(params.ErrDomain), logger)
}

// DefaultQuotaOnError sends HTTP response with 500 status code when an error occurs during the admission.
func DefaultQuotaOnError(
	rw http.ResponseWriter, r *http.Request, params QuotaParams, err error, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger.Error(err.Error(), log.String(QuotaLogFieldKey, params.Key))
	}
	restapi.RespondInternalError(rw, params.ErrDomain, logger)
}

// DefaultQuotaOnRejectInDryRun logs the rejection and serves the request anyway.
func DefaultQuotaOnRejectInDryRun(
	rw http.ResponseWriter, r *http.Request, params QuotaParams, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger.Warn("quota exceeded, serving will be continued because of dry run mode",
			log.String(QuotaLogFieldKey, params.Key),
			log.Uint64("quota_weight", params.Weight),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}
	next.ServeHTTP(rw, r)
}

func makeQuotaOnRejectFunc(opts QuotaOpts) QuotaOnRejectFunc {
	if opts.DryRun {
		if opts.OnRejectInDryRun != nil {
			return opts.OnRejectInDryRun
		}
		return DefaultQuotaOnRejectInDryRun
	}
	if opts.OnReject != nil {
		return opts.OnReject
	}
	return DefaultQuotaOnReject
}

func makeQuotaOnErrorFunc(opts QuotaOpts) QuotaOnErrorFunc {
	if opts.OnError != nil {
		return opts.OnError
	}
	return DefaultQuotaOnError
}
