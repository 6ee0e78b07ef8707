package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/campus/internal/domain"
	"github.com/gosuda/campus/internal/tenancy"
)

// Sources of an explicit institute parameter, in precedence order.
const (
	InstituteHeader = "X-Institute-ID"
	InstituteQuery  = "institute_id"
	instituteField  = "institute_id"
)

const (
	maxPeekBody          = 1 << 20
	securityEventTimeout = 5 * time.Second
)

// TenantResolver is satisfied by *tenancy.Resolver.
type TenantResolver interface {
	Resolve(ctx context.Context, req tenancy.ResolveRequest) (*tenancy.Resolution, error)
}

// SecurityRecorder persists security events. *postgres.SecurityEventRepo
// satisfies it.
type SecurityRecorder interface {
	Record(ctx context.Context, e *domain.SecurityEvent) error
}

// ResolveTenant resolves the institute of an authenticated request and runs
// the rest of the chain inside its RequestContext. Rejections are logged with
// the raw input and client address, recorded as security events in the
// background, and answered with a fixed message that never echoes the input.
func ResolveTenant(resolver TenantResolver, events SecurityRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := tenancy.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeNoToken, "Authentication required")
				return
			}

			explicit, err := explicitInstitute(r)
			if err != nil {
				log.Error().Err(err).Msg("tenant: read request body")
				writeError(w, http.StatusBadRequest, tenancy.CodeInvalidTenant, "Invalid request body")
				return
			}

			res, err := resolver.Resolve(r.Context(), tenancy.ResolveRequest{
				Host:      r.Host,
				Explicit:  explicit,
				Principal: p,
			})
			if err != nil {
				rejectTenant(w, r, p, err, events)
				return
			}

			rc := tenancy.RequestContext{
				TenantID: res.TenantID(),
				UserID:   p.ID,
				Role:     p.Role,
			}
			_ = tenancy.Run(r.Context(), rc, func(ctx context.Context) error {
				next.ServeHTTP(w, r.WithContext(ctx))
				return nil
			})
		})
	}
}

// RequireTenant refuses requests that are not scoped to an institute, such
// as a super-admin request that named none.
func RequireTenant() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := TenantIDFromContext(r.Context()); !ok {
				writeError(w, http.StatusBadRequest, CodeTenantRequired, "Institute context required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectTenant(w http.ResponseWriter, r *http.Request, p *domain.Principal, err error, events SecurityRecorder) {
	var re *tenancy.ResolveError
	if !errors.As(err, &re) {
		log.Error().Err(err).Str("user_id", p.ID.String()).Msg("tenant: resolution failed")
		writeInternal(w)
		return
	}

	ip := ClientIP(r)
	raw := tenancy.CleanRaw(re.Raw)
	log.Warn().
		Str("reason", re.Reason).
		Str("raw", raw).
		Int("raw_len", len(re.Raw)).
		Str("ip", ip).
		Str("user_id", p.ID.String()).
		Int("status", re.Status).
		Msg("tenant: request rejected")

	if events != nil && securityRelevant(re.Reason) {
		recordAsync(r.Context(), events, &domain.SecurityEvent{
			ID:       uuid.New(),
			Kind:     re.Reason,
			Raw:      raw,
			ClientIP: ip,
			UserID:   p.ID,
			Details: map[string]any{
				"host":    tenancy.CleanRaw(r.Host),
				"path":    tenancy.CleanRaw(r.URL.Path),
				"method":  r.Method,
				"raw_len": len(re.Raw),
			},
			CreatedAt: time.Now(),
		})
	}

	writeError(w, re.Status, re.Code, re.Message)
}

func securityRelevant(reason string) bool {
	switch reason {
	case tenancy.ReasonInvalidSubdomain,
		tenancy.ReasonUnknownSubdomain,
		tenancy.ReasonInvalidExplicit,
		tenancy.ReasonUnknownExplicit,
		tenancy.ReasonNotAuthorized:
		return true
	}
	return false
}

// recordAsync stores e without holding up the response. Failures are logged.
func recordAsync(ctx context.Context, events SecurityRecorder, e *domain.SecurityEvent) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, securityEventTimeout)
		defer cancel()

		if err := events.Record(ctx, e); err != nil {
			log.Warn().Err(err).Str("kind", e.Kind).Msg("tenant: record security event")
		}
	}()
}

// explicitInstitute returns the first institute parameter present in the
// header, the query string or a JSON body. The body is restored for the
// handler.
func explicitInstitute(r *http.Request) (string, error) {
	if v := r.Header.Get(InstituteHeader); v != "" {
		return v, nil
	}
	if v := r.URL.Query().Get(InstituteQuery); v != "" {
		return v, nil
	}
	if r.Body == nil || r.Body == http.NoBody || !isJSON(r) {
		return "", nil
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buf), r.Body))
	if len(buf) > maxPeekBody {
		return "", nil
	}

	var body map[string]json.RawMessage
	if json.Unmarshal(buf, &body) != nil {
		return "", nil
	}
	raw, ok := body[instituteField]
	if !ok || string(raw) == "null" {
		return "", nil
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		// Not a string: pass it through so the sanitizer rejects it.
		return string(raw), nil
	}
	return s, nil
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && (mt == "application/json" || len(mt) > 5 && mt[len(mt)-5:] == "+json")
}
