package handlers

import (
	"net/http"
	"time"

	"github.com/BradenHooton/resera/internal/auth"
	"github.com/BradenHooton/resera/internal/models"
	pkghttp "github.com/BradenHooton/resera/pkg/http"
)

// lockoutFallback is sent as Retry-After when a lock carries no remaining time
const lockoutFallback = time.Minute

func requestMeta(r *http.Request, ipConfig *pkghttp.IPConfig) models.RequestMeta {
	return models.RequestMeta{
		IPAddress: pkghttp.ExtractClientIP(r, ipConfig),
		UserAgent: r.UserAgent(),
	}
}

// accountID returns the authenticated account or writes a 401
func accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil || claims.AccountID == "" {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return "", false
	}
	return claims.AccountID, true
}
