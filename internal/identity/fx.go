package identity

import (
	"fmt"

	"github.com/smallbiznis/ndpcatalog/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.verifier",
	fx.Provide(NewVerifier),
)

// NewVerifier selects the verifier configured by NDP_IDENTITY_MODE.
func NewVerifier(cfg config.Config) (Verifier, error) {
	switch cfg.Identity.Mode {
	case config.IdentityModeJWT:
		return NewJWTVerifier(cfg.Identity.JWTPublicKey, cfg.Identity.JWTIssuer, cfg.Identity.JWTAudience)
	case config.IdentityModeUserInfo:
		return NewUserInfoVerifier(cfg.Identity.UserInfoURL, cfg.Identity.Timeout), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidIdentityMode, cfg.Identity.Mode)
	}
}
