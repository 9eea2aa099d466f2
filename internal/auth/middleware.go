package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. Exactly one of User and
// Staff is set, matching SubjectType.
type Principal struct {
	SubjectType domain.SubjectType
	User        *domain.User
	Staff       *domain.StaffMember
	Role        *domain.StaffRole
}

// Authenticator validates bearer tokens and loads the caller's account. A
// token for a suspended user or deactivated staff member is rejected even
// when its signature is still valid.
type Authenticator struct {
	tokens *TokenIssuer
	users  repository.UserRepository
	staff  repository.StaffRepository
}

// NewAuthenticator constructs the middleware.
func NewAuthenticator(tokens *TokenIssuer, users repository.UserRepository, staff repository.StaffRepository) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, staff: staff}
}

// Authenticate is the fiber handler guarding protected routes.
func (a *Authenticator) Authenticate(c *fiber.Ctx) error {
	raw, err := bearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}
	claims, err := a.tokens.Parse(raw)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal, err := a.loadPrincipal(c.Context(), claims)
	if err != nil {
		return err
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

func (a *Authenticator) loadPrincipal(ctx context.Context, claims *Claims) (*Principal, error) {
	principal := &Principal{SubjectType: claims.SubjectType, Role: claims.Role}

	switch claims.SubjectType {
	case domain.SubjectTypeUser:
		user, err := a.users.GetByID(ctx, claims.SubjectID())
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, apperrors.NewUnauthorized("unknown user")
			}
			return nil, apperrors.MapError(err)
		}
		if user.Suspended() {
			return nil, apperrors.NewUnauthorized("account suspended")
		}
		principal.User = user
	case domain.SubjectTypeStaff:
		member, err := a.staff.GetByID(ctx, claims.SubjectID())
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, apperrors.NewUnauthorized("unknown staff member")
			}
			return nil, apperrors.MapError(err)
		}
		if !member.Active {
			return nil, apperrors.NewUnauthorized("staff member deactivated")
		}
		principal.Staff = member
	default:
		return nil, apperrors.NewUnauthorized("unknown subject type")
	}
	return principal, nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperrors.NewUnauthorized("authorization header is not a bearer token")
	}
	return token, nil
}

// PrincipalFromContext retrieves the authenticated caller set by Authenticate.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	principal, ok := c.Locals(principalKey).(*Principal)
	return principal, ok
}
