package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/session"
	"github.com/trezcool/canteen/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"

	headerTokenLookup = "header:" + echo.HeaderAuthorization
	// EventSource cannot set headers
	queryTokenLookup = "query:token"
)

func jwtMiddleware(conf *core.Config, tokenLookup string) echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(session.Claims),
		TokenLookup:   tokenLookup,
	})
}

// GenerateToken signs a session token for usr. A refreshed token keeps the session ID
// and original issue time of the token it replaces.
func GenerateToken(conf *core.Config, usr user.User, prev ...session.Claims) (string, error) {
	sessionID := uuid.New().String()
	var origIat []int64
	if len(prev) > 0 {
		sessionID = prev[0].Id
		origIat = append(origIat, prev[0].OrigIssuedAt)
	}
	claims := session.NewClaims(usr, conf.AppName, sessionID, conf.Server.JWTExpirationDelta, origIat...)
	token, err := session.SignToken(claims, []byte(conf.SecretKey))
	return token, errors.Wrap(err, "signing token")
}

func getContextToken(ctx echo.Context) (*jwt.Token, *session.Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*session.Claims); ok {
			return token, claims, nil
		}
	}
	return nil, nil, errUnauthorized
}

func getContextClaims(ctx echo.Context) (session.Claims, error) {
	_, claims, err := getContextToken(ctx)
	if err != nil {
		return session.Claims{}, err
	}
	return *claims, nil
}

// getContextSession returns the session the request token stands for.
func getContextSession(ctx echo.Context) (session.Session, error) {
	token, claims, err := getContextToken(ctx)
	if err != nil {
		return session.Session{}, err
	}
	return session.Session{
		ID:        claims.Id,
		User:      claims.User(),
		Token:     token.Raw,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}, nil
}

func getContextUser(ctx echo.Context, svc user.ServiceInterface, clms ...session.Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims session.Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func refreshToken(ctx echo.Context, conf *core.Config, svc user.ServiceInterface) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := GenerateToken(conf, usr, claims)
	return token, errors.Wrap(err, "generating token")
}
