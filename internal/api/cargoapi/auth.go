package cargoapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var errUnauthorized = errors.New("unauthorized")

// Claims: полезная нагрузка access-токена; sub числовой.
type Claims struct {
	UserID   int64  `json:"sub"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	BranchID *int64 `json:"branchId,omitempty"`
	jwt.RegisteredClaims
}

type actorKey struct{}

func withActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func actorFrom(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(models.Actor)
	return a, ok
}

type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Issue подписывает токен для actor. Используется cargoctl и тестами.
func (a *Authenticator) Issue(actor models.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		UserID:   actor.ID,
		Role:     string(actor.Role),
		BranchID: actor.BranchID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
	return s, errors.Wrap(err, "sign token")
}

func (a *Authenticator) Parse(token string) (models.Actor, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Actor{}, errors.Wrap(errUnauthorized, err.Error())
	}
	role := models.Role(c.Role)
	if c.UserID <= 0 || !role.Valid() {
		return models.Actor{}, errors.Wrap(errUnauthorized, "bad claims")
	}
	return models.Actor{ID: c.UserID, Role: role, BranchID: c.BranchID}, nil
}

// Middleware кладёт Actor из Bearer-токена в контекст запроса.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, errors.Wrap(errUnauthorized, "missing bearer token"))
			return
		}
		actor, err := a.Parse(strings.TrimSpace(token))
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}
