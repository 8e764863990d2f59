package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"couponhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin    = "admin"
	RoleMerchant = "merchant"
	RoleUser     = "user"
)

const identityKey = "identity"

// Claims are the access token claims issued by the auth provider.
type Claims struct {
	Role       string `json:"role"`
	MerchantID int64  `json:"merchant_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	UserID     int64
	Role       string
	MerchantID int64
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// TokenVerifier checks HS256 access tokens.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

func (v *TokenVerifier) Verify(token string) (Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	if claims.Role == "" {
		claims.Role = RoleUser
	}
	return Identity{UserID: userID, Role: claims.Role, MerchantID: claims.MerchantID}, nil
}

// Sign issues a token for id. Used by tests and local tooling.
func (v *TokenVerifier) Sign(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:       id.Role,
		MerchantID: id.MerchantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// AuthMiddleware requires a valid bearer token.
func AuthMiddleware(v *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "")
			c.Abort()
			return
		}

		id, err := v.Verify(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		SetIdentity(c, id)
		c.Next()
	}
}

func SetIdentity(c *gin.Context, id Identity) {
	c.Set(identityKey, id)
}

func identity(c *gin.Context) Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(Identity)
	return id
}

// RequireRole lets admins and the listed roles through.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identity(c)
		if id.IsAdmin() {
			c.Next()
			return
		}
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "")
		c.Abort()
	}
}

// RequireMerchant rejects callers whose token carries no merchant.
func RequireMerchant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity(c).MerchantID <= 0 {
			response.Forbidden(c, "merchant account required")
			c.Abort()
			return
		}
		c.Next()
	}
}
