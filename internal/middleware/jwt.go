package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"bus_tracker/internal/tracking"
)

const (
	RoleAdmin     = "admin"
	RoleConductor = "conductor"
	RoleViewer    = "viewer"

	callerKey = "caller"
)

// Claims is the token payload issued by the ERP's login service. Conductor
// tokens carry the bus they operate.
type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	BusID  *uint  `json:"bus_id,omitempty"`
	jwt.RegisteredClaims
}

type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

func (a *Auth) GenerateToken(userID uint, role string, busID *uint, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		BusID:  busID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	switch claims.Role {
	case RoleAdmin, RoleViewer:
	case RoleConductor:
		if claims.BusID == nil {
			return nil, errors.New("conductor token without bus_id")
		}
	default:
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}
	return claims, nil
}

func (c *Claims) Caller() tracking.Caller {
	return tracking.Caller{UserID: c.UserID, Role: c.Role, BusID: c.BusID}
}

// RequireAuth ensures a valid JWT is present and stores the caller in the context.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		claims, err := a.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(callerKey, claims.Caller())
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		for _, r := range roles {
			if caller.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

// RequireBusAccess lets admins through and limits conductors to the bus
// named by the :id path parameter.
func RequireBusAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		if caller.Role == RoleAdmin {
			c.Next()
			return
		}
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid bus ID"})
			return
		}
		if caller.Role != RoleConductor || caller.BusID == nil || *caller.BusID != uint(id) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not assigned to this bus"})
			return
		}
		c.Next()
	}
}

// CallerFrom returns the identity RequireAuth stored on the request.
func CallerFrom(c *gin.Context) (tracking.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return tracking.Caller{}, false
	}
	caller, ok := v.(tracking.Caller)
	return caller, ok
}
