package auth

import (
	"context"
	"errors"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserID = "user_id"
	ContextUser   = "user"
)

type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) (*models.User, error)
}

// Abort writes the error envelope shared with the gateway.
func Abort(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	if kind == apperr.Internal {
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{"error": msg, "code": kind.String()})
}

// Authenticate resolves the session, if any, and stores the user in the
// context. It never rejects; RequireUser does.
func Authenticate(sessions *Sessions, users UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessions.TokenFromRequest(c.Request)
		if token == "" {
			c.Next()
			return
		}
		claims, err := sessions.Parse(token)
		if err != nil {
			c.Next()
			return
		}
		user, err := users.GetUser(c.Request.Context(), claims.Subject)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				Abort(c, err)
				return
			}
			c.Next()
			return
		}
		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)
		c.Next()
	}
}

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			Abort(c, apperr.New(apperr.Unauthorized, "Unauthorized"))
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			Abort(c, apperr.New(apperr.Unauthorized, "Unauthorized"))
			return
		}
		if !user.IsAdmin {
			Abort(c, apperr.New(apperr.Forbidden, "admin access required"))
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}
