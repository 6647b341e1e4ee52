package query

import (
	"context"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/Laisky/agency-site/library/log"
)

// complexityLimit caps fields per operation
const complexityLimit = 500

// NewHandler builds the GraphQL http handler of resolver
func NewHandler(resolver *Resolver, logger logSDK.Logger) *handler.Server {
	if logger == nil {
		logger = log.Logger.Named("graphql")
	}

	h := handler.New(NewExecutableSchema(resolver, logger))
	h.AddTransport(transport.GET{})
	h.AddTransport(transport.POST{})
	h.AddTransport(transport.Options{})
	h.Use(extension.FixedComplexityLimit(complexityLimit))
	h.SetErrorPresenter(func(ctx context.Context, e error) *gqlerror.Error {
		err := graphql.DefaultErrorPresenter(ctx, e)
		logger.Debug("graphql request error", zap.Error(e))
		return err
	})

	return h
}

// Controller mounts the GraphQL endpoint
type Controller struct {
	h *handler.Server
}

// New new controller
func New(resolver *Resolver) *Controller {
	return &Controller{h: NewHandler(resolver, nil)}
}

// RegisterPublic mounts `/query`, GET and POST
func (q *Controller) RegisterPublic(g *gin.RouterGroup) {
	g.Any("/query", func(c *gin.Context) {
		q.h.ServeHTTP(c.Writer, c.Request)
	})
}
