package echoapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/services/realtime"
)

const closeGracePeriod = time.Second

type liveApi struct {
	auth     *Auth
	users    *user.Service
	hub      *realtime.Hub
	logger   core.Logger
	upgrader websocket.Upgrader
}

func registerLiveAPI(g *echo.Group, auth *Auth, deps ServerDeps) {
	api := liveApi{
		auth:     auth,
		users:    deps.UserSvc,
		hub:      deps.Hub,
		logger:   deps.Logger,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(deps.Conf.Server.AllowedOrigins)},
	}
	g.GET("/ws", api.connect)
}

// originChecker accepts the allowed origins, any origin with "*", and same-origin requests when none is configured.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// connect opens a live channel for the identity of the token query parameter.
// A bad token, or an unknown or deactivated identity, closes the connection with a policy violation.
func (api *liveApi) connect(ctx echo.Context) error {
	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already replied
		return nil
	}

	usr, err := api.identify(ctx)
	if err != nil {
		if err != core.ErrCredentials {
			api.logger.Error("identifying live channel", err)
		}
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid or expired credentials")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		_ = conn.Close()
		return nil
	}

	ch, err := api.hub.Open(usr.ID, conn)
	if err != nil {
		// the hub closed conn
		return nil
	}
	ch.Serve()
	return nil
}

func (api *liveApi) identify(ctx echo.Context) (user.User, error) {
	claims, err := api.auth.ParseToken(ctx.QueryParam("token"))
	if err != nil {
		return user.User{}, err
	}
	uid, err := claims.UserID()
	if err != nil {
		return user.User{}, core.ErrCredentials
	}
	usr, err := api.users.GetByID(ctx.Request().Context(), uid)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, core.ErrCredentials
		}
		return user.User{}, err
	}
	if !usr.IsActive {
		return user.User{}, core.ErrCredentials
	}
	return usr, nil
}
