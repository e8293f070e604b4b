package user

import (
	"net/http"

	"bluewell/internal/utility"

	"github.com/labstack/echo/v4"
)

// PlanSocketHandler handles GET /ws. The client receives "PLAN_UPDATED:<kind>"
// whenever one of its plans is rewritten.
func PlanSocketHandler(c echo.Context) error {
	// 1. Authenticated by JwtAuthMiddleware
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	// 2. Upgrade HTTP to WebSocket
	ws, err := utility.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	// 3. Register Client
	utility.RegisterClient(userID, ws)
	defer utility.UnregisterClient(userID, ws)

	// 4. Read until the client goes away
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	return nil
}
