package bootstrap

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	httpecho "github.com/mohammadpnp/person-fusion/internal/interfaces/http/echo"
	"github.com/mohammadpnp/person-fusion/internal/platform/logger"
)

func NewHTTPServer(bodyLimit string, log *logger.Logger, importHandler *httpecho.ImportHandler, taskHandler *httpecho.TaskHandler) *echo.Echo {
	server := echo.New()
	server.HideBanner = true
	server.HidePort = true

	if bodyLimit == "" {
		bodyLimit = "50M"
	}

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			kv := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				log.Warn("http request failed", append(kv, "error", v.Error)...)
				return nil
			}
			log.Debug("http request", kv...)
			return nil
		},
	}))
	server.Use(middleware.BodyLimit(bodyLimit))

	httpecho.RegisterRoutes(server, importHandler, taskHandler)

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return server
}
