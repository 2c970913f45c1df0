package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	promOnce sync.Once
	promHTTP *fiberprometheus.FiberPrometheus
)

// InitMetrics builds the HTTP request collector for the service. The
// collectors live in the default registry, so later calls return the first
// instance.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promHTTP = fiberprometheus.New(serviceName)
		promHTTP.SetSkipPaths([]string{"/metrics", "/health/live", "/health/ready"})
	})
	return promHTTP
}

// MetricsMiddleware records request counts and latencies. Websocket upgrades
// are skipped because they never complete a normal response.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderUpgrade) == "websocket" {
			return c.Next()
		}
		return prom.Middleware(c)
	}
}
