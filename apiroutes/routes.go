package apiroutes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/keywheel/go-keywheel-server/api"
	restinterceptors "github.com/keywheel/go-keywheel-server/api/interceptors"
	"github.com/keywheel/go-keywheel-server/global"
	"github.com/keywheel/go-keywheel-server/metrics"
	"github.com/keywheel/go-keywheel-server/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// REST API routes
func ConfigRoutes(router *gin.Engine, manager *services.RotationManager) *gin.Engine {
	// init metrics
	if global.Conf.Prometheus.Enabled {

		metrics.InitMetrics()

		authorized := router.Group("/metrics", gin.BasicAuth(gin.Accounts{
			global.Conf.Prometheus.Username: global.Conf.Prometheus.Password,
		}))

		authorized.GET("", gin.WrapH(promhttp.Handler()))
	}

	// CORS for the wallet UI
	if len(global.Conf.Cors.AllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = global.Conf.Cors.AllowedOrigins
		corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
		router.Use(cors.New(corsConfig))
	}

	// API definitions
	rotationApi := api.NewRotationApi(manager)
	ktpApi := api.NewKtpApi(manager)
	healthCheckApi := api.NewHealthCheckAPI()

	// PUBLIC API (status queries, healthcheck)
	publicApi := router.Group("/api", metrics.MetricsMiddleware())
	{
		publicApi.GET("/v1/healthcheck", healthCheckApi.HealthCheck)
		publicApi.GET("/v1/rotation/status/:publicKey", rotationApi.RotationStatus)
		publicApi.GET("/v1/rotation/records", rotationApi.ListRotationRecords)
	}

	// mutating routes are rate limited
	limitedApi := router.Group("/api", metrics.MetricsMiddleware(), restinterceptors.RateLimitMiddleware())
	{
		limitedApi.POST("/v1/rotation", rotationApi.Rotate)
		limitedApi.POST("/v1/rotation/overdue", rotationApi.RotateOverdue)
		limitedApi.POST("/v1/ktp/rotation", ktpApi.ReceiveRotation)
	}

	return router
}
