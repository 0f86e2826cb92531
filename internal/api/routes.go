package api

import "github.com/gin-gonic/gin"

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.EngineInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	// live alert stream for dashboards
	s.router.GET("/ws/alerts", gin.WrapF(s.container.Hub.ServeWS))

	v1 := s.router.Group("/api/v1")

	events := v1.Group("/events")
	{
		events.POST("", s.eventHandler.Submit)
	}

	alerts := v1.Group("/alerts")
	{
		alerts.GET("", s.alertHandler.ListAlerts)
		alerts.GET("/stats", s.alertHandler.Stats)
		alerts.GET("/:id", s.alertHandler.GetAlert)
		alerts.POST("/:id/acknowledge", s.alertHandler.Acknowledge)
	}

	analytics := v1.Group("/analytics")
	{
		analytics.GET("/current", s.analyticsHandler.Current)
		analytics.GET("/footfall", s.analyticsHandler.Footfall)
		analytics.GET("/demographics", s.analyticsHandler.Demographics)
		analytics.GET("/dwell", s.analyticsHandler.Dwell)
	}

	suspects := v1.Group("/suspects")
	{
		suspects.GET("/:suspect_id/sightings", s.suspectHandler.Sightings)
	}

	cameras := v1.Group("/cameras")
	{
		cameras.GET("", s.cameraHandler.ListCameras)
		cameras.GET("/:camera_id", s.cameraHandler.GetCamera)
		cameras.POST("/:camera_id/stop", s.cameraHandler.StopCamera)
	}

	system := v1.Group("/system")
	{
		system.GET("/stats", s.systemHandler.GetStats)
		system.GET("/counters", s.systemHandler.GetCounters)
	}

	admin := v1.Group("/admin")
	{
		admin.POST("/zones/reload", s.adminHandler.ReloadZones)
		admin.POST("/suspects/reload", s.adminHandler.ReloadSuspects)
		admin.POST("/aggregate", s.adminHandler.Aggregate)
	}
}
