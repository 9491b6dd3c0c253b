package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, importHandler *ImportHandler, taskHandler *TaskHandler) {
	api := server.Group("/api/v1/imports")
	api.POST("", importHandler.CreateTask)
	api.POST("/batch", importHandler.CreateTasks)
	api.GET("", taskHandler.ListTasks)
	api.GET("/:id", taskHandler.GetTask)
	api.POST("/:id/confirm", importHandler.ConfirmImport)
}
