package api

import (
	"github.com/wb-go/wbf/ginext"

	"filmclub/cmd/middleware"
	"filmclub/internal/auth"
	"filmclub/internal/service"
)

type Routers struct {
	Service        service.Service
	Verifier       *auth.Verifier
	AdminToken     string
	AllowedOrigins []string
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(middleware.CORS(r.AllowedOrigins))

	admin := middleware.AdminOnly(r.AdminToken)
	optionalUser := middleware.Authenticate(r.Verifier, false)
	user := middleware.Authenticate(r.Verifier, true)

	apiGroup := app.Group("/api")

	apiGroup.GET("/health", r.Service.Health)

	apiGroup.GET("/meetings", r.Service.ListMeetings)
	apiGroup.GET("/meetings/:id", r.Service.GetMeeting)
	apiGroup.POST("/meetings", admin, r.Service.CreateMeeting)
	apiGroup.DELETE("/meetings", admin, r.Service.DeleteMeeting)
	apiGroup.POST("/meetings/:id/cancel", admin, r.Service.CancelMeeting)
	apiGroup.POST("/meetings/:id/announce", admin, r.Service.AnnounceMeeting)

	apiGroup.POST("/rsvp", optionalUser, r.Service.SubmitRSVP)
	apiGroup.GET("/rsvp/mine", user, r.Service.ListMyRSVPs)
	apiGroup.PATCH("/rsvp/:id", user, r.Service.UpdateRSVP)

	apiGroup.GET("/polls/list", r.Service.ActivePoll)
	apiGroup.POST("/polls", admin, r.Service.CreatePoll)
	apiGroup.POST("/polls/:id/close", admin, r.Service.ClosePoll)
	apiGroup.POST("/polls/:id/vote", user, r.Service.Vote)
	apiGroup.GET("/polls/:id/results", r.Service.PollResults)

	apiGroup.GET("/auth/me", user, r.Service.Me)
	apiGroup.GET("/profile", user, r.Service.GetProfile)
	apiGroup.PUT("/profile", user, r.Service.SaveProfile)

	apiGroup.POST("/notifications/preview", admin, r.Service.PreviewNotification)

	return app
}
