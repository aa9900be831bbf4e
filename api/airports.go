package api

import (
	"net/http"

	"github.com/Domenick1991/flightbooking/internal/service/airports"
	"github.com/gin-gonic/gin"
)

type AirportHandler struct {
	service airports.AirportUseCase
}

func NewAirportHandler(service airports.AirportUseCase) *AirportHandler {
	return &AirportHandler{service: service}
}

func (h *AirportHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.list)
	router.GET("/:code", h.get)
}

func (h *AirportHandler) create(c *gin.Context) {
	var req airports.CreateAirportInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	airport, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, airport)
}

func (h *AirportHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *AirportHandler) get(c *gin.Context) {
	airport, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, airport)
}
