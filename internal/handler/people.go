package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/roster"
)

func (h *Handler) listPeople(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"people": h.roster.List()})
}

func (h *Handler) createPerson(c *gin.Context) {
	var in roster.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.roster.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) importPeople(c *gin.Context) {
	var req struct {
		Names string `json:"names" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.roster.Import(c.Request.Context(), req.Names)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) updatePerson(c *gin.Context) {
	var in roster.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.roster.Update(c.Request.Context(), c.Param("personID"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) deletePerson(c *gin.Context) {
	if err := h.roster.Delete(c.Request.Context(), c.Param("personID")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) profile(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.roster.Get(ctx, c.Param("personID"))
	if err != nil {
		fail(c, err)
		return
	}
	prof, err := h.history.Profile(ctx, p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prof)
}

func (h *Handler) deleteRecord(c *gin.Context) {
	err := h.records.DeletePersonRecord(c.Request.Context(), c.Param("personID"), c.Param("recordID"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
