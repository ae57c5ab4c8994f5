package web

import (
	"errors"
	"net/http"

	"github.com/badoux/checkmail"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/effektcommunity/invitebot/internal/invites"
	"github.com/effektcommunity/invitebot/internal/sanity"
)

var (
	logger = log.With().Str("component", "web").Logger()
)

// InviteService is the slice of the invite controller the HTTP surface uses.
type InviteService interface {
	CreatePremiumInvite() (string, error)
	DeleteAllInvites() error
}

// MemberDirectory mirrors signup emails into the document store.
type MemberDirectory interface {
	CreateIfNotExists(doc sanity.CommunityMember) error
}

type Handlers struct {
	service InviteService
	members MemberDirectory

	requireEmail   bool
	deletePassword string
}

func New(service InviteService, members MemberDirectory, requireEmail bool, deletePassword string) *Handlers {
	return &Handlers{
		service:        service,
		members:        members,
		requireEmail:   requireEmail,
		deletePassword: deletePassword,
	}
}

func (h *Handlers) RegisterHandlers(rg *gin.RouterGroup) {
	rg.POST("/invite", h.handleCreateInvite)
	if !h.requireEmail {
		rg.GET("/invite", h.handleCreateInvite)
	}

	rg.POST("/delete-invites", h.handleDeleteInvites)
}

type createInviteParams struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handlers) handleCreateInvite(c *gin.Context) {
	if h.requireEmail {
		params := &createInviteParams{}
		if err := c.ShouldBindJSON(params); err != nil {
			c.String(http.StatusBadRequest, "Email is required")
			return
		}

		if err := checkmail.ValidateFormat(params.Email); err != nil {
			c.String(http.StatusBadRequest, "Invalid email format.")
			return
		}

		if err := h.members.CreateIfNotExists(sanity.NewCommunityMember(params.Email)); err != nil {
			logger.Error().Err(err).Msg("Error creating community member document")
			c.String(http.StatusInternalServerError, "Error handling email document on Sanity")
			return
		}
	}

	url, err := h.service.CreatePremiumInvite()
	if err != nil {
		if errors.Is(err, invites.ErrNotReady) {
			c.String(http.StatusNotFound, "Guild or channel not found")
			return
		}
		logger.Error().Err(err).Msg("Error creating invite")
		c.String(http.StatusInternalServerError, "Error creating invite")
		return
	}

	c.String(http.StatusOK, url)
}

type deleteInvitesParams struct {
	Password string `json:"password"`
}

func (h *Handlers) handleDeleteInvites(c *gin.Context) {
	params := &deleteInvitesParams{}
	// A missing or unreadable body counts as a password mismatch.
	_ = c.ShouldBindJSON(params)

	if params.Password != h.deletePassword {
		c.String(http.StatusForbidden, "Invalid password")
		return
	}

	if err := h.service.DeleteAllInvites(); err != nil {
		if errors.Is(err, invites.ErrNotReady) {
			c.String(http.StatusNotFound, "Guild not found")
			return
		}
		logger.Error().Err(err).Msg("Error deleting invites")
		c.String(http.StatusInternalServerError, "Error deleting invites")
		return
	}

	c.String(http.StatusOK, "All invites deleted successfully.")
}
