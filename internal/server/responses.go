package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bencai/orderwatch/internal/mailbox"
)

// Problem is an RFC 7807-style error body.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

const (
	typeValidation = "/problems/validation-error"
	typeAuth       = "/problems/authentication-failed"
	typeNotFound   = "/problems/not-found"
	typeUpstream   = "/problems/mailbox-unreachable"
	typeInternal   = "/problems/internal-error"
)

func respondProblem(c *gin.Context, status int, problemType, title, detail string) {
	c.JSON(status, Problem{
		Type:   problemType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// respondScrapeError maps the mailbox error taxonomy to HTTP problems.
// Credential details never appear in the response.
func respondScrapeError(c *gin.Context, err error) {
	switch {
	case mailbox.IsAuthError(err):
		respondProblem(c, http.StatusUnauthorized, typeAuth,
			"Mailbox authentication failed", "check credentials")
	case mailbox.IsFolderNotFound(err):
		respondProblem(c, http.StatusNotFound, typeNotFound,
			"Folder not found", err.Error())
	case mailbox.IsConnectionError(err):
		respondProblem(c, http.StatusBadGateway, typeUpstream,
			"Mailbox unreachable", err.Error())
	default:
		respondProblem(c, http.StatusInternalServerError, typeInternal,
			"Scrape failed", err.Error())
	}
}
