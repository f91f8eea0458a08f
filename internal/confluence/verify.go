package confluence

import (
	"context"
	"errors"
	"net/http"

	errs "github.com/olgasafonova/confluence-mcp-server/internal/errors"
)

// VerifyConnection performs one cheap read (list spaces, limit 1) and turns a
// failure into a *errors.ConnectionError naming the likely cause.
func (c *Client) VerifyConnection(ctx context.Context) error {
	_, err := c.ListSpaces(ctx, ListOptions{Limit: 1})
	if err == nil {
		c.t.logger.Info("Connected to Confluence",
			"site", c.t.siteURL,
			"api_version", string(c.version))
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	ce := &errs.ConnectionError{
		Reason:  errs.ReasonConnectionFailed,
		BaseURL: c.t.apiBase,
		Err:     err,
	}

	var de *errs.Error
	if errors.As(err, &de) {
		ce.StatusCode = de.StatusCode
		ce.Reason = connectionReason(de.StatusCode)
	}
	return ce
}

func connectionReason(status int) errs.ConnectionReason {
	switch {
	case status == http.StatusUnauthorized:
		return errs.ReasonInvalidCredentials
	case status == http.StatusForbidden:
		return errs.ReasonInsufficientAuthorization
	case status == http.StatusNotFound:
		return errs.ReasonMisconfiguredAddress
	case status >= 500:
		return errs.ReasonRemoteUnavailable
	default:
		return errs.ReasonConnectionFailed
	}
}
