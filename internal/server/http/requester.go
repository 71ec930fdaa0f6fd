package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/kmalkov/searchgate/internal/model"
)

// Requester descriptor headers set by the fronting gateway. The gateway is
// trusted for identity; admin rights come from the static admin set, never
// from a header.
const (
	headerRequesterID   = "X-Requester-Id"
	headerRequesterName = "X-Requester-Name"
)

func requesterFrom(r *http.Request) (model.Requester, error) {
	raw := r.Header.Get(headerRequesterID)
	if raw == "" {
		return model.Requester{}, fmt.Errorf("missing %s header", headerRequesterID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return model.Requester{}, fmt.Errorf("invalid %s header", headerRequesterID)
	}
	return model.Requester{
		ID:          model.Identity(id),
		DisplayName: r.Header.Get(headerRequesterName),
	}, nil
}
