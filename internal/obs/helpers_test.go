package obs_test

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

func chiReqID(r *http.Request) string { return middleware.GetReqID(r.Context()) }
