package server

import (
	"time"

	"github.com/raysh454/regress/internal/logging"
	"github.com/raysh454/regress/internal/regression"
)

type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string

	// AdminToken is the bearer token for batch endpoints. When empty those
	// endpoints answer 403.
	AdminToken string

	// Engine is passed to every evaluation.
	Engine regression.Config

	// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
	ShutdownTimeout time.Duration

	Logger logging.Logger
}
