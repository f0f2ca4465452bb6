package handlers

import (
	"github.com/taskwell/workpool/internal/services"
)

type Handler struct {
	runner  *services.Runner
	history *services.History
}

func New(runner *services.Runner, history *services.History) *Handler {
	return &Handler{
		runner:  runner,
		history: history,
	}
}
