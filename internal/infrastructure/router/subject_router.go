package router

import (
	"sync"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/usecase"
	"outreach-service/pkg/logger"
)

// SubjectRouter routes inbound emails to the first handler that accepts them
type SubjectRouter struct {
	mu       sync.RWMutex
	handlers []usecase.InboundHandler
	logger   logger.Logger
}

// NewSubjectRouter creates a new subject router
func NewSubjectRouter(logger logger.Logger) *SubjectRouter {
	return &SubjectRouter{
		handlers: make([]usecase.InboundHandler, 0),
		logger:   logger,
	}
}

// Register appends a handler; registration order is priority order
func (r *SubjectRouter) Register(handler usecase.InboundHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, handler)
	r.logger.Info("Registered handler", "handler", handler.Name())
}

// GetHandler returns the handler for the email, or nil if none accepts it
func (r *SubjectRouter) GetHandler(email *entity.InboundEmail) usecase.InboundHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, handler := range r.handlers {
		if handler.CanHandle(email) {
			return handler
		}
	}
	return nil
}
