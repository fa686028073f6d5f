package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/mediafetch"
	"github.com/totegamma/mediafetch/internal/domain"
	"github.com/totegamma/mediafetch/internal/present/rest/presenter"
	"github.com/totegamma/mediafetch/internal/usecase"
)

// EventSource streams published item events.
type EventSource interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

type Handler struct {
	item     *usecase.ItemUsecase
	events   EventSource
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(item *usecase.ItemUsecase, events EventSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		item:   item,
		events: events,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts the API. Write and stream routes go through guard.
func (h *Handler) RegisterRoutes(e *echo.Echo, guard ...echo.MiddlewareFunc) {
	e.GET("/healthz", h.handleHealth)
	e.GET("/resolve", h.handleResolve)
	e.POST("/items", h.handleProcess, guard...)
	e.GET("/items/:id", h.handleGetItem, guard...)
	e.GET("/events", h.handleEvents, guard...)
}

func (h *Handler) handleHealth(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleProcess(c echo.Context) error {
	ctx := c.Request().Context()

	var item mediafetch.Item
	if err := json.NewDecoder(c.Request().Body).Decode(&item); err != nil {
		return presenter.BadRequest(c, err)
	}
	if item == nil {
		return presenter.BadRequestMessage(c, "item must be a JSON object")
	}

	fields := h.item.Fields()
	if _, isName := item[fields.KeyGen].(string); item[fields.KeyGen] != nil && !isName {
		return presenter.BadRequestMessage(c, fmt.Sprintf("%s must be a rule name", fields.KeyGen))
	}

	result, err := h.item.Process(ctx, item)
	if err != nil {
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, result)
}

func (h *Handler) handleGetItem(c echo.Context) error {
	ctx := c.Request().Context()

	record, err := h.item.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return presenter.NotFound(c, "item not found")
		}
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, record)
}

func (h *Handler) handleResolve(c echo.Context) error {
	rawURL := c.QueryParam("url")
	if rawURL == "" {
		return presenter.BadRequestMessage(c, "url is required")
	}

	dest, err := h.item.ResolveURL(rawURL, c.QueryParam("rule"))
	if err != nil {
		var ruleErr *domain.InvalidRuleOutputError
		if errors.As(err, &ruleErr) {
			return presenter.BadRequest(c, err)
		}
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, dest)
}

func (h *Handler) handleEvents(c echo.Context) error {
	if h.events == nil {
		return presenter.Error(c, http.StatusServiceUnavailable, "event stream not configured")
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	messages, err := h.events.Subscribe(ctx, mediafetch.ItemsChannel)
	if err != nil {
		return presenter.InternalError(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return nil
	}
	defer conn.Close()

	// the read loop only watches for the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) && (closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway) {
					return
				}
				h.logger.DebugContext(ctx, "event socket closed", slog.String("error", err.Error()), slog.String("module", "socket"))
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("event client gone", "error", err)
				return nil
			}
		}
	}
}
