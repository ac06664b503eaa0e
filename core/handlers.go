package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Handlers interface {
	PostEvents(gctx *gin.Context)
	GetEvents(gctx *gin.Context)
	GetEvent(gctx *gin.Context)
	UpdateEvent(gctx *gin.Context)
	PartialUpdateEvent(gctx *gin.Context)
	ListOnlineEvents(gctx *gin.Context)
	BulkCreateEvents(gctx *gin.Context)
}

type handlers struct {
	repository Repository
}

func NewHandlers(repository Repository) Handlers {
	return &handlers{repository: repository}
}

// PostEvents creates an event. When the payload is rejected or the insert fails, the event
// carrying the payload's external_id is overwritten with the raw payload instead.
func (h *handlers) PostEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var raw map[string]any

	err := bindJSON(gctx, &raw)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	event, err := ParseEvent(raw)
	if err == nil {
		var savedEvent *Event

		savedEvent, err = h.repository.SaveEvent(ctx, event)
		if err == nil {
			gctx.JSON(http.StatusCreated, savedEvent)
			return
		}
	}

	rawExternalId, ok := raw["external_id"]
	if !ok {
		log.Ctx(ctx).Error().Err(err).Msg("event validation failed")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("event validation failed", err))

		return
	}

	externalId, _ := RawText(rawExternalId)

	affected, updateErr := h.repository.UpdateEventByExternalId(ctx, externalId, RawEventFields(raw))
	if updateErr != nil {
		log.Ctx(ctx).Error().Err(updateErr).AnErr("cause", err).Str("external_id", externalId).Msg("overwriting event failed")
		gctx.AbortWithStatusJSON(http.StatusInternalServerError, NewError("overwriting event failed", updateErr))

		return
	}

	log.Ctx(ctx).Warn().Err(err).Str("external_id", externalId).Int64("rows_affected", affected).
		Msg("event create fell back to overwrite by external_id")

	gctx.JSON(http.StatusCreated, raw)
}

func (h *handlers) GetEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	filter, err := NewEventFilter(gctx.Request.URL.Query())
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("invalid event filter")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("invalid event filter", err))

		return
	}

	events, err := h.repository.FindEvents(ctx, filter)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("listing events failed")
		gctx.AbortWithStatusJSON(http.StatusInternalServerError, NewError("listing events failed", err))

		return
	}

	gctx.JSON(http.StatusOK, events)
}

func (h *handlers) GetEvent(gctx *gin.Context) {
	event, ok := h.findEvent(gctx)
	if !ok {
		return
	}

	gctx.JSON(http.StatusOK, event)
}

// UpdateEvent replaces every attribute of an event.
func (h *handlers) UpdateEvent(gctx *gin.Context) {
	h.updateEvent(gctx, false)
}

// PartialUpdateEvent replaces the attributes present in the payload.
func (h *handlers) PartialUpdateEvent(gctx *gin.Context) {
	h.updateEvent(gctx, true)
}

func (h *handlers) updateEvent(gctx *gin.Context, partial bool) {
	ctx := gctx.Request.Context()

	existing, ok := h.findEvent(gctx)
	if !ok {
		return
	}

	var raw map[string]any

	err := bindJSON(gctx, &raw)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	var event *Event
	if partial {
		event, err = ParseEventPatch(raw, existing)
	} else {
		event, err = ParseEvent(raw)
	}

	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("event validation failed")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("event validation failed", err))

		return
	}

	event.Id = existing.Id

	updatedEvent, err := h.repository.UpdateEvent(ctx, event)
	if err != nil {
		switch {
		case errors.Is(err, ErrEventNotFound):
			log.Ctx(ctx).Info().Int64("id", event.Id).Msg("event not found")
			gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("event not found", err))
		case errors.Is(err, ErrDuplicateExternalId):
			verr := &ValidationError{Fields: FieldErrors{"external_id": {msgUnique}}}

			log.Ctx(ctx).Error().Err(err).Int64("id", event.Id).Msg("event validation failed")
			gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("event validation failed", verr))
		default:
			log.Ctx(ctx).Error().Err(err).Int64("id", event.Id).Msg("updating event failed")
			gctx.AbortWithStatusJSON(http.StatusInternalServerError, NewError("updating event failed", err))
		}

		return
	}

	gctx.JSON(http.StatusOK, updatedEvent)
}

// findEvent loads the event named by the id path parameter. Ids that are not integers
// cannot name an event and are reported as not found.
func (h *handlers) findEvent(gctx *gin.Context) (*Event, bool) {
	ctx := gctx.Request.Context()

	id, err := strconv.ParseInt(gctx.Param("id"), 10, 64)
	if err != nil {
		log.Ctx(ctx).Info().Str("id", gctx.Param("id")).Msg("event not found")
		gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("event not found", ErrEventNotFound))

		return nil, false
	}

	event, err := h.repository.GetEventById(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			log.Ctx(ctx).Info().Int64("id", id).Msg("event not found")
			gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("event not found", err))

			return nil, false
		}

		log.Ctx(ctx).Error().Err(err).Msg("getting event failed")
		gctx.AbortWithStatusJSON(http.StatusInternalServerError, NewError("getting event failed", err))

		return nil, false
	}

	return event, true
}

// ListOnlineEvents lists the online events held between starts_at and ends_at.
func (h *handlers) ListOnlineEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	filter, err := NewOnlineEventFilter(gctx.Request.URL.Query())
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("invalid date range")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("invalid date range", err))

		return
	}

	events, err := h.repository.FindEvents(ctx, filter)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("listing online events failed")
		gctx.AbortWithStatusJSON(http.StatusInternalServerError, NewError("listing online events failed", err))

		return
	}

	gctx.JSON(http.StatusOK, events)
}

// BulkCreateEvents inserts every event of the payload or none of them.
func (h *handlers) BulkCreateEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var raws []map[string]any

	err := bindJSON(gctx, &raws)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	events, err := ParseEvents(raws)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("events validation failed")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("events validation failed", err))

		return
	}

	savedEvents, err := h.repository.SaveEvents(ctx, events)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrDuplicateExternalId) {
			status = http.StatusConflict
		}

		log.Ctx(ctx).Error().Err(err).Int("count", len(events)).Msg("saving events failed")
		gctx.AbortWithStatusJSON(status, NewError("saving events failed", err))

		return
	}

	log.Ctx(ctx).Info().Int("count", len(savedEvents)).Msg("events created")

	gctx.JSON(http.StatusCreated, savedEvents)
}

// bindJSON decodes the request body keeping JSON numbers as json.Number, so numeric
// identifiers are not rounded through float64.
func bindJSON(gctx *gin.Context, v any) error {
	if gctx.Request.Body == nil {
		return errors.New("missing request body")
	}

	decoder := json.NewDecoder(gctx.Request.Body)
	decoder.UseNumber()

	return decoder.Decode(v)
}
