// Package httpapi публикует складские операции по HTTP под префиксом /api/socks.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
	"github.com/vladislavdragonenkov/sockstore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/sockstore/internal/service/inventory"
)

const (
	// BasePath — префикс всех маршрутов склада.
	BasePath = "/api/socks"

	// IdempotencyKeyHeader — заголовок ключа идемпотентности для продажи.
	IdempotencyKeyHeader = "Idempotency-Key"

	// Тексты ответов, видимые клиенту.
	msgSold          = "Товар успешно отпущен со склада"
	msgInternalError = "Ошибка на сервере"
	msgCottonRange   = "Минимальное количество хлопка должно быть меньше или равно максимальному количеству"

	maxBodyBytes = 1 << 20
)

// Handler связывает HTTP-маршруты с inventory.Service.
type Handler struct {
	svc    *inventory.Service
	guard  *idempotency.Guard
	logger *log.Entry
}

// NewHandler создаёт обработчик. guard может быть nil: тогда продажа не идемпотентна.
func NewHandler(svc *inventory.Service, guard *idempotency.Guard, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{svc: svc, guard: guard, logger: logger}
}

// Register добавляет маршруты склада в mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST "+BasePath, h.addSocks)
	mux.HandleFunc("GET "+BasePath, h.countSocks)
	mux.HandleFunc("GET "+BasePath+"/{$}", h.countSocks)
	mux.HandleFunc("GET "+BasePath+"/all", h.listSocks)
	mux.HandleFunc("GET "+BasePath+"/{id}", h.getSocks)
	mux.HandleFunc("GET "+BasePath+"/color/{color}", h.getSocksByColor)
	mux.HandleFunc("GET "+BasePath+"/size/{size}", h.getSocksBySize)
	mux.HandleFunc("GET "+BasePath+"/composition/{cotton}", h.getSocksByComposition)
	mux.HandleFunc("PUT "+BasePath+"/{id}", h.sellSocks)
	mux.HandleFunc("DELETE "+BasePath+"/{id}", h.deleteSocks)
}

// Routes возвращает готовый http.Handler с маршрутами и middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	return withRequestID(withAccessLog(h.logger, mux))
}

// sockPayload — тело запросов добавления и продажи.
type sockPayload struct {
	ID          int64  `json:"id,omitempty"`
	Color       string `json:"color"`
	Size        string `json:"size"`
	Composition struct {
		CottonPercentage int `json:"cottonPercentage"`
	} `json:"composition"`
	Quantity int `json:"quantity"`
}

func (p sockPayload) toDomain() (domain.Sock, error) {
	color, err := domain.ParseColor(p.Color)
	if err != nil {
		return domain.Sock{}, err
	}
	size, err := domain.ParseSize(p.Size)
	if err != nil {
		return domain.Sock{}, err
	}
	return domain.Sock{
		ID:          p.ID,
		Color:       color,
		Size:        size,
		Composition: domain.Composition{CottonPercentage: p.Composition.CottonPercentage},
		Quantity:    p.Quantity,
	}, nil
}

func decodeSock(r *http.Request) (domain.Sock, error) {
	var payload sockPayload
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		return domain.Sock{}, fmt.Errorf("malformed request body: %w", err)
	}
	return payload.toDomain()
}

func (h *Handler) addSocks(w http.ResponseWriter, r *http.Request) {
	sock, err := decodeSock(r)
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := h.svc.Add(r.Context(), sock)
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) listSocks(w http.ResponseWriter, r *http.Request) {
	socks, err := h.svc.List(r.Context())
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, socks)
}

func (h *Handler) getSocks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sock, err := h.svc.Get(r.Context(), id)
	h.writeSock(w, r, sock, err)
}

func (h *Handler) getSocksByColor(w http.ResponseWriter, r *http.Request) {
	color, err := domain.ParseColor(r.PathValue("color"))
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	sock, err := h.svc.GetByColor(r.Context(), color)
	h.writeSock(w, r, sock, err)
}

func (h *Handler) getSocksBySize(w http.ResponseWriter, r *http.Request) {
	size, err := domain.ParseSize(r.PathValue("size"))
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	sock, err := h.svc.GetBySize(r.Context(), size)
	h.writeSock(w, r, sock, err)
}

func (h *Handler) getSocksByComposition(w http.ResponseWriter, r *http.Request) {
	cotton, err := strconv.Atoi(r.PathValue("cotton"))
	if err != nil {
		writeText(w, http.StatusBadRequest, "cotton percentage must be an integer")
		return
	}
	sock, err := h.svc.GetByComposition(r.Context(), domain.Composition{CottonPercentage: cotton})
	h.writeSock(w, r, sock, err)
}

func (h *Handler) countSocks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseQuantityFilter(r)
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := filter.Validate(); err != nil {
		writeText(w, http.StatusBadRequest, msgCottonRange)
		return
	}

	total, err := h.svc.Count(r.Context(), filter)
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, strconv.Itoa(total))
}

func parseQuantityFilter(r *http.Request) (domain.QuantityFilter, error) {
	query := r.URL.Query()
	var filter domain.QuantityFilter

	if raw := strings.TrimSpace(query.Get("color")); raw != "" {
		color, err := domain.ParseColor(raw)
		if err != nil {
			return filter, err
		}
		filter.Color = &color
	}
	if raw := strings.TrimSpace(query.Get("size")); raw != "" {
		size, err := domain.ParseSize(raw)
		if err != nil {
			return filter, err
		}
		filter.Size = &size
	}
	for name, target := range map[string]**int{"cottonMin": &filter.CottonMin, "cottonMax": &filter.CottonMax} {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return filter, fmt.Errorf("%s must be an integer", name)
		}
		*target = &value
	}
	return filter, nil
}

func (h *Handler) sellSocks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	requested, err := decodeSock(r)
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if h.guard == nil || key == "" {
		status, body := h.sell(r, id, requested)
		writeText(w, status, body)
		return
	}

	canonical, err := json.Marshal(requested)
	if err != nil {
		writeText(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	record, replay, err := h.guard.Begin(key, idempotency.RequestHash(r.Method+" "+r.URL.Path, canonical))
	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		writeText(w, http.StatusConflict, "idempotency key is already used with different request payload")
		return
	case errors.Is(err, idempotency.ErrRequestInProgress):
		writeText(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.WithError(err).WithField("idempotency_key", key).Error("failed to reserve idempotency key")
		writeText(w, http.StatusInternalServerError, msgInternalError)
		return
	case replay:
		w.Header().Set("Idempotent-Replayed", "true")
		writeText(w, record.StatusCode, string(record.ResponseBody))
		return
	}

	status, body := h.sell(r, id, requested)
	if status >= http.StatusInternalServerError {
		// Сбой инфраструктуры не кешируется: повтор с тем же ключом выполнит продажу заново.
		h.guard.Release(key)
	} else {
		h.guard.Complete(key, []byte(body), status, status != http.StatusOK)
	}
	writeText(w, status, body)
}

// sell возвращает код и текст ответа: 400 с сообщением для бизнес-отказов,
// 500 без подробностей для остальных ошибок.
func (h *Handler) sell(r *http.Request, id int64, requested domain.Sock) (int, string) {
	_, err := h.svc.Sell(r.Context(), id, requested)
	switch {
	case err == nil:
		return http.StatusOK, msgSold
	case domain.IsNotFound(err), domain.IsInsufficientStock(err), domain.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	default:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("sell failed")
		return http.StatusInternalServerError, msgInternalError
	}
}

func (h *Handler) deleteSocks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	removed, err := h.svc.Delete(r.Context(), id)
	h.writeSock(w, r, removed, err)
}

func (h *Handler) writeSock(w http.ResponseWriter, r *http.Request, sock domain.Sock, err error) {
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sock)
}

// writeLookupError: NotFound → 404, ошибки ввода → 400, остальное → 500 без деталей.
func (h *Handler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsNotFound(err):
		writeText(w, http.StatusNotFound, err.Error())
	case domain.IsValidation(err):
		writeText(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		writeText(w, http.StatusInternalServerError, msgInternalError)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeText(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
