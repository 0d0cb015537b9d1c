package user

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/user-api/backend/internal/logger"
	"github.com/zhouzirui/user-api/backend/internal/model/user"
	"github.com/zhouzirui/user-api/backend/pkg/utils"
)

const (
	msgNotFound    = "User not found"
	msgInvalidBody = "invalid request body"
	msgInternal    = "internal server error"

	maxBodyBytes = 1 << 20
)

// Service 用户服务接口
type Service interface {
	List(ctx context.Context) ([]user.User, error)
	Get(ctx context.Context, id int64) (user.User, error)
	Create(ctx context.Context, in user.Input) (user.User, error)
	Update(ctx context.Context, id int64, patch user.Patch) (user.User, error)
	Delete(ctx context.Context, id int64) (user.User, error)
}

// Handler 用户资源的HTTP处理器
type Handler struct {
	users Service
	log   *logger.Logger
}

// New 创建用户处理器
func New(users Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{users: users, log: log}
}

// RegisterRoutes 注册用户相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.handleList)
	r.Post("/users", h.handleCreate)
	r.Get("/users/{id}", h.handleGet)
	r.Put("/users/{id}", h.handleUpdate)
	r.Delete("/users/{id}", h.handleDelete)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, users)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, msgNotFound)
		return
	}

	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, u)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in user.Input
	if err := decodeBody(w, r, &in); err != nil {
		utils.RespondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	created, err := h.users.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, msgNotFound)
		return
	}

	var patch user.Patch
	if err := decodeBody(w, r, &patch); err != nil {
		utils.RespondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	updated, err := h.users.Update(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, msgNotFound)
		return
	}

	deleted, err := h.users.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, deleted)
}

// fail maps service errors onto responses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// middleware.Timeout answers 504 once the deadline has passed.
		h.log.Warn("user request abandoned", "error", err, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
	default:
		h.log.Error("user request failed", "error", err, "method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
		utils.RespondError(w, http.StatusInternalServerError, msgInternal)
	}
}

// parseID reports false for anything that is not a base-10 integer, which
// callers answer exactly like an unknown id.
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

var errTrailingData = errors.New("unexpected data after JSON body")

// decodeBody reads a single JSON value into dst. An empty body leaves dst
// untouched; anything after the value is rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}
