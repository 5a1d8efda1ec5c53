package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/minnego/internal/middleware"
	"github.com/hitoshi/minnego/internal/model"
	"github.com/hitoshi/minnego/internal/session"
)

// maxAuthBodySize は認証系リクエストボディの上限。
const maxAuthBodySize = 1 << 20

// AuthHandler はログイン・サインアップ・プロフィール更新のHTTPハンドラー。
// リクエストごとにuserクッキーを保存先とするsession.Storeを生成する。
type AuthHandler struct {
	service *session.Service
	cookie  session.CookieConfig
	logger  *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service *session.Service, cookie session.CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: service, cookie: cookie, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse はログイン・サインアップの結果。成功時はユーザーを含む。
type authResponse struct {
	session.Result
	User *model.SessionUser `json:"user,omitempty"`
}

func (h *AuthHandler) store(w http.ResponseWriter, r *http.Request) session.Store {
	return session.NewStore(h.service, session.NewCookiePersister(w, r, h.cookie))
}

// Login はメールアドレスとパスワードでログインする。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	st := h.store(w, r)
	result := st.Login(r.Context(), req.Email, req.Password)
	if !result.Success {
		h.writeFailure(w, result)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Result: result, User: st.Current()})
}

// Signup はアカウントを登録してログインする。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decode(w, r, &req) {
		return
	}

	st := h.store(w, r)
	result := st.Signup(r.Context(), req.Name, req.Email, req.Password)
	if !result.Success {
		h.writeFailure(w, result)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Result: result, User: st.Current()})
}

// Logout はuserクッキーを削除する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.store(w, r).Logout()
	w.WriteHeader(http.StatusNoContent)
}

// Me はログイン中ユーザーを返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := h.store(w, r).Current()
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe はログイン中ユーザーのプロフィールを部分更新する。
// PATCH /api/auth/me
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var update model.UserUpdate
	if !h.decode(w, r, &update) {
		return
	}

	user, err := h.store(w, r).UpdateUser(r.Context(), update)
	switch {
	case errors.Is(err, session.ErrNotLoggedIn):
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
	case errors.Is(err, session.ErrInvalidImage):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError(err.Error()))
	case err != nil:
		handleServiceError(w, h.logger, err)
	default:
		writeJSON(w, http.StatusOK, user)
	}
}

// writeFailure は認証の失敗を応答する。認証情報の誤りは401、重複登録は409、
// 入力不足は400で {success:false, error} を返し、それ以外は統一エラーの500にする。
func (h *AuthHandler) writeFailure(w http.ResponseWriter, result session.Result) {
	var status int
	switch {
	case errors.Is(result.Err, session.ErrUserNotFound), errors.Is(result.Err, session.ErrInvalidPassword):
		status = http.StatusUnauthorized
	case errors.Is(result.Err, session.ErrUserExists):
		status = http.StatusConflict
	case errors.Is(result.Err, session.ErrMissingFields):
		status = http.StatusBadRequest
	default:
		err := result.Err
		if err == nil {
			err = errors.New(result.Error)
		}
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, status, authResponse{Result: result})
}

// decode はJSONボディを読み取る。失敗時は400を書き込みfalseを返す。
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidParameterError("body", "must be a JSON object"))
		return false
	}
	return true
}
