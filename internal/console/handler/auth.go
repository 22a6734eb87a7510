package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/xela07ax/tenant-agent-core/internal/console/service"
	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// maxLoginBodyBytes ограничивает тело запроса логина.
const maxLoginBodyBytes = 4 << 10

// AuthHandler обслуживает выдачу операторских токенов.
type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(s *service.AuthService) *AuthHandler {
	return &AuthHandler{service: s}
}

// Login — POST /auth/token: username/password в теле, bearer-токен в ответе.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req domain.LoginRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "malformed login request", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	resp, err := h.service.GenerateToken(r.Context(), req.Username, req.Password)
	if err != nil {
		// Единый отказ на любую причину: перебору логинов нельзя дать
		// отличить "нет такого оператора" от "не тот пароль"
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	// Токену нечего делать в промежуточных кэшах
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, resp)
}
