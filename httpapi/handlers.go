package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/heartnote/authcore"
	"github.com/heartnote/authcore/middleware"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	UserID          string    `json:"userId"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Nickname        string    `json:"nickname,omitempty"`
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	ExpiresAt       time.Time `json:"expiresAt"`
	HasRelationship bool      `json:"hasRelationship"`
}

type meResponse struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Nickname  string    `json:"nickname,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func toSessionResponse(res *authcore.LoginResult) sessionResponse {
	return sessionResponse{
		UserID:          res.UserID,
		Email:           res.Email,
		Name:            res.Name,
		Nickname:        res.Nickname,
		AccessToken:     res.Tokens.AccessToken,
		RefreshToken:    res.Tokens.RefreshToken,
		ExpiresAt:       res.Tokens.ExpiresAt,
		HasRelationship: res.HasRelationship,
	}
}

// decode reads a single JSON object of at most maxBodyBytes. Unknown fields
// and trailing data are rejected.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return errors.New("malformed JSON body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "field " + verrs[0].Field() + " failed " + verrs[0].Tag()
	}
	return "invalid request"
}

// POST /auth/register
func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		a.writeBadRequest(w, err.Error())
		return
	}

	res, err := a.svc.Register(r.Context(), authcore.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Nickname: req.Nickname,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(res))
}

// POST /auth/login
func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		a.writeBadRequest(w, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.writeBadRequest(w, describeValidation(err))
		return
	}

	res, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(res))
}

// POST /auth/refresh
func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		a.writeBadRequest(w, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.writeBadRequest(w, describeValidation(err))
		return
	}

	pair, err := a.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// POST /auth/logout always answers 204 for well-formed requests.
func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			a.writeBadRequest(w, err.Error())
			return
		}
	}
	if err := a.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /auth/me
func (a *api) me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		a.writeError(w, r, middleware.ErrMissingToken)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		UserID:    p.UserID,
		Email:     p.Email,
		Name:      p.Name,
		Nickname:  p.Nickname,
		ExpiresAt: p.ExpiresAt,
	})
}
