package login

import (
	"errors"
	"log/slog"
	"net/http"

	"credential_service/internal/auth"
	resp "credential_service/internal/lib/api/response"
	sl "credential_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Response struct {
	resp.Response
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	engine *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		origin := auth.Origin{IP: r.RemoteAddr, UserAgent: r.UserAgent()}

		pair, err := engine.Login(r.Context(), req.Email, req.Password, origin)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Fail("INVALID_CREDENTIALS", "Invalid credentials"))
			case errors.Is(err, auth.ErrUserNotVerified):
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Fail("USER_NOT_VERIFIED", "User is not verified"))
			default:
				log.Error("failed to login", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		render.JSON(w, r, Response{
			Response:     resp.OK(),
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresIn:    pair.ExpiresIn,
		})
	}
}
