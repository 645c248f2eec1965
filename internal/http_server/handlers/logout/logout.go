package logout

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
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	engine *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

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

		if err := engine.Logout(r.Context(), req.RefreshToken, origin); err != nil {
			if errors.Is(err, auth.ErrSessionInvalid) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Fail("SESSION_INVALID", "Invalid refresh token"))

				return
			}

			log.Error("failed to logout", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, resp.OK())
	}
}
