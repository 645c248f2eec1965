package register

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
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type Response struct {
	resp.Response
	AccountID string `json:"account_id"`
	Message   string `json:"message"`
	Otp       string `json:"otp,omitempty"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	engine *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

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

		result, err := engine.Register(r.Context(), req.Email, req.Password, req.Name, origin)
		if err != nil {
			if errors.Is(err, auth.ErrUserExists) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Fail("USER_EXISTS", "User already exists"))

				return
			}

			log.Error("failed to register account", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response:  resp.OK(),
			AccountID: result.AccountID,
			Message:   result.Message,
			Otp:       result.Code,
		})
	}
}
