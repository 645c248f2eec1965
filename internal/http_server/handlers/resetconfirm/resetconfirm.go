package resetconfirm

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
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type Response struct {
	resp.Response
	Message string `json:"message"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	engine *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resetconfirm.New"

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

		err := engine.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword, origin)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Fail("USER_NOT_FOUND", "User not found"))
			case errors.Is(err, auth.ErrOtpExpired):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Fail("OTP_EXPIRED", "OTP expired"))
			case errors.Is(err, auth.ErrOtpAttemptsExceeded):
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, resp.Fail("OTP_ATTEMPTS_EXCEEDED", "OTP attempt limit reached"))
			case errors.Is(err, auth.ErrOtpInvalid):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Fail("OTP_INVALID", "Incorrect OTP"))
			default:
				log.Error("failed to reset password", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Message:  "Password updated",
		})
	}
}
